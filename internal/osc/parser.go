// Package osc extracts OSC 633 shell integration sequences from a PTY byte
// stream, passing every other byte through untouched.
package osc

import (
	"strconv"
	"strings"
)

// EventKind discriminates the recognized 633 subtypes.
type EventKind int

const (
	// CommandStart, 633;C, command execution started.
	CommandStart EventKind = iota
	// CommandEnd, 633;D[;exit], command finished.
	CommandEnd
	// CommandText, 633;E;text, command line captured.
	CommandText
	// CwdChange, 633;P;Cwd=path, working directory changed.
	CwdChange
)

// Event is one extracted shell integration marker.
type Event struct {
	Kind     EventKind
	ExitCode *int   // CommandEnd
	Text     string // CommandText
	Path     string // CwdChange
}

// Result is the outcome of feeding one chunk to the parser.
type Result struct {
	// Output holds the input bytes with recognized sequences stripped.
	Output []byte
	// Events are the markers extracted from this chunk, in order.
	Events []Event
}

type state int

const (
	stateNormal state = iota
	stateEscape        // saw ESC
	stateOscBody       // inside OSC: saw ESC ]
)

// maxOscBufferSize caps an unterminated OSC body. A body that grows past
// this is discarded wholesale and the parser resets.
const maxOscBufferSize = 64 * 1024

// Parser is a streaming OSC 633 parser. State is retained across chunks so
// a sequence split over reads still parses.
type Parser struct {
	state  state
	oscBuf []byte
}

// NewParser returns a parser in the normal state.
func NewParser() *Parser {
	return &Parser{}
}

// Parse consumes one chunk and returns the pass-through bytes plus any
// extracted events.
func (p *Parser) Parse(input []byte) Result {
	output := make([]byte, 0, len(input))
	var evs []Event

	for _, b := range input {
		switch p.state {
		case stateNormal:
			if b == 0x1b {
				p.state = stateEscape
			} else {
				output = append(output, b)
			}
		case stateEscape:
			if b == ']' {
				p.state = stateOscBody
				p.oscBuf = p.oscBuf[:0]
			} else {
				// Not an OSC, replay ESC plus this byte.
				output = append(output, 0x1b, b)
				p.state = stateNormal
			}
		case stateOscBody:
			switch {
			case b == 0x07:
				// BEL terminates.
				output, evs = p.handleOsc(output, evs)
				p.state = stateNormal
			case b == 0x1b:
				// Might be the first half of ST (ESC \); buffer it.
				if len(p.oscBuf) >= maxOscBufferSize {
					p.oscBuf = p.oscBuf[:0]
					p.state = stateNormal
				} else {
					p.oscBuf = append(p.oscBuf, b)
				}
			case b == '\\' && len(p.oscBuf) > 0 && p.oscBuf[len(p.oscBuf)-1] == 0x1b:
				// ST terminator, drop the buffered ESC.
				p.oscBuf = p.oscBuf[:len(p.oscBuf)-1]
				output, evs = p.handleOsc(output, evs)
				p.state = stateNormal
			default:
				if len(p.oscBuf) >= maxOscBufferSize {
					p.oscBuf = p.oscBuf[:0]
					p.state = stateNormal
				} else {
					p.oscBuf = append(p.oscBuf, b)
				}
			}
		}
	}

	return Result{Output: output, Events: evs}
}

func (p *Parser) handleOsc(output []byte, evs []Event) ([]byte, []Event) {
	body := string(p.oscBuf)

	if strings.HasPrefix(body, "633;") {
		parts := strings.SplitN(body, ";", 3)
		if len(parts) >= 2 {
			switch parts[1] {
			case "C":
				evs = append(evs, Event{Kind: CommandStart})
			case "D":
				var exit *int
				if len(parts) == 3 {
					if n, err := strconv.Atoi(parts[2]); err == nil {
						exit = &n
					}
				}
				evs = append(evs, Event{Kind: CommandEnd, ExitCode: exit})
			case "E":
				var text string
				if len(parts) == 3 {
					text = parts[2]
				}
				evs = append(evs, Event{Kind: CommandText, Text: text})
			case "P":
				if len(parts) == 3 {
					if path, ok := strings.CutPrefix(parts[2], "Cwd="); ok {
						evs = append(evs, Event{Kind: CwdChange, Path: path})
					}
				}
			default:
				// Unknown 633 subtype, swallow.
			}
		}
	} else {
		// Non-633 OSC (titles, hyperlinks), reconstruct and pass through.
		output = append(output, 0x1b, ']')
		output = append(output, p.oscBuf...)
		output = append(output, 0x07)
	}

	p.oscBuf = p.oscBuf[:0]
	return output, evs
}
