package osc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestRegularOutputPassthrough(t *testing.T) {
	p := NewParser()
	input := []byte("Hello, world!\r\n")
	res := p.Parse(input)
	assert.Equal(t, input, res.Output)
	assert.Empty(t, res.Events)
}

func TestEmptyInput(t *testing.T) {
	p := NewParser()
	res := p.Parse(nil)
	assert.Empty(t, res.Output)
	assert.Empty(t, res.Events)
}

func TestCommandStart(t *testing.T) {
	p := NewParser()
	res := p.Parse([]byte("\x1b]633;C\x07"))
	assert.Empty(t, res.Output)
	assert.Equal(t, []Event{{Kind: CommandStart}}, res.Events)
}

func TestCommandEndWithExitCode(t *testing.T) {
	p := NewParser()
	res := p.Parse([]byte("\x1b]633;D;0\x07"))
	assert.Empty(t, res.Output)
	assert.Equal(t, []Event{{Kind: CommandEnd, ExitCode: intPtr(0)}}, res.Events)
}

func TestCommandEndErrorExitCode(t *testing.T) {
	p := NewParser()
	res := p.Parse([]byte("\x1b]633;D;127\x07"))
	assert.Equal(t, []Event{{Kind: CommandEnd, ExitCode: intPtr(127)}}, res.Events)
}

func TestCommandEndWithoutExitCode(t *testing.T) {
	p := NewParser()
	res := p.Parse([]byte("\x1b]633;D\x07"))
	require.Len(t, res.Events, 1)
	assert.Equal(t, CommandEnd, res.Events[0].Kind)
	assert.Nil(t, res.Events[0].ExitCode)
}

func TestCommandText(t *testing.T) {
	p := NewParser()
	res := p.Parse([]byte("\x1b]633;E;ls -la\x07"))
	assert.Empty(t, res.Output)
	assert.Equal(t, []Event{{Kind: CommandText, Text: "ls -la"}}, res.Events)
}

func TestCwdChange(t *testing.T) {
	p := NewParser()
	res := p.Parse([]byte("\x1b]633;P;Cwd=/home/user/project\x07"))
	assert.Empty(t, res.Output)
	assert.Equal(t, []Event{{Kind: CwdChange, Path: "/home/user/project"}}, res.Events)
}

func TestNon633OscPassthrough(t *testing.T) {
	p := NewParser()
	// OSC 0, window title.
	input := []byte("\x1b]0;My Terminal\x07")
	res := p.Parse(input)
	assert.Equal(t, input, res.Output)
	assert.Empty(t, res.Events)
}

func TestMixedOutputAndOsc(t *testing.T) {
	p := NewParser()
	res := p.Parse([]byte("before\x1b]633;C\x07after"))
	assert.Equal(t, []byte("beforeafter"), res.Output)
	assert.Equal(t, []Event{{Kind: CommandStart}}, res.Events)
}

func TestStTerminator(t *testing.T) {
	p := NewParser()
	res := p.Parse([]byte("\x1b]633;D;0\x1b\\"))
	assert.Equal(t, []Event{{Kind: CommandEnd, ExitCode: intPtr(0)}}, res.Events)
}

func TestSplitAcrossChunks(t *testing.T) {
	p := NewParser()

	res1 := p.Parse([]byte("\x1b]633;D"))
	assert.Empty(t, res1.Output)
	assert.Empty(t, res1.Events)

	res2 := p.Parse([]byte(";0\x07"))
	assert.Empty(t, res2.Output)
	assert.Equal(t, []Event{{Kind: CommandEnd, ExitCode: intPtr(0)}}, res2.Events)
}

func TestSplitAtEsc(t *testing.T) {
	p := NewParser()

	res1 := p.Parse([]byte("hello\x1b"))
	assert.Equal(t, []byte("hello"), res1.Output)
	assert.Empty(t, res1.Events)

	res2 := p.Parse([]byte("]633;C\x07world"))
	assert.Equal(t, []byte("world"), res2.Output)
	assert.Equal(t, []Event{{Kind: CommandStart}}, res2.Events)
}

func TestNonOscEscapeSequence(t *testing.T) {
	p := NewParser()
	// CSI coloring passes through unchanged.
	input := []byte("\x1b[31mred\x1b[0m")
	res := p.Parse(input)
	assert.Equal(t, input, res.Output)
	assert.Empty(t, res.Events)
}

func TestMultipleEventsInOneChunk(t *testing.T) {
	p := NewParser()
	res := p.Parse([]byte("\x1b]633;E;echo hi\x07\x1b]633;C\x07output\x1b]633;D;0\x07"))
	assert.Equal(t, []byte("output"), res.Output)
	assert.Equal(t, []Event{
		{Kind: CommandText, Text: "echo hi"},
		{Kind: CommandStart},
		{Kind: CommandEnd, ExitCode: intPtr(0)},
	}, res.Events)
}

func TestCommandLifecycleScenario(t *testing.T) {
	p := NewParser()
	res := p.Parse([]byte("\x1b]633;E;ls -la\x07\x1b]633;C\x07total 0\n\x1b]633;D;0\x07"))
	assert.Equal(t, []byte("total 0\n"), res.Output)
	assert.Equal(t, []Event{
		{Kind: CommandText, Text: "ls -la"},
		{Kind: CommandStart},
		{Kind: CommandEnd, ExitCode: intPtr(0)},
	}, res.Events)
}

func TestBufferLimitResets(t *testing.T) {
	p := NewParser()
	p.Parse([]byte("\x1b]"))

	// One byte past the cap triggers the reset.
	large := bytes.Repeat([]byte{'A'}, maxOscBufferSize+1)
	res := p.Parse(large)
	assert.Empty(t, res.Output)
	assert.Empty(t, res.Events)
	assert.Equal(t, stateNormal, p.state)
	assert.Empty(t, p.oscBuf)

	// Subsequent input parses normally.
	after := p.Parse([]byte("ok\x1b]633;C\x07"))
	assert.Equal(t, []byte("ok"), after.Output)
	assert.Equal(t, []Event{{Kind: CommandStart}}, after.Events)
}

// Chunking equivalence: any split of the stream yields the same events and
// concatenated output as a single feed.
func TestChunkingEquivalence(t *testing.T) {
	stream := []byte("pre\x1b]633;E;make test\x07\x1b]633;C\x07building\x1b]0;title\x07done\x1b]633;D;2\x1b\\post")

	whole := NewParser()
	want := whole.Parse(stream)

	for split := 1; split < len(stream); split++ {
		p := NewParser()
		var out []byte
		var evs []Event
		r1 := p.Parse(stream[:split])
		out = append(out, r1.Output...)
		evs = append(evs, r1.Events...)
		r2 := p.Parse(stream[split:])
		out = append(out, r2.Output...)
		evs = append(evs, r2.Events...)

		assert.Equal(t, want.Output, out, "split at %d", split)
		assert.Equal(t, want.Events, evs, "split at %d", split)
	}
}
