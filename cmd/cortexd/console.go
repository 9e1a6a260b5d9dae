package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/cortexkb/cortex/internal/config"
	"github.com/cortexkb/cortex/internal/server"
)

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive console against a running daemon",
		Long: `console connects to the cortexd socket and issues commands.

Examples:
  > health
  > search SearchPanel
  > note list
  > note create "Title" "Body text"
  > events
  > raw {"operation":"task_list"}`,
		RunE: runConsole,
	}
}

func runConsole(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(dataDirFlag)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36mcortex>\033[0m ",
		HistoryFile:     filepath.Join(cfg.DataDir, "console_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		req, err := parseConsoleLine(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		if req.Operation == server.OpSubscribe {
			if err := streamEvents(cfg.SocketPath); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			continue
		}

		resp, err := invoke(cfg.SocketPath, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printResponse(resp)
	}
}

// parseConsoleLine maps shorthand console input to a Request.
func parseConsoleLine(line string) (*server.Request, error) {
	fields := strings.Fields(line)

	switch fields[0] {
	case "raw":
		var req server.Request
		payload := strings.TrimSpace(strings.TrimPrefix(line, "raw"))
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return nil, fmt.Errorf("parse raw request: %w", err)
		}
		return &req, nil
	case "health":
		return &server.Request{Operation: server.OpHealthCheck}, nil
	case "status":
		return &server.Request{Operation: server.OpGetAppStatus}, nil
	case "indexing":
		return &server.Request{Operation: server.OpGetIndexingStatus}, nil
	case "events":
		return &server.Request{Operation: server.OpSubscribe}, nil
	case "search":
		query := strings.TrimSpace(strings.TrimPrefix(line, "search"))
		if query == "" {
			return nil, fmt.Errorf("usage: search <query>")
		}
		args, _ := json.Marshal(map[string]interface{}{"query": query})
		return &server.Request{Operation: server.OpUniversalSearch, Args: args}, nil
	case "note":
		return parseEntityLine(fields, line, "note")
	case "task":
		return parseEntityLine(fields, line, "task")
	case "pty":
		if len(fields) < 3 {
			return nil, fmt.Errorf("usage: pty <create|kill> <session_id>")
		}
		args, _ := json.Marshal(map[string]string{"session_id": fields[2]})
		switch fields[1] {
		case "create":
			return &server.Request{Operation: server.OpPtyCreate, Args: args}, nil
		case "kill":
			return &server.Request{Operation: server.OpPtyKill, Args: args}, nil
		}
		return nil, fmt.Errorf("unknown pty action: %s", fields[1])
	}
	return nil, fmt.Errorf("unknown command: %s (try raw {...})", fields[0])
}

func parseEntityLine(fields []string, line, kind string) (*server.Request, error) {
	if len(fields) < 2 {
		return nil, fmt.Errorf("usage: %s <list|get|create|delete> ...", kind)
	}
	switch fields[1] {
	case "list":
		if kind == "note" {
			return &server.Request{Operation: server.OpNoteList}, nil
		}
		return &server.Request{Operation: server.OpTaskList}, nil
	case "get":
		if len(fields) < 3 {
			return nil, fmt.Errorf("usage: %s get <id>", kind)
		}
		args, _ := json.Marshal(map[string]string{"id": fields[2]})
		if kind == "note" {
			return &server.Request{Operation: server.OpNoteGet, Args: args}, nil
		}
		return &server.Request{Operation: server.OpTaskGet, Args: args}, nil
	case "delete":
		if len(fields) < 3 {
			return nil, fmt.Errorf("usage: %s delete <id>", kind)
		}
		args, _ := json.Marshal(map[string]string{"id": fields[2]})
		if kind == "note" {
			return &server.Request{Operation: server.OpNoteDelete, Args: args}, nil
		}
		return &server.Request{Operation: server.OpTaskDelete, Args: args}, nil
	case "create":
		parts := splitQuoted(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(line, kind)), "create")))
		if len(parts) == 0 {
			return nil, fmt.Errorf("usage: %s create \"title\" [\"content\"]", kind)
		}
		payload := map[string]string{"title": parts[0]}
		if len(parts) > 1 {
			payload["content"] = parts[1]
		}
		args, _ := json.Marshal(payload)
		if kind == "note" {
			return &server.Request{Operation: server.OpNoteCreate, Args: args}, nil
		}
		return &server.Request{Operation: server.OpTaskCreate, Args: args}, nil
	}
	return nil, fmt.Errorf("unknown %s action: %s", kind, fields[1])
}

// splitQuoted splits `"a b" "c"` into ["a b", "c"]; unquoted words are
// individual parts.
func splitQuoted(input string) []string {
	var parts []string
	var current strings.Builder
	inQuote := false
	for _, r := range input {
		switch {
		case r == '"':
			if inQuote {
				parts = append(parts, current.String())
				current.Reset()
			}
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func invoke(socketPath string, req *server.Request) (*server.Response, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp server.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &resp, nil
}

func printResponse(resp *server.Response) {
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "error: %s\n", resp.Error)
		return
	}
	var pretty interface{}
	if err := json.Unmarshal(resp.Data, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Println(string(resp.Data))
	}
}

// streamEvents tails the daemon's event feed until EOF or interrupt.
func streamEvents(socketPath string) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(server.Request{Operation: server.OpSubscribe}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	fmt.Println("streaming events (ctrl-c to stop)...")
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	return scanner.Err()
}
