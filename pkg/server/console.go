package server

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Console is the operator command task: it reads lines from in (normally
// stdin), dispatches them to the command engine, and prints results to out.
// It runs alongside every session task and blocks only on its own input.
type Console struct {
	srv *Server
	in  io.Reader
	out io.Writer
}

// NewConsole creates a console bound to a server.
func NewConsole(srv *Server, in io.Reader, out io.Writer) *Console {
	return &Console{srv: srv, in: in, out: out}
}

// Run processes operator input until in is exhausted.
func (c *Console) Run() {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		slog.Info("server console", "command", firstWord(line))

		output, err := c.srv.RunCommand(line, "console")
		if err != nil {
			fmt.Fprintln(c.out, "Bad input / error parsing input:", err)
			continue
		}
		if output != "" {
			fmt.Fprintln(c.out, output)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("console read failed", "err", err)
		return
	}
	slog.Info("closing console input")
}

func firstWord(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
