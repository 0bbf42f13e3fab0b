// Command client is a line-oriented terminal client for a GoTalk server.
//
// Lines typed at the prompt are sent as chat messages. Lines starting with
// "//" are sent as admin commands (the server rejects them unless the user
// has been granted admin access). EOF on stdin disconnects cleanly.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/NicolasHaas/gotalk/pkg/logging"
	"github.com/NicolasHaas/gotalk/pkg/protocol"
	"github.com/NicolasHaas/gotalk/pkg/version"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:58755", "Server address")
	user := flag.String("user", "", "Username (letters and underscores, max 10)")
	password := flag.String("password", "", "Server password")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	// Default to "info"; override with GOTALK_LOG_LEVEL env var.
	level := "info"
	if v := os.Getenv("GOTALK_LOG_LEVEL"); v != "" {
		level = v
	}
	_ = logging.Setup(logging.Options{Level: level, Output: os.Stderr})

	if *user == "" {
		fmt.Fprintln(os.Stderr, "missing -user")
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	if err := writeFrame(conn, protocol.Message{
		Op:      protocol.OpConnectRequest,
		Payload: protocol.JoinFields(*user, *password),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "handshake: %v\n", err)
		os.Exit(1)
	}

	fr := protocol.NewFrameReader(conn)
	msg, err := fr.Next()
	if err != nil {
		fmt.Fprintf(os.Stderr, "handshake: %v\n", err)
		os.Exit(1)
	}
	switch msg.Op {
	case protocol.OpConnected:
		fmt.Printf("Connected to %s as %s\n", *addr, *user)
	case protocol.OpNotConnected:
		fmt.Fprintf(os.Stderr, "Connection refused: %s\n", msg.Text())
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Unexpected reply %s: %s\n", msg.Op, msg.Text())
		os.Exit(1)
	}

	done := make(chan struct{})
	go readLoop(fr, done)

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		var out protocol.Message
		if cmd, ok := strings.CutPrefix(line, "//"); ok {
			out = protocol.NewMessage(protocol.OpAdmin, strings.TrimSpace(cmd))
		} else {
			out = protocol.NewMessage(protocol.OpSend, line)
		}
		if err := writeFrame(conn, out); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			break
		}
		select {
		case <-done:
			return
		default:
		}
	}

	// Stdin closed: tell the server we are leaving and wait for its
	// disconnect frame.
	_ = writeFrame(conn, protocol.NewMessage(protocol.OpDisconnect, ""))
	<-done
}

// readLoop prints incoming frames until the server disconnects us.
func readLoop(fr *protocol.FrameReader, done chan<- struct{}) {
	defer close(done)
	for {
		msg, err := fr.Next()
		if err != nil {
			fmt.Println("Connection to server lost")
			return
		}
		switch msg.Op {
		case protocol.OpForward:
			from, body, _ := protocol.SplitFields(msg.Payload)
			fmt.Printf("%s: %s\n", from, body)
		case protocol.OpNotify:
			fmt.Println("* " + msg.Text())
		case protocol.OpResponse:
			fmt.Println(msg.Text())
		case protocol.OpClientError:
			fmt.Println("! " + msg.Text())
		case protocol.OpDisconnect:
			if reason := msg.Text(); reason != "" {
				fmt.Println("Disconnected by server: " + reason)
			} else {
				fmt.Println("Disconnected")
			}
			return
		default:
			fmt.Printf("? %s %s\n", msg.Op, msg.Text())
		}
	}
}

func writeFrame(conn net.Conn, msg protocol.Message) error {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}
