package server

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/NicolasHaas/gotalk/pkg/model"
	"github.com/NicolasHaas/gotalk/pkg/protocol"
)

const noUsersMatched = "No users matched the query"

// RunCommand parses and executes one line of operator input. origin names
// the issuer ("console" or a username) for the audit log.
//
// The result contract is three-way: a non-nil error is a parse/validation
// failure, an empty string is a quiet success, and any other string is
// output for the operator.
func (s *Server) RunCommand(line, origin string) (string, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return "", err
	}
	s.metrics.CommandsRun.Add(1)
	// Audit the keyword only: a PSWD line carries the new password.
	s.audit(model.EventCommand, origin, cmd.keyword())
	return s.execute(cmd, origin), nil
}

func (s *Server) execute(cmd Command, origin string) string {
	switch c := cmd.(type) {
	case AdminCommand:
		return s.execAdmin(c)
	case PswdCommand:
		return s.execPswd(c)
	case KickCommand:
		return s.execKick(c, origin)
	case NotifyCommand:
		s.registry.BroadcastExcept(nil, protocol.NewMessage(protocol.OpNotify,
			"Server announcement: "+protocol.Sanitize(c.Message)))
		return ""
	case TellCommand:
		targets := s.registry.Resolve(c.Selector)
		if len(targets) == 0 {
			return noUsersMatched
		}
		s.registry.SendTo(targets, protocol.NewMessage(protocol.OpNotify,
			"Message from server: "+protocol.Sanitize(c.Message)))
		return ""
	case QuitCommand:
		s.execQuit(c)
		return ""
	case ListCommand:
		return s.execList()
	case HelpCommand:
		return helpText
	default:
		// Unreachable: ParseCommand produces only the variants above.
		return ""
	}
}

func (s *Server) execAdmin(c AdminCommand) string {
	targets := s.registry.Resolve(c.Selector)
	if len(targets) == 0 {
		return noUsersMatched
	}
	names := make([]string, 0, len(targets))
	for _, sess := range targets {
		sess.SetAdmin(c.Grant)
		name := sess.Username()
		names = append(names, name)
		if err := s.store.SetAdmin(name, c.Grant); err != nil {
			slog.Warn("could not persist admin flag", "user", name, "err", err)
		}
	}
	return fmt.Sprintf("The users %s have admin access set to %t",
		strings.Join(names, " "), c.Grant)
}

func (s *Server) execPswd(c PswdCommand) string {
	cleared, err := s.SetPassword(c.Password)
	if err != nil {
		slog.Error("password change failed", "err", err)
		return "Password unchanged: " + err.Error()
	}
	if cleared {
		return "Password removed!"
	}
	return "Password set!"
}

func (s *Server) execKick(c KickCommand, origin string) string {
	targets := s.registry.Resolve(c.Selector)
	if len(targets) == 0 {
		return noUsersMatched
	}
	reason := protocol.Sanitize(c.Reason)
	for _, sess := range targets {
		name := sess.Username()
		sess.Disconnect(
			fmt.Sprintf("%q has been kicked from the server. Reason: %s", name, reason),
			reason)
		s.metrics.KickCount.Add(1)
		s.audit(model.EventKick, name, fmt.Sprintf("by %s: %s", origin, reason))
	}
	return ""
}

func (s *Server) execQuit(c QuitCommand) {
	slog.Info("server closing by operator command", "farewell", c.Message)
	s.DisconnectAll(c.Message)
	s.Shutdown()
	s.exit(0)
}

func (s *Server) execList() string {
	sessions := s.registry.Snapshot()
	if len(sessions) == 0 {
		return " No connected users"
	}
	rows := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		rows = append(rows, fmt.Sprintf(" %-10s -- %10s", sess.Username(), sess.RemoteAddr()))
	}
	return strings.Join(rows, "\n")
}
