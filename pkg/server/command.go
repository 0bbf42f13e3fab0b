package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/NicolasHaas/gotalk/pkg/model"
)

// Command parse errors. Callers distinguish a parse failure (error) from a
// quiet success (empty output) and a textual result; the three are never
// conflated.
var (
	ErrEmptyCommand   = errors.New("server: empty command")
	ErrUnknownCommand = errors.New("server: unknown command")
	ErrBadArguments   = errors.New("server: bad command arguments")
)

// Selector names the targets of a command: every connected user, or an
// explicit list of usernames.
type Selector struct {
	All   bool
	Names []string
}

// ParseSelector parses a user selector token: "*" for all users, otherwise
// a comma-delimited list of usernames each matching the username pattern.
func ParseSelector(tok string) (Selector, error) {
	if tok == "*" {
		return Selector{All: true}, nil
	}
	names := strings.Split(tok, ",")
	for _, name := range names {
		if err := model.ValidateUsername(name); err != nil {
			return Selector{}, fmt.Errorf("%w: selector %q: %v", ErrBadArguments, tok, err)
		}
	}
	return Selector{Names: names}, nil
}

// Command is a parsed operator command, one variant per keyword.
type Command interface {
	keyword() string
}

type AdminCommand struct {
	Selector Selector
	Grant    bool
}

type PswdCommand struct {
	// Password is the raw remainder of the line; trimming happens once, when
	// the vault stores it.
	Password string
}

type KickCommand struct {
	Selector Selector
	Reason   string
}

type NotifyCommand struct {
	Message string
}

type TellCommand struct {
	Selector Selector
	Message  string
}

type QuitCommand struct {
	Message string // optional farewell broadcast
}

type ListCommand struct{}

type HelpCommand struct{}

func (AdminCommand) keyword() string  { return "ADMIN" }
func (PswdCommand) keyword() string   { return "PSWD" }
func (KickCommand) keyword() string   { return "KICK" }
func (NotifyCommand) keyword() string { return "NOTIFY" }
func (TellCommand) keyword() string   { return "TELL" }
func (QuitCommand) keyword() string   { return "QUIT" }
func (ListCommand) keyword() string   { return "LIST" }
func (HelpCommand) keyword() string   { return "HELP" }

const helpText = "Available commands are:\n" +
	" ADMIN [USER_NAME] [(y)es|(n)o]\n" +
	" PSWD [PASSWORD]\n" +
	" KICK [USER_NAME] [REASON]\n" +
	" NOTIFY [MESSAGE]\n" +
	" TELL [USER_NAME] [MESSAGE]\n" +
	" QUIT (MESSAGE)\n" +
	" LIST\n" +
	" HELP"

// ParseCommand tokenizes one line of operator input into a tagged command
// value. The command keyword is case-sensitive; arguments are validated
// here so execution never sees a malformed command.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrEmptyCommand
	}
	keyword, rest, _ := strings.Cut(line, " ")

	switch keyword {
	case "ADMIN":
		// Anything after the y/n flag is ignored.
		args := strings.Fields(rest)
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: ADMIN wants a user selector and y/n", ErrBadArguments)
		}
		sel, err := ParseSelector(args[0])
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(args[1])[0] {
		case 'y':
			return AdminCommand{Selector: sel, Grant: true}, nil
		case 'n':
			return AdminCommand{Selector: sel, Grant: false}, nil
		default:
			return nil, fmt.Errorf("%w: ADMIN flag must start with y or n", ErrBadArguments)
		}

	case "PSWD":
		return PswdCommand{Password: rest}, nil

	case "KICK":
		selTok, reason, err := selectorAndText(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: KICK wants a user selector and a reason", ErrBadArguments)
		}
		sel, err := ParseSelector(selTok)
		if err != nil {
			return nil, err
		}
		return KickCommand{Selector: sel, Reason: reason}, nil

	case "NOTIFY":
		if strings.TrimSpace(rest) == "" {
			return nil, fmt.Errorf("%w: NOTIFY wants a message", ErrBadArguments)
		}
		return NotifyCommand{Message: rest}, nil

	case "TELL":
		selTok, message, err := selectorAndText(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: TELL wants a user selector and a message", ErrBadArguments)
		}
		sel, err := ParseSelector(selTok)
		if err != nil {
			return nil, err
		}
		return TellCommand{Selector: sel, Message: message}, nil

	case "QUIT":
		return QuitCommand{Message: strings.TrimSpace(rest)}, nil

	case "LIST":
		return ListCommand{}, nil

	case "HELP":
		return HelpCommand{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, keyword)
	}
}

// selectorAndText splits "selector remaining text" with a mandatory
// non-empty text part.
func selectorAndText(rest string) (selTok, text string, err error) {
	rest = strings.TrimLeft(rest, " ")
	selTok, text, _ = strings.Cut(rest, " ")
	text = strings.TrimSpace(text)
	if selTok == "" || text == "" {
		return "", "", ErrBadArguments
	}
	return selTok, text, nil
}
