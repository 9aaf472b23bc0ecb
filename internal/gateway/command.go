package gateway

import (
	"strings"
)

// CommandKind enumerates the closed set of parsed command types.
type CommandKind string

const (
	CommandStart         CommandKind = "start"
	CommandConnect       CommandKind = "connect"
	CommandMyTasks       CommandKind = "mytasks"
	CommandAssign        CommandKind = "assign"
	CommandInvalidAssign CommandKind = "invalid_assign"
	CommandFreeText      CommandKind = "free_text"
)

// assignUsage is the hint returned with every InvalidAssign result.
const assignUsage = "Usage: /assign @handle Task title [due: tomorrow] [priority: low|medium|high]"

// Command is the typed result of parsing raw message text.
type Command struct {
	Kind   CommandKind
	Text   string         // FreeText: the raw text
	Assign *AssignCommand // Assign: parsed fields
	Usage  string         // InvalidAssign: usage hint for the reply
}

// AssignCommand holds the parsed fields of a well-formed /assign.
type AssignCommand struct {
	Assignee string // handle without the leading @
	Title    string
	DueExpr  string // raw date expression; empty when omitted
	Priority string // low, medium, high; empty when omitted
}

// ParseCommand converts raw message text into a typed command. It never
// fails: unrecognized input is FreeText and malformed /assign syntax is
// InvalidAssign with a usage hint.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)

	switch {
	case text == "/start" || strings.HasPrefix(text, "/start "):
		return Command{Kind: CommandStart}
	case text == "/connect" || strings.HasPrefix(text, "/connect "):
		return Command{Kind: CommandConnect}
	case text == "/mytasks" || strings.HasPrefix(text, "/mytasks "):
		return Command{Kind: CommandMyTasks}
	case text == "/assign" || strings.HasPrefix(text, "/assign "):
		return parseAssign(text)
	default:
		return Command{Kind: CommandFreeText, Text: text}
	}
}

// parseAssign parses "/assign @handle Title [due: expr] [priority: p]".
// The title is the token run between the handle and the first recognized
// keyword; due must precede priority (fixed order, matching the canonical
// form).
func parseAssign(text string) Command {
	rest := strings.TrimSpace(strings.TrimPrefix(text, "/assign"))
	if rest == "" {
		return invalidAssign()
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "@") || len(fields[0]) < 2 {
		return invalidAssign()
	}
	assignee := strings.TrimPrefix(fields[0], "@")

	// Split the remainder on the first recognized keyword.
	var titleTokens, dueTokens, priTokens []string
	section := &titleTokens
	for _, tok := range fields[1:] {
		switch strings.ToLower(tok) {
		case "due:":
			section = &dueTokens
			continue
		case "priority:":
			section = &priTokens
			continue
		}
		*section = append(*section, tok)
	}

	title := strings.Join(titleTokens, " ")
	if title == "" {
		return invalidAssign()
	}

	priority := strings.ToLower(strings.Join(priTokens, " "))
	switch priority {
	case "", "low", "medium", "high":
	default:
		return invalidAssign()
	}

	return Command{
		Kind: CommandAssign,
		Assign: &AssignCommand{
			Assignee: assignee,
			Title:    title,
			DueExpr:  strings.Join(dueTokens, " "),
			Priority: priority,
		},
	}
}

func invalidAssign() Command {
	return Command{Kind: CommandInvalidAssign, Usage: assignUsage}
}
