package fsm

import (
	"regexp"
	"strconv"
	"strings"
)

// Navigation tokens carried in callback data.
const (
	TokenNext  = "next"
	TokenNoop  = "noop"
	GotoPrefix = "goto:"
)

type ActionKind int

const (
	ActionNext ActionKind = iota
	ActionNoop
	ActionGoto
	ActionGotoInvalid
	ActionStep
	ActionUnknown
)

// Action is the resolved form of a raw navigation token. Index is only
// meaningful for ActionGoto and ActionStep.
type Action struct {
	Kind  ActionKind
	Index int
	Raw   string
}

var stepToken = regexp.MustCompile(`(?i)^step(\d+)$`)

// Resolve parses a raw callback token. Resolution order matches the
// engine's contract: next, noop, goto:<n>, step<N>, everything else
// unknown. A goto with a non-numeric or negative index resolves to
// ActionGotoInvalid rather than an error; the engine answers the user and
// leaves progress untouched.
func Resolve(raw string) Action {
	switch raw {
	case TokenNext:
		return Action{Kind: ActionNext, Raw: raw}
	case TokenNoop:
		return Action{Kind: ActionNoop, Raw: raw}
	}

	if rest, ok := strings.CutPrefix(raw, GotoPrefix); ok {
		index, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil || index < 0 {
			return Action{Kind: ActionGotoInvalid, Raw: raw}
		}
		return Action{Kind: ActionGoto, Index: index, Raw: raw}
	}

	if m := stepToken.FindStringSubmatch(raw); m != nil {
		index, err := strconv.Atoi(m[1])
		if err == nil {
			return Action{Kind: ActionStep, Index: index, Raw: raw}
		}
	}

	return Action{Kind: ActionUnknown, Raw: raw}
}

// Goto builds the token that jumps to an explicit step index.
func Goto(index int) string {
	return GotoPrefix + strconv.Itoa(index)
}
