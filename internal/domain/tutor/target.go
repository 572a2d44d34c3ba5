package tutor

import "fmt"

// Target is the closed set of capabilities a turn can be routed to. Dispatch
// over Target must be total; an unhandled value is an error, never a default.
type Target string

const (
	TargetChat      Target = "chat"
	TargetQuiz      Target = "quiz"
	TargetDocument  Target = "document"
	TargetTerminate Target = "terminate"
)

func (t Target) Valid() bool {
	switch t {
	case TargetChat, TargetQuiz, TargetDocument, TargetTerminate:
		return true
	default:
		return false
	}
}

func ParseTarget(s string) (Target, error) {
	t := Target(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown routing target %q", s)
	}
	return t, nil
}
