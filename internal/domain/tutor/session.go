package tutor

import "fmt"

// SessionState is the durable state of one conversation thread. History is
// append-only within a thread; insertion order is significant.
type SessionState struct {
	UserID           string    `json:"user_id"`
	ThreadID         string    `json:"thread_id"`
	CurrentUtterance string    `json:"current_utterance"`
	History          []Message `json:"history"`
	DocumentID       string    `json:"document_id,omitempty"`

	// ActiveQuizThreadID and IsQuizActive move together: the flag is true
	// exactly when the id is non-empty. ActivateQuiz/DeactivateQuiz are the
	// only writers of the pair.
	ActiveQuizThreadID string `json:"active_quiz_thread_id,omitempty"`
	IsQuizActive       bool   `json:"is_quiz_active"`

	// QuizState carries the active quiz's engine state inside the session
	// snapshot, so one conversation checkpoint is enough to resume a turn.
	QuizState *QuizSession `json:"quiz_state,omitempty"`

	Target        Target `json:"target,omitempty"`
	FinalResponse string `json:"final_response,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

func NewSessionState(userID, threadID string) *SessionState {
	return &SessionState{
		UserID:   userID,
		ThreadID: threadID,
		History:  []Message{},
	}
}

func (s *SessionState) ActivateQuiz(quizThreadID string) error {
	if quizThreadID == "" {
		return fmt.Errorf("quiz thread id required to activate quiz")
	}
	s.ActiveQuizThreadID = quizThreadID
	s.IsQuizActive = true
	return nil
}

func (s *SessionState) DeactivateQuiz() {
	s.ActiveQuizThreadID = ""
	s.IsQuizActive = false
}

// QuizConsistent reports whether the quiz flag and id agree.
func (s *SessionState) QuizConsistent() bool {
	return s.IsQuizActive == (s.ActiveQuizThreadID != "")
}

func (s *SessionState) AppendMessage(m Message) {
	s.History = append(s.History, m)
}

// Clone returns a deep copy so routing can work on an immutable input and
// hand back a delta instead of mutating shared state.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.History = make([]Message, len(s.History))
	copy(cp.History, s.History)
	cp.QuizState = s.QuizState.Clone()
	return &cp
}
