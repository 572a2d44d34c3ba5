package tutor

// QuizStatus is the lifecycle state of one quiz thread.
type QuizStatus string

const (
	QuizStatusGeneratingFirstQuestion QuizStatus = "generating_first_question"
	QuizStatusAwaitingAnswer          QuizStatus = "awaiting_answer"
	QuizStatusEvaluatingAnswer        QuizStatus = "evaluating_answer"
	QuizStatusCompleted               QuizStatus = "quiz_completed"
	QuizStatusError                   QuizStatus = "error"
)

// Terminal reports whether the quiz accepts no further turns.
func (s QuizStatus) Terminal() bool {
	return s == QuizStatusCompleted || s == QuizStatusError
}

// QuizQuestionRecord is one entry of a quiz's ordered question history.
// UserAnswer, IsCorrect and Feedback stay nil until the entry is answered;
// only the entry at the current index may still have a nil UserAnswer.
type QuizQuestionRecord struct {
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	CorrectText  string   `json:"correct_text"`
	Explanation  string   `json:"explanation,omitempty"`

	UserAnswer *string `json:"user_answer,omitempty"`
	IsCorrect  *bool   `json:"is_correct,omitempty"`
	Feedback   *string `json:"feedback,omitempty"`
}

// QuizSession is the durable state of one quiz thread. Its thread id is
// distinct from the parent conversation thread.
type QuizSession struct {
	ThreadID string `json:"thread_id"`
	// ParentThreadID is the conversation thread the quiz diverged from. A
	// turn addressed by the quiz thread id resolves back through it.
	ParentThreadID string `json:"parent_thread_id"`
	UserID         string `json:"user_id"`
	DocumentID     string `json:"document_id"`

	Snippet      string               `json:"snippet"`
	MaxQuestions int                  `json:"max_questions"`
	History      []QuizQuestionRecord `json:"history"`
	CurrentIndex int                  `json:"current_index"`
	Score        int                  `json:"score"`
	Status       QuizStatus           `json:"status"`
	ErrorMessage string               `json:"error_message,omitempty"`
}

// AnsweredCount is the number of history entries carrying a submitted answer.
// Score may never exceed it.
func (q *QuizSession) AnsweredCount() int {
	n := 0
	for i := range q.History {
		if q.History[i].UserAnswer != nil {
			n++
		}
	}
	return n
}

// CurrentQuestion returns the entry at the current index, or nil when the
// history is empty or the index is out of range.
func (q *QuizSession) CurrentQuestion() *QuizQuestionRecord {
	if q.CurrentIndex < 0 || q.CurrentIndex >= len(q.History) {
		return nil
	}
	return &q.History[q.CurrentIndex]
}

func (q *QuizSession) Clone() *QuizSession {
	if q == nil {
		return nil
	}
	cp := *q
	cp.History = make([]QuizQuestionRecord, len(q.History))
	copy(cp.History, q.History)
	for i := range cp.History {
		cp.History[i].Options = append([]string(nil), q.History[i].Options...)
		if q.History[i].UserAnswer != nil {
			v := *q.History[i].UserAnswer
			cp.History[i].UserAnswer = &v
		}
		if q.History[i].IsCorrect != nil {
			v := *q.History[i].IsCorrect
			cp.History[i].IsCorrect = &v
		}
		if q.History[i].Feedback != nil {
			v := *q.History[i].Feedback
			cp.History[i].Feedback = &v
		}
	}
	return &cp
}
