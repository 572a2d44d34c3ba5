package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	types "github.com/yungbote/tutorbridge-backend/internal/domain"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
	"github.com/yungbote/tutorbridge-backend/internal/platform/openai"
)

const (
	DefaultMaxQuizQuestions = 5

	quizGenerationTemperature float32 = 0.7
	quizEvaluationTemperature float32 = 0.3

	quizErrorResponse = "An unexpected error occurred"
)

// QuizTurnOutput is what one quiz turn shows the caller. Options carries the
// current question's choices structured, so a client can render interactive
// buttons instead of parsing prose.
type QuizTurnOutput struct {
	ResponseText string
	Options      []string
	Complete     bool
}

// QuizEngine drives one quiz session through its lifecycle. Both operations
// mutate the passed session in place and always leave it with a determinate
// status; collaborator failures and malformed evaluator replies land the
// session in the error status rather than returning a Go error. An error
// return means the engine was invoked against a session in the wrong state.
type QuizEngine interface {
	// Start generates the first question for a freshly minted session.
	Start(ctx context.Context, quiz *types.QuizSession) (*QuizTurnOutput, error)

	// Answer grades the submitted answer to the current question and either
	// advances to the next question or completes the quiz.
	Answer(ctx context.Context, quiz *types.QuizSession, answer string) (*QuizTurnOutput, error)
}

type quizEngine struct {
	log *logger.Logger
	ai  openai.Client
}

func NewQuizEngine(baseLog *logger.Logger, ai openai.Client) QuizEngine {
	return &quizEngine{
		log: baseLog.With("service", "QuizEngine"),
		ai:  ai,
	}
}

func (e *quizEngine) Start(ctx context.Context, quiz *types.QuizSession) (*QuizTurnOutput, error) {
	if quiz == nil {
		return nil, fmt.Errorf("nil quiz session")
	}
	if len(quiz.History) > 0 || quiz.Status.Terminal() {
		return nil, fmt.Errorf("quiz %s already started (status %s)", quiz.ThreadID, quiz.Status)
	}
	if quiz.MaxQuestions <= 0 {
		quiz.MaxQuestions = DefaultMaxQuizQuestions
	}
	quiz.Status = types.QuizStatusGeneratingFirstQuestion

	raw, err := e.ai.GenerateJSON(ctx, quizGeneratorSystemPrompt, buildGenerationPrompt(quiz), "quiz_question", questionFormatSchema(), quizGenerationTemperature)
	if err != nil {
		return e.fail(quiz, fmt.Errorf("generate first question: %w", err)), nil
	}
	record, err := decodeQuestion(raw)
	if err != nil {
		return e.fail(quiz, fmt.Errorf("first question reply: %w", err)), nil
	}

	quiz.History = append(quiz.History, *record)
	quiz.CurrentIndex = 0
	quiz.Status = types.QuizStatusAwaitingAnswer
	e.log.Info("quiz started", "thread_id", quiz.ThreadID, "max_questions", quiz.MaxQuestions)

	return &QuizTurnOutput{
		ResponseText: formatQuestion("", 1, quiz.MaxQuestions, record),
		Options:      append([]string(nil), record.Options...),
	}, nil
}

func (e *quizEngine) Answer(ctx context.Context, quiz *types.QuizSession, answer string) (*QuizTurnOutput, error) {
	if quiz == nil {
		return nil, fmt.Errorf("nil quiz session")
	}
	if quiz.Status != types.QuizStatusAwaitingAnswer {
		return nil, fmt.Errorf("quiz %s is not awaiting an answer (status %s)", quiz.ThreadID, quiz.Status)
	}
	current := quiz.CurrentQuestion()
	if current == nil || current.UserAnswer != nil {
		return nil, fmt.Errorf("quiz %s has no open question at index %d", quiz.ThreadID, quiz.CurrentIndex)
	}
	quiz.Status = types.QuizStatusEvaluatingAnswer

	raw, err := e.ai.GenerateJSON(ctx, quizEvaluatorSystemPrompt, buildEvaluationPrompt(quiz, answer), "quiz_evaluation", evaluationFormatSchema(), quizEvaluationTemperature)
	if err != nil {
		return e.fail(quiz, fmt.Errorf("evaluate answer: %w", err)), nil
	}
	reply, err := decodeEvaluation(raw)
	if err != nil {
		return e.fail(quiz, fmt.Errorf("evaluator reply: %w", err)), nil
	}
	// Once every question slot is used only the completion shape is valid.
	if reply.NextQuestion != nil && quiz.AnsweredCount()+1 >= quiz.MaxQuestions {
		return e.fail(quiz, fmt.Errorf("evaluator returned a question past the cap of %d", quiz.MaxQuestions)), nil
	}

	current.UserAnswer = strptr(answer)
	current.IsCorrect = &reply.IsCorrect
	current.Feedback = strptr(reply.Feedback)
	if reply.IsCorrect {
		quiz.Score++
	}

	if reply.QuizIsComplete {
		quiz.Status = types.QuizStatusCompleted
		e.log.Info("quiz completed", "thread_id", quiz.ThreadID, "score", quiz.Score, "questions", len(quiz.History))
		return &QuizTurnOutput{
			ResponseText: joinBlocks(reply.Feedback, *reply.FinalSummary),
			Complete:     true,
		}, nil
	}

	next, err := decodeQuestion(*reply.NextQuestion)
	if err != nil {
		return e.fail(quiz, fmt.Errorf("next question reply: %w", err)), nil
	}
	quiz.History = append(quiz.History, *next)
	quiz.CurrentIndex = len(quiz.History) - 1
	quiz.Status = types.QuizStatusAwaitingAnswer

	return &QuizTurnOutput{
		ResponseText: formatQuestion(reply.Feedback, quiz.CurrentIndex+1, quiz.MaxQuestions, next),
		Options:      append([]string(nil), next.Options...),
	}, nil
}

// fail lands the session in the error status without touching history or
// score, so a malformed evaluator reply cannot half-apply.
func (e *quizEngine) fail(quiz *types.QuizSession, err error) *QuizTurnOutput {
	e.log.Error("quiz turn failed", "thread_id", quiz.ThreadID, "status", quiz.Status, "error", err)
	quiz.Status = types.QuizStatusError
	quiz.ErrorMessage = err.Error()
	return &QuizTurnOutput{ResponseText: quizErrorResponse, Complete: true}
}

// formatQuestion renders feedback (if any), a blank line, then
// "Question N/M: <text>" followed by a 1-indexed option list.
func formatQuestion(feedback string, number, max int, q *types.QuizQuestionRecord) string {
	var b strings.Builder
	if strings.TrimSpace(feedback) != "" {
		b.WriteString(strings.TrimSpace(feedback))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question %d/%d: %s", number, max, q.QuestionText)
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
	}
	return b.String()
}

func joinBlocks(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n\n")
}

func strptr(s string) *string { return &s }

const quizGeneratorSystemPrompt = `You are a quiz master. You write clear multiple-choice questions that test understanding of the supplied study material. Every question has exactly four options and exactly one correct option. Questions must be answerable from the material alone.`

const quizEvaluatorSystemPrompt = `You are a quiz master grading a student's answer. Judge whether the submitted answer matches the correct option (accept the option text, its number, or an unambiguous paraphrase). Give one or two sentences of feedback that explains the correct answer. Then either produce the next question from the study material, or, when the quiz has reached its question limit, finish with an encouraging final summary of the student's performance. Never do both.`

func buildGenerationPrompt(quiz *types.QuizSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Study material:\n%s\n\n", quiz.Snippet)
	fmt.Fprintf(&b, "Write question 1 of a %d-question quiz on this material.", quiz.MaxQuestions)
	return b.String()
}

func buildEvaluationPrompt(quiz *types.QuizSession, answer string) string {
	answered := quiz.AnsweredCount()

	var b strings.Builder
	fmt.Fprintf(&b, "Study material:\n%s\n\n", quiz.Snippet)
	b.WriteString("Quiz so far:\n")
	for i := range quiz.History {
		q := &quiz.History[i]
		fmt.Fprintf(&b, "Q%d: %s\n", i+1, q.QuestionText)
		for j, opt := range q.Options {
			fmt.Fprintf(&b, "  %d. %s\n", j+1, opt)
		}
		fmt.Fprintf(&b, "  Correct: %s\n", q.CorrectText)
		if q.UserAnswer != nil {
			fmt.Fprintf(&b, "  Student answered: %s\n", *q.UserAnswer)
		}
	}
	fmt.Fprintf(&b, "\nThe student's answer to Q%d is: %q\n", quiz.CurrentIndex+1, answer)
	fmt.Fprintf(&b, "Score so far: %d correct out of %d answered, quiz limit %d questions.\n\n", quiz.Score, answered, quiz.MaxQuestions)
	if answered+1 >= quiz.MaxQuestions {
		b.WriteString("This was the final question. Grade it and finish the quiz with quiz_is_complete=true and a final_summary. Do not produce another question.\n")
	} else {
		fmt.Fprintf(&b, "Grade the answer and produce question %d. Set quiz_is_complete=false and final_summary=null.\n", len(quiz.History)+1)
	}
	return b.String()
}

// questionFormatSchema is the strict response format sent to the provider for
// a single generated question.
func questionFormatSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{"type": "string"},
			"options": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 4,
				"maxItems": 4,
			},
			"correct_index":  map[string]any{"type": "integer", "minimum": 0, "maximum": 3},
			"correct_answer": map[string]any{"type": "string"},
			"explanation":    map[string]any{"type": "string"},
		},
		"required":             []string{"question", "options", "correct_index", "correct_answer", "explanation"},
		"additionalProperties": false,
	}
}

// evaluationFormatSchema is the strict response format for grading. Strict
// provider formats cannot express the exclusive-or between next_question and
// final_summary, so both are nullable here and the exclusivity is enforced
// locally by evaluationReplySchema.
func evaluationFormatSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_correct":       map[string]any{"type": "boolean"},
			"feedback":         map[string]any{"type": "string"},
			"quiz_is_complete": map[string]any{"type": "boolean"},
			"next_question":    map[string]any{"anyOf": []any{questionFormatSchema(), map[string]any{"type": "null"}}},
			"final_summary":    map[string]any{"type": []any{"string", "null"}},
		},
		"required":             []string{"is_correct", "feedback", "quiz_is_complete", "next_question", "final_summary"},
		"additionalProperties": false,
	}
}

// evaluationReplySchema enforces the tagged union: exactly one of
// next_question (with quiz_is_complete=false) or final_summary (with
// quiz_is_complete=true), never both, never neither.
var evaluationReplySchema = jsonschema.MustCompileString("quiz_evaluation.json", `{
	"type": "object",
	"required": ["is_correct", "feedback", "quiz_is_complete"],
	"properties": {
		"is_correct": {"type": "boolean"},
		"feedback": {"type": "string"}
	},
	"oneOf": [
		{
			"properties": {
				"quiz_is_complete": {"const": false},
				"next_question": {"type": "object"},
				"final_summary": {"type": "null"}
			},
			"required": ["next_question"]
		},
		{
			"properties": {
				"quiz_is_complete": {"const": true},
				"next_question": {"type": "null"},
				"final_summary": {"type": "string", "minLength": 1}
			},
			"required": ["final_summary"]
		}
	]
}`)

type evaluationReply struct {
	IsCorrect      bool            `json:"is_correct"`
	Feedback       string          `json:"feedback"`
	QuizIsComplete bool            `json:"quiz_is_complete"`
	NextQuestion   *map[string]any `json:"next_question"`
	FinalSummary   *string         `json:"final_summary"`
}

func decodeEvaluation(raw map[string]any) (*evaluationReply, error) {
	if err := evaluationReplySchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("schema violation: %w", err)
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var reply evaluationReply
	if err := json.Unmarshal(buf, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func decodeQuestion(raw map[string]any) (*types.QuizQuestionRecord, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var q struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectIndex  int      `json:"correct_index"`
		CorrectAnswer string   `json:"correct_answer"`
		Explanation   string   `json:"explanation"`
	}
	if err := json.Unmarshal(buf, &q); err != nil {
		return nil, fmt.Errorf("malformed question object: %w", err)
	}
	if strings.TrimSpace(q.Question) == "" {
		return nil, fmt.Errorf("question text is empty")
	}
	if len(q.Options) != 4 {
		return nil, fmt.Errorf("expected 4 options, got %d", len(q.Options))
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return nil, fmt.Errorf("correct index %d out of range", q.CorrectIndex)
	}
	correct := q.CorrectAnswer
	if strings.TrimSpace(correct) == "" {
		correct = q.Options[q.CorrectIndex]
	}
	return &types.QuizQuestionRecord{
		QuestionText: q.Question,
		Options:      q.Options,
		CorrectIndex: q.CorrectIndex,
		CorrectText:  correct,
		Explanation:  q.Explanation,
	}, nil
}
