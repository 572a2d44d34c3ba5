package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	types "github.com/yungbote/tutorbridge-backend/internal/domain"
)

type fakeAI struct {
	mu sync.Mutex

	jsonReplies []map[string]any
	jsonErr     error
	textReply   string
	textErr     error
	textDelay   time.Duration

	jsonCalls        int
	lastSchemaName   string
	lastTemperatures []float32
	lastTextPrompt   string
}

func (f *fakeAI) GenerateText(ctx context.Context, system, user string, temperature float32) (string, error) {
	f.mu.Lock()
	f.lastTextPrompt = user
	delay, reply, err := f.textDelay, f.textReply, f.textErr
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any, temperature float32) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSchemaName = schemaName
	f.lastTemperatures = append(f.lastTemperatures, temperature)
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	if f.jsonCalls >= len(f.jsonReplies) {
		return nil, errors.New("fake: no reply scripted")
	}
	reply := f.jsonReplies[f.jsonCalls]
	f.jsonCalls++
	return reply, nil
}

func questionReply(text string) map[string]any {
	return map[string]any{
		"question":       text,
		"options":        []any{"A", "B", "C", "D"},
		"correct_index":  float64(1),
		"correct_answer": "B",
		"explanation":    "because",
	}
}

func newQuiz(max int) *types.QuizSession {
	return &types.QuizSession{
		ThreadID:       "quiz_thread_user1_bio101_ef567890",
		ParentThreadID: "chat_thread_user1_abcd1234",
		UserID:         "user1",
		DocumentID:     "bio101",
		Snippet:        "cells divide by mitosis",
		MaxQuestions:   max,
	}
}

func startedQuiz(t *testing.T, engine QuizEngine, max int) *types.QuizSession {
	t.Helper()
	quiz := newQuiz(max)
	if _, err := engine.Start(context.Background(), quiz); err != nil {
		t.Fatalf("start: %v", err)
	}
	if quiz.Status != types.QuizStatusAwaitingAnswer {
		t.Fatalf("start left status %s", quiz.Status)
	}
	return quiz
}

func TestQuizStartGeneratesFirstQuestion(t *testing.T) {
	t.Parallel()
	ai := &fakeAI{jsonReplies: []map[string]any{questionReply("what is mitosis?")}}
	engine := NewQuizEngine(testLogger(t), ai)

	quiz := newQuiz(5)
	out, err := engine.Start(context.Background(), quiz)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if quiz.Status != types.QuizStatusAwaitingAnswer || len(quiz.History) != 1 || quiz.CurrentIndex != 0 {
		t.Fatalf("unexpected quiz state after start: %+v", quiz)
	}
	if !strings.HasPrefix(out.ResponseText, "Question 1/5: what is mitosis?") {
		t.Fatalf("unexpected display text: %q", out.ResponseText)
	}
	if !strings.Contains(out.ResponseText, "\n1. A") || !strings.Contains(out.ResponseText, "\n4. D") {
		t.Fatalf("options must render 1-indexed: %q", out.ResponseText)
	}
	if len(out.Options) != 4 {
		t.Fatalf("structured options missing: %+v", out.Options)
	}
	if ai.lastTemperatures[0] != 0.7 {
		t.Fatalf("generation temperature: got=%v want=0.7", ai.lastTemperatures[0])
	}
}

func TestQuizStartGeneratorFailure(t *testing.T) {
	t.Parallel()
	ai := &fakeAI{jsonErr: errors.New("model unavailable")}
	engine := NewQuizEngine(testLogger(t), ai)

	quiz := newQuiz(5)
	out, err := engine.Start(context.Background(), quiz)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if quiz.Status != types.QuizStatusError || quiz.ErrorMessage == "" {
		t.Fatalf("expected error status, got %+v", quiz)
	}
	if out.ResponseText != "An unexpected error occurred" {
		t.Fatalf("unexpected error text: %q", out.ResponseText)
	}
	if len(quiz.History) != 0 {
		t.Fatal("failed start must not append history")
	}
}

func TestQuizCorrectAnswerAdvances(t *testing.T) {
	t.Parallel()
	ai := &fakeAI{jsonReplies: []map[string]any{
		questionReply("q1?"),
		{
			"is_correct":       true,
			"feedback":         "Correct, B is right.",
			"quiz_is_complete": false,
			"next_question":    questionReply("q2?"),
			"final_summary":    nil,
		},
	}}
	engine := NewQuizEngine(testLogger(t), ai)
	quiz := startedQuiz(t, engine, 5)

	out, err := engine.Answer(context.Background(), quiz, "B")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if quiz.Status != types.QuizStatusAwaitingAnswer {
		t.Fatalf("status: got=%s want=%s", quiz.Status, types.QuizStatusAwaitingAnswer)
	}
	if quiz.Score != 1 {
		t.Fatalf("score: got=%d want=1", quiz.Score)
	}
	if len(quiz.History) != 2 || quiz.CurrentIndex != 1 {
		t.Fatalf("history did not advance: %+v", quiz)
	}
	first := quiz.History[0]
	if first.UserAnswer == nil || *first.UserAnswer != "B" || first.IsCorrect == nil || !*first.IsCorrect {
		t.Fatalf("answered entry not marked: %+v", first)
	}
	if !strings.HasPrefix(out.ResponseText, "Correct, B is right.\n\nQuestion 2/5: q2?") {
		t.Fatalf("unexpected display text: %q", out.ResponseText)
	}
	if ai.lastTemperatures[1] != 0.3 {
		t.Fatalf("evaluation temperature: got=%v want=0.3", ai.lastTemperatures[1])
	}
}

func TestQuizCompletesAtFinalQuestion(t *testing.T) {
	t.Parallel()
	ai := &fakeAI{jsonReplies: []map[string]any{
		questionReply("only question?"),
		{
			"is_correct":       true,
			"feedback":         "Right again.",
			"quiz_is_complete": true,
			"next_question":    nil,
			"final_summary":    "You scored 1 out of 1. Great work!",
		},
	}}
	engine := NewQuizEngine(testLogger(t), ai)
	quiz := startedQuiz(t, engine, 1)

	out, err := engine.Answer(context.Background(), quiz, "B")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if quiz.Status != types.QuizStatusCompleted {
		t.Fatalf("status: got=%s want=%s", quiz.Status, types.QuizStatusCompleted)
	}
	if !out.Complete {
		t.Fatal("output must flag completion")
	}
	if out.ResponseText != "Right again.\n\nYou scored 1 out of 1. Great work!" {
		t.Fatalf("unexpected completion text: %q", out.ResponseText)
	}
	if quiz.Score != 1 || quiz.Score > quiz.AnsweredCount() {
		t.Fatalf("score invariant broken: score=%d answered=%d", quiz.Score, quiz.AnsweredCount())
	}
}

func TestQuizEvaluatorBothShapesIsContractViolation(t *testing.T) {
	t.Parallel()
	ai := &fakeAI{jsonReplies: []map[string]any{
		questionReply("q1?"),
		{
			"is_correct":       true,
			"feedback":         "ok",
			"quiz_is_complete": true,
			"next_question":    questionReply("q2?"),
			"final_summary":    "done",
		},
	}}
	engine := NewQuizEngine(testLogger(t), ai)
	quiz := startedQuiz(t, engine, 5)

	out, err := engine.Answer(context.Background(), quiz, "B")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if quiz.Status != types.QuizStatusError {
		t.Fatalf("status: got=%s want=%s", quiz.Status, types.QuizStatusError)
	}
	if out.ResponseText != "An unexpected error occurred" {
		t.Fatalf("unexpected error text: %q", out.ResponseText)
	}
	// Only the error is recorded; the open entry stays unanswered.
	if len(quiz.History) != 1 || quiz.History[0].UserAnswer != nil || quiz.Score != 0 {
		t.Fatalf("violation mutated history: %+v", quiz)
	}
}

func TestQuizEvaluatorNeitherShapeIsContractViolation(t *testing.T) {
	t.Parallel()
	ai := &fakeAI{jsonReplies: []map[string]any{
		questionReply("q1?"),
		{
			"is_correct":       false,
			"feedback":         "not quite",
			"quiz_is_complete": false,
			"next_question":    nil,
			"final_summary":    nil,
		},
	}}
	engine := NewQuizEngine(testLogger(t), ai)
	quiz := startedQuiz(t, engine, 5)

	if _, err := engine.Answer(context.Background(), quiz, "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if quiz.Status != types.QuizStatusError {
		t.Fatalf("status: got=%s want=%s", quiz.Status, types.QuizStatusError)
	}
	if quiz.History[0].UserAnswer != nil {
		t.Fatal("violation must not mark the open entry")
	}
}

func TestQuizEngineRejectsMisuse(t *testing.T) {
	t.Parallel()
	engine := NewQuizEngine(testLogger(t), &fakeAI{})

	completed := newQuiz(1)
	completed.Status = types.QuizStatusCompleted
	if _, err := engine.Answer(context.Background(), completed, "A"); err == nil {
		t.Fatal("expected error answering a completed quiz")
	}

	started := newQuiz(1)
	started.History = []types.QuizQuestionRecord{{QuestionText: "q"}}
	if _, err := engine.Start(context.Background(), started); err == nil {
		t.Fatal("expected error restarting a quiz with history")
	}
}
