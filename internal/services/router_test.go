package services

import (
	"strings"
	"testing"

	types "github.com/yungbote/tutorbridge-backend/internal/domain"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
)

type fakeDocs struct {
	snippets map[string]string
	err      error
}

func (f *fakeDocs) GetSnippet(dbc dbctx.Context, documentID string, maxLen int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	s, ok := f.snippets[documentID]
	if !ok {
		return "", ErrDocumentNotFound
	}
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestRouter(t *testing.T, docs DocumentService) RouterService {
	t.Helper()
	return NewRouterService(testLogger(t), docs)
}

func activeQuizState() *types.SessionState {
	s := types.NewSessionState("user1", "chat_thread_user1_abcd1234")
	s.DocumentID = "bio101"
	_ = s.ActivateQuiz("quiz_thread_user1_bio101_ef567890")
	return s
}

func TestRouterForwardsAnswerDuringActiveQuiz(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, &fakeDocs{})

	s := activeQuizState()
	s.CurrentUtterance = "start quiz" // a stray start phrase must not re-fire mid-quiz
	d, err := r.Decide(dbctx.Context{}, s)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Target != types.TargetQuiz || d.StartQuiz || d.CancelQuiz {
		t.Fatalf("expected plain quiz-answer decision, got %+v", d)
	}
}

func TestRouterCancelsActiveQuiz(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, &fakeDocs{})

	s := activeQuizState()
	s.CurrentUtterance = "cancel quiz"
	d, err := r.Decide(dbctx.Context{}, s)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Target != types.TargetTerminate || !d.CancelQuiz {
		t.Fatalf("expected cancel decision, got %+v", d)
	}
	if d.Response == "" {
		t.Fatal("cancel decision must carry an acknowledgment")
	}
	// The router hands back a delta; the session itself is untouched.
	if !s.IsQuizActive || s.ActiveQuizThreadID == "" {
		t.Fatalf("router mutated session state: %+v", s)
	}
}

func TestRouterStartsQuizWithResolvableDocument(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, &fakeDocs{snippets: map[string]string{"bio101": "cells divide by mitosis"}})

	s := types.NewSessionState("user1", "chat_thread_user1_abcd1234")
	s.CurrentUtterance = "start quiz"
	s.DocumentID = "bio101"
	d, err := r.Decide(dbctx.Context{}, s)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Target != types.TargetQuiz || !d.StartQuiz {
		t.Fatalf("expected quiz-start decision, got %+v", d)
	}
	if !strings.HasPrefix(d.QuizThreadID, "quiz_thread_user1_bio101_") {
		t.Fatalf("unexpected quiz thread id: %q", d.QuizThreadID)
	}
	if d.QuizThreadID == s.ThreadID {
		t.Fatal("quiz thread id must differ from the conversation thread id")
	}
	if d.Snippet != "cells divide by mitosis" {
		t.Fatalf("unexpected snippet: %q", d.Snippet)
	}
}

func TestRouterQuizStartWithoutDocument(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, &fakeDocs{})

	s := types.NewSessionState("user1", "chat_thread_user1_abcd1234")
	s.CurrentUtterance = "start quiz"
	d, err := r.Decide(dbctx.Context{}, s)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Target != types.TargetTerminate || d.ErrorCode != ErrCodeMissingDocument {
		t.Fatalf("expected missing-document terminate, got %+v", d)
	}
}

func TestRouterQuizStartWithUnresolvableContent(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, &fakeDocs{}) // doc1 has no content

	s := types.NewSessionState("user1", "chat_thread_user1_abcd1234")
	s.CurrentUtterance = "start quiz"
	s.DocumentID = "doc1"
	d, err := r.Decide(dbctx.Context{}, s)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Target != types.TargetTerminate || d.ErrorCode != ErrCodeDocumentNoContent {
		t.Fatalf("expected no-content terminate, got %+v", d)
	}
	if !strings.Contains(strings.ToLower(d.Response), "content") {
		t.Fatalf("error should mention missing content: %q", d.Response)
	}
	if s.IsQuizActive {
		t.Fatal("failed quiz start must not activate a quiz")
	}
}

func TestRouterDefaultsToChat(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, &fakeDocs{})

	s := types.NewSessionState("user1", "chat_thread_user1_abcd1234")
	s.CurrentUtterance = "what is osmosis?"
	d, err := r.Decide(dbctx.Context{}, s)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Target != types.TargetChat {
		t.Fatalf("expected chat decision, got %+v", d)
	}
}

func TestRouterDecisionIsIdempotent(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, &fakeDocs{snippets: map[string]string{"bio101": "material"}})

	s := types.NewSessionState("user1", "chat_thread_user1_abcd1234")
	s.CurrentUtterance = "quiz me on doc:bio101"
	s.DocumentID = "bio101"

	first, err := r.Decide(dbctx.Context{}, s)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	second, err := r.Decide(dbctx.Context{}, s)
	if err != nil {
		t.Fatalf("decide again: %v", err)
	}
	if first.Target != second.Target || first.StartQuiz != second.StartQuiz || first.Snippet != second.Snippet {
		t.Fatalf("decision changed on unchanged state: first=%+v second=%+v", first, second)
	}
}
