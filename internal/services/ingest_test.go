package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/tutorbridge-backend/internal/clients/gcp"
	types "github.com/yungbote/tutorbridge-backend/internal/domain"
)

type fakeSpeech struct {
	text string
	err  error
}

func (f *fakeSpeech) Transcribe(ctx context.Context, audio []byte, format string) (*gcp.TranscriptResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &gcp.TranscriptResult{Text: f.text, Confidence: 0.9}, nil
}

func (f *fakeSpeech) Close() error { return nil }

func TestIngestMintsThreadIDAndAppendsUtterance(t *testing.T) {
	t.Parallel()
	svc := NewIngestService(testLogger(t), nil)

	out, err := svc.Normalize(context.Background(), TurnInput{UserID: "user1", Utterance: "what is osmosis?"}, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	s := out.State
	if !strings.HasPrefix(s.ThreadID, "chat_thread_user1_") {
		t.Fatalf("unexpected thread id: %q", s.ThreadID)
	}
	if s.CurrentUtterance != "what is osmosis?" {
		t.Fatalf("utterance not normalized: %q", s.CurrentUtterance)
	}
	if len(s.History) != 1 || s.History[0].Role != types.RoleHuman {
		t.Fatalf("utterance not appended to history: %+v", s.History)
	}
	if out.Greeting {
		t.Fatal("non-empty turn must not greet")
	}
}

func TestIngestRequiresUserID(t *testing.T) {
	t.Parallel()
	svc := NewIngestService(testLogger(t), nil)

	if _, err := svc.Normalize(context.Background(), TurnInput{Utterance: "hi"}, nil); err == nil {
		t.Fatal("expected error for missing user id")
	}
}

func TestIngestGreetsOnEmptyFirstTurn(t *testing.T) {
	t.Parallel()
	svc := NewIngestService(testLogger(t), nil)

	out, err := svc.Normalize(context.Background(), TurnInput{UserID: "user1"}, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !out.Greeting {
		t.Fatal("empty first turn should greet")
	}

	// With history the empty turn falls through to routing instead.
	prior := types.NewSessionState("user1", "chat_thread_user1_abcd1234")
	prior.AppendMessage(types.NewHumanMessage("earlier"))
	out, err = svc.Normalize(context.Background(), TurnInput{UserID: "user1", ThreadID: prior.ThreadID}, prior)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.Greeting {
		t.Fatal("turn with history must not greet")
	}
}

func TestIngestTranscribesAudio(t *testing.T) {
	t.Parallel()
	svc := NewIngestService(testLogger(t), &fakeSpeech{text: "start quiz"})

	out, err := svc.Normalize(context.Background(), TurnInput{
		UserID:      "user1",
		AudioBytes:  []byte{1, 2, 3},
		AudioFormat: "wav",
	}, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.State.CurrentUtterance != "start quiz" {
		t.Fatalf("transcript not used: %q", out.State.CurrentUtterance)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", out.Warnings)
	}
}

func TestIngestDegradesToFallbackOnSTTFailure(t *testing.T) {
	t.Parallel()
	svc := NewIngestService(testLogger(t), &fakeSpeech{err: errors.New("stt down")})

	out, err := svc.Normalize(context.Background(), TurnInput{
		UserID:             "user1",
		AudioBytes:         []byte{1, 2, 3},
		AudioFormat:        "wav",
		TranscriptFallback: "cancel quiz",
	}, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.State.CurrentUtterance != "cancel quiz" {
		t.Fatalf("fallback not used: %q", out.State.CurrentUtterance)
	}
	if len(out.Warnings) != 1 {
		t.Fatalf("degraded transcription must surface a warning: %v", out.Warnings)
	}
}

func TestIngestDocumentIDPrecedence(t *testing.T) {
	t.Parallel()
	svc := NewIngestService(testLogger(t), nil)

	// Extracted from the utterance when the caller supplies none.
	out, err := svc.Normalize(context.Background(), TurnInput{UserID: "user1", Utterance: "quiz me on doc:bio101"}, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.State.DocumentID != "bio101" {
		t.Fatalf("extracted doc id: got=%q want=bio101", out.State.DocumentID)
	}

	// An explicit caller-supplied id wins over the extracted one.
	out, err = svc.Normalize(context.Background(), TurnInput{UserID: "user1", Utterance: "quiz me on doc:bio101", DocumentID: "chem202"}, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.State.DocumentID != "chem202" {
		t.Fatalf("explicit doc id: got=%q want=chem202", out.State.DocumentID)
	}
}

func TestIngestClearsPerTurnFields(t *testing.T) {
	t.Parallel()
	svc := NewIngestService(testLogger(t), nil)

	prior := types.NewSessionState("user1", "chat_thread_user1_abcd1234")
	prior.Target = types.TargetChat
	prior.FinalResponse = "old response"
	prior.LastError = "old error"
	prior.AppendMessage(types.NewHumanMessage("earlier"))

	out, err := svc.Normalize(context.Background(), TurnInput{UserID: "user1", ThreadID: prior.ThreadID, Utterance: "next question"}, prior)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	s := out.State
	if s.Target != "" || s.FinalResponse != "" || s.LastError != "" {
		t.Fatalf("per-turn fields not cleared: %+v", s)
	}
	if len(s.History) != 2 {
		t.Fatalf("history length: got=%d want=2", len(s.History))
	}
	if len(prior.History) != 1 || prior.FinalResponse != "old response" {
		t.Fatal("normalize mutated the prior state")
	}
}
