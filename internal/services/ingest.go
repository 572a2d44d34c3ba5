package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/tutorbridge-backend/internal/clients/gcp"
	types "github.com/yungbote/tutorbridge-backend/internal/domain"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
)

const greetingResponse = "Hello! How can I help you today?"

// TurnInput is one caller-facing turn before normalization. Exactly one of
// Utterance or AudioBytes is expected; TranscriptFallback is the client-side
// transcript used when server transcription fails.
type TurnInput struct {
	UserID             string
	ThreadID           string
	Utterance          string
	AudioBytes         []byte
	AudioFormat        string
	TranscriptFallback string
	DocumentID         string
}

// IngestResult is the normalized state for the turn plus non-fatal warnings.
type IngestResult struct {
	State    *types.SessionState
	Warnings []string

	// Greeting is set when the turn carries no utterance, no history and no
	// active quiz; the orchestrator short-circuits with a greeting.
	Greeting bool
}

// IngestService normalizes an incoming turn: resolves audio to text, appends
// the utterance to history, extracts an embedded document reference and mints
// a conversation thread id when the caller supplied none. It never writes to
// the checkpoint store.
type IngestService interface {
	Normalize(ctx context.Context, in TurnInput, prior *types.SessionState) (*IngestResult, error)
}

type ingestService struct {
	log *logger.Logger
	stt gcp.Speech
}

// NewIngestService wires the speech collaborator; stt may be nil, in which
// case audio turns degrade to the transcript fallback.
func NewIngestService(baseLog *logger.Logger, stt gcp.Speech) IngestService {
	return &ingestService{
		log: baseLog.With("service", "IngestService"),
		stt: stt,
	}
}

func (s *ingestService) Normalize(ctx context.Context, in TurnInput, prior *types.SessionState) (*IngestResult, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, fmt.Errorf("missing user id")
	}

	var state *types.SessionState
	if prior != nil {
		state = prior.Clone()
	} else {
		threadID := strings.TrimSpace(in.ThreadID)
		if threadID == "" {
			threadID = MintConversationThreadID(userID)
		}
		state = types.NewSessionState(userID, threadID)
	}
	state.Target = ""
	state.FinalResponse = ""
	state.LastError = ""

	out := &IngestResult{State: state}

	utterance := strings.TrimSpace(in.Utterance)
	if len(in.AudioBytes) > 0 {
		text, warn := s.transcribe(ctx, in)
		if warn != "" {
			out.Warnings = append(out.Warnings, warn)
		}
		if text != "" {
			utterance = text
		}
	}
	state.CurrentUtterance = utterance

	if utterance != "" {
		state.AppendMessage(types.NewHumanMessage(utterance))
	} else if len(state.History) == 0 && !state.IsQuizActive {
		out.Greeting = true
		return out, nil
	}

	if docID := strings.TrimSpace(in.DocumentID); docID != "" {
		state.DocumentID = docID
	} else if extracted := extractDocumentID(utterance); extracted != "" {
		s.log.Debug("extracted document id from utterance", "document_id", extracted)
		state.DocumentID = extracted
	}

	return out, nil
}

// transcribe resolves audio to text. Failure never crashes the turn: it falls
// back to the client transcript (or empty text) and surfaces a warning.
func (s *ingestService) transcribe(ctx context.Context, in TurnInput) (string, string) {
	fallback := strings.TrimSpace(in.TranscriptFallback)
	if s.stt == nil {
		return fallback, "transcription unavailable; used client transcript"
	}
	result, err := s.stt.Transcribe(ctx, in.AudioBytes, in.AudioFormat)
	if err != nil {
		s.log.Warn("transcription failed", "format", in.AudioFormat, "error", err)
		return fallback, "speech-to-text failed; used client transcript"
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return fallback, "no transcription result; used client transcript"
	}
	return text, ""
}

func MintConversationThreadID(userID string) string {
	return fmt.Sprintf("chat_thread_%s_%s", userID, uuid.NewString()[:8])
}

func MintQuizThreadID(userID, documentID string) string {
	return fmt.Sprintf("quiz_thread_%s_%s_%s", userID, documentID, uuid.NewString()[:8])
}
