package services

import (
	"context"
	"fmt"
	"strings"

	types "github.com/yungbote/tutorbridge-backend/internal/domain"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
	"github.com/yungbote/tutorbridge-backend/internal/platform/openai"
)

const (
	answerTemperature  = 0.3
	answerHistoryTurns = 12
)

const answerSystemPrompt = `You are a patient tutoring assistant. Answer the student's question clearly and concisely.
When document content is provided, ground your answer in it and say so when the document does not cover the question.`

// AnswerService invokes the answer-generation capability for a chat turn.
// Purely functional per call; conversation state stays with the caller.
type AnswerService interface {
	Answer(ctx context.Context, in AnswerInput) (string, error)
}

type AnswerInput struct {
	Query        string
	DocumentText string
	History      []types.Message
}

type answerService struct {
	log *logger.Logger
	ai  openai.Client
}

func NewAnswerService(baseLog *logger.Logger, ai openai.Client) AnswerService {
	return &answerService{
		log: baseLog.With("service", "AnswerService"),
		ai:  ai,
	}
}

func (s *answerService) Answer(ctx context.Context, in AnswerInput) (string, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return "", fmt.Errorf("missing query")
	}

	var b strings.Builder
	if in.DocumentText != "" {
		b.WriteString("Document content:\n---\n")
		b.WriteString(in.DocumentText)
		b.WriteString("\n---\n\n")
	}
	if summary := summarizeHistory(in.History, answerHistoryTurns); summary != "" {
		b.WriteString("Recent conversation:\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	b.WriteString("Student question: ")
	b.WriteString(query)

	text, err := s.ai.GenerateText(ctx, answerSystemPrompt, b.String(), answerTemperature)
	if err != nil {
		return "", fmt.Errorf("answer generation: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// summarizeHistory renders the last n turns as role-prefixed lines. The
// current utterance is expected to already be in the history; it is excluded
// so the prompt does not repeat the question.
func summarizeHistory(history []types.Message, n int) string {
	if len(history) <= 1 {
		return ""
	}
	prior := history[:len(history)-1]
	if len(prior) > n {
		prior = prior[len(prior)-n:]
	}
	lines := make([]string, 0, len(prior))
	for _, m := range prior {
		var prefix string
		switch m.Role {
		case types.RoleHuman:
			prefix = "Student"
		case types.RoleAssistant:
			prefix = "Tutor"
		case types.RoleSystem:
			prefix = "System"
		default:
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", prefix, m.Content))
	}
	return strings.Join(lines, "\n")
}
