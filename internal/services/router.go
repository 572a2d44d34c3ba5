package services

import (
	"errors"
	"strings"

	types "github.com/yungbote/tutorbridge-backend/internal/domain"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
)

// Machine-readable error codes surfaced in a turn's error_detail.
const (
	ErrCodeMissingDocument    = "missing_document"
	ErrCodeDocumentNoContent  = "document_content_unavailable"
	ErrCodeDocumentFetch      = "document_fetch_failed"
	ErrCodeMissingUserID      = "missing_user_id"
	ErrCodeGeneratorFailed    = "generator_failed"
	ErrCodeQuizStateCorrupted = "quiz_state_corrupted"
)

// RouteDecision is the routing outcome for one turn. It is a delta: the
// router never mutates the session state it reads, the orchestrator applies
// the decision.
type RouteDecision struct {
	Target types.Target

	// Set when a new quiz should start this turn.
	StartQuiz    bool
	QuizThreadID string
	Snippet      string

	// Set when an active quiz was cancelled by this utterance.
	CancelQuiz bool

	// Response and ErrorCode carry terminal-branch text for targets that end
	// the turn without invoking a generator.
	Response  string
	ErrorCode string
}

// RouterService computes the destination capability for a normalized turn.
// The decision order is first-match-wins and must not be reordered: an
// active quiz claims the utterance before any phrase matching, so a quiz
// answer that happens to read like free text is never misrouted, and a stray
// "start quiz" cannot fire mid-quiz.
type RouterService interface {
	Decide(dbc dbctx.Context, state *types.SessionState) (*RouteDecision, error)
}

type routerService struct {
	log  *logger.Logger
	docs DocumentService
}

func NewRouterService(baseLog *logger.Logger, docs DocumentService) RouterService {
	return &routerService{
		log:  baseLog.With("service", "RouterService"),
		docs: docs,
	}
}

func (r *routerService) Decide(dbc dbctx.Context, state *types.SessionState) (*RouteDecision, error) {
	if state == nil {
		return nil, errors.New("nil session state")
	}
	query := strings.TrimSpace(state.CurrentUtterance)

	// 1. An active quiz owns the utterance: cancel or answer.
	if state.IsQuizActive {
		if isCancelQuery(query) {
			r.log.Info("quiz cancelled by user", "thread_id", state.ThreadID)
			return &RouteDecision{
				Target:     types.TargetTerminate,
				CancelQuiz: true,
				Response:   "Okay, I've cancelled the quiz. What would you like to do next?",
			}, nil
		}
		return &RouteDecision{Target: types.TargetQuiz}, nil
	}

	// 2. Quiz start request.
	if isQuizStartQuery(query) {
		return r.decideQuizStart(dbc, state)
	}

	// 3. Document analysis request. The capability lives outside this
	// service, so the branch terminates with an explanation.
	if isDocumentQuery(query) {
		if state.DocumentID == "" {
			return &RouteDecision{
				Target:    types.TargetDocument,
				Response:  "I can't analyze a document without knowing which one.",
				ErrorCode: ErrCodeMissingDocument,
			}, nil
		}
		return &RouteDecision{
			Target:   types.TargetDocument,
			Response: "Document analysis isn't available here. I can answer questions about the document or quiz you on it instead.",
		}, nil
	}

	// 4. Default: open-ended chat.
	return &RouteDecision{Target: types.TargetChat}, nil
}

func (r *routerService) decideQuizStart(dbc dbctx.Context, state *types.SessionState) (*RouteDecision, error) {
	if state.DocumentID == "" {
		return &RouteDecision{
			Target:    types.TargetTerminate,
			Response:  "I can't start a quiz without a document. Please specify one.",
			ErrorCode: ErrCodeMissingDocument,
		}, nil
	}

	snippet, err := r.docs.GetSnippet(dbc, state.DocumentID, DefaultSnippetMaxLen)
	if err != nil {
		code := ErrCodeDocumentFetch
		if errors.Is(err, ErrDocumentNotFound) {
			code = ErrCodeDocumentNoContent
		} else {
			r.log.Error("snippet fetch failed", "document_id", state.DocumentID, "error", err)
		}
		return &RouteDecision{
			Target:    types.TargetTerminate,
			Response:  "I couldn't get the content needed to start the quiz. Please try again or select a different document.",
			ErrorCode: code,
		}, nil
	}

	quizThreadID := MintQuizThreadID(state.UserID, state.DocumentID)
	r.log.Info("starting quiz", "thread_id", state.ThreadID, "quiz_thread_id", quizThreadID, "document_id", state.DocumentID, "snippet_len", len(snippet))
	return &RouteDecision{
		Target:       types.TargetQuiz,
		StartQuiz:    true,
		QuizThreadID: quizThreadID,
		Snippet:      snippet,
	}, nil
}
