package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	types "github.com/yungbote/tutorbridge-backend/internal/domain"

	"github.com/yungbote/tutorbridge-backend/internal/clients/redis"
	"github.com/yungbote/tutorbridge-backend/internal/data/repos"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
)

const (
	terminateDefaultResponse = "Is there anything else I can help you with?"
	chatFailureResponse      = "I'm sorry, I wasn't able to answer that just now. Please try again."

	// Checkpoint reads/writes are bounded separately from generator calls,
	// which carry their own client timeout.
	storeTimeout = 5 * time.Second
)

// ErrorDetail is the machine-readable error surfaced alongside a degraded
// turn response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TurnResult is the single response object for one turn. ThreadID is the
// quiz thread id while a quiz is active, the conversation id otherwise.
type TurnResult struct {
	ThreadID     string       `json:"thread_id"`
	ResponseText string       `json:"response_text"`
	QuizActive   bool         `json:"quiz_active"`
	QuizComplete bool         `json:"quiz_complete"`
	Options      []string     `json:"options_for_display,omitempty"`
	ErrorDetail  *ErrorDetail `json:"error_detail,omitempty"`
	Warnings     []string     `json:"warnings,omitempty"`
}

// TurnService sequences one turn end-to-end: resolve the conversation
// thread, serialize on it, normalize the input, route, invoke the target,
// merge the outcome and persist checkpoints. Exactly one turn runs per
// thread id at a time.
type TurnService interface {
	HandleTurn(ctx context.Context, in TurnInput) (*TurnResult, error)
}

type turnService struct {
	log         *logger.Logger
	checkpoints repos.CheckpointRepo
	lock        redis.TurnLock
	ingest      IngestService
	router      RouterService
	engine      QuizEngine
	answers     AnswerService
	docs        DocumentService
}

func NewTurnService(
	baseLog *logger.Logger,
	checkpoints repos.CheckpointRepo,
	lock redis.TurnLock,
	ingest IngestService,
	router RouterService,
	engine QuizEngine,
	answers AnswerService,
	docs DocumentService,
) TurnService {
	return &turnService{
		log:         baseLog.With("service", "TurnService"),
		checkpoints: checkpoints,
		lock:        lock,
		ingest:      ingest,
		router:      router,
		engine:      engine,
		answers:     answers,
		docs:        docs,
	}
}

func (s *turnService) HandleTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return &TurnResult{
			ResponseText: "A user id is required.",
			ErrorDetail:  &ErrorDetail{Code: ErrCodeMissingUserID, Message: "missing user id"},
		}, nil
	}

	// A caller may address the turn by the quiz thread id. Resolve the
	// owning conversation first so the lock is always taken on the
	// conversation id regardless of which identifier arrived.
	conversationID, err := s.resolveConversationID(ctx, in.ThreadID)
	if err != nil {
		return nil, err
	}
	in.ThreadID = conversationID

	if conversationID != "" {
		release, err := s.lock.Acquire(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("acquire turn lock for %s: %w", conversationID, err)
		}
		defer release()
	}

	prior, err := s.loadSession(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	ing, err := s.ingest.Normalize(ctx, in, prior)
	if err != nil {
		return nil, err
	}
	state := ing.State

	result := &TurnResult{Warnings: ing.Warnings}
	if ing.Greeting {
		state.FinalResponse = greetingResponse
		state.Target = types.TargetTerminate
		s.finish(ctx, state, false, result)
		return result, nil
	}

	dbc, cancel := s.storeCtx(ctx)
	decision, err := s.router.Decide(dbc, state)
	cancel()
	if err != nil {
		return nil, err
	}
	state.Target = decision.Target

	quizTouched := false
	switch decision.Target {
	case types.TargetChat:
		s.invokeChat(ctx, state, result)
	case types.TargetQuiz:
		quizTouched = s.invokeQuiz(ctx, state, decision, result)
	case types.TargetDocument, types.TargetTerminate:
		if decision.CancelQuiz {
			state.DeactivateQuiz()
			quizTouched = state.QuizState != nil
		}
		state.FinalResponse = decision.Response
		if decision.ErrorCode != "" {
			state.LastError = decision.Response
			result.ErrorDetail = &ErrorDetail{Code: decision.ErrorCode, Message: decision.Response}
		}
	default:
		return nil, fmt.Errorf("unroutable target %q", decision.Target)
	}

	if state.FinalResponse == "" {
		state.FinalResponse = terminateDefaultResponse
	}
	s.finish(ctx, state, quizTouched, result)
	return result, nil
}

// invokeChat answers the utterance over the conversation history and the
// active document, when one is resolvable. Generator failure degrades to an
// apology without touching prior state.
func (s *turnService) invokeChat(ctx context.Context, state *types.SessionState, result *TurnResult) {
	var docText string
	if state.DocumentID != "" {
		dbc, cancel := s.storeCtx(ctx)
		text, err := s.docs.GetSnippet(dbc, state.DocumentID, DefaultSnippetMaxLen)
		cancel()
		if err != nil {
			s.log.Warn("document unavailable for chat", "document_id", state.DocumentID, "error", err)
		} else {
			docText = text
		}
	}

	text, err := s.answers.Answer(ctx, AnswerInput{
		Query:        state.CurrentUtterance,
		DocumentText: docText,
		History:      state.History,
	})
	if err != nil {
		s.log.Error("answer generation failed", "thread_id", state.ThreadID, "error", err)
		state.LastError = err.Error()
		state.FinalResponse = chatFailureResponse
		result.ErrorDetail = &ErrorDetail{Code: ErrCodeGeneratorFailed, Message: "answer generation failed"}
		return
	}
	state.FinalResponse = text
	state.AppendMessage(types.NewAssistantMessage(text))
}

// invokeQuiz starts a new quiz or forwards the utterance as an answer to the
// active one. Returns whether quiz state changed this turn.
func (s *turnService) invokeQuiz(ctx context.Context, state *types.SessionState, decision *RouteDecision, result *TurnResult) bool {
	if decision.StartQuiz {
		quiz := &types.QuizSession{
			ThreadID:       decision.QuizThreadID,
			ParentThreadID: state.ThreadID,
			UserID:         state.UserID,
			DocumentID:     state.DocumentID,
			Snippet:        decision.Snippet,
			MaxQuestions:   DefaultMaxQuizQuestions,
		}
		out, err := s.engine.Start(ctx, quiz)
		if err != nil {
			s.failQuizTurn(state, result, err)
			return false
		}
		state.QuizState = quiz
		if quiz.Status == types.QuizStatusError {
			state.DeactivateQuiz()
			state.LastError = quiz.ErrorMessage
			state.FinalResponse = out.ResponseText
			result.ErrorDetail = &ErrorDetail{Code: ErrCodeGeneratorFailed, Message: "quiz generation failed"}
			return true
		}
		if err := state.ActivateQuiz(quiz.ThreadID); err != nil {
			s.failQuizTurn(state, result, err)
			return true
		}
		s.applyQuizOutput(state, out, result)
		return true
	}

	quiz := state.QuizState
	if quiz == nil || quiz.ThreadID != state.ActiveQuizThreadID {
		s.failQuizTurn(state, result, fmt.Errorf("active quiz %s has no session state", state.ActiveQuizThreadID))
		return false
	}
	out, err := s.engine.Answer(ctx, quiz, state.CurrentUtterance)
	if err != nil {
		s.failQuizTurn(state, result, err)
		return false
	}
	if quiz.Status == types.QuizStatusError {
		state.DeactivateQuiz()
		state.LastError = quiz.ErrorMessage
		state.FinalResponse = out.ResponseText
		result.ErrorDetail = &ErrorDetail{Code: ErrCodeGeneratorFailed, Message: "quiz evaluation failed"}
		return true
	}
	s.applyQuizOutput(state, out, result)
	return true
}

func (s *turnService) applyQuizOutput(state *types.SessionState, out *QuizTurnOutput, result *TurnResult) {
	state.FinalResponse = out.ResponseText
	state.AppendMessage(types.NewAssistantMessage(out.ResponseText))
	result.Options = out.Options
	result.QuizComplete = out.Complete
	if out.Complete {
		state.DeactivateQuiz()
	}
}

// failQuizTurn covers misuse-level quiz failures (state desync rather than a
// collaborator error): the quiz is dropped so the conversation stays usable.
func (s *turnService) failQuizTurn(state *types.SessionState, result *TurnResult, err error) {
	s.log.Error("quiz turn unrecoverable", "thread_id", state.ThreadID, "quiz_thread_id", state.ActiveQuizThreadID, "error", err)
	state.DeactivateQuiz()
	state.LastError = err.Error()
	state.FinalResponse = quizErrorResponse
	result.ErrorDetail = &ErrorDetail{Code: ErrCodeQuizStateCorrupted, Message: "quiz state could not be resumed"}
}

// finish fills the caller-facing fields and persists the checkpoint(s). The
// conversation checkpoint always covers the merged state; the quiz thread
// gets its own checkpoint whenever quiz state changed this turn, so a later
// turn addressed by either id resumes correctly.
func (s *turnService) finish(ctx context.Context, state *types.SessionState, quizTouched bool, result *TurnResult) {
	result.ResponseText = state.FinalResponse
	result.QuizActive = state.IsQuizActive
	result.ThreadID = state.ThreadID
	if state.IsQuizActive {
		result.ThreadID = state.ActiveQuizThreadID
	}

	cp, err := types.NewConversationCheckpoint(state)
	if err == nil {
		dbc, cancel := s.storeCtx(ctx)
		err = s.checkpoints.Put(dbc, cp)
		cancel()
	}
	if err != nil {
		s.log.Error("conversation checkpoint write failed", "thread_id", state.ThreadID, "error", err)
		if result.ErrorDetail == nil {
			result.ErrorDetail = &ErrorDetail{Code: "checkpoint_write_failed", Message: "turn state could not be saved"}
		}
	}

	if quizTouched && state.QuizState != nil {
		qcp, err := types.NewQuizCheckpoint(state.QuizState)
		if err == nil {
			dbc, cancel := s.storeCtx(ctx)
			err = s.checkpoints.Put(dbc, qcp)
			cancel()
		}
		if err != nil {
			// Non-fatal for the response, but the quiz thread may not be
			// resumable by its own id until the next successful write.
			s.log.Error("CRITICAL: quiz checkpoint write failed", "quiz_thread_id", state.QuizState.ThreadID, "error", err)
		}
	}
}

// resolveConversationID maps an incoming thread id to the conversation
// thread that owns it. A quiz thread id resolves through its parent; an
// unknown or empty id is returned as-is (a fresh id is minted later during
// ingestion).
func (s *turnService) resolveConversationID(ctx context.Context, threadID string) (string, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return "", nil
	}
	dbc, cancel := s.storeCtx(ctx)
	cp, err := s.checkpoints.Get(dbc, threadID)
	cancel()
	if err != nil {
		return "", fmt.Errorf("resolve thread %s: %w", threadID, err)
	}
	if cp == nil || cp.Kind != types.CheckpointKindQuiz {
		return threadID, nil
	}
	qs, err := types.DecodeQuizSession(cp)
	if err != nil {
		return "", fmt.Errorf("resolve thread %s: %w", threadID, err)
	}
	if qs.ParentThreadID == "" {
		return "", fmt.Errorf("quiz thread %s has no parent conversation", threadID)
	}
	s.log.Debug("resolved quiz thread to conversation", "quiz_thread_id", threadID, "thread_id", qs.ParentThreadID)
	return qs.ParentThreadID, nil
}

func (s *turnService) loadSession(ctx context.Context, threadID string) (*types.SessionState, error) {
	if threadID == "" {
		return nil, nil
	}
	dbc, cancel := s.storeCtx(ctx)
	cp, err := s.checkpoints.Get(dbc, threadID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", threadID, err)
	}
	if cp == nil {
		return nil, nil
	}
	state, err := types.DecodeSessionState(cp)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", threadID, err)
	}
	return state, nil
}

// storeCtx bounds a checkpoint or document read/write without shortening the
// caller's deadline when one is already tighter. Callers defer the returned
// cancel.
func (s *turnService) storeCtx(ctx context.Context) (dbctx.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < storeTimeout {
		return dbctx.New(ctx), func() {}
	}
	c, cancel := context.WithTimeout(ctx, storeTimeout)
	return dbctx.New(c), cancel
}
