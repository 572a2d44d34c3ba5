package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tutorbridge-backend/internal/data/repos"
	types "github.com/yungbote/tutorbridge-backend/internal/domain"
	"github.com/yungbote/tutorbridge-backend/internal/http/response"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/tutorbridge-backend/internal/requestdata"
)

// ThreadHandler exposes read access to persisted thread state, for clients
// that reload a conversation or quiz after a restart.
type ThreadHandler struct {
	checkpoints repos.CheckpointRepo
}

func NewThreadHandler(checkpoints repos.CheckpointRepo) *ThreadHandler {
	return &ThreadHandler{checkpoints: checkpoints}
}

// GET /api/threads/:id
func (h *ThreadHandler) GetThread(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == "" {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}
	threadID := strings.TrimSpace(c.Param("id"))
	if threadID == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_thread_id", errors.New("thread id required"))
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	cp, err := h.checkpoints.Get(dbc, threadID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "thread_load_failed", err)
		return
	}
	if cp == nil {
		response.RespondError(c, http.StatusNotFound, "thread_not_found", errors.New("no state for thread"))
		return
	}
	if cp.UserID != rd.UserID {
		response.RespondError(c, http.StatusForbidden, "forbidden", errors.New("thread belongs to another user"))
		return
	}

	switch cp.Kind {
	case types.CheckpointKindConversation:
		state, err := types.DecodeSessionState(cp)
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "thread_decode_failed", err)
			return
		}
		response.RespondOK(c, gin.H{"kind": cp.Kind, "state": state})
	case types.CheckpointKindQuiz:
		qs, err := types.DecodeQuizSession(cp)
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "thread_decode_failed", err)
			return
		}
		response.RespondOK(c, gin.H{"kind": cp.Kind, "quiz": qs})
	default:
		response.RespondError(c, http.StatusInternalServerError, "thread_decode_failed", errors.New("unknown checkpoint kind"))
	}
}
