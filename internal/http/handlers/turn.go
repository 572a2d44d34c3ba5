package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tutorbridge-backend/internal/http/response"
	"github.com/yungbote/tutorbridge-backend/internal/requestdata"
	"github.com/yungbote/tutorbridge-backend/internal/services"
)

type TurnHandler struct {
	turns services.TurnService
}

func NewTurnHandler(turns services.TurnService) *TurnHandler {
	return &TurnHandler{turns: turns}
}

type turnReq struct {
	ThreadID           string `json:"thread_id"`
	Utterance          string `json:"utterance"`
	AudioBase64        string `json:"audio_base64"`
	AudioFormat        string `json:"audio_format"`
	TranscriptFallback string `json:"transcript_fallback"`
	DocumentID         string `json:"document_id"`
}

// POST /api/turns
func (h *TurnHandler) HandleTurn(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == "" {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}

	var req turnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	var audio []byte
	if req.AudioBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_audio", err)
			return
		}
		audio = decoded
	}

	result, err := h.turns.HandleTurn(c.Request.Context(), services.TurnInput{
		UserID:             rd.UserID,
		ThreadID:           req.ThreadID,
		Utterance:          req.Utterance,
		AudioBytes:         audio,
		AudioFormat:        req.AudioFormat,
		TranscriptFallback: req.TranscriptFallback,
		DocumentID:         req.DocumentID,
	})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "turn_failed", err)
		return
	}
	response.RespondOK(c, result)
}
