package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/tutorbridge-backend/internal/data/repos"
	types "github.com/yungbote/tutorbridge-backend/internal/domain"
	"github.com/yungbote/tutorbridge-backend/internal/http/response"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/tutorbridge-backend/internal/requestdata"
)

type DocumentHandler struct {
	docs repos.DocumentRepo
}

func NewDocumentHandler(docs repos.DocumentRepo) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

type createDocumentReq struct {
	Title    string         `json:"title"`
	MimeType string         `json:"mime_type"`
	Content  string         `json:"content" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

// POST /api/documents
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == "" {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}
	var req createDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	doc := &types.Document{
		ID:          uuid.NewString(),
		OwnerUserID: rd.UserID,
		Title:       strings.TrimSpace(req.Title),
		MimeType:    req.MimeType,
		Content:     req.Content,
	}
	if doc.MimeType == "" {
		doc.MimeType = "text/plain"
	}
	if req.Metadata != nil {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_metadata", err)
			return
		}
		doc.Metadata = datatypes.JSON(raw)
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	created, err := h.docs.Create(dbc, []*types.Document{doc})
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "create_document_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"document": created[0]})
}

// GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == "" {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	doc, err := h.docs.GetByID(dbc, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "document_load_failed", err)
		return
	}
	if doc == nil {
		response.RespondError(c, http.StatusNotFound, "document_not_found", errors.New("no such document"))
		return
	}
	if doc.OwnerUserID != rd.UserID {
		response.RespondError(c, http.StatusForbidden, "forbidden", errors.New("document belongs to another user"))
		return
	}
	response.RespondOK(c, gin.H{"document": doc})
}
