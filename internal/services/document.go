package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/tutorbridge-backend/internal/data/repos"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
)

// DefaultSnippetMaxLen is the character budget taken from the head of a
// document when a capability needs its content.
const DefaultSnippetMaxLen = 10000

var ErrDocumentNotFound = errors.New("document not found")

// DocumentService is the retrieval collaborator: it resolves a document id to
// a bounded-length content snippet.
type DocumentService interface {
	GetSnippet(dbc dbctx.Context, documentID string, maxLen int) (string, error)
}

type documentService struct {
	db   *gorm.DB
	log  *logger.Logger
	docs repos.DocumentRepo
}

func NewDocumentService(db *gorm.DB, baseLog *logger.Logger, docs repos.DocumentRepo) DocumentService {
	return &documentService{
		db:   db,
		log:  baseLog.With("service", "DocumentService"),
		docs: docs,
	}
}

func (s *documentService) GetSnippet(dbc dbctx.Context, documentID string, maxLen int) (string, error) {
	if documentID == "" {
		return "", fmt.Errorf("missing document id")
	}
	if maxLen <= 0 {
		maxLen = DefaultSnippetMaxLen
	}
	doc, err := s.docs.GetByID(dbc, documentID)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", ErrDocumentNotFound
	}
	content := doc.Content
	if content == "" {
		return "", ErrDocumentNotFound
	}
	runes := []rune(content)
	if len(runes) > maxLen {
		content = string(runes[:maxLen])
	}
	return content, nil
}
