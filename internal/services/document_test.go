package services

import (
	"errors"
	"strings"
	"testing"

	types "github.com/yungbote/tutorbridge-backend/internal/domain"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/dbctx"
)

type fakeDocumentRepo struct {
	docs map[string]*types.Document
	err  error
}

func (f *fakeDocumentRepo) GetByID(dbc dbctx.Context, id string) (*types.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[id], nil
}

func (f *fakeDocumentRepo) Create(dbc dbctx.Context, rows []*types.Document) ([]*types.Document, error) {
	return rows, nil
}

func TestGetSnippetTruncatesAtBudget(t *testing.T) {
	t.Parallel()
	repo := &fakeDocumentRepo{docs: map[string]*types.Document{
		"bio101": {ID: "bio101", Content: strings.Repeat("é", 120)},
	}}
	svc := NewDocumentService(nil, testLogger(t), repo)

	out, err := svc.GetSnippet(dbctx.Context{}, "bio101", 100)
	if err != nil {
		t.Fatalf("get snippet: %v", err)
	}
	// The budget counts characters, not bytes, so a multi-byte rune is never
	// split.
	if got := len([]rune(out)); got != 100 {
		t.Fatalf("snippet rune length: got=%d want=100", got)
	}
}

func TestGetSnippetMissingOrEmptyDocument(t *testing.T) {
	t.Parallel()
	repo := &fakeDocumentRepo{docs: map[string]*types.Document{
		"empty": {ID: "empty", Content: ""},
	}}
	svc := NewDocumentService(nil, testLogger(t), repo)

	if _, err := svc.GetSnippet(dbctx.Context{}, "missing", 100); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("missing document: got=%v want=ErrDocumentNotFound", err)
	}
	if _, err := svc.GetSnippet(dbctx.Context{}, "empty", 100); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("empty document: got=%v want=ErrDocumentNotFound", err)
	}
}
