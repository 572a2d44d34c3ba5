package repos

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/tutorbridge-backend/internal/domain"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
)

type DocumentRepo interface {
	GetByID(dbc dbctx.Context, id string) (*types.Document, error)
	Create(dbc dbctx.Context, rows []*types.Document) ([]*types.Document, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, log *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: log.With("repo", "DocumentRepo")}
}

func (r *documentRepo) GetByID(dbc dbctx.Context, id string) (*types.Document, error) {
	if id == "" {
		return nil, fmt.Errorf("missing document id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.Document
	err := txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *documentRepo) Create(dbc dbctx.Context, rows []*types.Document) ([]*types.Document, error) {
	if len(rows) == 0 {
		return []*types.Document{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
