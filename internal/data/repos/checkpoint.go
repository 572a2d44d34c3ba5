package repos

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/tutorbridge-backend/internal/domain"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
)

// CheckpointRepo is the durable key-value store for thread state snapshots.
// Get returns nil (not an error) for an absent thread id; Put overwrites.
type CheckpointRepo interface {
	Get(dbc dbctx.Context, threadID string) (*types.Checkpoint, error)
	Put(dbc dbctx.Context, cp *types.Checkpoint) error
}

type checkpointRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCheckpointRepo(db *gorm.DB, log *logger.Logger) CheckpointRepo {
	return &checkpointRepo{db: db, log: log.With("repo", "CheckpointRepo")}
}

func (r *checkpointRepo) Get(dbc dbctx.Context, threadID string) (*types.Checkpoint, error) {
	if threadID == "" {
		return nil, fmt.Errorf("missing thread_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.Checkpoint
	err := txx.WithContext(dbc.Ctx).
		Where("thread_id = ?", threadID).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *checkpointRepo) Put(dbc dbctx.Context, cp *types.Checkpoint) error {
	if cp == nil || cp.ThreadID == "" {
		return fmt.Errorf("missing checkpoint or thread_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	now := time.Now().UTC()
	cp.UpdatedAt = now
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	return txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "thread_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "user_id", "version", "payload", "updated_at"}),
		}).
		Create(cp).Error
}
