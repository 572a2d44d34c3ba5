package tutor

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

const (
	CheckpointKindConversation = "conversation"
	CheckpointKindQuiz         = "quiz"

	// CheckpointEncodingVersion is bumped when the payload shape changes.
	CheckpointEncodingVersion = 1
)

// Checkpoint is the persisted snapshot of one thread's state. One row per
// thread id, overwritten after every turn.
type Checkpoint struct {
	ThreadID string         `gorm:"type:text;primaryKey" json:"thread_id"`
	Kind     string         `gorm:"column:kind;not null;index" json:"kind"`
	UserID   string         `gorm:"column:user_id;not null;index" json:"user_id"`
	Version  int            `gorm:"column:version;not null;default:1" json:"version"`
	Payload  datatypes.JSON `gorm:"type:jsonb;column:payload;not null;default:'{}'" json:"payload"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Checkpoint) TableName() string { return "checkpoint" }

func NewConversationCheckpoint(state *SessionState) (*Checkpoint, error) {
	if state == nil || state.ThreadID == "" {
		return nil, fmt.Errorf("checkpoint: missing session state or thread id")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: encode session state: %w", err)
	}
	return &Checkpoint{
		ThreadID: state.ThreadID,
		Kind:     CheckpointKindConversation,
		UserID:   state.UserID,
		Version:  CheckpointEncodingVersion,
		Payload:  datatypes.JSON(raw),
	}, nil
}

func NewQuizCheckpoint(qs *QuizSession) (*Checkpoint, error) {
	if qs == nil || qs.ThreadID == "" {
		return nil, fmt.Errorf("checkpoint: missing quiz session or thread id")
	}
	raw, err := json.Marshal(qs)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: encode quiz session: %w", err)
	}
	return &Checkpoint{
		ThreadID: qs.ThreadID,
		Kind:     CheckpointKindQuiz,
		UserID:   qs.UserID,
		Version:  CheckpointEncodingVersion,
		Payload:  datatypes.JSON(raw),
	}, nil
}

func DecodeSessionState(cp *Checkpoint) (*SessionState, error) {
	if cp == nil {
		return nil, nil
	}
	if cp.Kind != CheckpointKindConversation {
		return nil, fmt.Errorf("checkpoint %s: kind %q is not a conversation", cp.ThreadID, cp.Kind)
	}
	if cp.Version > CheckpointEncodingVersion {
		return nil, fmt.Errorf("checkpoint %s: unsupported version %d", cp.ThreadID, cp.Version)
	}
	var state SessionState
	if err := json.Unmarshal(cp.Payload, &state); err != nil {
		return nil, fmt.Errorf("checkpoint %s: decode session state: %w", cp.ThreadID, err)
	}
	return &state, nil
}

func DecodeQuizSession(cp *Checkpoint) (*QuizSession, error) {
	if cp == nil {
		return nil, nil
	}
	if cp.Kind != CheckpointKindQuiz {
		return nil, fmt.Errorf("checkpoint %s: kind %q is not a quiz", cp.ThreadID, cp.Kind)
	}
	if cp.Version > CheckpointEncodingVersion {
		return nil, fmt.Errorf("checkpoint %s: unsupported version %d", cp.ThreadID, cp.Version)
	}
	var qs QuizSession
	if err := json.Unmarshal(cp.Payload, &qs); err != nil {
		return nil, fmt.Errorf("checkpoint %s: decode quiz session: %w", cp.ThreadID, err)
	}
	return &qs, nil
}
