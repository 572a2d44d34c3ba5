package tutor

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document is the stored text a quiz or chat turn can draw on. How documents
// get ingested and parsed is out of scope; this is only the retrieval side.
type Document struct {
	ID          string `gorm:"type:text;primaryKey" json:"id"`
	OwnerUserID string `gorm:"column:owner_user_id;not null;index" json:"owner_user_id"`

	Title    string         `gorm:"column:title;not null;default:''" json:"title"`
	MimeType string         `gorm:"column:mime_type;not null;default:'text/plain'" json:"mime_type"`
	Content  string         `gorm:"column:content;type:text;not null;default:''" json:"content"`
	Metadata datatypes.JSON `gorm:"type:jsonb;column:metadata;not null;default:'{}'" json:"metadata,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string { return "document" }
