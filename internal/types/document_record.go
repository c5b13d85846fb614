package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DocumentRecord is the metadata row written once per successful
// ingestion. JSON field names match the UI contract carried over from the
// original deployment (camelCase, s3Path).
type DocumentRecord struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string         `gorm:"column:user_id;not null;uniqueIndex:idx_document_user_path;index" json:"userId"`
	TenantID      string         `gorm:"column:tenant_id;not null;index" json:"tenantId"`
	StoragePath   string         `gorm:"column:storage_path;not null;uniqueIndex:idx_document_user_path" json:"s3Path"`
	FileName      string         `gorm:"column:file_name;not null" json:"fileName"`
	SizeBytes     int64          `gorm:"column:size_bytes" json:"size"`
	Fingerprint   string         `gorm:"column:fingerprint;not null;index" json:"fingerprint"`
	UploadedAt    time.Time      `gorm:"column:uploaded_at;not null" json:"uploadedAt"`
	ChunksCreated int            `gorm:"column:chunks_created" json:"chunksCreated"`
	Status        string         `gorm:"column:status;not null;default:'completed'" json:"status"`
	Extra         datatypes.JSON `gorm:"column:extra;type:jsonb" json:"extra,omitempty"`
}

func (DocumentRecord) TableName() string { return "document_record" }

const (
	DocumentStatusCompleted = "completed"
)
