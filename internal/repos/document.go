package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/graphrag-backend/internal/platform/logger"
	"github.com/yungbote/graphrag-backend/internal/types"
)

type DocumentRepo interface {
	Create(ctx context.Context, record *types.DocumentRecord) error
	GetByFingerprint(ctx context.Context, fingerprint string) (*types.DocumentRecord, error)
	GetByUserAndPath(ctx context.Context, userID, storagePath string) (*types.DocumentRecord, error)
	ListByUser(ctx context.Context, userID string) ([]*types.DocumentRecord, error)
	DeleteByUserAndPath(ctx context.Context, userID, storagePath string) (int64, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(ctx context.Context, record *types.DocumentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByFingerprint returns nil, nil when no record matches; the caller
// treats that as "not yet ingested".
func (r *documentRepo) GetByFingerprint(ctx context.Context, fingerprint string) (*types.DocumentRecord, error) {
	var record types.DocumentRecord
	err := r.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByUserAndPath returns nil, nil when no record matches.
func (r *documentRepo) GetByUserAndPath(ctx context.Context, userID, storagePath string) (*types.DocumentRecord, error) {
	var record types.DocumentRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND storage_path = ?", userID, storagePath).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *documentRepo) ListByUser(ctx context.Context, userID string) ([]*types.DocumentRecord, error) {
	var records []*types.DocumentRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *documentRepo) DeleteByUserAndPath(ctx context.Context, userID, storagePath string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND storage_path = ?", userID, storagePath).
		Delete(&types.DocumentRecord{})
	return result.RowsAffected, result.Error
}
