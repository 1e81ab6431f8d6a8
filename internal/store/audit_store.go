package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"devicemail/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditStore struct{ db *gorm.DB }

func (s *Store) Audit() *AuditStore { return &AuditStore{db: s.DB} }

// Record appends an audit row; payload is stored as JSON metadata.
func (a *AuditStore) Record(ctx context.Context, actor *uuid.UUID, action string, payload any, ip, ua string) error {
	var meta []byte
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
		meta = buf
	}
	entry := &domain.AuditLog{
		ID:        uuid.New(),
		UserID:    actor,
		Action:    action,
		Metadata:  meta,
		IP:        ip,
		UserAgent: ua,
		CreatedAt: time.Now().UTC(),
	}
	return a.db.WithContext(ctx).Create(entry).Error
}

func (a *AuditStore) ListByAction(ctx context.Context, action string) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	if err := a.db.WithContext(ctx).Where("action = ?", action).Order("created_at asc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
