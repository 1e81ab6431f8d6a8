package store

import (
	"context"

	"devicemail/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageStore struct{ db *gorm.DB }

func (s *Store) Messages() *MessageStore { return &MessageStore{db: s.DB} }

func (m *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	return m.db.WithContext(ctx).Create(msg).Error
}

// Get loads a message with both parties, deleted or not.
func (m *MessageStore) Get(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var msg domain.Message
	err := m.db.WithContext(ctx).
		Preload("Sender").
		Preload("Recipient").
		First(&msg, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (m *MessageStore) Inbox(ctx context.Context, userID uuid.UUID) ([]*domain.Message, error) {
	return m.list(ctx, "recipient_id = ?", userID)
}

func (m *MessageStore) Sent(ctx context.Context, userID uuid.UUID) ([]*domain.Message, error) {
	return m.list(ctx, "sender_id = ?", userID)
}

func (m *MessageStore) list(ctx context.Context, cond string, userID uuid.UUID) ([]*domain.Message, error) {
	var msgs []*domain.Message
	err := m.db.WithContext(ctx).
		Preload("Sender").
		Preload("Recipient").
		Where(cond, userID).
		Where("is_deleted = ?", false).
		Order("sent_at desc").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead is a no-op for messages that are already read.
func (m *MessageStore) MarkRead(ctx context.Context, id uuid.UUID) error {
	return m.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND read = ?", id, false).
		Update("read", true).Error
}

func (m *MessageStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return m.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Update("is_deleted", true).Error
}
