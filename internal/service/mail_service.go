package service

import (
	"context"

	"devicemail/internal/domain"
	"devicemail/internal/dto"
)

type MailService interface {
	Inbox(ctx context.Context, p *Principal) (*dto.MailboxResponse, error)
	Sent(ctx context.Context, p *Principal) (*dto.MailboxResponse, error)
	Detail(ctx context.Context, p *Principal, id domain.MessageID) (*dto.MessageDetailResponse, error)
	Compose(ctx context.Context, p *Principal, r dto.ComposeRequest) (*dto.MessageResponse, error)
	ReplyDraft(ctx context.Context, p *Principal, id domain.MessageID) (*dto.ReplyDraftResponse, error)
	Reply(ctx context.Context, p *Principal, id domain.MessageID, r dto.ReplyRequest) (*dto.MessageResponse, error)
	Delete(ctx context.Context, p *Principal, id domain.MessageID) (*dto.DeleteResponse, error)
	MarkRead(ctx context.Context, p *Principal, id domain.MessageID) error
}
