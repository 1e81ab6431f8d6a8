package impl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devicemail/internal/domain"
	"devicemail/internal/dto"
	"devicemail/internal/netutil"
	"devicemail/internal/service"
	"devicemail/internal/store"

	"github.com/google/uuid"
)

var _ service.MailService = (*MailServiceImpl)(nil)

const (
	maxSubjectLength = 255
	replyPrefix      = "Re: "
	quoteDateLayout  = "January 02, 2006 at 15:04"
)

type MailServiceImpl struct {
	store *store.Store
	gate  service.Gate
	now   func() time.Time
}

func NewMailServiceImpl(st *store.Store, gate service.Gate) *MailServiceImpl {
	return &MailServiceImpl{
		store: st,
		gate:  gate,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// authorize runs the gate and turns a capability denial into *CapabilityDenied.
func (m *MailServiceImpl) authorize(ctx context.Context, p *service.Principal, c domain.Capability) (domain.Verdict, error) {
	_, verdict, err := m.gate.Authorize(ctx, p.DeviceKey(), p.User, c)
	if errors.Is(err, domain.ErrPermissionDenied) {
		return verdict, &CapabilityDenied{
			Capability:    c,
			ShowAdminLink: c == domain.CapabilityWrite && p.User.Elevated(),
		}
	}
	return verdict, err
}

func (m *MailServiceImpl) Inbox(ctx context.Context, p *service.Principal) (*dto.MailboxResponse, error) {
	verdict, err := m.authorize(ctx, p, domain.CapabilityRead)
	if err != nil {
		return nil, err
	}
	msgs, err := m.store.Messages().Inbox(ctx, p.UserID())
	if err != nil {
		return nil, err
	}
	return &dto.MailboxResponse{Title: "Inbox", Messages: messageResponses(msgs), CanWrite: verdict.CanWrite}, nil
}

func (m *MailServiceImpl) Sent(ctx context.Context, p *service.Principal) (*dto.MailboxResponse, error) {
	verdict, err := m.authorize(ctx, p, domain.CapabilityRead)
	if err != nil {
		return nil, err
	}
	msgs, err := m.store.Messages().Sent(ctx, p.UserID())
	if err != nil {
		return nil, err
	}
	return &dto.MailboxResponse{Title: "Sent", Messages: messageResponses(msgs), CanWrite: verdict.CanWrite}, nil
}

// Detail shows a message to either party and marks it read for the recipient.
func (m *MailServiceImpl) Detail(ctx context.Context, p *service.Principal, id domain.MessageID) (*dto.MessageDetailResponse, error) {
	verdict, err := m.authorize(ctx, p, domain.CapabilityRead)
	if err != nil {
		return nil, err
	}
	msg, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !msg.VisibleTo(p.UserID()) {
		return nil, domain.ErrMessageNotFound
	}
	if msg.RecipientID == p.UserID() && !msg.Read {
		if err := m.store.Messages().MarkRead(ctx, msg.ID); err != nil {
			return nil, err
		}
		msg.Read = true
	}
	return &dto.MessageDetailResponse{Message: messageResponse(msg), CanWrite: verdict.CanWrite}, nil
}

func (m *MailServiceImpl) Compose(ctx context.Context, p *service.Principal, r dto.ComposeRequest) (*dto.MessageResponse, error) {
	if _, err := m.authorize(ctx, p, domain.CapabilityWrite); err != nil {
		return nil, err
	}

	recipientName := strings.TrimSpace(r.Recipient)
	subject := strings.TrimSpace(r.Subject)
	body := strings.TrimSpace(r.Body)
	switch {
	case recipientName == "":
		return nil, invalid("recipient", "Please enter recipient's username.")
	case subject == "":
		return nil, invalid("subject", "Please enter subject.")
	case body == "":
		return nil, invalid("body", "Please enter message body.")
	case len([]rune(subject)) > maxSubjectLength:
		return nil, invalid("subject", fmt.Sprintf("Subject must be at most %d characters.", maxSubjectLength))
	}

	recipient, err := m.store.Users().GetByUsername(ctx, recipientName)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, invalid("recipient", fmt.Sprintf("User '%s' not found.", recipientName))
	}
	if err != nil {
		return nil, err
	}
	if recipient.ID == p.UserID() {
		return nil, invalid("recipient", "You cannot send email to yourself.")
	}

	msg, err := m.send(ctx, p.User, recipient, subject, body)
	if err != nil {
		return nil, err
	}
	resp := messageResponse(msg)
	return &resp, nil
}

func (m *MailServiceImpl) ReplyDraft(ctx context.Context, p *service.Principal, id domain.MessageID) (*dto.ReplyDraftResponse, error) {
	verdict, err := m.authorize(ctx, p, domain.CapabilityWrite)
	if err != nil {
		return nil, err
	}
	original, err := m.replyable(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return &dto.ReplyDraftResponse{
		Original:   messageResponse(original),
		Subject:    replySubject(original.Subject),
		QuotedText: quote(original),
		CanWrite:   verdict.CanWrite,
	}, nil
}

func (m *MailServiceImpl) Reply(ctx context.Context, p *service.Principal, id domain.MessageID, r dto.ReplyRequest) (*dto.MessageResponse, error) {
	if _, err := m.authorize(ctx, p, domain.CapabilityWrite); err != nil {
		return nil, err
	}
	original, err := m.replyable(ctx, p, id)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(r.Body)
	if body == "" {
		return nil, invalid("body", "Please enter your reply message.")
	}

	msg, err := m.send(ctx, p.User, original.Sender, replySubject(original.Subject), body)
	if err != nil {
		return nil, err
	}
	resp := messageResponse(msg)
	return &resp, nil
}

// Delete sets the shared soft-delete flag. It needs read only.
func (m *MailServiceImpl) Delete(ctx context.Context, p *service.Principal, id domain.MessageID) (*dto.DeleteResponse, error) {
	if _, err := m.authorize(ctx, p, domain.CapabilityRead); err != nil {
		return nil, err
	}
	msg, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !msg.OwnedBy(p.UserID()) {
		return nil, domain.ErrMessageNotFound
	}
	if err := m.store.Messages().SoftDelete(ctx, msg.ID); err != nil {
		return nil, err
	}
	redirect := inboxRedirect
	if msg.SenderID == p.UserID() {
		redirect = sentRedirect
	}
	return &dto.DeleteResponse{Deleted: true, Redirect: redirect}, nil
}

// MarkRead needs read only and is limited to the recipient.
func (m *MailServiceImpl) MarkRead(ctx context.Context, p *service.Principal, id domain.MessageID) error {
	if _, err := m.authorize(ctx, p, domain.CapabilityRead); err != nil {
		return err
	}
	msg, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if msg.RecipientID != p.UserID() {
		return domain.ErrMessageNotFound
	}
	return m.store.Messages().MarkRead(ctx, msg.ID)
}

func (m *MailServiceImpl) load(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	msg, err := m.store.Messages().Get(ctx, id)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, domain.ErrMessageNotFound
	}
	return msg, err
}

// replyable loads a message the caller received and that is not deleted.
func (m *MailServiceImpl) replyable(ctx context.Context, p *service.Principal, id domain.MessageID) (*domain.Message, error) {
	msg, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted || msg.RecipientID != p.UserID() || msg.Sender == nil {
		return nil, domain.ErrMessageNotFound
	}
	return msg, nil
}

func (m *MailServiceImpl) send(ctx context.Context, from, to *domain.User, subject, body string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:          uuid.New(),
		SenderID:    from.ID,
		RecipientID: to.ID,
		Subject:     subject,
		Body:        body,
		SentAt:      m.now(),
	}
	if err := m.store.Messages().Create(ctx, msg); err != nil {
		return nil, err
	}
	msg.Sender = from
	msg.Recipient = to
	return msg, nil
}

func replySubject(subject string) string {
	return netutil.TruncateRunes(replyPrefix+subject, maxSubjectLength)
}

func quote(original *domain.Message) string {
	return fmt.Sprintf("\n\n--- Original Message ---\nFrom: %s\nDate: %s\nSubject: %s\n\n%s",
		original.Sender.Username,
		original.SentAt.UTC().Format(quoteDateLayout),
		original.Subject,
		original.Body,
	)
}

func messageResponses(msgs []*domain.Message) []dto.MessageResponse {
	out := make([]dto.MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, messageResponse(msg))
	}
	return out
}

func messageResponse(msg *domain.Message) dto.MessageResponse {
	resp := dto.MessageResponse{
		ID:      msg.ID.String(),
		Subject: msg.Subject,
		Body:    msg.Body,
		SentAt:  msg.SentAt,
		Read:    msg.Read,
	}
	if msg.Sender != nil {
		resp.Sender = msg.Sender.Username
	}
	if msg.Recipient != nil {
		resp.Recipient = msg.Recipient.Username
	}
	return resp
}
