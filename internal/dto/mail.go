package dto

import "time"

type ComposeRequest struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

type ReplyRequest struct {
	Body string `json:"body"`
}

type MessageResponse struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sentAt"`
	Read      bool      `json:"read"`
}

type MailboxResponse struct {
	Title    string            `json:"title"`
	Messages []MessageResponse `json:"messages"`
	CanWrite bool              `json:"canWrite"`
}

type MessageDetailResponse struct {
	Message  MessageResponse `json:"message"`
	CanWrite bool            `json:"canWrite"`
}

type ReplyDraftResponse struct {
	Original   MessageResponse `json:"original"`
	Subject    string          `json:"subject"`
	QuotedText string          `json:"quotedText"`
	CanWrite   bool            `json:"canWrite"`
}

type DeleteResponse struct {
	Deleted  bool   `json:"deleted"`
	Redirect string `json:"redirect"`
}
