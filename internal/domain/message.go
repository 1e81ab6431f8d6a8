package domain

import "time"

// Message is an internal email. IsDeleted is a single flag shared by sender
// and recipient: deleting hides the message from both parties.
type Message struct {
	ID          MessageID `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	SenderID    UserID    `gorm:"type:uuid;not null;index:idx_messages_sender_sent,priority:1" db:"sender_id" json:"senderId"`
	RecipientID UserID    `gorm:"type:uuid;not null;index:idx_messages_recipient_sent,priority:1" db:"recipient_id" json:"recipientId"`
	Subject     string    `gorm:"type:varchar(255);not null" db:"subject" json:"subject"`
	Body        string    `gorm:"type:text;not null" db:"body" json:"body"`
	SentAt      time.Time `gorm:"not null;index:idx_messages_sender_sent,priority:2;index:idx_messages_recipient_sent,priority:2" db:"sent_at" json:"sentAt"`
	Read        bool      `gorm:"not null" db:"read" json:"read"`
	IsDeleted   bool      `gorm:"not null" db:"is_deleted" json:"isDeleted"`

	Sender    *User `gorm:"foreignKey:SenderID" json:"-"`
	Recipient *User `gorm:"foreignKey:RecipientID" json:"-"`
}

func (Message) TableName() string { return "messages" }

// VisibleTo reports whether u may see m.
func (m *Message) VisibleTo(u UserID) bool {
	return (m.SenderID == u || m.RecipientID == u) && !m.IsDeleted
}

// OwnedBy reports whether u is a party to m, deleted or not.
func (m *Message) OwnedBy(u UserID) bool {
	return m.SenderID == u || m.RecipientID == u
}
