package models

import "time"

// Email delivery states.
const (
	EmailStatusPending = "pending"
	EmailStatusSuccess = "success"
	EmailStatusFailed  = "failed"
)

// Notification types recorded on email logs.
const (
	NotifyCommentReply    = "comment_reply"
	NotifyNewComment      = "new_comment"
	NotifyCommentApproval = "comment_approval"
	NotifyTest            = "test"
)

// EmailLogMessageLimit bounds the stored message and error text in characters.
const EmailLogMessageLimit = 500

// EmailLog is the audit record of one outgoing message to one recipient.
type EmailLog struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Recipient         string     `gorm:"size:254;not null;index" json:"recipient"`
	Subject           string     `gorm:"size:200;not null" json:"subject"`
	Message           string     `gorm:"type:text" json:"message"`
	Status            string     `gorm:"size:10;not null;index" json:"status"`
	ErrorMessage      string     `gorm:"type:text" json:"error_message"`
	NotificationType  string     `gorm:"size:50;index" json:"notification_type"`
	RelatedObjectID   *uint      `json:"related_object_id"`
	RelatedObjectType string     `gorm:"size:50" json:"related_object_type"`
	SentAt            *time.Time `json:"sent_at"`
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`
}
