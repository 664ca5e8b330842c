package models

import "time"

// NotificationType tags what a notification is about.
type NotificationType string

const (
	NotificationRequest  NotificationType = "appointment_request"
	NotificationApproved NotificationType = "appointment_approved"
	NotificationRejected NotificationType = "appointment_rejected"
	NotificationCanceled NotificationType = "appointment_canceled"
	NotificationSystem   NotificationType = "system"
)

// Notification is a one-way alert addressed to a user.
type Notification struct {
	ID            string           `db:"id" json:"id"`
	RecipientID   string           `db:"recipient_id" json:"recipient"`
	SenderID      *string          `db:"sender_id" json:"sender,omitempty"`
	SenderName    *string          `db:"sender_name" json:"senderName,omitempty"`
	Type          NotificationType `db:"type" json:"type"`
	Content       string           `db:"content" json:"content"`
	Read          bool             `db:"read" json:"read"`
	AppointmentID *string          `db:"appointment_id" json:"relatedAppointment,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
}
