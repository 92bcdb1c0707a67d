package model

import "time"

type Message struct {
	ID          string     `json:"id" db:"id"`
	InstituteID string     `json:"institute_id" db:"institute_id"`
	CustomerID  string     `json:"customer_id" db:"customer_id"`
	SenderID    string     `json:"sender_id" db:"sender_id"`
	SenderRole  string     `json:"sender_role" db:"sender_role"`
	Body        string     `json:"body" db:"body" validate:"notblank,max=4000"`
	ReadAt      *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

type MessageRequest struct {
	Body string `json:"body"`
}

// Conversation summarizes the thread between one customer and one institute.
type Conversation struct {
	InstituteID   string    `json:"institute_id" db:"institute_id"`
	InstituteName string    `json:"institute_name" db:"institute_name"`
	CustomerID    string    `json:"customer_id" db:"customer_id"`
	CustomerName  string    `json:"customer_name" db:"customer_name"`
	LastMessage   string    `json:"last_message" db:"last_message"`
	LastSenderID  string    `json:"last_sender_id" db:"last_sender_id"`
	LastMessageAt time.Time `json:"last_message_at" db:"last_message_at"`
	UnreadCount   int       `json:"unread_count" db:"unread_count"`
}

type UnreadCount struct {
	Unread int `json:"unread"`
}
