package entity

import "time"

// SystemActorName is the display name used on system-generated timeline events
const SystemActorName = "System"

// Actor identifies who performed a transition
type Actor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// SystemActor returns the actor used for system-generated events
func SystemActor() Actor {
	return Actor{ID: 0, Name: SystemActorName}
}

// TimelineEvent is one immutable entry of a request's audit trail
type TimelineEvent struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"requestId"`
	Stage      string        `json:"stage"`
	Decision   string        `json:"decision"`
	Actor      Actor         `json:"actor"`
	Comment    string        `json:"comment,omitempty"`
	FromStatus RequestStatus `json:"fromStatus,omitempty"`
	ToStatus   RequestStatus `json:"toStatus"`
	Type       string        `json:"type"`
	Timestamp  time.Time     `json:"timestamp"`
}

// User is a member of the organization directory
type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Department string    `json:"department,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Actor returns the user as a timeline actor
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}

// Notification status constants
const (
	NotificationStatusSent   = "SENT"
	NotificationStatusFailed = "FAILED"
)

// Notification is one message recorded in the outbox
type Notification struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	RequestID    string    `json:"requestId"`
	Recipient    string    `json:"recipient"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
