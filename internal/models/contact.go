package models

import (
	"time"

	"github.com/google/uuid"
)

// ContactStatus represents the deliverability state of a contact
type ContactStatus string

const (
	ContactStatusActive       ContactStatus = "active"
	ContactStatusBounced      ContactStatus = "bounced"
	ContactStatusUnsubscribed ContactStatus = "unsubscribed"
)

// Contact represents an outbound email target in a workspace
type Contact struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	WorkspaceID uuid.UUID     `json:"workspace_id" db:"workspace_id"`
	Email       string        `json:"email" db:"email"`
	FirstName   *string       `json:"first_name,omitempty" db:"first_name"`
	LastName    *string       `json:"last_name,omitempty" db:"last_name"`
	Company     *string       `json:"company,omitempty" db:"company"`
	Title       *string       `json:"title,omitempty" db:"title"`
	Status      ContactStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// FullName returns the contact's full name, or an empty string when neither
// name part is known
func (c *Contact) FullName() string {
	var firstName, lastName string

	if c.FirstName != nil {
		firstName = *c.FirstName
	}
	if c.LastName != nil {
		lastName = *c.LastName
	}

	if firstName != "" && lastName != "" {
		return firstName + " " + lastName
	}
	if firstName != "" {
		return firstName
	}
	return lastName
}

// CanReceive reports whether mail may be sent to this contact
func (c *Contact) CanReceive() bool {
	return c.Status == "" || c.Status == ContactStatusActive
}
