// Package models defines server-side data models persisted in the database.
package models

import "time"

type User struct {
	ID        string
	UserName  string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}

// Zone is a named container of one owner's documents.
type Zone struct {
	OwnerID   string
	Name      string
	CreatedAt time.Time
}

// Document is a stored remote record. Fields is kept as jsonb.
type Document struct {
	OwnerID    string
	OwnerLogin string
	Zone       string
	RecordName string
	RecordType string
	ChangeTag  string
	Fields     map[string]any
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Share grants other accounts read access to one root document.
type Share struct {
	Name           string
	OwnerID        string
	Zone           string
	RootRecordName string
	Title          string
	Token          string
	CreatedAt      time.Time
}

// Participant roles and acceptance states.
const (
	RoleOwner       = "owner"
	RoleParticipant = "participant"

	AcceptanceAccepted = "accepted"
	AcceptancePending  = "pending"
)

type Participant struct {
	ShareName  string
	UserID     string
	Login      string
	Role       string
	Acceptance string
}
