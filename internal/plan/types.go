// Package plan resolves a user's active plan, aggregates the plan root with its
// satellite collections and applies partial section updates.
package plan

import (
	"errors"
	"time"
)

// OwnerRole is the membership role that makes an organization a user's own.
const OwnerRole = "owner"

var (
	ErrNotFound          = errors.New("plan: not found")
	ErrInvalidInput      = errors.New("plan: invalid input")
	ErrForbidden         = errors.New("plan: forbidden")
	ErrMultipleOwnerOrgs = errors.New("plan: user owns more than one organization")
)

var collections = []string{
	"contacts",
	"pets",
	"insurance",
	"properties",
	"messages",
	"investments",
	"debts",
	"bank_accounts",
	"businesses",
	"funeral_funding",
	"professional_contacts",
}

var notesFields = []string{
	"funeral_notes",
	"financial_notes",
	"insurance_notes",
	"property_notes",
	"pets_notes",
	"digital_notes",
	"messages_notes",
	"contacts_notes",
	"healthcare_notes",
	"legal_notes",
	"legacy_notes",
	"travel_notes",
}

// Collections lists the satellite collections stored beside every plan.
func Collections() []string { return append([]string(nil), collections...) }

// NotesFields lists the free-text notes columns on the plan root.
func NotesFields() []string { return append([]string(nil), notesFields...) }

// IsCollection reports whether name is a known satellite collection.
func IsCollection(name string) bool { return contains(collections, name) }

// IsNotesField reports whether name is a notes column.
func IsNotesField(name string) bool { return contains(notesFields, name) }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Membership struct {
	OrgID     string    `json:"org_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Plan is the aggregate root of one owner's planning data.
type Plan struct {
	ID              string            `json:"id"`
	OrgID           string            `json:"org_id"`
	OwnerUserID     string            `json:"owner_user_id"`
	PercentComplete int               `json:"percent_complete"`
	PreparedFor     string            `json:"prepared_for"`
	Notes           map[string]string `json:"notes"`
	Payload         map[string]any    `json:"payload"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Profile is the personal details root attached to a plan.
type Profile struct {
	PlanID    string         `json:"plan_id"`
	Data      map[string]any `json:"data"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Record is one row of a satellite collection.
type Record struct {
	ID        string         `json:"id"`
	PlanID    string         `json:"plan_id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// PlanUpdate is a partial update. Nil or empty fields are left untouched.
// Payload values are merged into the existing section object key by key.
type PlanUpdate struct {
	PercentComplete *int
	PreparedFor     *string
	Notes           map[string]string
	Payload         map[string]map[string]any
}

// Empty reports whether u changes nothing.
func (u PlanUpdate) Empty() bool {
	return u.PercentComplete == nil && u.PreparedFor == nil && len(u.Notes) == 0 && len(u.Payload) == 0
}

func (p Plan) clone() Plan {
	notes := make(map[string]string, len(p.Notes))
	for k, v := range p.Notes {
		notes[k] = v
	}
	p.Notes = notes
	p.Payload = cloneMap(p.Payload)
	return p
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if inner, ok := v.(map[string]any); ok {
			out[k] = cloneMap(inner)
			continue
		}
		out[k] = v
	}
	return out
}
