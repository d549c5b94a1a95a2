// Package appointment stores planning appointments and renders them as
// iCalendar invitations.
package appointment

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	ics "github.com/arran4/golang-ical"

	"legacyplanner.org/internal/ids"
)

var (
	ErrInvalidInput = errors.New("appointment: invalid input")
	ErrNotFound     = errors.New("appointment: not found")
)

const (
	defaultDuration = time.Hour
	maxDuration     = 12 * time.Hour
	productID       = "-//Legacy Planner//Appointments//EN"
)

type Appointment struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	PlanID        string    `json:"plan_id,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Location      string    `json:"location,omitempty"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	AttendeeEmail string    `json:"attendee_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Request is the client input for Create. EndsAt defaults to one hour after StartsAt.
type Request struct {
	PlanID        string     `json:"plan_id,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Location      string     `json:"location,omitempty"`
	StartsAt      time.Time  `json:"starts_at"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
	AttendeeEmail string     `json:"attendee_email,omitempty"`
}

type Store interface {
	CreateAppointment(ctx context.Context, a Appointment) (Appointment, error)
	ListAppointments(ctx context.Context, userID string) ([]Appointment, error)
}

// Service validates requests, persists appointments and builds invitations.
type Service struct {
	store     Store
	organizer string
	now       func() time.Time
}

func NewService(store Store, organizer string) (*Service, error) {
	if store == nil {
		return nil, errors.New("appointment store is required")
	}
	return &Service{store: store, organizer: strings.TrimSpace(organizer), now: time.Now}, nil
}

// Create stores the appointment and returns it together with an RFC 5545 calendar.
func (s *Service) Create(ctx context.Context, userID string, req Request) (Appointment, string, error) {
	a, err := s.validate(strings.TrimSpace(userID), req)
	if err != nil {
		return Appointment{}, "", err
	}
	a.ID = ids.New()
	a.CreatedAt = s.now().UTC()
	saved, err := s.store.CreateAppointment(ctx, a)
	if err != nil {
		return Appointment{}, "", err
	}
	return saved, s.Calendar(saved), nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Appointment, error) {
	return s.store.ListAppointments(ctx, strings.TrimSpace(userID))
}

func (s *Service) validate(userID string, req Request) (Appointment, error) {
	if userID == "" {
		return Appointment{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	a := Appointment{
		UserID:      userID,
		PlanID:      strings.TrimSpace(req.PlanID),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		StartsAt:    req.StartsAt.UTC(),
	}
	if a.Title == "" {
		return Appointment{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if req.StartsAt.IsZero() {
		return Appointment{}, fmt.Errorf("%w: starts_at is required", ErrInvalidInput)
	}
	if req.EndsAt != nil {
		a.EndsAt = req.EndsAt.UTC()
	} else {
		a.EndsAt = a.StartsAt.Add(defaultDuration)
	}
	if !a.EndsAt.After(a.StartsAt) {
		return Appointment{}, fmt.Errorf("%w: ends_at must be after starts_at", ErrInvalidInput)
	}
	if a.EndsAt.Sub(a.StartsAt) > maxDuration {
		return Appointment{}, fmt.Errorf("%w: appointment cannot exceed %s", ErrInvalidInput, maxDuration)
	}
	if email := strings.TrimSpace(req.AttendeeEmail); email != "" {
		addr, err := netmail.ParseAddress(email)
		if err != nil {
			return Appointment{}, fmt.Errorf("%w: invalid attendee email", ErrInvalidInput)
		}
		a.AttendeeEmail = addr.Address
	}
	return a, nil
}

// Calendar renders a as a single-event calendar.
func (s *Service) Calendar(a Appointment) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	ev := cal.AddEvent(a.ID + "@legacyplanner")
	ev.SetCreatedTime(a.CreatedAt)
	ev.SetDtStampTime(a.CreatedAt)
	ev.SetStartAt(a.StartsAt)
	ev.SetEndAt(a.EndsAt)
	ev.SetSummary(a.Title)
	if a.Description != "" {
		ev.SetDescription(a.Description)
	}
	if a.Location != "" {
		ev.SetLocation(a.Location)
	}
	if s.organizer != "" {
		ev.SetOrganizer("mailto:" + s.organizer)
	}
	if a.AttendeeEmail != "" {
		ev.AddAttendee("mailto:"+a.AttendeeEmail, ics.WithRSVP(true))
	}
	return cal.Serialize()
}

// InMemory implements Store for tests and local runs.
type InMemory struct {
	mu   sync.RWMutex
	rows map[string]Appointment
}

func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[string]Appointment)}
}

func (m *InMemory) CreateAppointment(ctx context.Context, a Appointment) (Appointment, error) {
	if err := ctx.Err(); err != nil {
		return Appointment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[a.ID] = a
	return a, nil
}

func (m *InMemory) ListAppointments(ctx context.Context, userID string) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Appointment{}
	for _, a := range m.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}
