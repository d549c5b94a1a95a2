package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	netmail "net/mail"
	"sort"
	"strings"

	"go.uber.org/zap"

	"legacyplanner.org/internal/audit"
	"legacyplanner.org/internal/obs"
	"legacyplanner.org/internal/plan"
	"legacyplanner.org/internal/sections"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Service renders emails and hands them to a Sender.
type Service struct {
	sender      Sender
	from        string
	songOrderTo string
	registry    *sections.Registry
	log         *zap.Logger
}

func NewService(sender Sender, from, songOrderTo string, registry *sections.Registry) (*Service, error) {
	if sender == nil {
		return nil, errors.New("mail sender is required")
	}
	if registry == nil {
		return nil, errors.New("section registry is required")
	}
	if _, err := netmail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", from, err)
	}
	return &Service{
		sender:      sender,
		from:        from,
		songOrderTo: strings.TrimSpace(songOrderTo),
		registry:    registry,
		log:         obs.Logger(),
	}, nil
}

type summarySection struct {
	Label    string
	Complete bool
}

type summaryCount struct {
	Name  string
	Count int
}

type summaryData struct {
	PreparedFor     string
	PercentComplete int
	Message         string
	Sections        []summarySection
	Counts          []summaryCount
}

// SendPlanSummary emails a progress summary of view to the address to.
func (s *Service) SendPlanSummary(ctx context.Context, to string, view *plan.View, message string) (string, error) {
	addr, err := parseRecipient(to)
	if err != nil {
		return "", err
	}
	if view == nil {
		return "", fmt.Errorf("%w: plan data is required", ErrInvalidInput)
	}

	data := summaryData{Message: strings.TrimSpace(message)}
	if view.Plan != nil {
		data.PreparedFor = view.Plan.PreparedFor
	}
	data.PercentComplete = s.registry.Progress(view)
	done := s.registry.Completion(view)
	for _, sec := range s.registry.Sections() {
		data.Sections = append(data.Sections, summarySection{Label: sec.Label, Complete: done[sec.ID]})
	}
	for name, n := range view.Counts() {
		if n > 0 {
			data.Counts = append(data.Counts, summaryCount{Name: strings.ReplaceAll(name, "_", " "), Count: n})
		}
	}
	sort.Slice(data.Counts, func(i, j int) bool { return data.Counts[i].Name < data.Counts[j].Name })

	html, err := render("plan_summary.html", data)
	if err != nil {
		return "", err
	}
	subject := "Your plan summary"
	if data.PreparedFor != "" {
		subject = "Plan summary for " + data.PreparedFor
	}
	return s.send(ctx, "mail.plan_summary_sent", Message{From: s.from, To: []string{addr}, Subject: subject, HTML: html})
}

// SongOrder is a request for a commissioned memorial song.
type SongOrder struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone,omitempty"`
	Honoree  string   `json:"honoree,omitempty"`
	Occasion string   `json:"occasion,omitempty"`
	Songs    []string `json:"songs,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

// SendSongOrder forwards a song order to the configured recipient, with the
// customer as reply-to.
func (s *Service) SendSongOrder(ctx context.Context, order SongOrder) (string, error) {
	if s.songOrderTo == "" {
		return "", fmt.Errorf("%w: song order recipient is not configured", ErrInvalidInput)
	}
	order.Name = strings.TrimSpace(order.Name)
	if order.Name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	replyTo, err := parseRecipient(order.Email)
	if err != nil {
		return "", err
	}
	order.Email = replyTo
	songs := order.Songs[:0:0]
	for _, song := range order.Songs {
		if song = strings.TrimSpace(song); song != "" {
			songs = append(songs, song)
		}
	}
	order.Songs = songs

	html, err := render("song_order.html", order)
	if err != nil {
		return "", err
	}
	return s.send(ctx, "mail.song_order_sent", Message{
		From:    s.from,
		To:      []string{s.songOrderTo},
		ReplyTo: replyTo,
		Subject: "Song order from " + order.Name,
		HTML:    html,
	})
}

func (s *Service) send(ctx context.Context, event string, msg Message) (string, error) {
	id, err := s.sender.Send(ctx, msg)
	if err != nil {
		s.log.Warn("email delivery failed", zap.String("subject", msg.Subject), zap.Error(err))
		return "", err
	}
	_ = audit.LogEvent(ctx, event, map[string]any{"message_id": id})
	return id, nil
}

func parseRecipient(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: recipient is required", ErrInvalidInput)
	}
	addr, err := netmail.ParseAddress(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid email address %q", ErrInvalidInput, raw)
	}
	return addr.Address, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
