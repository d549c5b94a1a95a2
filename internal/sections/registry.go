// Package sections holds the immutable catalogue of planner sections: their
// routes, labels, the payload key each section occupies in a plan and the
// satellite collections that count toward its completion.
package sections

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FallbackRoute is returned for section identifiers that are not registered.
const FallbackRoute = "/app/dashboard"

// Section describes one planner section.
type Section struct {
	ID             string   `json:"id"`
	Label          string   `json:"label"`
	Route          string   `json:"route"`
	PayloadKey     string   `json:"payload_key"`
	Collections    []string `json:"collections,omitempty"`
	NotesField     string   `json:"notes_field,omitempty"`
	Group          string   `json:"group"`
	Order          int      `json:"order"`
	ShowInNav      bool     `json:"show_in_nav"`
	TracksProgress bool     `json:"tracks_progress"`
}

// Navigation is the position of a route within the registry.
type Navigation struct {
	IsRegistrySection bool     `json:"is_registry_section"`
	CurrentStep       int      `json:"current_step"`
	TotalSteps        int      `json:"total_steps"`
	Section           *Section `json:"section,omitempty"`
	Previous          *Section `json:"previous,omitempty"`
	Next              *Section `json:"next,omitempty"`
}

// Group is a named, ordered set of sections for navigation menus.
type Group struct {
	Name     string    `json:"name"`
	Sections []Section `json:"sections"`
}

// ContentSource exposes the parts of a plan that decide whether a section has content.
type ContentSource interface {
	PayloadSection(key string) any
	CollectionLen(name string) int
	Note(field string) string
}

// Registry is a read-only lookup table over sections. Build it once and share it.
type Registry struct {
	ordered []Section
	byID    map[string]int
	byRoute map[string]int
}

// NewRegistry validates defs and returns a registry ordered by Section.Order.
func NewRegistry(defs []Section) (*Registry, error) {
	if len(defs) == 0 {
		return nil, errors.New("sections: at least one section is required")
	}
	ordered := make([]Section, len(defs))
	for i, d := range defs {
		d.Collections = append([]string(nil), d.Collections...)
		d.Route = normalizeRoute(d.Route)
		ordered[i] = d
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	r := &Registry{
		ordered: ordered,
		byID:    make(map[string]int, len(ordered)),
		byRoute: make(map[string]int, len(ordered)),
	}
	for i, s := range ordered {
		if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.Label) == "" || s.Route == "" || strings.TrimSpace(s.PayloadKey) == "" {
			return nil, fmt.Errorf("sections: section %d is missing id, label, route or payload key", i)
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("sections: duplicate section id %q", s.ID)
		}
		if _, dup := r.byRoute[s.Route]; dup {
			return nil, fmt.Errorf("sections: duplicate route %q", s.Route)
		}
		r.byID[s.ID] = i
		r.byRoute[s.Route] = i
	}
	return r, nil
}

// Sections returns a copy of all sections in display order.
func (r *Registry) Sections() []Section {
	out := make([]Section, len(r.ordered))
	for i, s := range r.ordered {
		out[i] = s.clone()
	}
	return out
}

// Len returns the number of registered sections.
func (r *Registry) Len() int { return len(r.ordered) }

// ByID looks a section up by identifier.
func (r *Registry) ByID(id string) (Section, bool) {
	i, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return Section{}, false
	}
	return r.ordered[i].clone(), true
}

// ByRoute looks a section up by URL path. Query strings and trailing slashes are ignored.
func (r *Registry) ByRoute(route string) (Section, bool) {
	i, ok := r.byRoute[normalizeRoute(route)]
	if !ok {
		return Section{}, false
	}
	return r.ordered[i].clone(), true
}

// RouteFor returns the route of section id, or FallbackRoute when it is unknown.
func (r *Registry) RouteFor(id string) string {
	if s, ok := r.ByID(id); ok {
		return s.Route
	}
	return FallbackRoute
}

// IDForRoute returns the section id served at route.
func (r *Registry) IDForRoute(route string) (string, bool) {
	s, ok := r.ByRoute(route)
	return s.ID, ok
}

// NavigationByRoute reports "step X of Y" for route. Unregistered routes yield
// IsRegistrySection=false and CurrentStep=0 so callers can hide progress UI.
func (r *Registry) NavigationByRoute(route string) Navigation {
	nav := Navigation{TotalSteps: len(r.ordered)}
	i, ok := r.byRoute[normalizeRoute(route)]
	if !ok {
		return nav
	}
	cur := r.ordered[i].clone()
	nav.IsRegistrySection = true
	nav.CurrentStep = i + 1
	nav.Section = &cur
	if i > 0 {
		prev := r.ordered[i-1].clone()
		nav.Previous = &prev
	}
	if i+1 < len(r.ordered) {
		next := r.ordered[i+1].clone()
		nav.Next = &next
	}
	return nav
}

// Groups returns nav-visible sections grouped in first-appearance order.
func (r *Registry) Groups() []Group {
	var groups []Group
	index := map[string]int{}
	for _, s := range r.ordered {
		if !s.ShowInNav {
			continue
		}
		gi, ok := index[s.Group]
		if !ok {
			gi = len(groups)
			index[s.Group] = gi
			groups = append(groups, Group{Name: s.Group})
		}
		groups[gi].Sections = append(groups[gi].Sections, s.clone())
	}
	return groups
}

// Completion maps every section id to whether src holds content for it.
func (r *Registry) Completion(src ContentSource) map[string]bool {
	out := make(map[string]bool, len(r.ordered))
	for _, s := range r.ordered {
		out[s.ID] = src != nil && s.hasContent(src)
	}
	return out
}

// Progress returns the whole-number percentage of progress-tracked sections with content.
func (r *Registry) Progress(src ContentSource) int {
	var tracked, done int
	for _, s := range r.ordered {
		if !s.TracksProgress {
			continue
		}
		tracked++
		if src != nil && s.hasContent(src) {
			done++
		}
	}
	if tracked == 0 {
		return 0
	}
	return done * 100 / tracked
}

func (s Section) hasContent(src ContentSource) bool {
	if !isEmptyValue(src.PayloadSection(s.PayloadKey)) {
		return true
	}
	for _, c := range s.Collections {
		if src.CollectionLen(c) > 0 {
			return true
		}
	}
	if s.NotesField != "" && strings.TrimSpace(src.Note(s.NotesField)) != "" {
		return true
	}
	return false
}

func (s Section) clone() Section {
	s.Collections = append([]string(nil), s.Collections...)
	return s
}

// isEmptyValue treats nil, blank strings, empty containers and containers of
// empty values as empty. Booleans and numbers are answers and never empty.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case map[string]any:
		for _, inner := range t {
			if !isEmptyValue(inner) {
				return false
			}
		}
		return true
	case []any:
		for _, inner := range t {
			if !isEmptyValue(inner) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func normalizeRoute(route string) string {
	route = strings.TrimSpace(route)
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	route = strings.TrimRight(route, "/")
	if route == "" {
		return ""
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return strings.ToLower(route)
}
