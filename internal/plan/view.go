package plan

import (
	"encoding/json"
	"strings"

	"legacyplanner.org/internal/sections"
)

// View is the merged, read-only picture of one plan. Every collection is
// present, empty collections are non-nil.
type View struct {
	PlanID      string
	Plan        *Plan
	Profile     map[string]any
	Collections map[string][]Record
	// Errors maps a failed branch ("plan", "profile" or a collection) to its cause.
	Errors map[string]string
}

func newView(planID string) *View {
	v := &View{
		PlanID:      planID,
		Profile:     map[string]any{},
		Collections: make(map[string][]Record, len(collections)),
		Errors:      map[string]string{},
	}
	for _, c := range collections {
		v.Collections[c] = []Record{}
	}
	return v
}

// Degraded reports whether any branch failed.
func (v *View) Degraded() bool { return len(v.Errors) > 0 }

// PayloadSection returns the payload stored under key. The personal section
// falls back to the profile root.
func (v *View) PayloadSection(key string) any {
	var val any
	if v.Plan != nil {
		val = v.Plan.Payload[key]
	}
	if key == "personal" && val == nil && len(v.Profile) > 0 {
		return v.Profile
	}
	return val
}

func (v *View) CollectionLen(name string) int { return len(v.Collections[name]) }

func (v *View) Note(field string) string {
	if v.Plan == nil {
		return ""
	}
	return v.Plan.Notes[field]
}

// NotesCount counts notes fields holding non-blank text.
func (v *View) NotesCount() int {
	n := 0
	for _, f := range notesFields {
		if strings.TrimSpace(v.Note(f)) != "" {
			n++
		}
	}
	return n
}

// HasAnyData is true when any collection has a row or any notes field has text.
func (v *View) HasAnyData() bool {
	if v == nil {
		return false
	}
	for _, c := range collections {
		if len(v.Collections[c]) > 0 {
			return true
		}
	}
	return v.NotesCount() > 0
}

// Counts returns the row count of every collection plus the "notes" count.
func (v *View) Counts() map[string]int {
	out := make(map[string]int, len(collections)+1)
	for _, c := range collections {
		out[c] = len(v.Collections[c])
	}
	out["notes"] = v.NotesCount()
	return out
}

// SectionView is one section of the unified plan.
type SectionView struct {
	ID          string              `json:"id"`
	Label       string              `json:"label"`
	Route       string              `json:"route"`
	Payload     any                 `json:"payload"`
	Collections map[string][]Record `json:"collections,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	Complete    bool                `json:"complete"`
}

// Unified arranges the view by section, in registry order.
func (v *View) Unified(reg *sections.Registry) []SectionView {
	done := reg.Completion(v)
	defs := reg.Sections()
	out := make([]SectionView, 0, len(defs))
	for _, s := range defs {
		sv := SectionView{
			ID:       s.ID,
			Label:    s.Label,
			Route:    s.Route,
			Payload:  v.PayloadSection(s.PayloadKey),
			Complete: done[s.ID],
		}
		if sv.Payload == nil {
			sv.Payload = map[string]any{}
		}
		if len(s.Collections) > 0 {
			sv.Collections = make(map[string][]Record, len(s.Collections))
			for _, c := range s.Collections {
				rows := v.Collections[c]
				if rows == nil {
					rows = []Record{}
				}
				sv.Collections[c] = rows
			}
		}
		if s.NotesField != "" {
			sv.Notes = v.Note(s.NotesField)
		}
		out = append(out, sv)
	}
	return out
}

// MarshalJSON flattens collections to top-level keys beside plan and profile.
func (v *View) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(v.Collections)+6)
	for c, rows := range v.Collections {
		out[c] = rows
	}
	out["plan_id"] = v.PlanID
	out["plan"] = v.Plan
	out["profile"] = v.Profile
	out["counts"] = v.Counts()
	out["has_any_data"] = v.HasAnyData()
	out["errors"] = v.Errors
	return json.Marshal(out)
}
