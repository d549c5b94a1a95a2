package plan

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Column-backed fields that are not notes.
const (
	FieldPercentComplete = "percent_complete"
	FieldPreparedFor     = "prepared_for"
)

// SplitUpdate routes each field of a section edit either to its dedicated plan
// column or into payload[section].
func SplitUpdate(section string, fields map[string]any) (PlanUpdate, error) {
	section = strings.TrimSpace(section)
	if section == "" {
		return PlanUpdate{}, fmt.Errorf("%w: section is required", ErrInvalidInput)
	}
	var upd PlanUpdate
	payload := map[string]any{}
	for k, v := range fields {
		switch {
		case k == FieldPercentComplete:
			pct, err := toPercent(v)
			if err != nil {
				return PlanUpdate{}, err
			}
			upd.PercentComplete = &pct
		case k == FieldPreparedFor:
			s, ok := v.(string)
			if !ok && v != nil {
				return PlanUpdate{}, fmt.Errorf("%w: %s must be a string", ErrInvalidInput, k)
			}
			s = strings.TrimSpace(s)
			upd.PreparedFor = &s
		case IsNotesField(k):
			s, ok := v.(string)
			if !ok && v != nil {
				return PlanUpdate{}, fmt.Errorf("%w: %s must be a string", ErrInvalidInput, k)
			}
			if upd.Notes == nil {
				upd.Notes = map[string]string{}
			}
			upd.Notes[k] = s
		case strings.TrimSpace(k) == "":
			return PlanUpdate{}, fmt.Errorf("%w: empty field name", ErrInvalidInput)
		default:
			payload[k] = v
		}
	}
	if len(payload) > 0 {
		upd.Payload = map[string]map[string]any{section: payload}
	}
	return upd, nil
}

func toPercent(v any) (int, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: percent_complete must be a number", ErrInvalidInput)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: percent_complete must be a number", ErrInvalidInput)
	}
	if math.IsNaN(f) || f < 0 || f > 100 {
		return 0, fmt.Errorf("%w: percent_complete must be between 0 and 100", ErrInvalidInput)
	}
	return int(math.Round(f)), nil
}
