package dataperm

import (
	"fmt"
	"time"

	"github.com/oarkflow/date"
)

// Placeholder tokens substituted with live evaluation values before comparison.
const (
	PlaceholderCurrentUser     = "${current_user}"
	PlaceholderCurrentResource = "${current_resource}"
)

// Payload keys recognized by ParseConditionPayload. Unknown keys are ignored
// and never grant.
const (
	condKeyCreatedBy = "CreatedBy"
	condKeyStartDate = "StartDate"
	condKeyEndDate   = "EndDate"
	condKeyStatus    = "Status"
)

// OwnerCondition requires the acting user to match the configured id.
type OwnerCondition struct {
	CreatedBy string `json:"created_by"`
}

// DateRangeCondition bounds evaluation time. Zero bounds are open.
type DateRangeCondition struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// StatusCondition requires a resource status attribute to equal the value.
type StatusCondition struct {
	Equals string `json:"equals"`
}

// Condition is the declarative gate attached to a rule. It is a closed set of
// recognized checks rather than an expression language: all present parts must
// hold for the condition to pass. A Condition constructed from a malformed
// payload is marked invalid and never passes.
type Condition struct {
	Owner     *OwnerCondition     `json:"owner,omitempty"`
	DateRange *DateRangeCondition `json:"date_range,omitempty"`
	Status    *StatusCondition    `json:"status,omitempty"`

	// Invalid marks a condition whose source payload did not parse. It is
	// serialized so a broken gate stays broken across persistence and cache
	// round trips.
	Invalid bool `json:"invalid,omitempty"`
}

// InvalidCondition returns a condition that always evaluates false. Stores use
// it for rules whose persisted payload no longer parses, so the rule fails
// closed instead of silently matching.
func InvalidCondition() *Condition {
	return &Condition{Invalid: true}
}

// IsEmpty reports whether the condition carries no recognized checks.
func (c *Condition) IsEmpty() bool {
	return c == nil || (!c.Invalid && c.Owner == nil && c.DateRange == nil && c.Status == nil)
}

// EvalInput carries the live values a condition is evaluated against.
// Attrs holds optional resource attributes (e.g. "status") supplied by callers
// that have the entity at hand; a status check without attrs fails closed.
type EvalInput struct {
	UserID     string
	ResourceID string
	Now        time.Time
	Attrs      map[string]string
}

// Evaluate reports whether every present check holds. Fail closed: an invalid
// condition, a missing attribute or an out-of-window time all yield false.
func (c *Condition) Evaluate(in EvalInput) bool {
	if c == nil {
		return true
	}
	if c.Invalid {
		return false
	}
	if c.Owner != nil {
		want := substitutePlaceholders(c.Owner.CreatedBy, in)
		if want == "" || want != in.UserID {
			return false
		}
	}
	if c.DateRange != nil {
		if !c.DateRange.Start.IsZero() && in.Now.Before(c.DateRange.Start) {
			return false
		}
		if !c.DateRange.End.IsZero() && !in.Now.Before(c.DateRange.End) {
			return false
		}
	}
	if c.Status != nil {
		got, ok := in.Attrs["status"]
		if !ok {
			return false
		}
		if got != substitutePlaceholders(c.Status.Equals, in) {
			return false
		}
	}
	return true
}

func substitutePlaceholders(v string, in EvalInput) string {
	switch v {
	case PlaceholderCurrentUser:
		return in.UserID
	case PlaceholderCurrentResource:
		return in.ResourceID
	}
	return v
}

// ParseConditionPayload builds a Condition from the structured key/value data
// carried by a rule. Malformed values (unparsable dates, non-scalar entries)
// are a construction-time error. Unrecognized keys are skipped.
func ParseConditionPayload(payload map[string]any) (*Condition, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	cond := &Condition{}
	for key, raw := range payload {
		switch key {
		case condKeyCreatedBy:
			s, err := scalarString(raw)
			if err != nil {
				return nil, fmt.Errorf("condition %s: %w", key, err)
			}
			cond.Owner = &OwnerCondition{CreatedBy: s}
		case condKeyStartDate, condKeyEndDate:
			s, err := scalarString(raw)
			if err != nil {
				return nil, fmt.Errorf("condition %s: %w", key, err)
			}
			t, err := date.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("condition %s: parse %q: %w", key, s, err)
			}
			if cond.DateRange == nil {
				cond.DateRange = &DateRangeCondition{}
			}
			if key == condKeyStartDate {
				cond.DateRange.Start = t
			} else {
				cond.DateRange.End = t
			}
		case condKeyStatus:
			s, err := scalarString(raw)
			if err != nil {
				return nil, fmt.Errorf("condition %s: %w", key, err)
			}
			cond.Status = &StatusCondition{Equals: s}
		}
	}
	if cond.IsEmpty() {
		// only unknown keys: no gate, rule matches unconditionally
		return nil, nil
	}
	return cond, nil
}

func scalarString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	case int:
		return fmt.Sprintf("%d", s), nil
	case int64:
		return fmt.Sprintf("%d", s), nil
	case float64:
		// JSON numbers decode as float64; ids are integral
		return fmt.Sprintf("%.0f", s), nil
	default:
		return "", fmt.Errorf("expected scalar, got %T", v)
	}
}
