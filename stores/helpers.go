package stores

import (
	"encoding/json"
	"time"

	"github.com/oarkflow/date"

	dataperm "github.com/Await-d/maple-blog-sub000"
)

func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqlNullTimeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// scanTime normalizes the driver-dependent representations sqlite and friends
// hand back for timestamp columns.
func scanTime(raw interface{}) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// marshalCondition serializes a rule condition for the condition_json column.
// Empty conditions store as "" so the column stays readable.
func marshalCondition(c *dataperm.Condition) string {
	if c.IsEmpty() {
		return ""
	}
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}

// unmarshalCondition restores a persisted condition. A payload that no longer
// parses maps to the always-false condition so the owning rule fails closed.
func unmarshalCondition(s string) *dataperm.Condition {
	if s == "" {
		return nil
	}
	c := &dataperm.Condition{}
	if err := json.Unmarshal([]byte(s), c); err != nil {
		return dataperm.InvalidCondition()
	}
	if c.IsEmpty() {
		return nil
	}
	return c
}
