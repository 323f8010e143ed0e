package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is fixed width so stored values sort lexicographically in
// the same order as the instants they denote.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamp is a UTC instant persisted as sortable text.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t.UTC()} }

func Now() Timestamp { return NewTimestamp(time.Now()) }

// ParseTimestamp accepts the storage layout, RFC 3339 and bare dates.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) String() string {
	return t.Time.UTC().Format(TimestampLayout)
}

func (Timestamp) GormDataType() string { return "string" }

func (t Timestamp) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *Timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = Timestamp{}
		return nil
	case string:
		return t.parseInto(v)
	case []byte:
		return t.parseInto(string(v))
	case time.Time:
		*t = NewTimestamp(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
}

func (t *Timestamp) parseInto(s string) error {
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*t = Timestamp{}
		return nil
	}
	return t.parseInto(s)
}

// TimestampPtr is a helper for optional columns.
func TimestampPtr(t Timestamp) *Timestamp { return &t }
