package gql

import (
	"fmt"
	"time"
)

// DateTime is the RFC3339 scalar used for run timestamps.
type DateTime struct {
	time.Time
}

// NewDateTimeFromUnix converts a Unix timestamp in seconds.
func NewDateTimeFromUnix(ts int64) DateTime {
	return DateTime{Time: time.Unix(ts, 0)}
}

// NewDateTimePtrFromUnix converts an optional Unix timestamp, keeping
// nil as nil.
func NewDateTimePtrFromUnix(ts *int64) *DateTime {
	if ts == nil {
		return nil
	}
	dt := NewDateTimeFromUnix(*ts)
	return &dt
}

func (DateTime) ImplementsGraphQLType(name string) bool {
	return name == "DateTime"
}

func (t *DateTime) UnmarshalGraphQL(input interface{}) error {
	switch v := input.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("failed to parse DateTime: %w", err)
		}
		t.Time = parsed
	case time.Time:
		t.Time = v
	default:
		return fmt.Errorf("invalid DateTime type: %T", input)
	}
	return nil
}

func (t DateTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format(time.RFC3339) + `"`), nil
}
