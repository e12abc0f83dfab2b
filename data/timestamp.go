package data

import (
	"fmt"
	"time"
)

// Timestamp is a UTC time serialised without fractional seconds.
type Timestamp time.Time

const timestampFormat = "2006-01-02T15:04:05Z"

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("invalid time format: %s", b)
	}
	b = b[1 : len(b)-1]
	parsed, err := time.Parse(timestampFormat, string(b))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(timestampFormat) + `"`), nil
}

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func Now() Timestamp {
	return Timestamp(time.Now().UTC().Truncate(time.Second))
}
