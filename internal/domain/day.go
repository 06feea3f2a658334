package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

const (
	// StoredDayLayout is the day format kept in the record store.
	StoredDayLayout = "02/01/2006"
	// ISODayLayout is the format accepted on create requests.
	ISODayLayout = "2006-01-02"
)

// Day is a calendar date without time of day. A Day decoded from a
// malformed stored value is invalid but keeps the raw text so rewriting the
// collection does not lose it.
type Day struct {
	date civil.Date
	raw  string
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{date: civil.Date{Year: year, Month: month, Day: day}}
}

// DayOf returns the calendar date of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc != nil {
		t = t.In(loc)
	}
	return Day{date: civil.DateOf(t)}
}

// ParseISODay parses YYYY-MM-DD.
func ParseISODay(value string) (Day, error) {
	d, err := civil.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return Day{date: d}, nil
}

// ParseStoredDay parses DD/MM/YYYY.
func ParseStoredDay(value string) (Day, error) {
	t, err := time.Parse(StoredDayLayout, strings.TrimSpace(value))
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return Day{date: civil.DateOf(t)}, nil
}

// ParseDay accepts either boundary format.
func ParseDay(value string) (Day, error) {
	if d, err := ParseISODay(value); err == nil {
		return d, nil
	}
	return ParseStoredDay(value)
}

func (d Day) Valid() bool {
	return d.date.IsValid()
}

func (d Day) Before(other Day) bool {
	return d.date.Before(other.date)
}

func (d Day) After(other Day) bool {
	return d.date.After(other.date)
}

func (d Day) Equal(other Day) bool {
	return d.date == other.date
}

// Raw returns the stored text of an invalid Day.
func (d Day) Raw() string {
	return d.raw
}

func (d Day) ISO() string {
	return d.date.String()
}

func (d Day) String() string {
	if !d.Valid() {
		return d.raw
	}
	return d.date.In(time.UTC).Format(StoredDayLayout)
}

func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Day) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Non-string payloads are kept as invalid days.
		*d = Day{raw: string(data)}
		return nil
	}
	parsed, err := ParseDay(raw)
	if err != nil {
		*d = Day{raw: raw}
		return nil
	}
	*d = parsed
	return nil
}
