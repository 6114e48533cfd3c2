package workouts

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout matches MM/DD/YYYY, zero padding optional on input.
const (
	DateLayout        = "1/2/2006"
	DisplayDateLayout = "01/02/2006"

	entryFields = 5
)

// Entry is one validated log line: date, weight, reps, sets, notes.
type Entry struct {
	// Date is kept as entered.
	Date   string
	Weight int
	Reps   int
	Sets   int
	Notes  string
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DisplayDateLayout)
}

// ParseEntry validates a comma separated log line. Fields are checked in
// order and the first bad one decides the error.
func ParseEntry(raw string) (Entry, error) {
	fields := strings.Split(raw, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) != entryFields {
		return Entry{}, fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(fields), entryFields)
	}

	if _, err := ParseDate(fields[0]); err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Date:  fields[0],
		Notes: fields[4],
	}

	var err error
	if entry.Weight, err = strconv.Atoi(fields[1]); err != nil {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidWeight, fields[1])
	}
	if entry.Reps, err = strconv.Atoi(fields[2]); err != nil {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidReps, fields[2])
	}
	if entry.Sets, err = strconv.Atoi(fields[3]); err != nil {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidSets, fields[3])
	}

	return entry, nil
}

// values returns the entry keyed by attribute name.
func (e Entry) values() map[string]any {
	return map[string]any{
		"dates":  e.Date,
		"weight": e.Weight,
		"reps":   e.Reps,
		"sets":   e.Sets,
		"notes":  e.Notes,
	}
}
