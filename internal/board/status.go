package board

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the column a task sits in on the sprint board.
type Status int

const (
	StatusTodo Status = iota + 1
	StatusActive
	StatusTesting
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusTodo:
		return "todo"
	case StatusActive:
		return "active"
	case StatusTesting:
		return "testing"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the four board columns.
func (s Status) Valid() bool {
	return s >= StatusTodo && s <= StatusDone
}

// ParseStatus accepts either a column name or its number.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "todo", "1":
		return StatusTodo, nil
	case "active", "2":
		return StatusActive, nil
	case "testing", "3":
		return StatusTesting, nil
	case "done", "4":
		return StatusDone, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

const dateLayout = "2006-01-02"

// Error definitions
var (
	ErrInvalidStatus = errors.New("invalid task status")
	ErrInvalidDate   = errors.New("invalid date")
)

// Date is a calendar day without time or zone, serialized as YYYY-MM-DD.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the UTC calendar day of t.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today is the current UTC day.
func Today() Date {
	return DateOf(time.Now())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, data)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
