package mission

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/fourmis/core"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
	StatusCancelled Status = "CANCELLED"
)

// transitions lists the statuses reachable from each status. CANCELLED is terminal.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusPublished, StatusCancelled},
	StatusPublished: {StatusArchived, StatusCancelled},
	StatusArchived:  {StatusPublished},
	StatusCancelled: nil,
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, st := range transitions[s] {
		if st == to {
			return true
		}
	}
	return false
}

type Recurrence string

const (
	RecurrenceNone    Recurrence = "NONE"
	RecurrenceDaily   Recurrence = "DAILY"
	RecurrenceWeekly  Recurrence = "WEEKLY"
	RecurrenceMonthly Recurrence = "MONTHLY"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	default:
		return false
	}
}

// Contact is the address where a mission takes place.
type Contact struct {
	ID         string      `json:"id"`
	Street     string      `json:"street"`
	City       string      `json:"city"`
	PostalCode string      `json:"postal_code"`
	Country    string      `json:"country"`
	Phone      null.String `json:"phone"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type Mission struct {
	ID                  string      `json:"id"`
	AssociationID       string      `json:"association_id"`
	AssociationMemberID string      `json:"association_member_id"`
	ContactID           null.String `json:"contact_id"`
	Contact             *Contact    `json:"contact,omitempty"`
	Title               string      `json:"title"`
	Description         null.String `json:"description"`
	StartAt             time.Time   `json:"start_at"`
	// EndAt is the start of the last occurrence of a recurring mission.
	EndAt           null.Time  `json:"end_at"`
	DurationMinutes null.Int   `json:"duration_minutes"`
	MaxParticipants null.Int   `json:"maximum_participant"`
	Recurrence      Recurrence `json:"recurrence_type"`
	Status          Status     `json:"status"`
	Tags            []string   `json:"tags"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// ActiveRegistrations is the number of non-cancelled registrations, loaded on every read.
	ActiveRegistrations int `json:"active_registrations"`
}

func (m Mission) Capacity() Capacity {
	return CalculateCapacity(m.MaxParticipants.Ptr(), m.ActiveRegistrations)
}

func (m Mission) IsRecurring() bool {
	return m.Recurrence != "" && m.Recurrence != RecurrenceNone
}

// Duration of a single occurrence. Missions without a duration last 0.
func (m Mission) Duration() time.Duration {
	if !m.DurationMinutes.Valid {
		return 0
	}
	return time.Duration(m.DurationMinutes.Int) * time.Minute
}

// EndsAt returns when the mission is over: the end of its only occurrence, or the end of the
// last occurrence of a recurring series. Open-ended series never end.
func (m Mission) EndsAt() (time.Time, bool) {
	if !m.IsRecurring() {
		return m.StartAt.Add(m.Duration()), true
	}
	if !m.EndAt.Valid {
		return time.Time{}, false
	}
	return m.EndAt.Time.Add(m.Duration()), true
}

// HasEnded reports whether the mission is over at `now`.
func (m Mission) HasEnded(now time.Time) bool {
	end, ok := m.EndsAt()
	return ok && end.Before(now)
}

// Occurrences lists the start times of the series between from and to (inclusive), at most limit.
// Dates are stepped in from's location so that occurrences keep their wall clock time across DST changes.
func (m Mission) Occurrences(from, to time.Time, limit int) []time.Time {
	var occs []time.Time
	start := m.StartAt.In(from.Location())

	if !m.IsRecurring() {
		if !start.Before(from) && !start.After(to) && limit > 0 {
			occs = append(occs, start)
		}
		return occs
	}

	for i := 0; len(occs) < limit; i++ {
		var occ time.Time
		switch m.Recurrence {
		case RecurrenceDaily:
			occ = start.AddDate(0, 0, i)
		case RecurrenceWeekly:
			occ = start.AddDate(0, 0, 7*i)
		case RecurrenceMonthly:
			occ = addMonths(start, i)
		default:
			return occs
		}
		if occ.After(to) || (m.EndAt.Valid && occ.After(m.EndAt.Time)) {
			break
		}
		if !occ.Before(from) {
			occs = append(occs, occ)
		}
	}
	return occs
}

// addMonths keeps the day of month, clamped to the last day of shorter months.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(t.Day(), lastDay), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// QueryFilter selects missions. Zero values are ignored.
type QueryFilter struct {
	AssociationID string
	Statuses      []Status
	Search        string // title or description
	Tag           string
	From          time.Time // missions still happening at or after From
	To            time.Time // missions starting at or before To
	// ExcludeRegisteredBy drops the missions the school member has an active registration to.
	ExcludeRegisteredBy string
	// Ordering defaults to the start time, ascending. Fields must be one of OrderingFields.
	Ordering []core.DBOrdering
	Limit    int
	Offset   int
}

// OrderingFields lists the fields missions can be ordered by.
var OrderingFields = map[string]bool{
	"start_at":   true,
	"created_at": true,
	"title":      true,
}

// TransitionError is returned when a status change is not allowed.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return "cannot change mission status from " + string(e.From) + " to " + string(e.To)
}
