package registration

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/fourmis/core/mission"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// IsActive is true when the registration counts toward the mission capacity.
func (s Status) IsActive() bool { return s != StatusCancelled }

// IsWithdrawable is true when the student may still unregister.
func (s Status) IsWithdrawable() bool { return s == StatusPending || s == StatusConfirmed }

type Registration struct {
	ID             string    `json:"id"`
	MissionID      string    `json:"mission_id"`
	SchoolMemberID string    `json:"school_member_id"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ConfirmedAt    null.Time `json:"confirmed_at"`
	CompletedAt    null.Time `json:"completed_at"`
}

type (
	MissionSummary struct {
		ID              string             `json:"id"`
		AssociationID   string             `json:"association_id"`
		Title           string             `json:"title"`
		StartAt         time.Time          `json:"start_at"`
		EndAt           null.Time          `json:"end_at"`
		DurationMinutes null.Int           `json:"duration_minutes"`
		Recurrence      mission.Recurrence `json:"recurrence_type"`
		Status          mission.Status     `json:"status"`
	}

	StudentSummary struct {
		ID        string `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}

	// Details is a registration along with its mission and student.
	Details struct {
		Registration
		Mission MissionSummary `json:"mission"`
		Student StudentSummary `json:"student"`
	}
)

// schedule returns a mission carrying only the schedule fields of the summary.
func (ms MissionSummary) schedule() mission.Mission {
	return mission.Mission{
		StartAt:         ms.StartAt,
		EndAt:           ms.EndAt,
		DurationMinutes: ms.DurationMinutes,
		Recurrence:      ms.Recurrence,
	}
}

// HasEnded reports whether the mission of the registration is over at `now`.
func (d Details) HasEnded(now time.Time) bool {
	return d.Mission.schedule().HasEnded(now)
}

// QueryFilter selects registrations. Zero values are ignored.
type QueryFilter struct {
	ID             string
	MissionID      string
	SchoolMemberID string
	Statuses       []Status
}

type NewRegistration struct {
	MissionID      string `json:"mission_id" validate:"required"`
	SchoolMemberID string `json:"school_member_id" validate:"required"`
}

type Unregister struct {
	Confirmation string `json:"confirmation"`
}
