package dashboard

import (
	"math"
	"time"
)

const (
	DefaultWindow = 30 * 24 * time.Hour

	pointsPerMission = 10
	pointsPerHour    = 1
)

// Window is the period used for the "active" counts.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// LastDays returns the window ending at `now` and starting `d` before.
func LastDays(now time.Time, d time.Duration) Window {
	return Window{From: now.Add(-d), To: now}
}

// Scope restricts the registrations aggregated. Exactly one field is set.
type Scope struct {
	AssociationID  string
	SchoolID       string
	SchoolMemberID string
}

// RegistrationCounts counts registrations by status. Total excludes cancelled registrations.
type RegistrationCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

type MissionCounts struct {
	Total     int `json:"total"`
	Published int `json:"published"`
	// Active missions are published and not over yet.
	Active int `json:"active"`
}

type (
	AssociationStats struct {
		Window           Window             `json:"window"`
		Missions         MissionCounts      `json:"missions"`
		Registrations    RegistrationCounts `json:"registrations"`
		CompletionRate   int                `json:"completion_rate"`
		ValidatedMinutes int                `json:"validated_minutes"`
		ValidatedHours   float64            `json:"validated_hours"`
		ActiveStudents   int                `json:"active_students"`
		ActiveMembers    int                `json:"active_members"`
	}

	SchoolStats struct {
		Window                Window             `json:"window"`
		TotalStudents         int                `json:"total_students"`
		ActiveStudents        int                `json:"active_students"`
		Registrations         RegistrationCounts `json:"registrations"`
		CompletionRate        int                `json:"completion_rate"`
		ValidatedMinutes      int                `json:"validated_minutes"`
		ValidatedHours        float64            `json:"validated_hours"`
		AvgMissionsPerStudent float64            `json:"avg_missions_per_student"`
		AvgHoursPerStudent    float64            `json:"avg_hours_per_student"`
	}

	StudentStats struct {
		Registrations     RegistrationCounts `json:"registrations"`
		CompletedMissions int                `json:"completed_missions"`
		ValidatedMinutes  int                `json:"validated_minutes"`
		ValidatedHours    float64            `json:"validated_hours"`
		Points            int                `json:"points"`
		Badges            []Badge            `json:"badges"`
	}
)

// CompletionRate is the rounded percentage of completed registrations, 0 when there are none.
func CompletionRate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// Hours converts minutes to hours, rounded to one decimal.
func Hours(minutes int) float64 {
	return round1(float64(minutes) / 60)
}

// Points rewards each completed mission and each full validated hour.
func Points(completedMissions, validatedMinutes int) int {
	return completedMissions*pointsPerMission + (validatedMinutes/60)*pointsPerHour
}

func average(total float64, count int) float64 {
	if count <= 0 {
		return 0
	}
	return round1(total / float64(count))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
