package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
)

type (
	// Repository computes the aggregates with grouped queries, at request time.
	Repository interface {
		CountRegistrations(ctx context.Context, scope Scope) (RegistrationCounts, error)
		// ValidatedMinutes sums the duration of the missions of the COMPLETED registrations.
		ValidatedMinutes(ctx context.Context, scope Scope) (int, error)
		CountMissions(ctx context.Context, associationID string, now time.Time) (MissionCounts, error)
		// CountActiveStudents counts the distinct students with a registration created in the window.
		CountActiveStudents(ctx context.Context, scope Scope, w Window) (int, error)
		// CountActiveMembers counts the distinct responsible members of the missions starting in the window.
		CountActiveMembers(ctx context.Context, associationID string, w Window) (int, error)
		CountStudents(ctx context.Context, schoolID string) (int, error)
	}

	ServiceInterface interface {
		AssociationStats(ctx context.Context, associationID string, w Window) (AssociationStats, error)
		SchoolStats(ctx context.Context, schoolID string, w Window) (SchoolStats, error)
		StudentStats(ctx context.Context, schoolMemberID string) (StudentStats, error)
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func withDefault(w Window) Window {
	if w.From.IsZero() && w.To.IsZero() {
		return LastDays(core.NowFunc(), DefaultWindow)
	}
	if w.To.IsZero() {
		w.To = core.NowFunc()
	}
	return w
}

func (svc *Service) registrations(ctx context.Context, scope Scope) (RegistrationCounts, int, error) {
	counts, err := svc.repo.CountRegistrations(ctx, scope)
	if err != nil {
		return RegistrationCounts{}, 0, errors.Wrap(err, "counting registrations")
	}
	minutes, err := svc.repo.ValidatedMinutes(ctx, scope)
	if err != nil {
		return RegistrationCounts{}, 0, errors.Wrap(err, "summing validated minutes")
	}
	return counts, minutes, nil
}

func (svc *Service) AssociationStats(ctx context.Context, associationID string, w Window) (AssociationStats, error) {
	w = withDefault(w)
	scope := Scope{AssociationID: associationID}

	missions, err := svc.repo.CountMissions(ctx, associationID, core.NowFunc())
	if err != nil {
		return AssociationStats{}, errors.Wrap(err, "counting missions")
	}
	counts, minutes, err := svc.registrations(ctx, scope)
	if err != nil {
		return AssociationStats{}, err
	}
	activeStudents, err := svc.repo.CountActiveStudents(ctx, scope, w)
	if err != nil {
		return AssociationStats{}, errors.Wrap(err, "counting active students")
	}
	activeMembers, err := svc.repo.CountActiveMembers(ctx, associationID, w)
	if err != nil {
		return AssociationStats{}, errors.Wrap(err, "counting active members")
	}

	return AssociationStats{
		Window:           w,
		Missions:         missions,
		Registrations:    counts,
		CompletionRate:   CompletionRate(counts.Completed, counts.Total),
		ValidatedMinutes: minutes,
		ValidatedHours:   Hours(minutes),
		ActiveStudents:   activeStudents,
		ActiveMembers:    activeMembers,
	}, nil
}

func (svc *Service) SchoolStats(ctx context.Context, schoolID string, w Window) (SchoolStats, error) {
	w = withDefault(w)
	scope := Scope{SchoolID: schoolID}

	students, err := svc.repo.CountStudents(ctx, schoolID)
	if err != nil {
		return SchoolStats{}, errors.Wrap(err, "counting students")
	}
	counts, minutes, err := svc.registrations(ctx, scope)
	if err != nil {
		return SchoolStats{}, err
	}
	activeStudents, err := svc.repo.CountActiveStudents(ctx, scope, w)
	if err != nil {
		return SchoolStats{}, errors.Wrap(err, "counting active students")
	}

	return SchoolStats{
		Window:                w,
		TotalStudents:         students,
		ActiveStudents:        activeStudents,
		Registrations:         counts,
		CompletionRate:        CompletionRate(counts.Completed, counts.Total),
		ValidatedMinutes:      minutes,
		ValidatedHours:        Hours(minutes),
		AvgMissionsPerStudent: average(float64(counts.Completed), students),
		AvgHoursPerStudent:    average(float64(minutes)/60, students),
	}, nil
}

func (svc *Service) StudentStats(ctx context.Context, schoolMemberID string) (StudentStats, error) {
	counts, minutes, err := svc.registrations(ctx, Scope{SchoolMemberID: schoolMemberID})
	if err != nil {
		return StudentStats{}, err
	}
	return StudentStats{
		Registrations:     counts,
		CompletedMissions: counts.Completed,
		ValidatedMinutes:  minutes,
		ValidatedHours:    Hours(minutes),
		Points:            Points(counts.Completed, minutes),
		Badges:            Badges(counts.Completed, minutes),
	}, nil
}
