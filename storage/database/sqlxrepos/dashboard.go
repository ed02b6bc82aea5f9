package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/dashboard"
	"github.com/trezcool/fourmis/core/registration"
)

const registrationsFrom = ` FROM mission_registrations r
JOIN missions m ON m.id = r.mission_id
JOIN school_members s ON s.id = r.school_member_id`

type dashboardRepository struct {
	baseRepository
}

var _ dashboard.Repository = (*dashboardRepository)(nil)

func NewDashboardRepository(db core.DB) dashboard.Repository {
	return &dashboardRepository{baseRepository{db: db}}
}

func scopeClause(scope dashboard.Scope) (whereClause, error) {
	var where whereClause
	switch {
	case scope.SchoolMemberID != "":
		where.add("r.school_member_id = ?", scope.SchoolMemberID)
	case scope.AssociationID != "":
		where.add("m.association_id = ?", scope.AssociationID)
	case scope.SchoolID != "":
		where.add("s.school_id = ?", scope.SchoolID)
	default:
		return where, errors.New("empty dashboard scope")
	}
	return where, nil
}

func (repo *dashboardRepository) CountRegistrations(ctx context.Context, scope dashboard.Scope) (dashboard.RegistrationCounts, error) {
	where, err := scopeClause(scope)
	if err != nil {
		return dashboard.RegistrationCounts{}, err
	}

	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	q := "SELECT r.status AS status, COUNT(*) AS count" + registrationsFrom + where.String() + " GROUP BY r.status"
	if err = selectAll(ctx, repo.db, &rows, q, where.args...); err != nil {
		return dashboard.RegistrationCounts{}, errors.Wrap(err, "counting registrations")
	}

	var counts dashboard.RegistrationCounts
	for _, r := range rows {
		switch registration.Status(r.Status) {
		case registration.StatusPending:
			counts.Pending = r.Count
		case registration.StatusConfirmed:
			counts.Confirmed = r.Count
		case registration.StatusCompleted:
			counts.Completed = r.Count
		case registration.StatusCancelled:
			counts.Cancelled = r.Count
		}
	}
	counts.Total = counts.Pending + counts.Confirmed + counts.Completed
	return counts, nil
}

func (repo *dashboardRepository) ValidatedMinutes(ctx context.Context, scope dashboard.Scope) (int, error) {
	where, err := scopeClause(scope)
	if err != nil {
		return 0, err
	}
	where.add("r.status = 'COMPLETED'")

	var minutes int
	q := "SELECT COALESCE(SUM(COALESCE(m.duration_minutes, 0)), 0)" + registrationsFrom + where.String()
	if err = get(ctx, repo.db, &minutes, q, where.args...); err != nil {
		return 0, errors.Wrap(err, "summing validated minutes")
	}
	return minutes, nil
}

func (repo *dashboardRepository) CountMissions(ctx context.Context, associationID string, now time.Time) (dashboard.MissionCounts, error) {
	var counts dashboard.MissionCounts
	err := get(ctx, repo.db, &counts,
		`SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'PUBLISHED' THEN 1 ELSE 0 END), 0) AS published,
			COALESCE(SUM(CASE WHEN status = 'PUBLISHED'
				AND (start_at >= ? OR (recurrence_type <> 'NONE' AND (end_at IS NULL OR end_at >= ?)))
				THEN 1 ELSE 0 END), 0) AS active
		FROM missions WHERE association_id = ?`,
		now, now, associationID,
	)
	return counts, errors.Wrap(err, "counting missions")
}

func (repo *dashboardRepository) CountActiveStudents(ctx context.Context, scope dashboard.Scope, w dashboard.Window) (int, error) {
	where, err := scopeClause(scope)
	if err != nil {
		return 0, err
	}
	where.add("r.status <> 'CANCELLED'")
	where.add("r.created_at >= ?", w.From)
	where.add("r.created_at <= ?", w.To)

	var count int
	q := "SELECT COUNT(DISTINCT r.school_member_id)" + registrationsFrom + where.String()
	if err = get(ctx, repo.db, &count, q, where.args...); err != nil {
		return 0, errors.Wrap(err, "counting active students")
	}
	return count, nil
}

func (repo *dashboardRepository) CountActiveMembers(ctx context.Context, associationID string, w dashboard.Window) (int, error) {
	var count int
	err := get(ctx, repo.db, &count,
		`SELECT COUNT(DISTINCT association_member_id) FROM missions
		WHERE association_id = ? AND status <> 'CANCELLED' AND start_at >= ? AND start_at <= ?`,
		associationID, w.From, w.To,
	)
	return count, errors.Wrap(err, "counting active members")
}

func (repo *dashboardRepository) CountStudents(ctx context.Context, schoolID string) (int, error) {
	var count int
	err := get(ctx, repo.db, &count,
		"SELECT COUNT(*) FROM school_members WHERE school_id = ? AND status = 'ACTIVE'", schoolID)
	return count, errors.Wrap(err, "counting students")
}
