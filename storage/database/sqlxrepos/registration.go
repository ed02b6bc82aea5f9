package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/mission"
	"github.com/trezcool/fourmis/core/registration"
)

const (
	registrationColumns = "id, mission_id, school_member_id, status, created_at, updated_at, confirmed_at, completed_at"

	detailsSelect = `SELECT
	r.id, r.mission_id, r.school_member_id, r.status, r.created_at, r.updated_at, r.confirmed_at, r.completed_at,
	m.association_id AS mission_association_id, m.title AS mission_title, m.start_at AS mission_start_at,
	m.end_at AS mission_end_at, m.duration_minutes AS mission_duration_minutes,
	m.recurrence_type AS mission_recurrence_type, m.status AS mission_status,
	s.first_name AS student_first_name, s.last_name AS student_last_name, s.email AS student_email
FROM mission_registrations r
JOIN missions m ON m.id = r.mission_id
JOIN school_members s ON s.id = r.school_member_id`
)

type (
	registrationRow struct {
		ID             string    `db:"id"`
		MissionID      string    `db:"mission_id"`
		SchoolMemberID string    `db:"school_member_id"`
		Status         string    `db:"status"`
		CreatedAt      time.Time `db:"created_at"`
		UpdatedAt      time.Time `db:"updated_at"`
		ConfirmedAt    null.Time `db:"confirmed_at"`
		CompletedAt    null.Time `db:"completed_at"`
	}

	detailsRow struct {
		registrationRow
		MissionAssociationID   string    `db:"mission_association_id"`
		MissionTitle           string    `db:"mission_title"`
		MissionStartAt         time.Time `db:"mission_start_at"`
		MissionEndAt           null.Time `db:"mission_end_at"`
		MissionDurationMinutes null.Int  `db:"mission_duration_minutes"`
		MissionRecurrence      string    `db:"mission_recurrence_type"`
		MissionStatus          string    `db:"mission_status"`
		StudentFirstName       string    `db:"student_first_name"`
		StudentLastName        string    `db:"student_last_name"`
		StudentEmail           string    `db:"student_email"`
	}
)

func utcNull(t null.Time) null.Time {
	if t.Valid {
		t.Time = utc(t.Time)
	}
	return t
}

func (r registrationRow) toRegistration() registration.Registration {
	return registration.Registration{
		ID:             r.ID,
		MissionID:      r.MissionID,
		SchoolMemberID: r.SchoolMemberID,
		Status:         registration.Status(r.Status),
		CreatedAt:      utc(r.CreatedAt),
		UpdatedAt:      utc(r.UpdatedAt),
		ConfirmedAt:    utcNull(r.ConfirmedAt),
		CompletedAt:    utcNull(r.CompletedAt),
	}
}

func (r detailsRow) toDetails() registration.Details {
	return registration.Details{
		Registration: r.toRegistration(),
		Mission: registration.MissionSummary{
			ID:              r.MissionID,
			AssociationID:   r.MissionAssociationID,
			Title:           r.MissionTitle,
			StartAt:         utc(r.MissionStartAt),
			EndAt:           utcNull(r.MissionEndAt),
			DurationMinutes: r.MissionDurationMinutes,
			Recurrence:      mission.Recurrence(r.MissionRecurrence),
			Status:          mission.Status(r.MissionStatus),
		},
		Student: registration.StudentSummary{
			ID:        r.SchoolMemberID,
			FirstName: r.StudentFirstName,
			LastName:  r.StudentLastName,
			Email:     r.StudentEmail,
		},
	}
}

type registrationRepository struct {
	baseRepository
}

var _ registration.Repository = (*registrationRepository)(nil)

func NewRegistrationRepository(db core.DB) registration.Repository {
	return &registrationRepository{baseRepository{db: db}}
}

func (repo *registrationRepository) CreateRegistration(ctx context.Context, reg registration.Registration, exec ...core.DBExecutor) (registration.Registration, error) {
	reg.ID = uuid.NewString()
	_, err := execute(ctx, repo.executor(exec),
		"INSERT INTO mission_registrations ("+registrationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		reg.ID, reg.MissionID, reg.SchoolMemberID, string(reg.Status), reg.CreatedAt, reg.UpdatedAt,
		reg.ConfirmedAt, reg.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return registration.Registration{}, registration.ErrDuplicate
		}
		return registration.Registration{}, errors.Wrap(err, "inserting registration")
	}
	return reg, nil
}

func (repo *registrationRepository) getOne(ctx context.Context, ex core.DBExecutor, q string, args ...interface{}) (registration.Registration, error) {
	var row registrationRow
	if err := get(ctx, ex, &row, q, args...); err != nil {
		if isNoRows(err) {
			return registration.Registration{}, registration.ErrNotFound
		}
		return registration.Registration{}, errors.Wrap(err, "selecting registration")
	}
	return row.toRegistration(), nil
}

func (repo *registrationRepository) GetRegistration(ctx context.Context, id string, exec ...core.DBExecutor) (registration.Registration, error) {
	return repo.getOne(ctx, repo.executor(exec),
		"SELECT "+registrationColumns+" FROM mission_registrations WHERE id = ?", id)
}

func (repo *registrationRepository) GetActiveRegistration(ctx context.Context, missionID, schoolMemberID string, exec ...core.DBExecutor) (registration.Registration, error) {
	return repo.getOne(ctx, repo.executor(exec),
		"SELECT "+registrationColumns+` FROM mission_registrations
		WHERE mission_id = ? AND school_member_id = ? AND status <> 'CANCELLED'`,
		missionID, schoolMemberID)
}

func (repo *registrationRepository) UpdateRegistration(ctx context.Context, reg registration.Registration, exec ...core.DBExecutor) (registration.Registration, error) {
	n, err := execAffected(ctx, repo.executor(exec),
		`UPDATE mission_registrations SET status = ?, updated_at = ?, confirmed_at = ?, completed_at = ?
		WHERE id = ?`,
		string(reg.Status), reg.UpdatedAt, reg.ConfirmedAt, reg.CompletedAt, reg.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return registration.Registration{}, registration.ErrDuplicate
		}
		return registration.Registration{}, errors.Wrap(err, "updating registration")
	}
	if n == 0 {
		return registration.Registration{}, registration.ErrNotFound
	}
	return reg, nil
}

func (repo *registrationRepository) DeleteRegistration(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := execAffected(ctx, repo.executor(exec), "DELETE FROM mission_registrations WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting registration")
	}
	if n == 0 {
		return registration.ErrNotFound
	}
	return nil
}

func (repo *registrationRepository) CompleteRegistrations(ctx context.Context, ids []string, completedAt time.Time, exec ...core.DBExecutor) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := in(`UPDATE mission_registrations SET status = 'COMPLETED', completed_at = ?, updated_at = ?
		WHERE status = 'CONFIRMED' AND id IN (?) RETURNING id`, completedAt, completedAt, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var completed []string
	err = selectAll(ctx, repo.executor(exec), &completed, q, args...)
	return completed, errors.Wrap(err, "completing registrations")
}

func (repo *registrationRepository) CancelMissionRegistrations(ctx context.Context, missionID string, cancelledAt time.Time, exec ...core.DBExecutor) (int, error) {
	n, err := execAffected(ctx, repo.executor(exec),
		`UPDATE mission_registrations SET status = 'CANCELLED', updated_at = ?
		WHERE mission_id = ? AND status IN ('PENDING', 'CONFIRMED')`,
		cancelledAt, missionID)
	return n, errors.Wrap(err, "cancelling registrations")
}

func (repo *registrationRepository) QueryDetails(ctx context.Context, filter registration.QueryFilter, exec ...core.DBExecutor) ([]registration.Details, error) {
	var where whereClause
	if filter.ID != "" {
		where.add("r.id = ?", filter.ID)
	}
	if filter.MissionID != "" {
		where.add("r.mission_id = ?", filter.MissionID)
	}
	if filter.SchoolMemberID != "" {
		where.add("r.school_member_id = ?", filter.SchoolMemberID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		where.add("r.status IN (?)", statuses)
	}

	q, args, err := in(detailsSelect+where.String()+" ORDER BY m.start_at ASC, r.created_at ASC", where.args...)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []detailsRow
	if err = selectAll(ctx, repo.executor(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting registrations")
	}

	details := make([]registration.Details, 0, len(rows))
	for _, r := range rows {
		details = append(details, r.toDetails())
	}
	return details, nil
}
