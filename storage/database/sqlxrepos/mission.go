package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/mission"
)

const missionSelect = `SELECT
	m.id, m.association_id, m.association_member_id, m.contact_id, m.title, m.description,
	m.start_at, m.end_at, m.duration_minutes, m.maximum_participant, m.recurrence_type, m.status,
	m.created_at, m.updated_at,
	(SELECT COUNT(*) FROM mission_registrations r
		WHERE r.mission_id = m.id AND r.status <> 'CANCELLED') AS active_registrations,
	c.street AS contact_street, c.city AS contact_city, c.postal_code AS contact_postal_code,
	c.country AS contact_country, c.phone AS contact_phone,
	c.created_at AS contact_created_at, c.updated_at AS contact_updated_at
FROM missions m
LEFT JOIN contacts c ON c.id = m.contact_id`

type missionRow struct {
	ID                  string      `db:"id"`
	AssociationID       string      `db:"association_id"`
	AssociationMemberID string      `db:"association_member_id"`
	ContactID           null.String `db:"contact_id"`
	Title               string      `db:"title"`
	Description         null.String `db:"description"`
	StartAt             time.Time   `db:"start_at"`
	EndAt               null.Time   `db:"end_at"`
	DurationMinutes     null.Int    `db:"duration_minutes"`
	MaxParticipants     null.Int    `db:"maximum_participant"`
	Recurrence          string      `db:"recurrence_type"`
	Status              string      `db:"status"`
	CreatedAt           time.Time   `db:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at"`
	ActiveRegistrations int         `db:"active_registrations"`

	ContactStreet     null.String `db:"contact_street"`
	ContactCity       null.String `db:"contact_city"`
	ContactPostalCode null.String `db:"contact_postal_code"`
	ContactCountry    null.String `db:"contact_country"`
	ContactPhone      null.String `db:"contact_phone"`
	ContactCreatedAt  null.Time   `db:"contact_created_at"`
	ContactUpdatedAt  null.Time   `db:"contact_updated_at"`
}

func (r missionRow) toMission() mission.Mission {
	m := mission.Mission{
		ID:                  r.ID,
		AssociationID:       r.AssociationID,
		AssociationMemberID: r.AssociationMemberID,
		ContactID:           r.ContactID,
		Title:               r.Title,
		Description:         r.Description,
		StartAt:             utc(r.StartAt),
		EndAt:               r.EndAt,
		DurationMinutes:     r.DurationMinutes,
		MaxParticipants:     r.MaxParticipants,
		Recurrence:          mission.Recurrence(r.Recurrence),
		Status:              mission.Status(r.Status),
		Tags:                make([]string, 0),
		CreatedAt:           utc(r.CreatedAt),
		UpdatedAt:           utc(r.UpdatedAt),
		ActiveRegistrations: r.ActiveRegistrations,
	}
	if m.EndAt.Valid {
		m.EndAt.Time = utc(m.EndAt.Time)
	}
	if r.ContactID.Valid && r.ContactStreet.Valid {
		m.Contact = &mission.Contact{
			ID:         r.ContactID.String,
			Street:     r.ContactStreet.String,
			City:       r.ContactCity.String,
			PostalCode: r.ContactPostalCode.String,
			Country:    r.ContactCountry.String,
			Phone:      r.ContactPhone,
			CreatedAt:  utc(r.ContactCreatedAt.Time),
			UpdatedAt:  utc(r.ContactUpdatedAt.Time),
		}
	}
	return m
}

type missionRepository struct {
	baseRepository
}

var _ mission.Repository = (*missionRepository)(nil)

func NewMissionRepository(db core.DB) mission.Repository {
	return &missionRepository{baseRepository{db: db}}
}

func (repo *missionRepository) CreateContact(ctx context.Context, c mission.Contact, exec ...core.DBExecutor) (mission.Contact, error) {
	c.ID = uuid.NewString()
	_, err := execute(ctx, repo.executor(exec),
		`INSERT INTO contacts (id, street, city, postal_code, country, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Street, c.City, c.PostalCode, c.Country, c.Phone, c.CreatedAt, c.UpdatedAt,
	)
	return c, errors.Wrap(err, "inserting contact")
}

func (repo *missionRepository) UpdateContact(ctx context.Context, c mission.Contact, exec ...core.DBExecutor) (mission.Contact, error) {
	_, err := execute(ctx, repo.executor(exec),
		"UPDATE contacts SET street = ?, city = ?, postal_code = ?, country = ?, phone = ?, updated_at = ? WHERE id = ?",
		c.Street, c.City, c.PostalCode, c.Country, c.Phone, c.UpdatedAt, c.ID,
	)
	return c, errors.Wrap(err, "updating contact")
}

func (repo *missionRepository) CreateMission(ctx context.Context, m mission.Mission, exec ...core.DBExecutor) (mission.Mission, error) {
	m.ID = uuid.NewString()
	_, err := execute(ctx, repo.executor(exec),
		`INSERT INTO missions (
			id, association_id, association_member_id, contact_id, title, description, start_at, end_at,
			duration_minutes, maximum_participant, recurrence_type, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.AssociationID, m.AssociationMemberID, m.ContactID, m.Title, m.Description, m.StartAt, m.EndAt,
		m.DurationMinutes, m.MaxParticipants, string(m.Recurrence), string(m.Status), m.CreatedAt, m.UpdatedAt,
	)
	return m, errors.Wrap(err, "inserting mission")
}

func (repo *missionRepository) UpdateMission(ctx context.Context, m mission.Mission, exec ...core.DBExecutor) (mission.Mission, error) {
	n, err := execAffected(ctx, repo.executor(exec),
		`UPDATE missions SET
			association_member_id = ?, contact_id = ?, title = ?, description = ?, start_at = ?, end_at = ?,
			duration_minutes = ?, maximum_participant = ?, recurrence_type = ?, updated_at = ?
		WHERE id = ?`,
		m.AssociationMemberID, m.ContactID, m.Title, m.Description, m.StartAt, m.EndAt,
		m.DurationMinutes, m.MaxParticipants, string(m.Recurrence), m.UpdatedAt,
		m.ID,
	)
	if err != nil {
		return mission.Mission{}, errors.Wrap(err, "updating mission")
	}
	if n == 0 {
		return mission.Mission{}, mission.ErrNotFound
	}
	return m, nil
}

func (repo *missionRepository) SetMissionTags(ctx context.Context, missionID string, tags []string, exec ...core.DBExecutor) error {
	ex := repo.executor(exec)
	if _, err := execute(ctx, ex, "DELETE FROM mission_tags WHERE mission_id = ?", missionID); err != nil {
		return errors.Wrap(err, "deleting tags")
	}
	for _, tag := range tags {
		if _, err := execute(ctx, ex, "INSERT INTO mission_tags (mission_id, tag) VALUES (?, ?)", missionID, tag); err != nil {
			return errors.Wrap(err, "inserting tag")
		}
	}
	return nil
}

func (repo *missionRepository) SetMissionStatus(ctx context.Context, id string, status mission.Status, updatedAt time.Time, exec ...core.DBExecutor) error {
	n, err := execAffected(ctx, repo.executor(exec),
		"UPDATE missions SET status = ?, updated_at = ? WHERE id = ?", string(status), updatedAt, id)
	if err != nil {
		return errors.Wrap(err, "updating mission status")
	}
	if n == 0 {
		return mission.ErrNotFound
	}
	return nil
}

// LockMission is a no-op write on the mission row: an exclusive row lock on PostgreSQL,
// the database write lock on SQLite. Both are held until the transaction ends.
func (repo *missionRepository) LockMission(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := execAffected(ctx, repo.executor(exec), "UPDATE missions SET updated_at = updated_at WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "locking mission")
	}
	if n == 0 {
		return mission.ErrNotFound
	}
	return nil
}

func (repo *missionRepository) GetMission(ctx context.Context, id string, exec ...core.DBExecutor) (mission.Mission, error) {
	ex := repo.executor(exec)
	var row missionRow
	if err := get(ctx, ex, &row, missionSelect+" WHERE m.id = ?", id); err != nil {
		if isNoRows(err) {
			return mission.Mission{}, mission.ErrNotFound
		}
		return mission.Mission{}, errors.Wrap(err, "selecting mission")
	}

	missions := []mission.Mission{row.toMission()}
	if err := repo.loadTags(ctx, ex, missions); err != nil {
		return mission.Mission{}, err
	}
	return missions[0], nil
}

func (repo *missionRepository) QueryMissions(ctx context.Context, filter mission.QueryFilter, exec ...core.DBExecutor) ([]mission.Mission, error) {
	ex := repo.executor(exec)

	var where whereClause
	if filter.AssociationID != "" {
		where.add("m.association_id = ?", filter.AssociationID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		where.add("m.status IN (?)", statuses)
	}
	if search := core.CleanString(filter.Search, true /* lower */); search != "" {
		pattern := "%" + search + "%"
		where.add("(LOWER(m.title) LIKE ? OR LOWER(COALESCE(m.description, '')) LIKE ?)", pattern, pattern)
	}
	if tag := core.CleanString(filter.Tag, true /* lower */); tag != "" {
		where.add("EXISTS (SELECT 1 FROM mission_tags t WHERE t.mission_id = m.id AND t.tag = ?)", tag)
	}
	if !filter.From.IsZero() {
		where.add("(m.start_at >= ? OR (m.recurrence_type <> 'NONE' AND (m.end_at IS NULL OR m.end_at >= ?)))",
			filter.From, filter.From)
	}
	if !filter.To.IsZero() {
		where.add("m.start_at <= ?", filter.To)
	}
	if filter.ExcludeRegisteredBy != "" {
		where.add(`NOT EXISTS (SELECT 1 FROM mission_registrations r
			WHERE r.mission_id = m.id AND r.school_member_id = ? AND r.status <> 'CANCELLED')`, filter.ExcludeRegisteredBy)
	}

	q := missionSelect + where.String() + " ORDER BY " + missionOrderBy(filter.Ordering)
	args := where.args
	if filter.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	q, args, err := in(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []missionRow
	if err = selectAll(ctx, ex, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting missions")
	}

	missions := make([]mission.Mission, 0, len(rows))
	for _, r := range rows {
		missions = append(missions, r.toMission())
	}
	if err = repo.loadTags(ctx, ex, missions); err != nil {
		return nil, err
	}
	return missions, nil
}

func (repo *missionRepository) loadTags(ctx context.Context, ex core.DBExecutor, missions []mission.Mission) error {
	if len(missions) == 0 {
		return nil
	}
	ids := make([]string, 0, len(missions))
	idx := make(map[string]int, len(missions))
	for i, m := range missions {
		ids = append(ids, m.ID)
		idx[m.ID] = i
	}

	q, args, err := in("SELECT mission_id, tag FROM mission_tags WHERE mission_id IN (?) ORDER BY tag", ids)
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	var rows []struct {
		MissionID string `db:"mission_id"`
		Tag       string `db:"tag"`
	}
	if err = selectAll(ctx, ex, &rows, q, args...); err != nil {
		return errors.Wrap(err, "selecting tags")
	}
	for _, r := range rows {
		i := idx[r.MissionID]
		missions[i].Tags = append(missions[i].Tags, strings.TrimSpace(r.Tag))
	}
	return nil
}

func missionOrderBy(ordering []core.DBOrdering) string {
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if mission.OrderingFields[ord.Field] {
			orderList = append(orderList, core.DBOrdering{Field: "m." + ord.Field, Ascending: ord.Ascending}.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, "m.start_at ASC")
	}
	return strings.Join(append(orderList, "m.id ASC"), ", ")
}
