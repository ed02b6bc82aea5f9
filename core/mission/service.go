package mission

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/member"
)

const (
	EventCreated       = "mission.created"
	EventUpdated       = "mission.updated"
	EventStatusChanged = "mission.status_changed"

	defaultRecommendLimit = 10
)

var (
	// errors
	ErrNotFound    = errors.New("mission not found")
	ErrNotEditable = errors.New("a cancelled mission cannot be edited")
)

type (
	Repository interface {
		CreateContact(ctx context.Context, c Contact, exec ...core.DBExecutor) (Contact, error)
		UpdateContact(ctx context.Context, c Contact, exec ...core.DBExecutor) (Contact, error)

		CreateMission(ctx context.Context, m Mission, exec ...core.DBExecutor) (Mission, error)
		UpdateMission(ctx context.Context, m Mission, exec ...core.DBExecutor) (Mission, error)
		SetMissionTags(ctx context.Context, missionID string, tags []string, exec ...core.DBExecutor) error
		SetMissionStatus(ctx context.Context, id string, status Status, updatedAt time.Time, exec ...core.DBExecutor) error
		// GetMission loads the mission with its contact, tags and active registrations count.
		GetMission(ctx context.Context, id string, exec ...core.DBExecutor) (Mission, error)
		// LockMission takes a write lock on the mission row until the end of the transaction.
		LockMission(ctx context.Context, id string, exec ...core.DBExecutor) error
		QueryMissions(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Mission, error)
	}

	// RegistrationCanceller cancels the active registrations of a cancelled mission.
	RegistrationCanceller interface {
		CancelForMission(ctx context.Context, missionID string, exec ...core.DBExecutor) (int, error)
	}

	memberChecker interface {
		CheckResponsibleMember(ctx context.Context, associationID, memberID string, exec ...core.DBExecutor) (member.AssociationMember, error)
		GetSchoolMember(ctx context.Context, id string) (member.SchoolMember, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, associationID string, form Form) (Mission, error)
		Update(ctx context.Context, id string, form Form) (Mission, error)
		Get(ctx context.Context, id string) (Mission, error)
		Query(ctx context.Context, filter QueryFilter) ([]Mission, error)
		SetStatus(ctx context.Context, id string, status Status) (Mission, error)
		Recommend(ctx context.Context, schoolMemberID string, limit int) ([]Mission, error)
		Location() *time.Location
	}

	Service struct {
		db      core.DB
		repo    Repository
		members memberChecker
		regs    RegistrationCanceller
		events  core.EventPublisher
		logger  core.Logger
		loc     *time.Location
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	db core.DB,
	repo Repository,
	members memberChecker,
	regs RegistrationCanceller,
	events core.EventPublisher,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		members: members,
		regs:    regs,
		events:  events,
		logger:  logger,
		loc:     conf.Missions.Location(),
	}
}

// Location is the time zone in which mission dates are entered and displayed.
func (svc *Service) Location() *time.Location { return svc.loc }

func (svc *Service) checkResponsible(ctx context.Context, associationID, memberID string, tx core.DBExecutor) error {
	if _, err := svc.members.CheckResponsibleMember(ctx, associationID, memberID, tx); err != nil {
		switch errors.Cause(err) {
		case member.ErrNotAssociationMember, member.ErrInactiveMember:
			return core.NewValidationError(err, core.FieldError{Field: "responsible_member_id", Error: err.Error()})
		default:
			return err
		}
	}
	return nil
}

// Create persists the contact, the mission and its tags atomically.
func (svc *Service) Create(ctx context.Context, associationID string, form Form) (Mission, error) {
	startAt, endAt, err := form.Schedule(svc.loc)
	if err != nil {
		return Mission{}, core.NewValidationError(err, core.FieldError{Field: "start_date", Error: err.Error()})
	}

	status := StatusDraft
	if form.Publish {
		status = StatusPublished
	}

	var id string
	err = core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkResponsible(ctx, associationID, form.ResponsibleMemberID, tx); err != nil {
			return err
		}

		now := core.NowFunc()
		contact := form.contact()
		contact.CreatedAt, contact.UpdatedAt = now, now
		contact, err := svc.repo.CreateContact(ctx, contact, tx)
		if err != nil {
			return errors.Wrap(err, "creating contact")
		}

		m, err := svc.repo.CreateMission(ctx, Mission{
			AssociationID:       associationID,
			AssociationMemberID: form.ResponsibleMemberID,
			ContactID:           null.StringFrom(contact.ID),
			Title:               form.Title,
			Description:         null.NewString(form.Description, form.Description != ""),
			StartAt:             startAt,
			EndAt:               endAt,
			DurationMinutes:     null.IntFrom(form.Duration),
			MaxParticipants:     null.IntFromPtr(form.MaxParticipants),
			Recurrence:          form.Recurrence,
			Status:              status,
			CreatedAt:           now,
			UpdatedAt:           now,
		}, tx)
		if err != nil {
			return errors.Wrap(err, "creating mission")
		}
		id = m.ID

		return errors.Wrap(svc.repo.SetMissionTags(ctx, m.ID, form.Tags, tx), "setting tags")
	})
	if err != nil {
		return Mission{}, err
	}

	m, err := svc.repo.GetMission(ctx, id)
	if err != nil {
		return Mission{}, err
	}
	svc.publish(ctx, EventCreated, m)
	return m, nil
}

// Update replaces every field of the mission, creating its contact if it has none.
// The status is left untouched.
func (svc *Service) Update(ctx context.Context, id string, form Form) (Mission, error) {
	startAt, endAt, err := form.Schedule(svc.loc)
	if err != nil {
		return Mission{}, core.NewValidationError(err, core.FieldError{Field: "start_date", Error: err.Error()})
	}

	err = core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.LockMission(ctx, id, tx); err != nil {
			return err
		}
		m, err := svc.repo.GetMission(ctx, id, tx)
		if err != nil {
			return err
		}
		if m.Status == StatusCancelled {
			return ErrNotEditable
		}
		if err = svc.checkResponsible(ctx, m.AssociationID, form.ResponsibleMemberID, tx); err != nil {
			return err
		}

		now := core.NowFunc()
		contact := form.contact()
		contact.UpdatedAt = now
		if m.ContactID.Valid {
			contact.ID = m.ContactID.String
			_, err = svc.repo.UpdateContact(ctx, contact, tx)
		} else {
			contact.CreatedAt = now
			contact, err = svc.repo.CreateContact(ctx, contact, tx)
		}
		if err != nil {
			return errors.Wrap(err, "saving contact")
		}

		m.AssociationMemberID = form.ResponsibleMemberID
		m.ContactID = null.StringFrom(contact.ID)
		m.Title = form.Title
		m.Description = null.NewString(form.Description, form.Description != "")
		m.StartAt = startAt
		m.EndAt = endAt
		m.DurationMinutes = null.IntFrom(form.Duration)
		m.MaxParticipants = null.IntFromPtr(form.MaxParticipants)
		m.Recurrence = form.Recurrence
		m.UpdatedAt = now
		if _, err = svc.repo.UpdateMission(ctx, m, tx); err != nil {
			return errors.Wrap(err, "updating mission")
		}
		return errors.Wrap(svc.repo.SetMissionTags(ctx, m.ID, form.Tags, tx), "setting tags")
	})
	if err != nil {
		return Mission{}, err
	}

	m, err := svc.repo.GetMission(ctx, id)
	if err != nil {
		return Mission{}, err
	}
	svc.publish(ctx, EventUpdated, m)
	return m, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Mission, error) {
	return svc.repo.GetMission(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Mission, error) {
	return svc.repo.QueryMissions(ctx, filter)
}

// SetStatus moves the mission through its lifecycle.
// Cancelling a mission cancels its pending and confirmed registrations in the same transaction.
func (svc *Service) SetStatus(ctx context.Context, id string, status Status) (Mission, error) {
	var cancelled int
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.LockMission(ctx, id, tx); err != nil {
			return err
		}
		m, err := svc.repo.GetMission(ctx, id, tx)
		if err != nil {
			return err
		}
		if !m.Status.CanTransitionTo(status) {
			return &TransitionError{From: m.Status, To: status}
		}
		if err = svc.repo.SetMissionStatus(ctx, id, status, core.NowFunc(), tx); err != nil {
			return errors.Wrap(err, "setting mission status")
		}
		if status == StatusCancelled {
			cancelled, err = svc.regs.CancelForMission(ctx, id, tx)
			return errors.Wrap(err, "cancelling registrations")
		}
		return nil
	})
	if err != nil {
		return Mission{}, err
	}

	m, err := svc.repo.GetMission(ctx, id)
	if err != nil {
		return Mission{}, err
	}
	if cancelled > 0 {
		svc.logger.Info(fmt.Sprintf("mission %s cancelled: %d registrations cancelled", id, cancelled))
	}
	svc.publish(ctx, EventStatusChanged, m)
	return m, nil
}

// Recommend lists the upcoming published missions the student can still register to,
// the ones whose tags or title match the student's interests first.
func (svc *Service) Recommend(ctx context.Context, schoolMemberID string, limit int) ([]Mission, error) {
	sm, err := svc.members.GetSchoolMember(ctx, schoolMemberID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRecommendLimit
	}

	candidates, err := svc.repo.QueryMissions(ctx, QueryFilter{
		Statuses:            []Status{StatusPublished},
		From:                core.NowFunc(),
		ExcludeRegisteredBy: sm.ID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying missions")
	}

	type scored struct {
		m     Mission
		score int
	}
	available := make([]scored, 0, len(candidates))
	for _, m := range candidates {
		if m.Capacity().IsFull {
			continue
		}
		available = append(available, scored{m: m, score: matchScore(m, sm.Interests)})
	}
	sort.SliceStable(available, func(i, j int) bool {
		if available[i].score != available[j].score {
			return available[i].score > available[j].score
		}
		return available[i].m.StartAt.Before(available[j].m.StartAt)
	})

	if len(available) > limit {
		available = available[:limit]
	}
	recommended := make([]Mission, 0, len(available))
	for _, s := range available {
		recommended = append(recommended, s.m)
	}
	return recommended, nil
}

// matchScore counts the interests found in the mission tags (2 points) or title (1 point).
func matchScore(m Mission, interests []string) int {
	var score int
	title := strings.ToLower(m.Title)
	for _, interest := range interests {
		matched := false
		for _, tag := range m.Tags {
			if tag == interest {
				score += 2
				matched = true
				break
			}
		}
		if !matched && strings.Contains(title, interest) {
			score++
		}
	}
	return score
}

func (svc *Service) publish(ctx context.Context, name string, m Mission) {
	if err := svc.events.Publish(ctx, core.NewEvent(name, m)); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s: %v", name, err), err)
	}
}
