package registration

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/member"
	"github.com/trezcool/fourmis/core/mission"
)

const (
	EventCreated   = "registration.created"
	EventConfirmed = "registration.confirmed"
	EventCompleted = "registration.completed"
	EventDeleted   = "registration.deleted"

	startsAtLayout = "Monday 2 January 2006 at 15:04"
)

type (
	Repository interface {
		CreateRegistration(ctx context.Context, reg Registration, exec ...core.DBExecutor) (Registration, error)
		GetRegistration(ctx context.Context, id string, exec ...core.DBExecutor) (Registration, error)
		// GetActiveRegistration returns the non-cancelled registration of the student to the mission.
		GetActiveRegistration(ctx context.Context, missionID, schoolMemberID string, exec ...core.DBExecutor) (Registration, error)
		UpdateRegistration(ctx context.Context, reg Registration, exec ...core.DBExecutor) (Registration, error)
		DeleteRegistration(ctx context.Context, id string, exec ...core.DBExecutor) error
		// CompleteRegistrations completes the given registrations that are still CONFIRMED and returns their ids.
		CompleteRegistrations(ctx context.Context, ids []string, completedAt time.Time, exec ...core.DBExecutor) ([]string, error)
		CancelMissionRegistrations(ctx context.Context, missionID string, cancelledAt time.Time, exec ...core.DBExecutor) (int, error)
		QueryDetails(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Details, error)
	}

	missionLocker interface {
		LockMission(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetMission(ctx context.Context, id string, exec ...core.DBExecutor) (mission.Mission, error)
	}

	studentGetter interface {
		GetSchoolMember(ctx context.Context, id string) (member.SchoolMember, error)
	}

	ServiceInterface interface {
		Register(ctx context.Context, missionID, schoolMemberID string) (Registration, error)
		Confirm(ctx context.Context, id string) (Registration, error)
		Unregister(ctx context.Context, id, confirmation string) error
		Complete(ctx context.Context, id string) (Registration, error)
		CompleteEnded(ctx context.Context, now time.Time) (int, error)
		CancelForMission(ctx context.Context, missionID string, exec ...core.DBExecutor) (int, error)
		Get(ctx context.Context, id string) (Details, error)
		ListForMission(ctx context.Context, missionID string) ([]Details, error)
		ListForStudent(ctx context.Context, schoolMemberID string) ([]Details, error)
	}

	Service struct {
		db               core.DB
		repo             Repository
		missions         missionLocker
		students         studentGetter
		mailSvc          core.EmailService
		events           core.EventPublisher
		logger           core.Logger
		unregisterPhrase string
		loc              *time.Location
	}
)

var (
	_ ServiceInterface              = (*Service)(nil)
	_ mission.RegistrationCanceller = (*Service)(nil)
)

func NewService(
	db core.DB,
	repo Repository,
	missions missionLocker,
	students studentGetter,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		db:               db,
		repo:             repo,
		missions:         missions,
		students:         students,
		mailSvc:          mailSvc,
		events:           events,
		logger:           logger,
		unregisterPhrase: conf.Missions.UnregisterPhrase,
		loc:              conf.Missions.Location(),
	}
}

// Register creates a PENDING registration of the student to the mission.
// The mission row stays locked from the capacity check to the insert, so concurrent
// registrations are serialized and can never exceed the mission capacity.
func (svc *Service) Register(ctx context.Context, missionID, schoolMemberID string) (Registration, error) {
	sm, err := svc.students.GetSchoolMember(ctx, schoolMemberID)
	if err != nil {
		if errors.Cause(err) == member.ErrNotFound {
			return Registration{}, core.NewValidationError(err, core.FieldError{Field: "school_member_id", Error: err.Error()})
		}
		return Registration{}, errors.Wrap(err, "getting school member")
	}
	if !sm.IsActive() {
		return Registration{}, core.NewValidationError(member.ErrInactiveMember, core.FieldError{
			Field: "school_member_id",
			Error: member.ErrInactiveMember.Error(),
		})
	}

	var reg Registration
	err = core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.missions.LockMission(ctx, missionID, tx); err != nil {
			return err
		}
		m, err := svc.missions.GetMission(ctx, missionID, tx)
		if err != nil {
			return err
		}

		now := core.NowFunc()
		if m.Status != mission.StatusPublished || m.HasEnded(now) {
			return &MissionNotOpenError{MissionID: m.ID, Status: m.Status, Ended: m.HasEnded(now)}
		}

		_, err = svc.repo.GetActiveRegistration(ctx, missionID, schoolMemberID, tx)
		switch errors.Cause(err) {
		case nil:
			return &AlreadyRegisteredError{MissionID: missionID, SchoolMemberID: schoolMemberID}
		case ErrNotFound:
		default:
			return errors.Wrap(err, "getting active registration")
		}

		if m.Capacity().IsFull {
			return &MissionFullError{MissionID: missionID, MaxParticipants: m.MaxParticipants.Int}
		}

		reg, err = svc.repo.CreateRegistration(ctx, Registration{
			MissionID:      missionID,
			SchoolMemberID: schoolMemberID,
			Status:         StatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}, tx)
		if errors.Cause(err) == ErrDuplicate {
			return &AlreadyRegisteredError{MissionID: missionID, SchoolMemberID: schoolMemberID}
		}
		return errors.Wrap(err, "creating registration")
	})
	if err != nil {
		return Registration{}, err
	}

	svc.publish(ctx, EventCreated, reg)
	return reg, nil
}

// transition moves a registration from one of the `from` statuses to `to`.
func (svc *Service) transition(ctx context.Context, id string, to Status, from ...Status) (Registration, error) {
	var reg Registration
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if reg, err = svc.get(ctx, id, tx); err != nil {
			return err
		}

		allowed := false
		for _, st := range from {
			if reg.Status == st {
				allowed = true
				break
			}
		}
		if !allowed {
			return &TransitionError{From: reg.Status, To: to}
		}

		now := core.NowFunc()
		reg.Status = to
		reg.UpdatedAt = now
		switch to {
		case StatusConfirmed:
			reg.ConfirmedAt = null.TimeFrom(now)
		case StatusCompleted:
			reg.CompletedAt = null.TimeFrom(now)
		}
		reg, err = svc.repo.UpdateRegistration(ctx, reg, tx)
		return errors.Wrap(err, "updating registration")
	})
	return reg, err
}

// Confirm accepts a PENDING registration and emails the student.
func (svc *Service) Confirm(ctx context.Context, id string) (Registration, error) {
	reg, err := svc.transition(ctx, id, StatusConfirmed, StatusPending)
	if err != nil {
		return Registration{}, err
	}

	svc.publish(ctx, EventConfirmed, reg)
	svc.sendConfirmation(ctx, reg)
	return reg, nil
}

func (svc *Service) sendConfirmation(ctx context.Context, reg Registration) {
	details, err := svc.Get(ctx, reg.ID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("getting registration details: %v", err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To: []mail.Address{{
			Name:    details.Student.FirstName + " " + details.Student.LastName,
			Address: details.Student.Email,
		}},
		Subject:      "Registration confirmed",
		TemplateName: "registration_confirmed",
		TemplateData: map[string]string{
			"StudentName":  details.Student.FirstName,
			"MissionTitle": details.Mission.Title,
			"StartsAt":     details.Mission.StartAt.In(svc.loc).Format(startsAtLayout),
			"MissionID":    details.Mission.ID,
		},
	})
}

// Unregister withdraws a PENDING or CONFIRMED registration, freeing its spot.
// The confirmation must match the configured phrase exactly, otherwise nothing changes.
func (svc *Service) Unregister(ctx context.Context, id, confirmation string) error {
	if confirmation != svc.unregisterPhrase {
		return core.NewValidationError(
			errors.New("confirmation does not match"),
			core.FieldError{Field: "confirmation", Error: fmt.Sprintf("type %q to confirm", svc.unregisterPhrase)},
		)
	}

	var reg Registration
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if reg, err = svc.get(ctx, id, tx); err != nil {
			return err
		}
		if !reg.Status.IsWithdrawable() {
			return &TransitionError{From: reg.Status, To: StatusCancelled}
		}
		return errors.Wrap(svc.repo.DeleteRegistration(ctx, id, tx), "deleting registration")
	})
	if err != nil {
		return err
	}

	svc.publish(ctx, EventDeleted, reg)
	return nil
}

// Complete credits the attendance of a CONFIRMED registration.
func (svc *Service) Complete(ctx context.Context, id string) (Registration, error) {
	reg, err := svc.transition(ctx, id, StatusCompleted, StatusConfirmed)
	if err != nil {
		return Registration{}, err
	}
	svc.publish(ctx, EventCompleted, reg)
	return reg, nil
}

// CompleteEnded completes every CONFIRMED registration whose mission is over at `now`.
func (svc *Service) CompleteEnded(ctx context.Context, now time.Time) (int, error) {
	confirmed, err := svc.repo.QueryDetails(ctx, QueryFilter{Statuses: []Status{StatusConfirmed}})
	if err != nil {
		return 0, errors.Wrap(err, "querying confirmed registrations")
	}

	ended := make([]Details, 0, len(confirmed))
	ids := make([]string, 0, len(confirmed))
	for _, d := range confirmed {
		if d.HasEnded(now) {
			ended = append(ended, d)
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var completed []string
	completedAt := core.NowFunc()
	err = core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		completed, err = svc.repo.CompleteRegistrations(ctx, ids, completedAt, tx)
		return errors.Wrap(err, "completing registrations")
	})
	if err != nil {
		return 0, err
	}

	// registrations withdrawn or completed since the query are not announced
	done := make(map[string]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}
	for _, d := range ended {
		if !done[d.ID] {
			continue
		}
		reg := d.Registration
		reg.Status = StatusCompleted
		reg.CompletedAt = null.TimeFrom(completedAt)
		reg.UpdatedAt = completedAt
		svc.publish(ctx, EventCompleted, reg)
	}
	return len(completed), nil
}

// CancelForMission cancels the PENDING and CONFIRMED registrations of a mission.
func (svc *Service) CancelForMission(ctx context.Context, missionID string, exec ...core.DBExecutor) (int, error) {
	return svc.repo.CancelMissionRegistrations(ctx, missionID, core.NowFunc(), exec...)
}

func (svc *Service) get(ctx context.Context, id string, exec ...core.DBExecutor) (Registration, error) {
	reg, err := svc.repo.GetRegistration(ctx, id, exec...)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Registration{}, &RegistrationNotFoundError{ID: id}
		}
		return Registration{}, err
	}
	return reg, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Details, error) {
	details, err := svc.repo.QueryDetails(ctx, QueryFilter{ID: id})
	if err != nil {
		return Details{}, err
	}
	if len(details) == 0 {
		return Details{}, &RegistrationNotFoundError{ID: id}
	}
	return details[0], nil
}

func (svc *Service) ListForMission(ctx context.Context, missionID string) ([]Details, error) {
	return svc.repo.QueryDetails(ctx, QueryFilter{MissionID: missionID})
}

func (svc *Service) ListForStudent(ctx context.Context, schoolMemberID string) ([]Details, error) {
	return svc.repo.QueryDetails(ctx, QueryFilter{SchoolMemberID: schoolMemberID})
}

func (svc *Service) publish(ctx context.Context, name string, reg Registration) {
	if err := svc.events.Publish(ctx, core.NewEvent(name, reg)); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s: %v", name, err), err)
	}
}
