package registration

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core/mission"
)

var (
	// repository errors
	ErrNotFound  = errors.New("registration not found")
	ErrDuplicate = errors.New("an active registration already exists")
)

// MissionFullError is returned when registering to a mission with no spot left.
type MissionFullError struct {
	MissionID       string
	MaxParticipants int
}

func (e *MissionFullError) Error() string {
	return fmt.Sprintf("mission is full (%d participants max)", e.MaxParticipants)
}

// AlreadyRegisteredError is returned when the student already has an active registration to the mission.
type AlreadyRegisteredError struct {
	MissionID      string
	SchoolMemberID string
}

func (e *AlreadyRegisteredError) Error() string {
	return "already registered to this mission"
}

type RegistrationNotFoundError struct {
	ID string
}

func (e *RegistrationNotFoundError) Error() string {
	return "registration not found"
}

// MissionNotOpenError is returned when registering to a mission that is not published or is over.
type MissionNotOpenError struct {
	MissionID string
	Status    mission.Status
	Ended     bool
}

func (e *MissionNotOpenError) Error() string {
	if e.Ended {
		return "mission is over"
	}
	return "mission is not open for registration"
}

// TransitionError is returned when a registration cannot move to the requested status.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return "cannot change registration status from " + string(e.From) + " to " + string(e.To)
}
