package mission

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/fourmis/core"
)

type Address struct {
	Street     string `json:"street" validate:"required,notblank"`
	City       string `json:"city" validate:"required,notblank"`
	PostalCode string `json:"postal_code" validate:"required,notblank"`
	Country    string `json:"country" validate:"required,notblank"`
	Phone      string `json:"phone"`
}

// Form collects every field of a mission. It is used to both create and edit missions.
// Dates and times are wall clock values in the configured missions timezone.
type Form struct {
	Title               string     `json:"title" validate:"required,notblank"`
	Description         string     `json:"description"`
	Address             Address    `json:"address"`
	ResponsibleMemberID string     `json:"responsible_member_id" validate:"required"`
	StartDate           string     `json:"start_date" validate:"required,date"`
	StartTime           string     `json:"start_time" validate:"required,clock"`
	EndDate             string     `json:"end_date" validate:"omitempty,date"`
	Duration            int        `json:"duration" validate:"required,gt=0"` // minutes
	MaxParticipants     *int       `json:"max_participants" validate:"omitempty,gte=1"`
	Recurrence          Recurrence `json:"recurrence" validate:"omitempty,recurrence"`
	Tags                []string   `json:"tags"`
	// Publish creates the mission directly as PUBLISHED instead of DRAFT. Ignored on edits.
	Publish bool `json:"publish"`
}

func (f *Form) Validate(validate *validator.Validate) error {
	f.Title = core.CleanString(f.Title)
	f.Description = core.CleanString(f.Description)
	f.Address.Street = core.CleanString(f.Address.Street)
	f.Address.City = core.CleanString(f.Address.City)
	f.Address.PostalCode = core.CleanString(f.Address.PostalCode)
	f.Address.Country = core.CleanString(f.Address.Country)
	f.Address.Phone = core.CleanString(f.Address.Phone)
	f.StartDate = core.CleanString(f.StartDate)
	f.StartTime = core.CleanString(f.StartTime)
	f.EndDate = core.CleanString(f.EndDate)
	f.Tags = CleanTags(f.Tags)
	if f.Recurrence == "" {
		f.Recurrence = RecurrenceNone
	}
	return validate.Struct(f)
}

// Schedule converts the form dates to UTC start and end times.
func (f Form) Schedule(loc *time.Location) (startAt time.Time, endAt null.Time, err error) {
	startAt, err = time.ParseInLocation(core.DateLayout+" "+core.ClockLayout, f.StartDate+" "+f.StartTime, loc)
	if err != nil {
		return time.Time{}, null.Time{}, errors.Wrap(err, "parsing start")
	}
	if f.EndDate != "" {
		// the last occurrence starts on the end date, at the same time
		end, err := time.ParseInLocation(core.DateLayout+" "+core.ClockLayout, f.EndDate+" "+f.StartTime, loc)
		if err != nil {
			return time.Time{}, null.Time{}, errors.Wrap(err, "parsing end")
		}
		endAt = null.TimeFrom(end.UTC())
	}
	return startAt.UTC(), endAt, nil
}

func (f Form) contact() Contact {
	return Contact{
		Street:     f.Address.Street,
		City:       f.Address.City,
		PostalCode: f.Address.PostalCode,
		Country:    f.Address.Country,
		Phone:      null.NewString(f.Address.Phone, f.Address.Phone != ""),
	}
}

// CleanTags lowers, trims and dedupes tags.
func CleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		t = core.CleanString(t, true /* lower */)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		cleaned = append(cleaned, t)
	}
	return cleaned
}

type SetStatus struct {
	Status Status `json:"status" validate:"required,missionstatus"`
}

func (ss SetStatus) Validate(validate *validator.Validate) error { return validate.Struct(ss) }
