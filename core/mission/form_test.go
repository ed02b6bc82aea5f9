package mission_test

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fourmis/core/mission"
	"github.com/trezcool/fourmis/tests"
)

func validForm() mission.Form {
	return mission.Form{
		Title: "  Beach cleanup ",
		Address: mission.Address{
			Street:     "1 rue de la Plage",
			City:       "Biarritz",
			PostalCode: "64200",
			Country:    "France",
		},
		ResponsibleMemberID: "member-id",
		StartDate:           "2030-06-01",
		StartTime:           "09:30",
		Duration:            90,
		Tags:                []string{" Ocean", "ocean", "", "Environment "},
	}
}

func TestForm_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	t.Run("valid", func(t *testing.T) {
		f := validForm()
		require.NoError(t, f.Validate(validate))
		assert.Equal(t, "Beach cleanup", f.Title)
		assert.Equal(t, []string{"ocean", "environment"}, f.Tags)
		assert.Equal(t, mission.RecurrenceNone, f.Recurrence)
	})

	tests := []struct {
		name      string
		mutate    func(f *mission.Form)
		wantField string
		wantTag   string
	}{
		{"blank title", func(f *mission.Form) { f.Title = "   " }, "Title", "required"},
		{"missing city", func(f *mission.Form) { f.Address.City = "" }, "City", "required"},
		{"missing responsible", func(f *mission.Form) { f.ResponsibleMemberID = "" }, "ResponsibleMemberID", "required"},
		{"bad date", func(f *mission.Form) { f.StartDate = "01/06/2030" }, "StartDate", "date"},
		{"bad time", func(f *mission.Form) { f.StartTime = "25:00" }, "StartTime", "clock"},
		{"no duration", func(f *mission.Form) { f.Duration = 0 }, "Duration", "required"},
		{"negative duration", func(f *mission.Form) { f.Duration = -5 }, "Duration", "gt"},
		{"zero participants", func(f *mission.Form) { f.MaxParticipants = testutil.IntPtr(0) }, "MaxParticipants", "gte"},
		{"unknown recurrence", func(f *mission.Form) { f.Recurrence = "YEARLY" }, "Recurrence", "recurrence"},
		{
			"end before start",
			func(f *mission.Form) { f.Recurrence, f.EndDate = mission.RecurrenceWeekly, "2030-05-31" },
			"EndDate", "endafterstart",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)

			err := f.Validate(validate)
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			found := false
			for _, fe := range verrs {
				if fe.StructField() == tt.wantField {
					found = true
					assert.Equal(t, tt.wantTag, fe.Tag())
				}
			}
			assert.True(t, found, "no error on %s: %v", tt.wantField, err)
		})
	}

	t.Run("same day end", func(t *testing.T) {
		f := validForm()
		f.Recurrence, f.EndDate = mission.RecurrenceDaily, f.StartDate
		assert.NoError(t, f.Validate(validate))
	})
}

func TestForm_Schedule(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	f := validForm()
	f.Recurrence, f.EndDate = mission.RecurrenceWeekly, "2030-06-29"

	startAt, endAt, err := f.Schedule(paris)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 6, 1, 7, 30, 0, 0, time.UTC), startAt)
	assert.Equal(t, time.UTC, startAt.Location())
	require.True(t, endAt.Valid)
	assert.Equal(t, time.Date(2030, 6, 29, 7, 30, 0, 0, time.UTC), endAt.Time)

	f.EndDate = ""
	_, endAt, err = f.Schedule(paris)
	require.NoError(t, err)
	assert.False(t, endAt.Valid)

	f.StartDate = "not a date"
	_, _, err = f.Schedule(paris)
	assert.Error(t, err)
}

func TestCleanTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, mission.CleanTags([]string{" A", "b c ", "a", "  "}))
	assert.Empty(t, mission.CleanTags(nil))
}
