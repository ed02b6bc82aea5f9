package mission_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/fourmis/core/mission"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to mission.Status
		want     bool
	}{
		{mission.StatusDraft, mission.StatusPublished, true},
		{mission.StatusDraft, mission.StatusCancelled, true},
		{mission.StatusDraft, mission.StatusArchived, false},
		{mission.StatusPublished, mission.StatusArchived, true},
		{mission.StatusPublished, mission.StatusCancelled, true},
		{mission.StatusPublished, mission.StatusDraft, false},
		{mission.StatusArchived, mission.StatusPublished, true},
		{mission.StatusArchived, mission.StatusCancelled, false},
		{mission.StatusCancelled, mission.StatusPublished, false},
		{mission.StatusCancelled, mission.StatusDraft, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
	assert.False(t, mission.Status("LOL").Valid())
}

func TestMission_EndsAt(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	last := time.Date(2024, 3, 29, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		m       mission.Mission
		wantEnd time.Time
		wantOk  bool
	}{
		{
			name:    "one-off",
			m:       mission.Mission{StartAt: start, DurationMinutes: null.IntFrom(90), Recurrence: mission.RecurrenceNone},
			wantEnd: start.Add(90 * time.Minute), wantOk: true,
		},
		{
			name:    "one-off ignores end date",
			m:       mission.Mission{StartAt: start, EndAt: null.TimeFrom(last), DurationMinutes: null.IntFrom(60)},
			wantEnd: start.Add(time.Hour), wantOk: true,
		},
		{
			name: "recurring series",
			m: mission.Mission{
				StartAt: start, EndAt: null.TimeFrom(last), DurationMinutes: null.IntFrom(120), Recurrence: mission.RecurrenceWeekly,
			},
			wantEnd: last.Add(2 * time.Hour), wantOk: true,
		},
		{
			name: "open-ended series never ends",
			m:    mission.Mission{StartAt: start, DurationMinutes: null.IntFrom(120), Recurrence: mission.RecurrenceDaily},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, ok := tt.m.EndsAt()
			assert.Equal(t, tt.wantOk, ok)
			assert.True(t, tt.wantEnd.Equal(end), "EndsAt() = %v, want %v", end, tt.wantEnd)

			if ok {
				assert.False(t, tt.m.HasEnded(end), "the mission is not over at its very end")
				assert.True(t, tt.m.HasEnded(end.Add(time.Second)))
			} else {
				assert.False(t, tt.m.HasEnded(start.AddDate(10, 0, 0)))
			}
		})
	}
}

func TestMission_Occurrences(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 09:00 in Paris, the week before the switch to summer time
	start := time.Date(2024, 3, 25, 9, 0, 0, 0, paris).UTC()
	if start.Weekday() != time.Monday {
		t.Fatalf("bad fixture: %v", start.Weekday())
	}

	weekly := mission.Mission{StartAt: start, DurationMinutes: null.IntFrom(60), Recurrence: mission.RecurrenceWeekly}
	occs := weekly.Occurrences(start.In(paris), start.In(paris).AddDate(0, 0, 20), 10)
	if assert.Len(t, occs, 3) {
		for i, occ := range occs {
			assert.Equal(t, 9, occ.Hour(), "occurrence %d keeps its wall clock time", i)
			assert.Equal(t, time.Monday, occ.Weekday())
		}
		// the clock changed: 08:00 UTC, then 07:00 UTC
		assert.Equal(t, 8, occs[0].UTC().Hour())
		assert.Equal(t, 7, occs[1].UTC().Hour())
	}

	t.Run("limit", func(t *testing.T) {
		daily := mission.Mission{StartAt: start, Recurrence: mission.RecurrenceDaily}
		assert.Len(t, daily.Occurrences(start, start.AddDate(1, 0, 0), 5), 5)
	})

	t.Run("series end", func(t *testing.T) {
		daily := mission.Mission{StartAt: start, EndAt: null.TimeFrom(start.AddDate(0, 0, 2)), Recurrence: mission.RecurrenceDaily}
		assert.Len(t, daily.Occurrences(start, start.AddDate(1, 0, 0), 10), 3)
	})

	t.Run("from skips past occurrences", func(t *testing.T) {
		monthly := mission.Mission{StartAt: start, Recurrence: mission.RecurrenceMonthly}
		occs := monthly.Occurrences(start.AddDate(0, 1, 1), start.AddDate(0, 4, 0), 10)
		if assert.Len(t, occs, 3) {
			assert.Equal(t, time.May, occs[0].Month())
		}
	})

	t.Run("monthly from the end of a month", func(t *testing.T) {
		jan31 := time.Date(2027, 1, 31, 9, 0, 0, 0, paris)
		monthly := mission.Mission{StartAt: jan31.UTC(), Recurrence: mission.RecurrenceMonthly}
		occs := monthly.Occurrences(jan31, jan31.AddDate(0, 6, 0), 10)

		var days []string
		for _, occ := range occs {
			days = append(days, occ.Format("2006-01-02 15:04"))
		}
		assert.Equal(t, []string{
			"2027-01-31 09:00",
			"2027-02-28 09:00",
			"2027-03-31 09:00",
			"2027-04-30 09:00",
			"2027-05-31 09:00",
			"2027-06-30 09:00",
			"2027-07-31 09:00",
		}, days)
	})

	t.Run("one-off", func(t *testing.T) {
		once := mission.Mission{StartAt: start, Recurrence: mission.RecurrenceNone}
		assert.Len(t, once.Occurrences(start.Add(-time.Hour), start.Add(time.Hour), 10), 1)
		assert.Empty(t, once.Occurrences(start.Add(time.Hour), start.Add(2*time.Hour), 10))
	})
}
