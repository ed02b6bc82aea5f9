package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/dashboard"
	"github.com/trezcool/fourmis/core/mission"
)

const (
	maxPageSize     = 100
	defaultPageSize = 20
)

// MissionQuery holds the query parameters of the mission list.
// Dates are days in the missions timezone, `to` being inclusive.
type MissionQuery struct {
	Search   string   `query:"search"`
	Tag      string   `query:"tag"`
	Statuses []string `query:"status"`
	From     string   `query:"from"`
	To       string   `query:"to"`
	Ordering string   `query:"ordering"`
	Limit    int      `query:"limit"`
	Offset   int      `query:"offset"`
}

func (mq MissionQuery) Filter(loc *time.Location) (mission.QueryFilter, error) {
	filter := mission.QueryFilter{
		Search: core.CleanString(mq.Search),
		Tag:    core.CleanString(mq.Tag, true /* lower */),
		Limit:  mq.Limit,
		Offset: mq.Offset,
	}
	if filter.Limit <= 0 || filter.Limit > maxPageSize {
		filter.Limit = defaultPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	for _, s := range mq.Statuses {
		for _, part := range strings.Split(s, ",") {
			st := mission.Status(strings.ToUpper(core.CleanString(part)))
			if st == "" {
				continue
			}
			if !st.Valid() {
				return filter, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "unknown status " + strconv.Quote(part)})
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}

	var err error
	if filter.From, err = parseDay("from", mq.From, loc, false); err != nil {
		return filter, err
	}
	if filter.To, err = parseDay("to", mq.To, loc, true); err != nil {
		return filter, err
	}
	if filter.Ordering, err = parseOrdering(mq.Ordering); err != nil {
		return filter, err
	}
	return filter, nil
}

// parseOrdering reads a comma separated list of fields, descending when prefixed with "-".
func parseOrdering(value string) ([]core.DBOrdering, error) {
	var orderings []core.DBOrdering
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !mission.OrderingFields[field] {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "ordering", Error: "cannot order by " + strconv.Quote(field)})
		}
		orderings = append(orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings, nil
}

// bindWindow reads the `from` and `to` days of a dashboard window, defaulting to the last 30 days.
func bindWindow(ctx echo.Context, loc *time.Location) (dashboard.Window, error) {
	var w dashboard.Window
	var err error
	if w.From, err = parseDay("from", ctx.QueryParam("from"), loc, false); err != nil {
		return w, err
	}
	if w.To, err = parseDay("to", ctx.QueryParam("to"), loc, true); err != nil {
		return w, err
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From) {
		return w, core.NewValidationError(nil, core.FieldError{Field: "to", Error: "end date must not precede start date"})
	}
	return w, nil
}

// parseDay returns the start of the day in UTC, or its last microsecond when endOfDay is set.
func parseDay(field, value string, loc *time.Location, endOfDay bool) (time.Time, error) {
	value = core.CleanString(value)
	if value == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(core.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, core.NewValidationError(
			errors.Wrapf(err, "parsing %s", field),
			core.FieldError{Field: field, Error: "date must be in the format YYYY-MM-DD"},
		)
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Microsecond)
	}
	return day.UTC(), nil
}

// queryInt reads an optional integer query parameter.
func queryInt(ctx echo.Context, name string, def int) (int, error) {
	s := ctx.QueryParam(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, core.NewValidationError(err, core.FieldError{Field: name, Error: "must be a number"})
	}
	return n, nil
}
