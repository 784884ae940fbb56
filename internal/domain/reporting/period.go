package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/medcrm/clinic/internal/domain"
)

const (
	dateLayout    = "2006-01-02"
	displayLayout = "02.01.2006"
)

type PeriodKind string

const (
	PeriodDay   PeriodKind = "day"
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
)

// MaxPeriodDays bounds an explicit date range.
const MaxPeriodDays = 366

// periodDays is the number of calendar days, today included.
var periodDays = map[PeriodKind]int{
	PeriodDay:   1,
	PeriodWeek:  7,
	PeriodMonth: 30,
}

// Period is a run of whole calendar days [From, To) in the clinic zone.
type Period struct {
	From time.Time
	To   time.Time
}

// Days lists the first instant of every day in the period.
func (p Period) Days() []time.Time {
	var days []time.Time
	for d := p.From; d.Before(p.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// LastDay is the final calendar day included in the period.
func (p Period) LastDay() time.Time { return p.To.AddDate(0, 0, -1) }

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ResolvePeriod turns a relative kind or an explicit inclusive date range
// (YYYY-MM-DD) into a Period. Explicit dates win over kind; an empty kind
// means day.
func ResolvePeriod(kind PeriodKind, from, to string, now time.Time, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := startOfDay(now, loc)
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)

	if from != "" || to != "" {
		var start, end time.Time
		var err error
		if from != "" {
			if start, err = time.ParseInLocation(dateLayout, from, loc); err != nil {
				return Period{}, domain.Invalid("date_from", "expected YYYY-MM-DD")
			}
		}
		if to != "" {
			if end, err = time.ParseInLocation(dateLayout, to, loc); err != nil {
				return Period{}, domain.Invalid("date_to", "expected YYYY-MM-DD")
			}
		}
		switch {
		case from == "":
			start = end
		case to == "":
			end = today
			if end.Before(start) {
				end = start
			}
		}
		if end.Before(start) {
			return Period{}, domain.Invalid("date_to", "date_to is before date_from")
		}
		if !end.Before(start.AddDate(0, 0, MaxPeriodDays)) {
			return Period{}, domain.Invalid("date_to", fmt.Sprintf("range is limited to %d days", MaxPeriodDays))
		}
		return Period{From: start, To: end.AddDate(0, 0, 1)}, nil
	}

	if kind == "" {
		kind = PeriodDay
	}
	n, ok := periodDays[kind]
	if !ok {
		return Period{}, domain.Invalid("period", "period must be day, week or month")
	}
	return Period{From: today.AddDate(0, 0, 1-n), To: today.AddDate(0, 0, 1)}, nil
}
