package reporting

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/billing"
	"github.com/medcrm/clinic/internal/domain/scheduling"
)

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

// DailyTotals groups payments by the local calendar date they were taken
// on. Rows are numbered from 1 in date order; days without payments are
// left out.
func DailyTotals(rows []*PaymentRow, loc *time.Location) ([]CloseRow, domain.Money) {
	sums := make(map[string]decimal.Decimal)
	var grand decimal.Decimal
	for _, r := range rows {
		k := dayKey(r.CreatedAt, loc)
		sums[k] = sums[k].Add(r.Amount.Decimal)
		grand = grand.Add(r.Amount.Decimal)
	}
	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]CloseRow, 0, len(keys))
	for i, k := range keys {
		day, _ := time.ParseInLocation(dateLayout, k, loc)
		out = append(out, CloseRow{Index: i + 1, Date: day.Format(displayLayout), Total: domain.NewMoney(sums[k])})
	}
	return out, domain.NewMoney(grand)
}

func Summarize(rows []*PaymentRow) DetailedSummary {
	var cash, card decimal.Decimal
	for _, r := range rows {
		switch r.Method {
		case billing.MethodCash:
			cash = cash.Add(r.Amount.Decimal)
		case billing.MethodCard:
			card = card.Add(r.Amount.Decimal)
		}
	}
	return DetailedSummary{
		Count: len(rows),
		Total: domain.NewMoney(cash.Add(card)),
		Cash:  domain.NewMoney(cash),
		Card:  domain.NewMoney(card),
	}
}

func BonusLines(rows []*PaymentRow) []billing.BonusLine {
	lines := make([]billing.BonusLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, billing.BonusLine{Method: r.Method, Amount: r.Amount, BonusPercent: r.BonusPercent})
	}
	return lines
}

// ClassifyPatients splits patients by lifetime visit count: exactly one
// visit is primary, more is repeat. repeat = repeat×100/(primary+repeat)
// in integer arithmetic and primary is the complement to 100.
func ClassifyPatients(visits []int) (primaryPct, repeatPct int) {
	var primary, repeat int
	for _, n := range visits {
		switch {
		case n == 1:
			primary++
		case n > 1:
			repeat++
		}
	}
	if primary+repeat == 0 {
		return 0, 0
	}
	repeatPct = repeat * 100 / (primary + repeat)
	return 100 - repeatPct, repeatPct
}

// DailySeries counts appointments per local day of start_time for every
// day of the period, zero days included.
func DailySeries(points []AppointmentPoint, period Period, loc *time.Location) []ChartPoint {
	days := period.Days()
	idx := make(map[string]int, len(days))
	out := make([]ChartPoint, len(days))
	for i, d := range days {
		k := d.Format(dateLayout)
		idx[k] = i
		out[i] = ChartPoint{Date: k}
	}
	for _, p := range points {
		i, ok := idx[dayKey(p.StartTime, loc)]
		if !ok {
			continue
		}
		out[i].Total++
		if p.Status == scheduling.StatusCancelled {
			out[i].Cancelled++
		}
	}
	return out
}

// Ratio returns a/b × 10 rounded to two places, or 0 when b is 0. The
// growth and decline figures are defined this way.
func Ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return math.Round(float64(a)/float64(b)*10*100) / 100
}

func DistinctPatients(points []AppointmentPoint) int {
	seen := make(map[uuid.UUID]struct{}, len(points))
	for _, p := range points {
		seen[p.PatientID] = struct{}{}
	}
	return len(seen)
}
