package billing

import (
	"github.com/shopspring/decimal"

	"github.com/medcrm/clinic/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// BonusLine is one completed payment as seen by the bonus calculation.
type BonusLine struct {
	Method       Method
	Amount       domain.Money
	BonusPercent int
}

// Share is a gross amount split between doctors and the clinic.
type Share struct {
	Gross   domain.Money `json:"gross"`
	Doctors domain.Money `json:"doctors"`
	Clinic  domain.Money `json:"clinic"`
}

type BonusSplit struct {
	Cash  Share `json:"cash"`
	Card  Share `json:"card"`
	Total Share `json:"total"`
}

// DoctorShare is amount × percent / 100 at full precision.
func DoctorShare(amount domain.Money, percent int) domain.Money {
	return domain.NewMoney(amount.Mul(decimal.NewFromInt(int64(percent))).Div(hundred))
}

// SplitBonus sums doctor shares per payment method. The clinic keeps the
// rest, so Doctors + Clinic equals Gross for each method and overall.
// Nothing is rounded here.
func SplitBonus(lines []BonusLine) BonusSplit {
	var cashGross, cashDoc, cardGross, cardDoc decimal.Decimal
	for _, l := range lines {
		share := DoctorShare(l.Amount, l.BonusPercent).Decimal
		switch l.Method {
		case MethodCash:
			cashGross = cashGross.Add(l.Amount.Decimal)
			cashDoc = cashDoc.Add(share)
		case MethodCard:
			cardGross = cardGross.Add(l.Amount.Decimal)
			cardDoc = cardDoc.Add(share)
		}
	}
	return BonusSplit{
		Cash:  newShare(cashGross, cashDoc),
		Card:  newShare(cardGross, cardDoc),
		Total: newShare(cashGross.Add(cardGross), cashDoc.Add(cardDoc)),
	}
}

func newShare(gross, doctors decimal.Decimal) Share {
	return Share{
		Gross:   domain.NewMoney(gross),
		Doctors: domain.NewMoney(doctors),
		Clinic:  domain.NewMoney(gross.Sub(doctors)),
	}
}
