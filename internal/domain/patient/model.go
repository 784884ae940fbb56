package patient

import (
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

var genderLabels = map[Gender]string{
	GenderMale:   "Мужской",
	GenderFemale: "Женский",
}

func (g Gender) Valid() bool {
	_, ok := genderLabels[g]
	return ok
}

func (g Gender) Label() string { return genderLabels[g] }

type Patient struct {
	ID        uuid.UUID  `json:"id"`
	FullName  string     `json:"full_name"`
	BirthDate *time.Time `json:"-"`
	Phone     string     `json:"phone"`
	Gender    Gender     `json:"gender"`
	Note      string     `json:"note"`
	CreatedAt time.Time  `json:"created_at"`
}

// Age is the number of whole years between the birth date and now, or -1
// when the birth date is unknown.
func (p *Patient) Age(now time.Time) int {
	if p.BirthDate == nil {
		return -1
	}
	b := *p.BirthDate
	years := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// View is the API shape of a Patient with derived fields.
type View struct {
	*Patient
	BirthDate   string `json:"birth_date,omitempty"`
	Age         *int   `json:"age"`
	GenderLabel string `json:"gender_label"`
}

func NewView(p *Patient, now time.Time) View {
	v := View{Patient: p, GenderLabel: p.Gender.Label()}
	if p.BirthDate != nil {
		v.BirthDate = p.BirthDate.Format(dateLayout)
		age := p.Age(now)
		v.Age = &age
	}
	return v
}

type Filter struct {
	Search string
	Gender Gender
}

// Input is used for both create and full update. BirthDate is YYYY-MM-DD.
type Input struct {
	FullName  string  `json:"full_name"`
	BirthDate *string `json:"birth_date"`
	Phone     string  `json:"phone"`
	Gender    Gender  `json:"gender"`
	Note      string  `json:"note"`
}
