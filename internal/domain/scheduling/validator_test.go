package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/clinic"
)

func TestValidate(t *testing.T) {
	dep, other := uuid.New(), uuid.New()
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	doc := &clinic.Doctor{ID: uuid.New(), DepartmentID: dep}
	svc := &clinic.Service{ID: uuid.New(), DepartmentID: dep}

	tests := []struct {
		name  string
		c     Candidate
		field string
	}{
		{"aligned", Candidate{doc, svc, dep, start, start.Add(30 * time.Minute)}, ""},
		{"doctor elsewhere", Candidate{&clinic.Doctor{DepartmentID: other}, svc, dep, start, start.Add(time.Hour)}, "doctor"},
		{"service elsewhere", Candidate{doc, &clinic.Service{DepartmentID: other}, dep, start, start.Add(time.Hour)}, "service"},
		{"appointment elsewhere", Candidate{doc, svc, other, start, start.Add(time.Hour)}, "doctor"},
		{"empty interval", Candidate{doc, svc, dep, start, start}, "end_time"},
		{"reversed interval", Candidate{doc, svc, dep, start, start.Add(-time.Minute)}, "end_time"},
		{"missing doctor", Candidate{nil, svc, dep, start, start.Add(time.Hour)}, "doctor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.c)
			if tt.field == "" {
				if err != nil {
					t.Errorf("expected valid, got %v", err)
				}
				return
			}
			v, ok := domain.AsValidation(err)
			if !ok || v.Field != tt.field {
				t.Errorf("expected %s error, got %v", tt.field, err)
			}
		})
	}
}

func TestValidate_Messages(t *testing.T) {
	dep := uuid.New()
	err := Validate(Candidate{
		Doctor:       &clinic.Doctor{DepartmentID: uuid.New()},
		Service:      &clinic.Service{DepartmentID: dep},
		DepartmentID: dep,
	})
	if v, _ := domain.AsValidation(err); v == nil || v.Message != "doctor not in department" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusQueue, StatusConfirmed, true},
		{StatusQueue, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusQueue, StatusQueue, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusConfirmed, StatusQueue, false},
		{StatusQueue, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, false},
		{StatusCancelled, StatusQueue, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusQueue, "archived", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := CheckTransition(tt.from, tt.to)
			if tt.ok && err != nil {
				t.Errorf("expected allowed, got %v", err)
			}
			if !tt.ok {
				if v, ok := domain.AsValidation(err); !ok || v.Field != "status" {
					t.Errorf("expected status error, got %v", err)
				}
			}
		})
	}
}

func TestInitialStatus(t *testing.T) {
	if s, err := InitialStatus(""); err != nil || s != StatusQueue {
		t.Errorf("expected queue default, got %q (%v)", s, err)
	}
	if s, err := InitialStatus(StatusConfirmed); err != nil || s != StatusConfirmed {
		t.Errorf("expected confirmed, got %q (%v)", s, err)
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled, "bogus"} {
		if _, err := InitialStatus(s); !domain.IsValidation(err) {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestStatusLabels(t *testing.T) {
	if StatusCompleted.Label() != "Был в приёме" || StatusQueue.Color() != "#22c55e" {
		t.Error("unexpected label or color")
	}
}
