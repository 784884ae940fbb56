package db

import (
	"reflect"
	"testing"
)

func TestWhere_Empty(t *testing.T) {
	var w Where
	if w.SQL() != "" || len(w.Args()) != 0 {
		t.Errorf("expected no clause, got %q %v", w.SQL(), w.Args())
	}
}

func TestWhere_NumbersPlaceholders(t *testing.T) {
	var w Where
	w.Add(`a.doctor_id = $%d`, "d1")
	w.Add(`a.status = $%d`, "queue")
	want := ` WHERE a.doctor_id = $1 AND a.status = $2`
	if w.SQL() != want {
		t.Errorf("expected %q, got %q", want, w.SQL())
	}
	if !reflect.DeepEqual(w.Args(), []interface{}{"d1", "queue"}) {
		t.Errorf("unexpected args %v", w.Args())
	}
}

func TestWhere_Contains(t *testing.T) {
	var w Where
	w.Add(`p.gender = $%d`, "female")
	w.Contains("  Асель ", "p.full_name", "p.phone")
	want := ` WHERE p.gender = $1 AND (LOWER(p.full_name) LIKE $2 ESCAPE '\' OR LOWER(p.phone) LIKE $2 ESCAPE '\')`
	if w.SQL() != want {
		t.Errorf("expected %q, got %q", want, w.SQL())
	}
	if w.Args()[1] != "%асель%" {
		t.Errorf("unexpected pattern %v", w.Args()[1])
	}

	var blank Where
	blank.Contains("   ", "p.full_name")
	if blank.SQL() != "" {
		t.Errorf("blank search must add nothing, got %q", blank.SQL())
	}
}

func TestWhere_Page(t *testing.T) {
	var w Where
	w.Add(`a.id = $%d`, 1)
	if got := w.Page(20, 40); got != ` LIMIT $2 OFFSET $3` {
		t.Errorf("unexpected page clause %q", got)
	}
	if !reflect.DeepEqual(w.Args(), []interface{}{1, 20, 40}) {
		t.Errorf("unexpected args %v", w.Args())
	}
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Ivan", "%ivan%"},
		{"%", `%\%%`},
		{"a_b", `%a\_b%`},
		{`c:\x`, `%c:\\x%`},
	}
	for _, tt := range tests {
		if got := LikePattern(tt.in); got != tt.want {
			t.Errorf("LikePattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
