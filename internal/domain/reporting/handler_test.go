package reporting

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcrm/clinic/internal/domain/access"
)

func get(h echo.HandlerFunc, target string, p access.Policy) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(access.WithPolicy(req.Context(), p))
	rec := httptest.NewRecorder()
	return rec, h(echo.New().NewContext(req, rec))
}

func assertHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != want {
		t.Fatalf("expected %d, got %v", want, err)
	}
}

func TestHandler_DetailedCSV(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)

	rec, err := get(h.DetailedCSV, "/reports/detailed.csv?date_from=2024-06-01&date_to=2024-06-02", access.Admin(uuid.New()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv, got %q", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "report_2024-06-01_2024-06-02.csv") {
		t.Errorf("unexpected disposition %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header and 4 rows, got %d lines:\n%s", len(lines), rec.Body.String())
	}
	if !strings.HasPrefix(lines[0], "№,Дата,Пациент") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(rec.Body.String(), "1000.00,1000.00,10%") {
		t.Errorf("expected the card payment row in %s", rec.Body.String())
	}
}

func TestHandler_Detailed_BadPeriod(t *testing.T) {
	h := NewHandler(newFixture().svc)
	_, err := get(h.Detailed, "/reports/detailed?period=year", access.Admin(uuid.New()))
	assertHTTPStatus(t, err, http.StatusBadRequest)
}

func TestHandler_Analytics_RangeTooLong(t *testing.T) {
	h := NewHandler(newFixture().svc)
	_, err := get(h.Analytics, "/reports/analytics?date_from=0001-01-01&date_to=9999-12-31", access.Admin(uuid.New()))
	assertHTTPStatus(t, err, http.StatusBadRequest)
}

func TestHandler_DoctorClose_DefaultsToCaller(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	p := access.Doctor(f.doctor.UserID, f.doctor.ID)

	rec, err := get(h.DoctorClose, "/reports/doctor-close?date_from=2024-06-01&date_to=2024-06-02", p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Rows []struct {
			Index int    `json:"index"`
			Date  string `json:"date"`
			Total string `json:"total_sum"`
		} `json:"rows"`
		Total string `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != "350.00" || len(body.Rows) != 2 || body.Rows[1].Total != "200.00" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_DoctorClose_StaffNeedsDoctorID(t *testing.T) {
	h := NewHandler(newFixture().svc)
	_, err := get(h.DoctorClose, "/reports/doctor-close", access.Receptionist(uuid.New()))
	assertHTTPStatus(t, err, http.StatusBadRequest)
}

func TestHandler_Analytics(t *testing.T) {
	f := newFixture()
	f.repo.visits = []int{1, 1, 4}
	h := NewHandler(f.svc)

	rec, err := get(h.Analytics, "/reports/analytics?period=month", access.Admin(uuid.New()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`"primary_percent":67`, `"repeat_percent":33`, `"growth_percent":0`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("expected %s in %s", want, rec.Body.String())
		}
	}
}

func TestHandler_PatientHistory_BadID(t *testing.T) {
	h := NewHandler(newFixture().svc)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(access.WithPolicy(req.Context(), access.Admin(uuid.New())))
	c := echo.New().NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")
	assertHTTPStatus(t, h.PatientHistory(c), http.StatusBadRequest)
}
