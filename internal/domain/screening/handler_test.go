package screening

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/femtrack/api/internal/platform/auth"
	"github.com/femtrack/api/internal/platform/validate"
)

func newTestHandler() (*Handler, *echo.Echo, *mockDirectory) {
	svc, _, dir, _ := newTestService()
	e := echo.New()
	e.Validator = validate.New()
	return NewHandler(svc), e, dir
}

func asCaller(req *http.Request, id uuid.UUID, role string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), id, role))
}

func TestHandler_CreateAssessment(t *testing.T) {
	h, e, dir := newTestHandler()
	patient := uuid.New()
	dir.ages[patient] = intPtr(42)

	body := `{"patient":"` + patient.String() + `","screening_type":"Pap Smear","hpv_test_result":"POSITIVE","smoking_status":"N"}`
	req := httptest.NewRequest(http.MethodPost, "/screenings/new-assessment", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asCaller(req, uuid.New(), auth.RoleDoctor)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateAssessment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var got Event
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AssessmentRiskLevel != HighRisk {
		t.Errorf("expected High Risk, got %s", got.AssessmentRiskLevel)
	}
}

func TestHandler_CreateAssessment_UnknownPatient(t *testing.T) {
	h, e, _ := newTestHandler()

	body := `{"patient":"` + uuid.New().String() + `","screening_type":"Pap Smear"}`
	req := httptest.NewRequest(http.MethodPost, "/screenings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asCaller(req, uuid.New(), auth.RoleDoctor)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreateAssessment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_CreateAssessment_InvalidFlag(t *testing.T) {
	h, e, dir := newTestHandler()
	patient := uuid.New()
	dir.ages[patient] = intPtr(42)

	body := `{"patient":"` + patient.String() + `","screening_type":"Pap Smear","smoking_status":"maybe"}`
	req := httptest.NewRequest(http.MethodPost, "/screenings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asCaller(req, uuid.New(), auth.RoleDoctor)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreateAssessment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetEvent_OtherPatient(t *testing.T) {
	h, e, dir := newTestHandler()
	owner := uuid.New()
	dir.ages[owner] = intPtr(30)
	ev, err := h.svc.RecordAssessment(context.Background(), uuid.New(), Assessment{PatientID: owner, ScreeningType: "Pap Smear"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := asCaller(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), auth.RolePatient)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(ev.ID.String())

	err = h.GetEvent(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_ListEvents_Empty(t *testing.T) {
	h, e, _ := newTestHandler()

	req := asCaller(httptest.NewRequest(http.MethodGet, "/screenings", nil), uuid.New(), auth.RolePatient)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListEvents(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty data array, got %s", rec.Body.String())
	}
}

func TestHandler_GetEvent_InvalidID(t *testing.T) {
	h, e, _ := newTestHandler()
	req := asCaller(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), auth.RoleDoctor)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GetEvent(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
