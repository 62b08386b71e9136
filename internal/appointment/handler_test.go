package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docktorek/docktorek-api/internal/identity"
	"github.com/docktorek/docktorek-api/pkg/logging"
)

func newHandlerFixture(t *testing.T) (*Handler, *fixture) {
	t.Helper()
	f := newFixture(t)
	return NewHandler(f.service, logging.New("error")), f
}

func asCaller(req *http.Request, c identity.Caller) *http.Request {
	return req.WithContext(identity.WithCaller(req.Context(), c))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func createBody(f *fixture, start, end string) *bytes.Reader {
	body, _ := json.Marshal(CreateRequest{
		DoctorID: f.doctor.ID,
		Date:     testMonday,
		Start:    start,
		End:      end,
		Reason:   "checkup",
	})
	return bytes.NewReader(body)
}

func TestHandlerCreate(t *testing.T) {
	handler, f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/appointments", createBody(f, "09:00", "09:30"))
	w := httptest.NewRecorder()
	handler.Create(w, asCaller(req, f.patient))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body)
	}
	var appt Appointment
	if err := json.NewDecoder(w.Body).Decode(&appt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if appt.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", appt.Status)
	}
	if appt.ReceiptToken == "" {
		t.Error("expected receipt token in response")
	}
}

func TestHandlerCreate_Unauthenticated(t *testing.T) {
	handler, f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/appointments", createBody(f, "09:00", "09:30"))
	w := httptest.NewRecorder()
	handler.Create(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestHandlerCreate_BadBody(t *testing.T) {
	handler, f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader("{"))
	w := httptest.NewRecorder()
	handler.Create(w, asCaller(req, f.patient))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandlerCreate_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		prepare    func(t *testing.T, f *fixture)
		start, end string
		wantStatus int
		wantCode   string
	}{
		{"outside window", nil, "13:00", "13:30", http.StatusUnprocessableEntity, "not_available"},
		{"inverted range", nil, "10:00", "09:30", http.StatusBadRequest, "invalid_request"},
		{
			"slot taken",
			func(t *testing.T, f *fixture) { f.book(t, "09:00", "09:30") },
			"09:00", "09:30",
			http.StatusConflict, "slot_conflict",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler, f := newHandlerFixture(t)
			if tc.prepare != nil {
				tc.prepare(t, f)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/appointments", createBody(f, tc.start, tc.end))
			w := httptest.NewRecorder()
			handler.Create(w, asCaller(req, f.patient))

			if w.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, w.Code, w.Body)
			}
			var resp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error.Code != tc.wantCode {
				t.Errorf("expected code %q, got %q", tc.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestHandlerList(t *testing.T) {
	handler, f := newHandlerFixture(t)
	f.book(t, "09:00", "09:30")
	f.book(t, "10:00", "10:30")

	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	w := httptest.NewRecorder()
	handler.List(w, asCaller(req, f.patient))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp ListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 appointments, got %d", resp.Count)
	}
}

func TestHandlerGet_NotFound(t *testing.T) {
	handler, f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/"+uuid.NewString(), nil)
	req = withURLParam(asCaller(req, f.patient), "appointmentID", uuid.NewString())
	w := httptest.NewRecorder()
	handler.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestHandlerGet_BadID(t *testing.T) {
	handler, f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/nope", nil)
	req = withURLParam(asCaller(req, f.patient), "appointmentID", "nope")
	w := httptest.NewRecorder()
	handler.Get(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandlerCancel(t *testing.T) {
	handler, f := newHandlerFixture(t)
	appt := f.book(t, "09:00", "09:30")

	body := strings.NewReader(`{"reason":"flu"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/appointments/"+appt.ID.String()+"/cancel", body)
	req = withURLParam(asCaller(req, f.patient), "appointmentID", appt.ID.String())
	w := httptest.NewRecorder()
	handler.Cancel(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body)
	}
	var got Appointment
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
}

func TestHandlerCancel_EmptyBody(t *testing.T) {
	handler, f := newHandlerFixture(t)
	appt := f.book(t, "09:00", "09:30")

	req := httptest.NewRequest(http.MethodPatch, "/api/appointments/"+appt.ID.String()+"/cancel", nil)
	req = withURLParam(asCaller(req, f.patient), "appointmentID", appt.ID.String())
	w := httptest.NewRecorder()
	handler.Cancel(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body)
	}
}

func TestHandlerReschedule_Conflict(t *testing.T) {
	handler, f := newHandlerFixture(t)
	appt := f.book(t, "09:00", "09:30")
	f.book(t, "10:00", "10:30")

	body, _ := json.Marshal(RescheduleRequest{Date: testMonday, Start: "10:00", End: "10:30"})
	req := httptest.NewRequest(http.MethodPatch, "/api/appointments/"+appt.ID.String()+"/reschedule", bytes.NewReader(body))
	req = withURLParam(asCaller(req, f.patient), "appointmentID", appt.ID.String())
	w := httptest.NewRecorder()
	handler.Reschedule(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d: %s", http.StatusConflict, w.Code, w.Body)
	}
}

func TestHandlerModifyStatus(t *testing.T) {
	handler, f := newHandlerFixture(t)
	appt := f.book(t, "09:00", "09:30")

	body := strings.NewReader(`{"status":"confirmed"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/appointments/"+appt.ID.String()+"/status", body)
	req = withURLParam(asCaller(req, f.doctor), "appointmentID", appt.ID.String())
	w := httptest.NewRecorder()
	handler.ModifyStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body)
	}

	// Patients may not drive the state machine.
	body = strings.NewReader(`{"status":"in_progress"}`)
	req = httptest.NewRequest(http.MethodPatch, "/api/appointments/"+appt.ID.String()+"/status", body)
	req = withURLParam(asCaller(req, f.patient), "appointmentID", appt.ID.String())
	w = httptest.NewRecorder()
	handler.ModifyStatus(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}

func TestHandlerNotes_BadMode(t *testing.T) {
	handler, f := newHandlerFixture(t)
	appt := f.book(t, "09:00", "09:30")

	body := strings.NewReader(`{"mode":"prepend","text":"x"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/appointments/"+appt.ID.String()+"/notes", body)
	req = withURLParam(asCaller(req, f.patient), "appointmentID", appt.ID.String())
	w := httptest.NewRecorder()
	handler.Notes(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandlerNotes_Append(t *testing.T) {
	handler, f := newHandlerFixture(t)
	appt := f.book(t, "09:00", "09:30")

	body := strings.NewReader(`{"mode":"append","text":"bring referral"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/appointments/"+appt.ID.String()+"/notes", body)
	req = withURLParam(asCaller(req, f.doctor), "appointmentID", appt.ID.String())
	w := httptest.NewRecorder()
	handler.Notes(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body)
	}
	var got Appointment
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Notes != "bring referral" {
		t.Errorf("unexpected notes %q", got.Notes)
	}
}

func TestHandlerAudit(t *testing.T) {
	handler, f := newHandlerFixture(t)
	appt := f.book(t, "09:00", "09:30")

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/"+appt.ID.String()+"/audit", nil)
	req = withURLParam(asCaller(req, f.patient), "appointmentID", appt.ID.String())
	w := httptest.NewRecorder()
	handler.Audit(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp AuditResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("expected 1 audit entry, got %d", resp.Count)
	}
}

func TestHandlerFreeSlots(t *testing.T) {
	handler, f := newHandlerFixture(t)
	f.book(t, "10:00", "10:30")

	req := httptest.NewRequest(http.MethodGet, "/api/doctors/"+f.doctor.ID.String()+"/slots?date="+testMonday, nil)
	req = withURLParam(req, "doctorID", f.doctor.ID.String())
	w := httptest.NewRecorder()
	handler.FreeSlots(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body)
	}
	var resp SlotsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Slots) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(resp.Slots))
	}
	if resp.Date != testMonday {
		t.Errorf("unexpected date %s", resp.Date)
	}
}

func TestHandlerFreeSlots_BadDate(t *testing.T) {
	handler, f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/doctors/"+f.doctor.ID.String()+"/slots?date=tomorrow", nil)
	req = withURLParam(req, "doctorID", f.doctor.ID.String())
	w := httptest.NewRecorder()
	handler.FreeSlots(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandlerFreeSlots_BadDoctor(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/doctors/xyz/slots?date="+testMonday, nil)
	req = withURLParam(req, "doctorID", "xyz")
	w := httptest.NewRecorder()
	handler.FreeSlots(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandlerModel_DateJSONRoundTrip(t *testing.T) {
	date, err := ParseDate("2026-09-07")
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(date)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `"2026-09-07"` {
		t.Fatalf("unexpected encoding %s", raw)
	}
	var back Date
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.String() != "2026-09-07" {
		t.Fatalf("round trip mismatch %s", back)
	}
	if err := json.Unmarshal([]byte(`"soon"`), &back); err == nil {
		t.Fatal("expected error for malformed date")
	}
}
