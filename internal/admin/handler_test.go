package admin

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"studytracker/internal/auth"
	"studytracker/internal/totals"
	"studytracker/internal/tracker"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		t.Fatal(err)
	}
	store := tracker.NewMemoryStore()
	h := NewHandler(tracker.NewService(store, nil), totals.NewService(store, totals.NewMemoryCache()))
	r := gin.New()
	v1 := r.Group("/v1")
	h.Register(v1.Group("/admin"))
	h.RegisterReports(v1)
	return r
}

type response struct {
	Code int
	Body map[string]any
}

func do(t *testing.T, r http.Handler, method, path string, body any) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	out := response{Code: w.Code}
	if err := json.Unmarshal(w.Body.Bytes(), &out.Body); err != nil {
		t.Fatalf("%s %s: non-JSON body %q", method, path, w.Body.String())
	}
	return out
}

func data(t *testing.T, res response) map[string]any {
	t.Helper()
	d, ok := res.Body["data"].(map[string]any)
	if !ok {
		t.Fatalf("no data object in %v", res.Body)
	}
	return d
}

func createStudent(t *testing.T, r http.Handler, staffID string) string {
	t.Helper()
	body := map[string]any{"name": "Arun"}
	if staffID != "" {
		body["staff_id"] = staffID
	}
	res := do(t, r, http.MethodPost, "/v1/admin/students", body)
	if res.Code != http.StatusCreated {
		t.Fatalf("create student: %d %v", res.Code, res.Body)
	}
	return data(t, res)["id"].(string)
}

func TestStudyRecordWithoutOwnersRejected(t *testing.T) {
	r := newTestRouter(t)
	res := do(t, r, http.MethodPost, "/v1/admin/study-records", map[string]any{
		"date": "2024-03-01", "time_in": "09:00", "time_out": "10:00",
	})
	if res.Code != http.StatusBadRequest || res.Body["field"] != "student_id" {
		t.Fatalf("got %d %v", res.Code, res.Body)
	}
	list := do(t, r, http.MethodGet, "/v1/admin/study-records", nil)
	if items := list.Body["data"].([]any); len(items) != 0 {
		t.Fatalf("rejected record persisted: %v", items)
	}
}

func TestStudyRecordDurationDerived(t *testing.T) {
	r := newTestRouter(t)
	student := createStudent(t, r, "")

	res := do(t, r, http.MethodPost, "/v1/admin/study-records", map[string]any{
		"student_id":     student,
		"date":           "2024-03-01",
		"time_in":        "22:00",
		"time_out":       "06:00",
		"total_duration": "1:00:00",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("got %d %v", res.Code, res.Body)
	}
	rec := data(t, res)
	if rec["total_duration"] != "8:00:00" || rec["staff_id"] != nil {
		t.Fatalf("record = %v", rec)
	}
	if res.Body["label"] != student+" - 2024-03-01" {
		t.Errorf("label = %v", res.Body["label"])
	}

	id := rec["id"].(string)
	res = do(t, r, http.MethodPut, "/v1/admin/study-records/"+id, map[string]any{
		"student_id": student, "date": "2024-03-01", "time_in": "09:00", "time_out": "17:30",
	})
	if res.Code != http.StatusOK || data(t, res)["total_duration"] != "8:30:00" {
		t.Fatalf("update: %d %v", res.Code, res.Body)
	}
}

func TestBindingErrorsNameFields(t *testing.T) {
	r := newTestRouter(t)
	res := do(t, r, http.MethodPost, "/v1/admin/study-records", map[string]any{
		"student_id": "not-a-uuid", "date": "01/03/2024", "time_in": "25:00", "time_out": "10:00",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("got %d %v", res.Code, res.Body)
	}
	fields, _ := res.Body["fields"].(map[string]any)
	want := map[string]string{"student_id": "uuid", "date": "isodate", "time_in": "clock"}
	for f, tag := range want {
		if fields[f] != tag {
			t.Errorf("fields[%s] = %v, want %s", f, fields[f], tag)
		}
	}
}

func TestMissingParentIsConflict(t *testing.T) {
	r := newTestRouter(t)
	res := do(t, r, http.MethodPost, "/v1/admin/study-records", map[string]any{
		"staff_id": "3f1c8f9e-2b8e-4c1e-9a53-3a0f6d1f0a11", "date": "2024-03-01", "time_in": "09:00", "time_out": "10:00",
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("got %d %v", res.Code, res.Body)
	}
}

func TestUnknownIDsAreNotFound(t *testing.T) {
	r := newTestRouter(t)
	for _, path := range []string{"/v1/admin/staff/nope", "/v1/admin/students/3f1c8f9e-2b8e-4c1e-9a53-3a0f6d1f0a11"} {
		if res := do(t, r, http.MethodGet, path, nil); res.Code != http.StatusNotFound {
			t.Errorf("GET %s: %d", path, res.Code)
		}
	}
}

func TestSubjectRecordLifecycle(t *testing.T) {
	r := newTestRouter(t)
	student := createStudent(t, r, "")
	rec := do(t, r, http.MethodPost, "/v1/admin/study-records", map[string]any{
		"student_id": student, "date": "2024-03-01", "time_in": "09:00", "time_out": "11:00",
	})
	recID := data(t, rec)["id"].(string)

	bad := do(t, r, http.MethodPost, "/v1/admin/subject-records", map[string]any{
		"study_record_id": recID, "subject": "Music", "time_spent": "1:00",
	})
	if fields, _ := bad.Body["fields"].(map[string]any); bad.Code != http.StatusBadRequest || fields["subject"] != "subject" {
		t.Fatalf("unknown subject: %d %v", bad.Code, bad.Body)
	}
	neg := do(t, r, http.MethodPost, "/v1/admin/subject-records", map[string]any{
		"study_record_id": recID, "subject": "Math", "time_spent": "1:00", "two_mark_learned": -1,
	})
	if neg.Code != http.StatusBadRequest {
		t.Fatalf("negative counter: %d %v", neg.Code, neg.Body)
	}

	ok := do(t, r, http.MethodPost, "/v1/admin/subject-records", map[string]any{
		"study_record_id": recID, "subject": "Math", "time_spent": "1:15", "five_mark_learned": 4,
	})
	if ok.Code != http.StatusCreated || ok.Body["label"] != "Mathematics" || data(t, ok)["time_spent"] != "1:15:00" {
		t.Fatalf("create: %d %v", ok.Code, ok.Body)
	}

	del := do(t, r, http.MethodDelete, "/v1/admin/study-records/"+recID, nil)
	deleted, _ := del.Body["deleted"].(map[string]any)
	if del.Code != http.StatusOK || deleted["subject_records"] != float64(1) || deleted["study_records"] != float64(1) {
		t.Fatalf("delete: %d %v", del.Code, del.Body)
	}
	list := do(t, r, http.MethodGet, "/v1/admin/subject-records?study_record_id="+recID, nil)
	if items := list.Body["data"].([]any); len(items) != 0 {
		t.Fatalf("subject records survived: %v", items)
	}
}

func TestDeleteStaffCascade(t *testing.T) {
	r := newTestRouter(t)
	staff := do(t, r, http.MethodPost, "/v1/admin/staff", map[string]any{"user_id": "tutor-1"})
	if staff.Code != http.StatusCreated || staff.Body["label"] != "tutor-1" {
		t.Fatalf("create staff: %d %v", staff.Code, staff.Body)
	}
	staffID := data(t, staff)["id"].(string)
	student := createStudent(t, r, staffID)
	do(t, r, http.MethodPost, "/v1/admin/study-records", map[string]any{
		"student_id": student, "date": "2024-03-01", "time_in": "09:00", "time_out": "10:00",
	})
	do(t, r, http.MethodPost, "/v1/admin/study-records", map[string]any{
		"staff_id": staffID, "date": "2024-03-02", "time_in": "09:00", "time_out": "10:00",
	})

	res := do(t, r, http.MethodDelete, "/v1/admin/staff/"+staffID, nil)
	deleted, _ := res.Body["deleted"].(map[string]any)
	if res.Code != http.StatusOK || deleted["students"] != float64(1) || deleted["study_records"] != float64(2) {
		t.Fatalf("delete: %d %v", res.Code, res.Body)
	}
	if got := do(t, r, http.MethodGet, "/v1/admin/students/"+student, nil); got.Code != http.StatusNotFound {
		t.Fatalf("student survived: %d", got.Code)
	}
}

func TestSchema(t *testing.T) {
	r := newTestRouter(t)
	res := do(t, r, http.MethodGet, "/v1/admin/schema", nil)
	models, _ := res.Body["models"].([]any)
	if res.Code != http.StatusOK || len(models) != 4 {
		t.Fatalf("schema: %d %v", res.Code, res.Body)
	}
	var subject map[string]any
	for _, m := range models {
		if m.(map[string]any)["resource"] != "subject-records" {
			continue
		}
		for _, f := range m.(map[string]any)["fields"].([]any) {
			if f.(map[string]any)["name"] == "subject" {
				subject = f.(map[string]any)
			}
		}
	}
	if choices, _ := subject["choices"].([]any); len(choices) != 7 {
		t.Fatalf("subject choices = %v", subject["choices"])
	}
}

func TestDailyTotalsReport(t *testing.T) {
	r := newTestRouter(t)
	student := createStudent(t, r, "")
	for _, span := range [][2]string{{"09:00", "17:30"}, {"22:00", "06:00"}} {
		do(t, r, http.MethodPost, "/v1/admin/study-records", map[string]any{
			"student_id": student, "date": "2024-03-01", "time_in": span[0], "time_out": span[1],
		})
	}
	res := do(t, r, http.MethodGet, "/v1/reports/daily-totals?student_id="+student+"&from=2024-02-28&to=2024-03-02", nil)
	if res.Code != http.StatusOK || res.Body["total_duration"] != "16:30:00" {
		t.Fatalf("report: %d %v", res.Code, res.Body)
	}
	if days := res.Body["days"].([]any); len(days) != 1 {
		t.Fatalf("days = %v", days)
	}

	if res := do(t, r, http.MethodGet, "/v1/reports/daily-totals?from=2024-02-28", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("missing owner: %d", res.Code)
	}
	if res := do(t, r, http.MethodGet, "/v1/reports/daily-totals?staff_id=x&from=2024-03-02&to=2024-03-01", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("reversed range: %d", res.Code)
	}
}

func TestWritesAreAuditedWithTokenSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	signer := auth.NewSigner("studytracker", "secret", time.Minute, time.Hour)
	pair, err := signer.Issue("ops@school", auth.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	store := tracker.NewMemoryStore()
	h := NewHandler(tracker.NewService(store, nil), totals.NewService(store, totals.NewMemoryCache()))
	r := gin.New()
	h.Register(r.Group("/v1/admin", auth.RequireRole(signer, auth.RoleAdmin)))

	send := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			_ = json.NewEncoder(&buf).Encode(body)
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send(http.MethodPost, "/v1/admin/students", map[string]any{"name": "Arun"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}
	var created struct {
		Data tracker.Student `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if w := send(http.MethodDelete, "/v1/admin/students/"+created.Data.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", w.Code, w.Body)
	}
	want := "admin ops@school: delete students/" + created.Data.ID
	if !strings.Contains(logs.String(), want) {
		t.Fatalf("log %q does not contain %q", logs.String(), want)
	}
}
