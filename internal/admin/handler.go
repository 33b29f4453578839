package admin

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"studytracker/internal/totals"
	"studytracker/internal/tracker"
)

// Handler serves the admin CRUD API and reports.
type Handler struct {
	svc    *tracker.Service
	totals *totals.Service
}

func NewHandler(svc *tracker.Service, reports *totals.Service) *Handler {
	return &Handler{svc: svc, totals: reports}
}

// Register mounts the schema and one CRUD group per registered model.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/schema", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"models": Registry()})
	})

	resource[tracker.Staff, staffRequest]{
		name:   "staff",
		withID: func(s tracker.Staff, id string) tracker.Staff {
			s.ID = id
			return s
		},
		list: func(c *gin.Context, p tracker.Page) ([]tracker.Staff, error) {
			return h.svc.ListStaff(c.Request.Context(), p)
		},
		get:    h.svc.GetStaff,
		create: h.svc.CreateStaff,
		update: h.svc.UpdateStaff,
		remove: h.svc.DeleteStaff,
	}.register(rg)

	resource[tracker.Student, studentRequest]{
		name:   "students",
		withID: func(s tracker.Student, id string) tracker.Student {
			s.ID = id
			return s
		},
		list: func(c *gin.Context, p tracker.Page) ([]tracker.Student, error) {
			return h.svc.ListStudents(c.Request.Context(), tracker.StudentFilter{StaffID: c.Query("staff_id"), Page: p})
		},
		get:    h.svc.GetStudent,
		create: h.svc.CreateStudent,
		update: h.svc.UpdateStudent,
		remove: h.svc.DeleteStudent,
	}.register(rg)

	resource[tracker.StudyRecord, studyRecordRequest]{
		name:   "study-records",
		withID: func(r tracker.StudyRecord, id string) tracker.StudyRecord {
			r.ID = id
			return r
		},
		list: func(c *gin.Context, p tracker.Page) ([]tracker.StudyRecord, error) {
			return h.svc.ListStudyRecords(c.Request.Context(), tracker.StudyRecordFilter{
				StaffID:   c.Query("staff_id"),
				StudentID: c.Query("student_id"),
				Page:      p,
			})
		},
		get:    h.svc.GetStudyRecord,
		create: h.svc.CreateStudyRecord,
		update: h.svc.UpdateStudyRecord,
		remove: h.svc.DeleteStudyRecord,
	}.register(rg)

	resource[tracker.SubjectRecord, subjectRecordRequest]{
		name:   "subject-records",
		withID: func(r tracker.SubjectRecord, id string) tracker.SubjectRecord {
			r.ID = id
			return r
		},
		list: func(c *gin.Context, p tracker.Page) ([]tracker.SubjectRecord, error) {
			return h.svc.ListSubjectRecords(c.Request.Context(), tracker.SubjectRecordFilter{StudyRecordID: c.Query("study_record_id"), Page: p})
		},
		get:    h.svc.GetSubjectRecord,
		create: h.svc.CreateSubjectRecord,
		update: h.svc.UpdateSubjectRecord,
		remove: h.svc.DeleteSubjectRecord,
	}.register(rg)
}

// respondError maps domain errors to status codes.
func respondError(c *gin.Context, err error) {
	var verr *tracker.ValidationError
	var cerr *tracker.ConstraintError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, gin.H{"error": cerr.Error()})
	case errors.Is(err, tracker.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, totals.ErrRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
