package tracker

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"studytracker/internal/metrics"
)

// Change kinds carried by ChangeEvent.
const (
	ChangeSaved   = "study_record.saved"
	ChangeDeleted = "study_record.deleted"
)

// ChangeEvent announces a committed write to a study record. Owners and Date
// identify the daily totals it affects.
type ChangeEvent struct {
	Kind     string  `json:"kind"`
	RecordID string  `json:"record_id"`
	Owners   []Owner `json:"owners"`
	Date     Date    `json:"date"`
}

// Notifier receives change events after commit. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, evt ChangeEvent) error
}

// Service runs every write through validate, derive and persist, in that
// order, and announces study record changes.
type Service struct {
	store  Store
	notify Notifier
}

// NewService creates a service. notify may be nil.
func NewService(store Store, notify Notifier) *Service {
	return &Service{store: store, notify: notify}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case IsValidation(err):
		return metrics.ResultInvalid
	case IsConstraint(err):
		return metrics.ResultConstraint
	case errors.Is(err, ErrNotFound):
		return metrics.ResultNotFound
	default:
		return metrics.ResultError
	}
}

func observe(entity, op string, err error) error {
	metrics.ObserveWrite(entity, op, resultOf(err))
	return err
}

// normalizeRef treats a blank reference as absent.
func normalizeRef(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) announce(ctx context.Context, kind string, r StudyRecord) {
	if s.notify == nil {
		return
	}
	evt := ChangeEvent{Kind: kind, RecordID: r.ID, Owners: r.Owners(), Date: r.Date}
	if err := s.notify.Notify(ctx, evt); err != nil {
		log.Printf("change notify failed for %s: %v", r.ID, err)
	}
}

func (s *Service) announceDeleted(ctx context.Context, res DeleteResult) {
	for _, r := range res.StudyRecords {
		s.announce(ctx, ChangeDeleted, r)
	}
	metrics.ObserveCascade("study_record", len(res.StudyRecords))
	metrics.ObserveCascade("subject_record", res.SubjectRecords)
}

// ---- staff

func (s *Service) CreateStaff(ctx context.Context, st Staff) (Staff, error) {
	st.ID = ""
	st.UserID = normalizeRef(st.UserID)
	err := s.store.CreateStaff(ctx, &st)
	return st, observe("staff", "create", err)
}

func (s *Service) UpdateStaff(ctx context.Context, st Staff) (Staff, error) {
	st.UserID = normalizeRef(st.UserID)
	err := s.store.UpdateStaff(ctx, &st)
	return st, observe("staff", "update", err)
}

func (s *Service) GetStaff(ctx context.Context, id string) (Staff, error) {
	return s.store.GetStaff(ctx, id)
}

func (s *Service) ListStaff(ctx context.Context, p Page) ([]Staff, error) {
	return s.store.ListStaff(ctx, p)
}

// DeleteStaff deletes the staff member and cascades to its students, their
// study records and its own study records.
func (s *Service) DeleteStaff(ctx context.Context, id string) (DeleteResult, error) {
	res, err := s.store.DeleteStaff(ctx, id)
	if observe("staff", "delete", err) != nil {
		return res, err
	}
	metrics.ObserveCascade("student", res.Students)
	s.announceDeleted(ctx, res)
	return res, nil
}

// ---- students

func (s *Service) CreateStudent(ctx context.Context, st Student) (Student, error) {
	st.ID = ""
	st.Name = strings.TrimSpace(st.Name)
	st.StaffID = normalizeRef(st.StaffID)
	if err := ValidateStudent(st); err != nil {
		return st, observe("student", "create", err)
	}
	err := s.store.CreateStudent(ctx, &st)
	return st, observe("student", "create", err)
}

func (s *Service) UpdateStudent(ctx context.Context, st Student) (Student, error) {
	st.Name = strings.TrimSpace(st.Name)
	st.StaffID = normalizeRef(st.StaffID)
	if err := ValidateStudent(st); err != nil {
		return st, observe("student", "update", err)
	}
	err := s.store.UpdateStudent(ctx, &st)
	return st, observe("student", "update", err)
}

func (s *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return s.store.GetStudent(ctx, id)
}

func (s *Service) ListStudents(ctx context.Context, f StudentFilter) ([]Student, error) {
	return s.store.ListStudents(ctx, f)
}

func (s *Service) DeleteStudent(ctx context.Context, id string) (DeleteResult, error) {
	res, err := s.store.DeleteStudent(ctx, id)
	if observe("student", "delete", err) != nil {
		return res, err
	}
	s.announceDeleted(ctx, res)
	return res, nil
}

// ---- study records

// CreateStudyRecord validates r, derives its total duration (discarding any
// value the caller set) and persists it.
func (s *Service) CreateStudyRecord(ctx context.Context, r StudyRecord) (StudyRecord, error) {
	r.ID = ""
	r, err := s.saveStudyRecord(ctx, r, s.store.CreateStudyRecord)
	if observe("study_record", "create", err) != nil {
		return r, err
	}
	s.announce(ctx, ChangeSaved, r)
	return r, nil
}

// UpdateStudyRecord runs the same pipeline as CreateStudyRecord. Totals of
// the record's previous owners and date are refreshed as well.
func (s *Service) UpdateStudyRecord(ctx context.Context, r StudyRecord) (StudyRecord, error) {
	prev, err := s.store.GetStudyRecord(ctx, r.ID)
	if err != nil {
		return r, observe("study_record", "update", err)
	}
	r, err = s.saveStudyRecord(ctx, r, s.store.UpdateStudyRecord)
	if observe("study_record", "update", err) != nil {
		return r, err
	}
	s.announce(ctx, ChangeSaved, prev)
	s.announce(ctx, ChangeSaved, r)
	return r, nil
}

func (s *Service) saveStudyRecord(ctx context.Context, r StudyRecord, persist func(context.Context, *StudyRecord) error) (StudyRecord, error) {
	r.StaffID = normalizeRef(r.StaffID)
	r.StudentID = normalizeRef(r.StudentID)
	if err := ValidateStudyRecord(r); err != nil {
		return r, err
	}
	DeriveStudyRecord(&r)
	if err := persist(ctx, &r); err != nil {
		return r, err
	}
	metrics.ObserveSession(time.Duration(r.TotalDuration))
	return r, nil
}

func (s *Service) GetStudyRecord(ctx context.Context, id string) (StudyRecord, error) {
	return s.store.GetStudyRecord(ctx, id)
}

func (s *Service) ListStudyRecords(ctx context.Context, f StudyRecordFilter) ([]StudyRecord, error) {
	return s.store.ListStudyRecords(ctx, f)
}

// DeleteStudyRecord deletes the record and its subject records.
func (s *Service) DeleteStudyRecord(ctx context.Context, id string) (DeleteResult, error) {
	res, err := s.store.DeleteStudyRecord(ctx, id)
	if observe("study_record", "delete", err) != nil {
		return res, err
	}
	s.announceDeleted(ctx, res)
	return res, nil
}

// ---- subject records

func (s *Service) CreateSubjectRecord(ctx context.Context, r SubjectRecord) (SubjectRecord, error) {
	r.ID = ""
	if err := ValidateSubjectRecord(r); err != nil {
		return r, observe("subject_record", "create", err)
	}
	err := s.store.CreateSubjectRecord(ctx, &r)
	return r, observe("subject_record", "create", err)
}

func (s *Service) UpdateSubjectRecord(ctx context.Context, r SubjectRecord) (SubjectRecord, error) {
	if err := ValidateSubjectRecord(r); err != nil {
		return r, observe("subject_record", "update", err)
	}
	err := s.store.UpdateSubjectRecord(ctx, &r)
	return r, observe("subject_record", "update", err)
}

func (s *Service) GetSubjectRecord(ctx context.Context, id string) (SubjectRecord, error) {
	return s.store.GetSubjectRecord(ctx, id)
}

func (s *Service) ListSubjectRecords(ctx context.Context, f SubjectRecordFilter) ([]SubjectRecord, error) {
	return s.store.ListSubjectRecords(ctx, f)
}

func (s *Service) DeleteSubjectRecord(ctx context.Context, id string) (DeleteResult, error) {
	res, err := s.store.DeleteSubjectRecord(ctx, id)
	return res, observe("subject_record", "delete", err)
}
