package tracker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps every table in maps guarded by one mutex. It enforces
// the same foreign keys and cascades as the Postgres schema and is meant for
// dev and tests.
type MemoryStore struct {
	mu       sync.Mutex
	seq      int64
	order    map[string]int64
	staff    map[string]Staff
	students map[string]Student
	records  map[string]StudyRecord
	subjects map[string]SubjectRecord
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		order:    make(map[string]int64),
		staff:    make(map[string]Staff),
		students: make(map[string]Student),
		records:  make(map[string]StudyRecord),
		subjects: make(map[string]SubjectRecord),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) stamp(id string) (string, time.Time) {
	if id == "" {
		id = uuid.NewString()
	}
	m.seq++
	m.order[id] = m.seq
	return id, m.now()
}

func missingParent(constraint string) error {
	return &ConstraintError{Constraint: constraint, Err: errors.New("referenced row does not exist")}
}

// newestFirst sorts ids by creation, latest first.
func (m *MemoryStore) newestFirst(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return m.order[ids[i]] > m.order[ids[j]] })
}

func pageOf[T any](items []T, p Page) []T {
	p = p.normalize()
	if p.Offset >= len(items) {
		return []T{}
	}
	end := p.Offset + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[p.Offset:end]
}

// ---- staff

func (m *MemoryStore) CreateStaff(_ context.Context, s *Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkStaffUser(s.UserID, ""); err != nil {
		return err
	}
	s.ID, s.CreatedAt = m.stamp(s.ID)
	s.UpdatedAt = s.CreatedAt
	m.staff[s.ID] = *s
	return nil
}

func (m *MemoryStore) checkStaffUser(userID *string, self string) error {
	if userID == nil {
		return nil
	}
	for id, other := range m.staff {
		if id != self && other.UserID != nil && *other.UserID == *userID {
			return &ConstraintError{Constraint: "staff_user_id_key", Err: errors.New("user already linked to another staff")}
		}
	}
	return nil
}

func (m *MemoryStore) UpdateStaff(_ context.Context, s *Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.staff[s.ID]
	if !ok {
		return ErrNotFound
	}
	if err := m.checkStaffUser(s.UserID, s.ID); err != nil {
		return err
	}
	s.CreatedAt = prev.CreatedAt
	s.UpdatedAt = m.now()
	m.staff[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetStaff(_ context.Context, id string) (Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok {
		return Staff{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) ListStaff(_ context.Context, p Page) ([]Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.staff))
	for id := range m.staff {
		ids = append(ids, id)
	}
	m.newestFirst(ids)
	out := make([]Staff, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.staff[id])
	}
	return pageOf(out, p), nil
}

func (m *MemoryStore) DeleteStaff(_ context.Context, id string) (DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.staff[id]; !ok {
		return DeleteResult{}, ErrNotFound
	}
	var res DeleteResult
	for sid, st := range m.students {
		if st.StaffID != nil && *st.StaffID == id {
			m.deleteStudentLocked(sid, &res)
		}
	}
	for rid, r := range m.records {
		if r.StaffID != nil && *r.StaffID == id {
			m.deleteRecordLocked(rid, &res)
		}
	}
	delete(m.staff, id)
	delete(m.order, id)
	res.Staff++
	return res, nil
}

// ---- students

func (m *MemoryStore) CreateStudent(_ context.Context, s *Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.StaffID != nil {
		if _, ok := m.staff[*s.StaffID]; !ok {
			return missingParent("students_staff_id_fkey")
		}
	}
	s.ID, s.CreatedAt = m.stamp(s.ID)
	s.UpdatedAt = s.CreatedAt
	m.students[s.ID] = *s
	return nil
}

func (m *MemoryStore) UpdateStudent(_ context.Context, s *Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.students[s.ID]
	if !ok {
		return ErrNotFound
	}
	if s.StaffID != nil {
		if _, ok := m.staff[*s.StaffID]; !ok {
			return missingParent("students_staff_id_fkey")
		}
	}
	s.CreatedAt = prev.CreatedAt
	s.UpdatedAt = m.now()
	m.students[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetStudent(_ context.Context, id string) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return Student{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) ListStudents(_ context.Context, f StudentFilter) ([]Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.students {
		if f.StaffID != "" && (s.StaffID == nil || *s.StaffID != f.StaffID) {
			continue
		}
		ids = append(ids, id)
	}
	m.newestFirst(ids)
	out := make([]Student, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.students[id])
	}
	return pageOf(out, f.Page), nil
}

func (m *MemoryStore) DeleteStudent(_ context.Context, id string) (DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return DeleteResult{}, ErrNotFound
	}
	var res DeleteResult
	m.deleteStudentLocked(id, &res)
	return res, nil
}

func (m *MemoryStore) deleteStudentLocked(id string, res *DeleteResult) {
	for rid, r := range m.records {
		if r.StudentID != nil && *r.StudentID == id {
			m.deleteRecordLocked(rid, res)
		}
	}
	delete(m.students, id)
	delete(m.order, id)
	res.Students++
}

// ---- study records

func (m *MemoryStore) checkOwners(r *StudyRecord) error {
	if r.StaffID != nil {
		if _, ok := m.staff[*r.StaffID]; !ok {
			return missingParent("study_records_staff_id_fkey")
		}
	}
	if r.StudentID != nil {
		if _, ok := m.students[*r.StudentID]; !ok {
			return missingParent("study_records_student_id_fkey")
		}
	}
	return nil
}

func (m *MemoryStore) CreateStudyRecord(_ context.Context, r *StudyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOwners(r); err != nil {
		return err
	}
	r.ID, r.CreatedAt = m.stamp(r.ID)
	r.UpdatedAt = r.CreatedAt
	m.records[r.ID] = *r
	return nil
}

func (m *MemoryStore) UpdateStudyRecord(_ context.Context, r *StudyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.records[r.ID]
	if !ok {
		return ErrNotFound
	}
	if err := m.checkOwners(r); err != nil {
		return err
	}
	r.CreatedAt = prev.CreatedAt
	r.UpdatedAt = m.now()
	m.records[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetStudyRecord(_ context.Context, id string) (StudyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return StudyRecord{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) ListStudyRecords(_ context.Context, f StudyRecordFilter) ([]StudyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, r := range m.records {
		if f.StaffID != "" && (r.StaffID == nil || *r.StaffID != f.StaffID) {
			continue
		}
		if f.StudentID != "" && (r.StudentID == nil || *r.StudentID != f.StudentID) {
			continue
		}
		ids = append(ids, id)
	}
	m.newestFirst(ids)
	out := make([]StudyRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.records[id])
	}
	return pageOf(out, f.Page), nil
}

func (m *MemoryStore) DeleteStudyRecord(_ context.Context, id string) (DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return DeleteResult{}, ErrNotFound
	}
	var res DeleteResult
	m.deleteRecordLocked(id, &res)
	return res, nil
}

func (m *MemoryStore) deleteRecordLocked(id string, res *DeleteResult) {
	r, ok := m.records[id]
	if !ok {
		// already removed through another owner in this cascade
		return
	}
	for sid, sub := range m.subjects {
		if sub.StudyRecordID == id {
			delete(m.subjects, sid)
			delete(m.order, sid)
			res.SubjectRecords++
		}
	}
	delete(m.records, id)
	delete(m.order, id)
	res.StudyRecords = append(res.StudyRecords, r)
}

// ---- subject records

func (m *MemoryStore) CreateSubjectRecord(_ context.Context, r *SubjectRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.StudyRecordID]; !ok {
		return missingParent("subject_records_study_record_id_fkey")
	}
	r.ID, r.CreatedAt = m.stamp(r.ID)
	r.UpdatedAt = r.CreatedAt
	m.subjects[r.ID] = *r
	return nil
}

func (m *MemoryStore) UpdateSubjectRecord(_ context.Context, r *SubjectRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.subjects[r.ID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.records[r.StudyRecordID]; !ok {
		return missingParent("subject_records_study_record_id_fkey")
	}
	r.CreatedAt = prev.CreatedAt
	r.UpdatedAt = m.now()
	m.subjects[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetSubjectRecord(_ context.Context, id string) (SubjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.subjects[id]
	if !ok {
		return SubjectRecord{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) ListSubjectRecords(_ context.Context, f SubjectRecordFilter) ([]SubjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, r := range m.subjects {
		if f.StudyRecordID != "" && r.StudyRecordID != f.StudyRecordID {
			continue
		}
		ids = append(ids, id)
	}
	m.newestFirst(ids)
	out := make([]SubjectRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.subjects[id])
	}
	return pageOf(out, f.Page), nil
}

func (m *MemoryStore) DeleteSubjectRecord(_ context.Context, id string) (DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[id]; !ok {
		return DeleteResult{}, ErrNotFound
	}
	delete(m.subjects, id)
	delete(m.order, id)
	return DeleteResult{SubjectRecords: 1}, nil
}

// ---- totals

func (m *MemoryStore) DailyTotals(_ context.Context, owner Owner, from, to Date) ([]DailyTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDate := make(map[string]*DailyTotal)
	for _, r := range m.records {
		ref := r.StaffID
		if owner.Kind == OwnerStudent {
			ref = r.StudentID
		}
		if ref == nil || *ref != owner.ID {
			continue
		}
		if r.Date.Before(from.Time) || r.Date.After(to.Time) {
			continue
		}
		key := r.Date.String()
		t, ok := byDate[key]
		if !ok {
			t = &DailyTotal{Date: r.Date}
			byDate[key] = t
		}
		t.Total += r.TotalDuration
		t.Sessions++
	}
	out := make([]DailyTotal, 0, len(byDate))
	for _, t := range byDate {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}
