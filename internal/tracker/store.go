package tracker

import "context"

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type StudentFilter struct {
	StaffID string
	Page
}

type StudyRecordFilter struct {
	StaffID   string
	StudentID string
	Page
}

type SubjectRecordFilter struct {
	StudyRecordID string
	Page
}

// DeleteResult reports every row removed by a delete, cascades included.
type DeleteResult struct {
	Staff          int           `json:"staff"`
	Students       int           `json:"students"`
	StudyRecords   []StudyRecord `json:"-"`
	SubjectRecords int           `json:"subject_records"`
}

// StudyRecordCount is len(StudyRecords), exposed for JSON.
func (d DeleteResult) StudyRecordCount() int {
	return len(d.StudyRecords)
}

// Store is the persistence boundary. Create fills in ID and timestamps.
// Update keeps CreatedAt and refreshes UpdatedAt. Deletes remove dependent
// rows in the same transaction. A reference to a missing parent fails with a
// *ConstraintError and a missing row with ErrNotFound.
type Store interface {
	CreateStaff(ctx context.Context, s *Staff) error
	UpdateStaff(ctx context.Context, s *Staff) error
	GetStaff(ctx context.Context, id string) (Staff, error)
	ListStaff(ctx context.Context, p Page) ([]Staff, error)
	DeleteStaff(ctx context.Context, id string) (DeleteResult, error)

	CreateStudent(ctx context.Context, s *Student) error
	UpdateStudent(ctx context.Context, s *Student) error
	GetStudent(ctx context.Context, id string) (Student, error)
	ListStudents(ctx context.Context, f StudentFilter) ([]Student, error)
	DeleteStudent(ctx context.Context, id string) (DeleteResult, error)

	CreateStudyRecord(ctx context.Context, r *StudyRecord) error
	UpdateStudyRecord(ctx context.Context, r *StudyRecord) error
	GetStudyRecord(ctx context.Context, id string) (StudyRecord, error)
	ListStudyRecords(ctx context.Context, f StudyRecordFilter) ([]StudyRecord, error)
	DeleteStudyRecord(ctx context.Context, id string) (DeleteResult, error)

	CreateSubjectRecord(ctx context.Context, r *SubjectRecord) error
	UpdateSubjectRecord(ctx context.Context, r *SubjectRecord) error
	GetSubjectRecord(ctx context.Context, id string) (SubjectRecord, error)
	ListSubjectRecords(ctx context.Context, f SubjectRecordFilter) ([]SubjectRecord, error)
	DeleteSubjectRecord(ctx context.Context, id string) (DeleteResult, error)

	// DailyTotals sums derived durations per date for from <= date <= to.
	// Dates without sessions are omitted.
	DailyTotals(ctx context.Context, owner Owner, from, to Date) ([]DailyTotal, error)

	Ping(ctx context.Context) error
}
