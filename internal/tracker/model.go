package tracker

import (
	"fmt"
	"time"
)

// Subject is the closed set of subjects a study session can be broken into.
type Subject string

const (
	SubjectTamil           Subject = "Tam"
	SubjectEnglish         Subject = "Eng"
	SubjectMathematics     Subject = "Math"
	SubjectScience         Subject = "Sci"
	SubjectSocialStudies   Subject = "SS"
	SubjectComputerScience Subject = "Comp"
	SubjectOther           Subject = "Other"
)

var subjects = []struct {
	code  Subject
	label string
}{
	{SubjectTamil, "Tamil"},
	{SubjectEnglish, "English"},
	{SubjectMathematics, "Mathematics"},
	{SubjectScience, "Science"},
	{SubjectSocialStudies, "Social Studies"},
	{SubjectComputerScience, "Computer Science"},
	{SubjectOther, "Other"},
}

// Subjects lists every subject in display order.
func Subjects() []Subject {
	out := make([]Subject, len(subjects))
	for i, s := range subjects {
		out[i] = s.code
	}
	return out
}

// ParseSubject returns the subject for a code such as "Math".
func ParseSubject(code string) (Subject, error) {
	s := Subject(code)
	if !s.Valid() {
		return "", fmt.Errorf("unknown subject %q", code)
	}
	return s, nil
}

func (s Subject) Valid() bool {
	return s.Label() != ""
}

// Label is the human-readable subject name, or "" for unknown codes.
func (s Subject) Label() string {
	for _, sub := range subjects {
		if sub.code == s {
			return sub.label
		}
	}
	return ""
}

// Staff is an administrator or tutor account.
type Staff struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s Staff) Label() string {
	if s.UserID != nil && *s.UserID != "" {
		return *s.UserID
	}
	return s.ID
}

// Student is a tracked learner, optionally owned by a Staff.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StaffID   *string   `json:"staff_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s Student) Label() string {
	return s.Name
}

// StudyRecord is one logged study session.
type StudyRecord struct {
	ID            string    `json:"id"`
	StaffID       *string   `json:"staff_id"`
	StudentID     *string   `json:"student_id"`
	Date          Date      `json:"date"`
	TimeIn        TimeOfDay `json:"time_in"`
	TimeOut       TimeOfDay `json:"time_out"`
	TotalDuration Span      `json:"total_duration"`
	Description   *string   `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Label renders "<owner> - <date>", preferring the student as owner.
func (r StudyRecord) Label() string {
	owner := ""
	switch {
	case r.StudentID != nil:
		owner = *r.StudentID
	case r.StaffID != nil:
		owner = *r.StaffID
	}
	return fmt.Sprintf("%s - %s", owner, r.Date)
}

// Owners lists the staff and student the record counts toward.
func (r StudyRecord) Owners() []Owner {
	var out []Owner
	if r.StaffID != nil {
		out = append(out, Owner{Kind: OwnerStaff, ID: *r.StaffID})
	}
	if r.StudentID != nil {
		out = append(out, Owner{Kind: OwnerStudent, ID: *r.StudentID})
	}
	return out
}

// SubjectRecord breaks a study session down by subject.
type SubjectRecord struct {
	ID              string    `json:"id"`
	StudyRecordID   string    `json:"study_record_id"`
	Subject         Subject   `json:"subject"`
	TimeSpent       Span      `json:"time_spent"`
	Description     *string   `json:"description"`
	TwoMarkLearned  int       `json:"two_mark_learned"`
	FiveMarkLearned int       `json:"five_mark_learned"`
	OtherLearned    int       `json:"other_learned"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (r SubjectRecord) Label() string {
	return r.Subject.Label()
}

// OwnerKind says which column a study total is keyed on.
type OwnerKind string

const (
	OwnerStaff   OwnerKind = "staff"
	OwnerStudent OwnerKind = "student"
)

// Owner identifies the staff member or student a total belongs to.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

func (o Owner) String() string {
	return string(o.Kind) + ":" + o.ID
}

// DailyTotal is the summed study time of one owner on one date.
type DailyTotal struct {
	Date     Date `json:"date"`
	Total    Span `json:"total_duration"`
	Sessions int  `json:"sessions"`
}
