package tracker

import "strings"

// ValidateStudyRecord rejects a record that names neither a staff member nor
// a student. No other combination of fields is rejected.
func ValidateStudyRecord(r StudyRecord) error {
	if isBlank(r.StaffID) && isBlank(r.StudentID) {
		return invalid("student_id", "a study record needs a staff member or a student")
	}
	return nil
}

func ValidateStudent(s Student) error {
	if strings.TrimSpace(s.Name) == "" {
		return invalid("name", "name is required")
	}
	return nil
}

func ValidateSubjectRecord(r SubjectRecord) error {
	switch {
	case r.StudyRecordID == "":
		return invalid("study_record_id", "study record is required")
	case !r.Subject.Valid():
		return invalid("subject", "unknown subject %q", string(r.Subject))
	case r.TimeSpent < 0:
		return invalid("time_spent", "time spent cannot be negative")
	case r.TwoMarkLearned < 0:
		return invalid("two_mark_learned", "must not be negative")
	case r.FiveMarkLearned < 0:
		return invalid("five_mark_learned", "must not be negative")
	case r.OtherLearned < 0:
		return invalid("other_learned", "must not be negative")
	}
	return nil
}

func isBlank(p *string) bool {
	return p == nil || *p == ""
}
