package admin

import (
	"time"

	"studytracker/internal/tracker"
)

type staffRequest struct {
	UserID *string `json:"user_id" binding:"omitempty,max=150"`
}

func (r staffRequest) decode() (tracker.Staff, error) {
	return tracker.Staff{UserID: r.UserID}, nil
}

type studentRequest struct {
	Name    string  `json:"name" binding:"required,max=200"`
	StaffID *string `json:"staff_id" binding:"omitempty,uuid"`
}

func (r studentRequest) decode() (tracker.Student, error) {
	return tracker.Student{Name: r.Name, StaffID: r.StaffID}, nil
}

// studyRecordRequest has no total_duration: it is always derived.
type studyRecordRequest struct {
	StaffID     *string `json:"staff_id" binding:"omitempty,uuid"`
	StudentID   *string `json:"student_id" binding:"omitempty,uuid"`
	Date        string  `json:"date" binding:"required,isodate"`
	TimeIn      string  `json:"time_in" binding:"required,clock"`
	TimeOut     string  `json:"time_out" binding:"required,clock"`
	Description *string `json:"description"`
}

func (r studyRecordRequest) decode() (tracker.StudyRecord, error) {
	date, err := tracker.ParseDate(r.Date)
	if err != nil {
		return tracker.StudyRecord{}, err
	}
	in, err := tracker.ParseTimeOfDay(r.TimeIn)
	if err != nil {
		return tracker.StudyRecord{}, err
	}
	out, err := tracker.ParseTimeOfDay(r.TimeOut)
	if err != nil {
		return tracker.StudyRecord{}, err
	}
	return tracker.StudyRecord{
		StaffID:     r.StaffID,
		StudentID:   r.StudentID,
		Date:        date,
		TimeIn:      in,
		TimeOut:     out,
		Description: r.Description,
	}, nil
}

type subjectRecordRequest struct {
	StudyRecordID   string  `json:"study_record_id" binding:"required,uuid"`
	Subject         string  `json:"subject" binding:"required,subject"`
	TimeSpent       string  `json:"time_spent" binding:"required,span"`
	Description     *string `json:"description"`
	TwoMarkLearned  int     `json:"two_mark_learned" binding:"min=0"`
	FiveMarkLearned int     `json:"five_mark_learned" binding:"min=0"`
	OtherLearned    int     `json:"other_learned" binding:"min=0"`
}

func (r subjectRecordRequest) decode() (tracker.SubjectRecord, error) {
	spent, err := tracker.ParseSpan(r.TimeSpent)
	if err != nil {
		return tracker.SubjectRecord{}, err
	}
	subject, err := tracker.ParseSubject(r.Subject)
	if err != nil {
		return tracker.SubjectRecord{}, err
	}
	return tracker.SubjectRecord{
		StudyRecordID:   r.StudyRecordID,
		Subject:         subject,
		TimeSpent:       tracker.Span(time.Duration(spent).Truncate(time.Second)),
		Description:     r.Description,
		TwoMarkLearned:  r.TwoMarkLearned,
		FiveMarkLearned: r.FiveMarkLearned,
		OtherLearned:    r.OtherLearned,
	}, nil
}
