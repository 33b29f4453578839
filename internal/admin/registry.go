package admin

import "studytracker/internal/tracker"

// Field describes one column of a registered model.
type Field struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Type       string   `json:"type"`
	Required   bool     `json:"required"`
	ReadOnly   bool     `json:"read_only,omitempty"`
	References string   `json:"references,omitempty"`
	Choices    []Choice `json:"choices,omitempty"`
}

type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Model is the admin registration of one entity.
type Model struct {
	Resource          string   `json:"resource"`
	VerboseName       string   `json:"verbose_name"`
	VerboseNamePlural string   `json:"verbose_name_plural"`
	Fields            []Field  `json:"fields"`
	Ordering          []string `json:"ordering"`
}

var (
	idField        = Field{Name: "id", Label: "ID", Type: "uuid", ReadOnly: true}
	createdAtField = Field{Name: "created_at", Label: "Created At", Type: "datetime", ReadOnly: true}
	updatedAtField = Field{Name: "updated_at", Label: "Updated At", Type: "datetime", ReadOnly: true}
)

func subjectChoices() []Choice {
	var out []Choice
	for _, s := range tracker.Subjects() {
		out = append(out, Choice{Value: string(s), Label: s.Label()})
	}
	return out
}

// Registry lists every entity exposed to the admin UI.
func Registry() []Model {
	return []Model{
		{
			Resource:          "staff",
			VerboseName:       "Staff",
			VerboseNamePlural: "Staff",
			Fields: []Field{
				idField,
				{Name: "user_id", Label: "User", Type: "string"},
				createdAtField,
				updatedAtField,
			},
			Ordering: []string{"-created_at"},
		},
		{
			Resource:          "students",
			VerboseName:       "Student",
			VerboseNamePlural: "Students",
			Fields: []Field{
				idField,
				{Name: "name", Label: "Name", Type: "string", Required: true},
				{Name: "staff_id", Label: "Staff", Type: "uuid", References: "staff"},
				createdAtField,
				updatedAtField,
			},
			Ordering: []string{"-created_at"},
		},
		{
			Resource:          "study-records",
			VerboseName:       "Study Record",
			VerboseNamePlural: "Study Records",
			Fields: []Field{
				idField,
				{Name: "staff_id", Label: "Staff", Type: "uuid", References: "staff"},
				{Name: "student_id", Label: "Student", Type: "uuid", References: "students"},
				{Name: "date", Label: "Date", Type: "date", Required: true},
				{Name: "time_in", Label: "Time In", Type: "time", Required: true},
				{Name: "time_out", Label: "Time Out", Type: "time", Required: true},
				{Name: "total_duration", Label: "Total Duration", Type: "duration", ReadOnly: true},
				{Name: "description", Label: "Description", Type: "text"},
				createdAtField,
				updatedAtField,
			},
			Ordering: []string{"-created_at", "-date"},
		},
		{
			Resource:          "subject-records",
			VerboseName:       "Subject Record",
			VerboseNamePlural: "Subject Records",
			Fields: []Field{
				idField,
				{Name: "study_record_id", Label: "Study Record", Type: "uuid", Required: true, References: "study-records"},
				{Name: "subject", Label: "Subject", Type: "choice", Required: true, Choices: subjectChoices()},
				{Name: "time_spent", Label: "Time Spent", Type: "duration", Required: true},
				{Name: "description", Label: "Description", Type: "text"},
				{Name: "two_mark_learned", Label: "2-Mark Questions Learned", Type: "integer"},
				{Name: "five_mark_learned", Label: "5-Mark Questions Learned", Type: "integer"},
				{Name: "other_learned", Label: "Other Items Learned", Type: "integer"},
				createdAtField,
				updatedAtField,
			},
			Ordering: []string{"-created_at"},
		},
	}
}
