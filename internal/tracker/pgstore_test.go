package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"studytracker/internal/store"
)

func TestMapError(t *testing.T) {
	other := errors.New("connection reset")
	cases := []struct {
		name       string
		in         error
		notFound   bool
		constraint string
	}{
		{name: "no rows", in: sql.ErrNoRows, notFound: true},
		{name: "wrapped no rows", in: fmt.Errorf("get staff: %w", sql.ErrNoRows), notFound: true},
		{name: "foreign key", in: &pgconn.PgError{Code: "23503", ConstraintName: "students_staff_id_fkey"}, constraint: "students_staff_id_fkey"},
		{name: "unique", in: &pgconn.PgError{Code: "23505", ConstraintName: "staff_user_id_key"}, constraint: "staff_user_id_key"},
		{name: "check", in: &pgconn.PgError{Code: "23514", ConstraintName: "study_records_owner_check"}, constraint: "study_records_owner_check"},
		{name: "malformed uuid", in: &pgconn.PgError{Code: "22P02"}, notFound: true},
		{name: "wrapped pg error", in: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503", ConstraintName: "fk"}), constraint: "fk"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError(tc.in)
			if errors.Is(got, ErrNotFound) != tc.notFound {
				t.Fatalf("mapError(%v) = %v, not found = %v", tc.in, got, !tc.notFound)
			}
			var cerr *ConstraintError
			if tc.constraint == "" {
				if errors.As(got, &cerr) {
					t.Fatalf("unexpected constraint error %v", got)
				}
				return
			}
			if !errors.As(got, &cerr) || cerr.Constraint != tc.constraint {
				t.Fatalf("mapError(%v) = %v, want constraint %s", tc.in, got, tc.constraint)
			}
		})
	}

	if mapError(nil) != nil {
		t.Error("nil error mapped to non-nil")
	}
	if got := mapError(other); got != other {
		t.Errorf("unrelated error changed: %v", got)
	}
	serialization := &pgconn.PgError{Code: "40001"}
	if got := mapError(serialization); got != error(serialization) {
		t.Errorf("unmapped sqlstate changed: %v", got)
	}
}

func TestMapWriteErrorTreatsBadReferenceAsConstraint(t *testing.T) {
	if !IsConstraint(mapWriteError(&pgconn.PgError{Code: "22P02"})) {
		t.Error("malformed reference on write should be a constraint error")
	}
	if !IsConstraint(mapWriteError(&pgconn.PgError{Code: "23503"})) {
		t.Error("foreign key violation on write should be a constraint error")
	}
	if !errors.Is(mapWriteError(sql.ErrNoRows), ErrNotFound) {
		t.Error("update of a missing row should be not found")
	}
	if mapWriteError(nil) != nil {
		t.Error("nil error mapped to non-nil")
	}
}

func TestUpdateWithMalformedIDIsNotFound(t *testing.T) {
	p := NewPostgresStore(nil)
	ctx := context.Background()
	if err := p.UpdateStaff(ctx, &Staff{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("staff: %v", err)
	}
	if err := p.UpdateStudent(ctx, &Student{ID: "nope", Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("student: %v", err)
	}
	if err := p.UpdateStudyRecord(ctx, &StudyRecord{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("study record: %v", err)
	}
	if err := p.UpdateSubjectRecord(ctx, &SubjectRecord{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("subject record: %v", err)
	}
}

func TestSelectBuilderNumbersPlaceholders(t *testing.T) {
	page := Page{Limit: 20, Offset: 40}
	cases := []struct {
		name    string
		filters [][2]string
		want    string
		args    []any
	}{
		{
			name: "no filters",
			want: "SELECT id FROM study_records ORDER BY created_at DESC LIMIT $1 OFFSET $2",
			args: []any{20, 40},
		},
		{
			name:    "empty filter skipped",
			filters: [][2]string{{"staff_id", ""}},
			want:    "SELECT id FROM study_records ORDER BY created_at DESC LIMIT $1 OFFSET $2",
			args:    []any{20, 40},
		},
		{
			name:    "one filter",
			filters: [][2]string{{"staff_id", "a"}},
			want:    "SELECT id FROM study_records WHERE staff_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
			args:    []any{"a", 20, 40},
		},
		{
			name:    "two filters",
			filters: [][2]string{{"staff_id", "a"}, {"student_id", "b"}},
			want:    "SELECT id FROM study_records WHERE staff_id = $1 AND student_id = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4",
			args:    []any{"a", "b", 20, 40},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := newQuery("SELECT id FROM study_records")
			for _, f := range tc.filters {
				q.where(f[0], f[1])
			}
			got, args := q.finish("ORDER BY created_at DESC", page)
			if got != tc.want {
				t.Errorf("query:\n got %s\nwant %s", got, tc.want)
			}
			if !reflect.DeepEqual(args, tc.args) {
				t.Errorf("args = %v, want %v", args, tc.args)
			}
		})
	}
}

// openPostgres connects to DATABASE_URL and applies the schema, or skips.
func openPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := store.NewDB(ctx, url, store.PoolOptions{MaxOpen: 4})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(ctx, db.Client); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewPostgresStore(db.Client)
}

func TestPostgresDeleteCascades(t *testing.T) {
	p := openPostgres(t)
	ctx := context.Background()
	day := NewDate(2024, time.March, 1)

	staff := &Staff{}
	if err := p.CreateStaff(ctx, staff); err != nil {
		t.Fatal(err)
	}
	owned := &Student{Name: "Owned", StaffID: &staff.ID}
	loose := &Student{Name: "Loose"}
	for _, s := range []*Student{owned, loose} {
		if err := p.CreateStudent(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() { _, _ = p.DeleteStudent(context.Background(), loose.ID) })

	newRecord := func(staffID, studentID *string) *StudyRecord {
		t.Helper()
		r := &StudyRecord{StaffID: staffID, StudentID: studentID, Date: day, TimeIn: MustTimeOfDay(9, 0, 0), TimeOut: MustTimeOfDay(10, 0, 0)}
		DeriveStudyRecord(r)
		if err := p.CreateStudyRecord(ctx, r); err != nil {
			t.Fatal(err)
		}
		sub := &SubjectRecord{StudyRecordID: r.ID, Subject: SubjectMathematics, TimeSpent: Span(30 * time.Minute)}
		if err := p.CreateSubjectRecord(ctx, sub); err != nil {
			t.Fatal(err)
		}
		return r
	}
	newRecord(nil, &owned.ID)
	newRecord(&staff.ID, nil)
	survivor := newRecord(nil, &loose.ID)
	extra := &SubjectRecord{StudyRecordID: survivor.ID, Subject: SubjectScience}
	if err := p.CreateSubjectRecord(ctx, extra); err != nil {
		t.Fatal(err)
	}

	res, err := p.DeleteStaff(ctx, staff.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Staff != 1 || res.Students != 1 || res.StudyRecordCount() != 2 || res.SubjectRecords != 2 {
		t.Fatalf("delete staff = %+v", res)
	}
	if _, err := p.GetStudent(ctx, owned.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("owned student survived: %v", err)
	}
	if _, err := p.GetStudyRecord(ctx, survivor.ID); err != nil {
		t.Fatalf("unrelated record removed: %v", err)
	}

	res, err = p.DeleteStudyRecord(ctx, survivor.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.StudyRecordCount() != 1 || res.SubjectRecords != 2 {
		t.Fatalf("delete record = %+v", res)
	}
	if _, err := p.DeleteStaff(ctx, staff.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestPostgresWriteErrorsMatchMemoryStore(t *testing.T) {
	p := openPostgres(t)
	ctx := context.Background()
	mem := NewMemoryStore()

	for name, ref := range map[string]string{
		"missing parent":   "3f1c8f9e-2b8e-4c1e-9a53-3a0f6d1f0a11",
		"malformed parent": "not-a-uuid",
	} {
		pgErr := p.CreateStudent(ctx, &Student{Name: "x", StaffID: &ref})
		memErr := mem.CreateStudent(ctx, &Student{Name: "x", StaffID: &ref})
		if !IsConstraint(pgErr) || !IsConstraint(memErr) {
			t.Errorf("%s: postgres %v, memory %v", name, pgErr, memErr)
		}
	}
	if _, err := p.GetStudent(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("malformed id lookup: %v", err)
	}
}
