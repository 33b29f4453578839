package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresStore persists the four tables in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// mapError turns driver errors into the domain taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503", "23505", "23514":
			return &ConstraintError{Constraint: pgErr.ConstraintName, Err: err}
		case "22P02":
			// malformed uuid: nothing can match it
			return ErrNotFound
		}
	}
	return err
}

// mapWriteError is mapError for inserts and updates. There a malformed
// reference means the parent cannot exist, which MemoryStore reports as a
// missing parent too.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return &ConstraintError{Err: err}
	}
	return mapError(err)
}

// knownID fails updates of ids that cannot name a row before they reach
// Postgres, so a bad reference is not mistaken for a bad id.
func knownID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return mapError(err)
	}
	return mapError(tx.Commit())
}

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func newRow(id string) (string, time.Time) {
	if id == "" {
		id = uuid.NewString()
	}
	return id, time.Now().UTC()
}

// ---- staff

const staffColumns = `id, user_id, created_at, updated_at`

func scanStaff(row interface{ Scan(...any) error }) (Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (p *PostgresStore) CreateStaff(ctx context.Context, s *Staff) error {
	s.ID, s.CreatedAt = newRow(s.ID)
	s.UpdatedAt = s.CreatedAt
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO staff (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.UserID, s.CreatedAt, s.UpdatedAt)
	return mapWriteError(err)
}

func (p *PostgresStore) UpdateStaff(ctx context.Context, s *Staff) error {
	if err := knownID(s.ID); err != nil {
		return err
	}
	row := p.db.QueryRowContext(ctx, `
		UPDATE staff SET user_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+staffColumns, s.ID, s.UserID)
	updated, err := scanStaff(row)
	if err != nil {
		return mapWriteError(err)
	}
	*s = updated
	return nil
}

func (p *PostgresStore) GetStaff(ctx context.Context, id string) (Staff, error) {
	s, err := scanStaff(p.db.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id))
	return s, mapError(err)
}

func (p *PostgresStore) ListStaff(ctx context.Context, pg Page) ([]Staff, error) {
	pg = pg.normalize()
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+staffColumns+` FROM staff
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, pg.Limit, pg.Offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	res := []Staff{}
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// DeleteStaff removes the staff member, the students it owns and every study
// record reachable from either, together with their subject records.
func (p *PostgresStore) DeleteStaff(ctx context.Context, id string) (DeleteResult, error) {
	var res DeleteResult
	err := p.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "staff", id); err != nil {
			return err
		}
		owned := `SELECT id FROM students WHERE staff_id = $1`
		if err := deleteRecordsWhere(ctx, tx, `staff_id = $1 OR student_id IN (`+owned+`)`, id, &res); err != nil {
			return err
		}
		n, err := execCount(ctx, tx, `DELETE FROM students WHERE staff_id = $1`, id)
		if err != nil {
			return err
		}
		res.Students = n
		if res.Staff, err = execCount(ctx, tx, `DELETE FROM staff WHERE id = $1`, id); err != nil {
			return err
		}
		return nil
	})
	return res, err
}

// ---- students

const studentColumns = `id, name, staff_id, created_at, updated_at`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.Name, &s.StaffID, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (p *PostgresStore) CreateStudent(ctx context.Context, s *Student) error {
	s.ID, s.CreatedAt = newRow(s.ID)
	s.UpdatedAt = s.CreatedAt
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO students (id, name, staff_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.Name, s.StaffID, s.CreatedAt, s.UpdatedAt)
	return mapWriteError(err)
}

func (p *PostgresStore) UpdateStudent(ctx context.Context, s *Student) error {
	if err := knownID(s.ID); err != nil {
		return err
	}
	row := p.db.QueryRowContext(ctx, `
		UPDATE students SET name = $2, staff_id = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+studentColumns, s.ID, s.Name, s.StaffID)
	updated, err := scanStudent(row)
	if err != nil {
		return mapWriteError(err)
	}
	*s = updated
	return nil
}

func (p *PostgresStore) GetStudent(ctx context.Context, id string) (Student, error) {
	s, err := scanStudent(p.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	return s, mapError(err)
}

func (p *PostgresStore) ListStudents(ctx context.Context, f StudentFilter) ([]Student, error) {
	pg := f.Page.normalize()
	q := newQuery(`SELECT ` + studentColumns + ` FROM students`)
	q.where("staff_id", f.StaffID)
	query, args := q.finish(`ORDER BY created_at DESC, id`, pg)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	res := []Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (p *PostgresStore) DeleteStudent(ctx context.Context, id string) (DeleteResult, error) {
	var res DeleteResult
	err := p.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "students", id); err != nil {
			return err
		}
		if err := deleteRecordsWhere(ctx, tx, `student_id = $1`, id, &res); err != nil {
			return err
		}
		var err error
		res.Students, err = execCount(ctx, tx, `DELETE FROM students WHERE id = $1`, id)
		return err
	})
	return res, err
}

// ---- study records

const recordColumns = `id, staff_id, student_id, session_date, time_in, time_out, total_duration_seconds, description, created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (StudyRecord, error) {
	var r StudyRecord
	err := row.Scan(&r.ID, &r.StaffID, &r.StudentID, &r.Date, &r.TimeIn, &r.TimeOut, &r.TotalDuration, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (p *PostgresStore) CreateStudyRecord(ctx context.Context, r *StudyRecord) error {
	r.ID, r.CreatedAt = newRow(r.ID)
	r.UpdatedAt = r.CreatedAt
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO study_records (id, staff_id, student_id, session_date, time_in, time_out, total_duration_seconds, description, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, r.ID, r.StaffID, r.StudentID, r.Date, r.TimeIn, r.TimeOut, r.TotalDuration, r.Description, r.CreatedAt, r.UpdatedAt)
	return mapWriteError(err)
}

func (p *PostgresStore) UpdateStudyRecord(ctx context.Context, r *StudyRecord) error {
	if err := knownID(r.ID); err != nil {
		return err
	}
	row := p.db.QueryRowContext(ctx, `
		UPDATE study_records
		SET staff_id = $2, student_id = $3, session_date = $4, time_in = $5, time_out = $6,
			total_duration_seconds = $7, description = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordColumns, r.ID, r.StaffID, r.StudentID, r.Date, r.TimeIn, r.TimeOut, r.TotalDuration, r.Description)
	updated, err := scanRecord(row)
	if err != nil {
		return mapWriteError(err)
	}
	*r = updated
	return nil
}

func (p *PostgresStore) GetStudyRecord(ctx context.Context, id string) (StudyRecord, error) {
	r, err := scanRecord(p.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM study_records WHERE id = $1`, id))
	return r, mapError(err)
}

func (p *PostgresStore) ListStudyRecords(ctx context.Context, f StudyRecordFilter) ([]StudyRecord, error) {
	pg := f.Page.normalize()
	q := newQuery(`SELECT ` + recordColumns + ` FROM study_records`)
	q.where("staff_id", f.StaffID)
	q.where("student_id", f.StudentID)
	query, args := q.finish(`ORDER BY created_at DESC, session_date DESC, id`, pg)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	res := []StudyRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (p *PostgresStore) DeleteStudyRecord(ctx context.Context, id string) (DeleteResult, error) {
	var res DeleteResult
	err := p.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "study_records", id); err != nil {
			return err
		}
		return deleteRecordsWhere(ctx, tx, `id = $1`, id, &res)
	})
	return res, err
}

// deleteRecordsWhere removes the subject records, then the study records,
// matching cond. cond may only reference $1.
func deleteRecordsWhere(ctx context.Context, tx *sql.Tx, cond, arg string, res *DeleteResult) error {
	n, err := execCount(ctx, tx, `
		DELETE FROM subject_records
		WHERE study_record_id IN (SELECT id FROM study_records WHERE `+cond+`)
	`, arg)
	if err != nil {
		return err
	}
	res.SubjectRecords += n
	rows, err := tx.QueryContext(ctx, `DELETE FROM study_records WHERE `+cond+` RETURNING `+recordColumns, arg)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return err
		}
		res.StudyRecords = append(res.StudyRecords, r)
	}
	return rows.Err()
}

// ---- subject records

const subjectColumns = `id, study_record_id, subject, time_spent_seconds, description, two_mark_learned, five_mark_learned, other_learned, created_at, updated_at`

func scanSubject(row interface{ Scan(...any) error }) (SubjectRecord, error) {
	var r SubjectRecord
	var subject string
	err := row.Scan(&r.ID, &r.StudyRecordID, &subject, &r.TimeSpent, &r.Description, &r.TwoMarkLearned, &r.FiveMarkLearned, &r.OtherLearned, &r.CreatedAt, &r.UpdatedAt)
	r.Subject = Subject(subject)
	return r, err
}

func (p *PostgresStore) CreateSubjectRecord(ctx context.Context, r *SubjectRecord) error {
	r.ID, r.CreatedAt = newRow(r.ID)
	r.UpdatedAt = r.CreatedAt
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO subject_records (id, study_record_id, subject, time_spent_seconds, description, two_mark_learned, five_mark_learned, other_learned, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, r.ID, r.StudyRecordID, string(r.Subject), r.TimeSpent, r.Description, r.TwoMarkLearned, r.FiveMarkLearned, r.OtherLearned, r.CreatedAt, r.UpdatedAt)
	return mapWriteError(err)
}

func (p *PostgresStore) UpdateSubjectRecord(ctx context.Context, r *SubjectRecord) error {
	if err := knownID(r.ID); err != nil {
		return err
	}
	row := p.db.QueryRowContext(ctx, `
		UPDATE subject_records
		SET study_record_id = $2, subject = $3, time_spent_seconds = $4, description = $5,
			two_mark_learned = $6, five_mark_learned = $7, other_learned = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING `+subjectColumns, r.ID, r.StudyRecordID, string(r.Subject), r.TimeSpent, r.Description, r.TwoMarkLearned, r.FiveMarkLearned, r.OtherLearned)
	updated, err := scanSubject(row)
	if err != nil {
		return mapWriteError(err)
	}
	*r = updated
	return nil
}

func (p *PostgresStore) GetSubjectRecord(ctx context.Context, id string) (SubjectRecord, error) {
	r, err := scanSubject(p.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subject_records WHERE id = $1`, id))
	return r, mapError(err)
}

func (p *PostgresStore) ListSubjectRecords(ctx context.Context, f SubjectRecordFilter) ([]SubjectRecord, error) {
	pg := f.Page.normalize()
	q := newQuery(`SELECT ` + subjectColumns + ` FROM subject_records`)
	q.where("study_record_id", f.StudyRecordID)
	query, args := q.finish(`ORDER BY created_at DESC, id`, pg)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	res := []SubjectRecord{}
	for rows.Next() {
		r, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (p *PostgresStore) DeleteSubjectRecord(ctx context.Context, id string) (DeleteResult, error) {
	err := checkAffected(p.db.ExecContext(ctx, `DELETE FROM subject_records WHERE id = $1`, id))
	if err != nil {
		return DeleteResult{}, mapError(err)
	}
	return DeleteResult{SubjectRecords: 1}, nil
}

// ---- totals

func (p *PostgresStore) DailyTotals(ctx context.Context, owner Owner, from, to Date) ([]DailyTotal, error) {
	column := "staff_id"
	if owner.Kind == OwnerStudent {
		column = "student_id"
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT session_date, SUM(total_duration_seconds)::BIGINT, COUNT(*)
		FROM study_records
		WHERE `+column+` = $1 AND session_date BETWEEN $2 AND $3
		GROUP BY session_date
		ORDER BY session_date
	`, owner.ID, from, to)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	res := []DailyTotal{}
	for rows.Next() {
		var t DailyTotal
		if err := rows.Scan(&t.Date, &t.Total, &t.Sessions); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ---- helpers

func lockRow(ctx context.Context, tx *sql.Tx, table, id string) error {
	var got string
	return tx.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE id = $1 FOR UPDATE`, id).Scan(&got)
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type selectBuilder struct {
	base    string
	clauses []string
	args    []any
}

func newQuery(base string) *selectBuilder {
	return &selectBuilder{base: base}
}

// where adds "column = $n" when value is non-empty.
func (q *selectBuilder) where(column, value string) {
	if value == "" {
		return
	}
	q.args = append(q.args, value)
	q.clauses = append(q.clauses, fmt.Sprintf("%s = $%d", column, len(q.args)))
}

func (q *selectBuilder) finish(order string, pg Page) (string, []any) {
	s := q.base
	for i, c := range q.clauses {
		if i == 0 {
			s += " WHERE " + c
		} else {
			s += " AND " + c
		}
	}
	s += fmt.Sprintf(" %s LIMIT $%d OFFSET $%d", order, len(q.args)+1, len(q.args)+2)
	return s, append(q.args, pg.Limit, pg.Offset)
}
