package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoolmark/schoolmark/internal/grading"
)

// SQLStore persists the engine's records on database/sql, serving both
// the sqlite (offline/dev) and postgres drivers with one dialect.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutTest(ctx context.Context, t Test) error {
	classes, err := json.Marshal(t.AllowedClasses)
	if err != nil {
		return err
	}
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return err
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tests (id, title, description, time_limit_sec, status, creator_id, due_date, allowed_classes, questions_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			title=EXCLUDED.title, description=EXCLUDED.description,
			time_limit_sec=EXCLUDED.time_limit_sec, status=EXCLUDED.status,
			due_date=EXCLUDED.due_date, allowed_classes=EXCLUDED.allowed_classes,
			questions_json=EXCLUDED.questions_json`,
		t.ID, t.Title, t.Description, t.TimeLimitSec, t.Status, t.CreatorID,
		unixOrNull(t.DueDate), string(classes), string(questions), t.CreatedAt)
	return err
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (Test, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, time_limit_sec, status, creator_id, due_date, allowed_classes, questions_json, created_at
		FROM tests WHERE id=$1`, id)
	t, err := scanTest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Test{}, ErrTestNotFound
	}
	return t, err
}

func (s *SQLStore) ListTests(ctx context.Context, opts TestListOpts) ([]Test, error) {
	q := `SELECT id, title, description, time_limit_sec, status, creator_id, due_date, allowed_classes, questions_json, created_at FROM tests`
	where, args := []string{}, []any{}
	if opts.CreatorID != "" {
		args = append(args, opts.CreatorID)
		where = append(where, fmt.Sprintf("creator_id=$%d", len(args)))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id"
	q += limitOffset(opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutUser(ctx context.Context, u User) error {
	var criteria any
	if u.Criteria != nil {
		buf, err := json.Marshal(u.Criteria)
		if err != nil {
			return err
		}
		criteria = string(buf)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, pass_hash, role, class_number, class_letter, grading_criteria)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			username=EXCLUDED.username, pass_hash=EXCLUDED.pass_hash, role=EXCLUDED.role,
			class_number=EXCLUDED.class_number, class_letter=EXCLUDED.class_letter,
			grading_criteria=EXCLUDED.grading_criteria`,
		u.ID, u.Username, u.PassHash, u.Role, u.Class.Number, u.Class.Letter, criteria)
	return err
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `SELECT id, username, pass_hash, role, class_number, class_letter, grading_criteria FROM users WHERE id=$1`, id)
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return s.getUser(ctx, `SELECT id, username, pass_hash, role, class_number, class_letter, grading_criteria FROM users WHERE username=$1`, username)
}

func (s *SQLStore) getUser(ctx context.Context, query, arg string) (User, error) {
	var (
		u        User
		criteria sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.PassHash, &u.Role, &u.Class.Number, &u.Class.Letter, &criteria)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	if criteria.Valid && criteria.String != "" {
		var c grading.Criteria
		if err := json.Unmarshal([]byte(criteria.String), &c); err != nil {
			return User{}, fmt.Errorf("grading criteria of user %s: %w", u.ID, err)
		}
		u.Criteria = &c
	}
	return u, nil
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO test_attempts (id, test_id, user_id, status, started_at, version)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.TestID, a.UserID, a.Status, a.StartedAt.Unix(), a.Version)
	if err != nil && isUniqueViolation(err) {
		// (test, user) already has an attempt.
		return ErrVersionConflict
	}
	return err
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, test_id, user_id, status, percentage, started_at, submitted_at, version
		FROM test_attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, err
}

func (s *SQLStore) FindAttempt(ctx context.Context, testID, userID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, test_id, user_id, status, percentage, started_at, submitted_at, version
		FROM test_attempts WHERE test_id=$1 AND user_id=$2`, testID, userID)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, err
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	q := `SELECT id, test_id, user_id, status, percentage, started_at, submitted_at, version FROM test_attempts`
	where, args := []string{}, []any{}
	if opts.TestID != "" {
		args = append(args, opts.TestID)
		where = append(where, fmt.Sprintf("test_id=$%d", len(args)))
	}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC, id"
	q += limitOffset(opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertAnswer(ctx context.Context, ans Answer) error {
	ids, err := json.Marshal(ans.SelectedOptionIDs)
	if err != nil {
		return err
	}
	// The EXISTS guard keeps a straggling write from landing after the
	// attempt was closed by submit or expiry.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO test_answers (attempt_id, question_id, selected_option_ids, selected_text, is_correct, partial_credit, anomaly)
		SELECT $1,$2,$3,$4,FALSE,0,''
		WHERE EXISTS (SELECT 1 FROM test_attempts WHERE id=$1 AND status='in_progress')
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			selected_option_ids=EXCLUDED.selected_option_ids,
			selected_text=EXCLUDED.selected_text,
			is_correct=FALSE, partial_credit=0, anomaly=''`,
		ans.AttemptID, ans.QuestionID, string(ids), ans.SelectedText)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAttemptClosed
	}
	return nil
}

func (s *SQLStore) ListAnswers(ctx context.Context, attemptID string) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attempt_id, question_id, selected_option_ids, selected_text, is_correct, partial_credit, anomaly
		FROM test_answers WHERE attempt_id=$1 ORDER BY question_id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Answer
	for rows.Next() {
		var (
			a   Answer
			ids string
		)
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &ids, &a.SelectedText, &a.IsCorrect, &a.PartialCredit, &a.Anomaly); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &a.SelectedOptionIDs); err != nil {
			return nil, fmt.Errorf("answer %s/%s option ids: %w", a.AttemptID, a.QuestionID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) FinishAttempt(ctx context.Context, a Attempt, answers []Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE test_attempts
		SET status=$1, percentage=$2, submitted_at=$3, version=version+1
		WHERE id=$4 AND version=$5`,
		a.Status, nullFloat(a.Percentage), unixOrNull(a.SubmittedAt), a.ID, a.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	for _, ans := range answers {
		ids, err := json.Marshal(ans.SelectedOptionIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO test_answers (attempt_id, question_id, selected_option_ids, selected_text, is_correct, partial_credit, anomaly)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (attempt_id, question_id) DO UPDATE SET
				selected_option_ids=EXCLUDED.selected_option_ids,
				selected_text=EXCLUDED.selected_text,
				is_correct=EXCLUDED.is_correct,
				partial_credit=EXCLUDED.partial_credit,
				anomaly=EXCLUDED.anomaly`,
			ans.AttemptID, ans.QuestionID, string(ids), ans.SelectedText,
			ans.IsCorrect, ans.PartialCredit, ans.Anomaly); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- row scanning ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTest(r rowScanner) (Test, error) {
	var (
		t         Test
		due       sql.NullInt64
		classes   string
		questions string
	)
	if err := r.Scan(&t.ID, &t.Title, &t.Description, &t.TimeLimitSec, &t.Status,
		&t.CreatorID, &due, &classes, &questions, &t.CreatedAt); err != nil {
		return Test{}, err
	}
	if due.Valid {
		v := time.Unix(due.Int64, 0).UTC()
		t.DueDate = &v
	}
	if err := json.Unmarshal([]byte(classes), &t.AllowedClasses); err != nil {
		return Test{}, fmt.Errorf("allowed classes of test %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(questions), &t.Questions); err != nil {
		return Test{}, fmt.Errorf("questions of test %s: %w", t.ID, err)
	}
	return t, nil
}

func scanAttempt(r rowScanner) (Attempt, error) {
	var (
		a         Attempt
		pct       sql.NullFloat64
		started   int64
		submitted sql.NullInt64
	)
	if err := r.Scan(&a.ID, &a.TestID, &a.UserID, &a.Status, &pct, &started, &submitted, &a.Version); err != nil {
		return Attempt{}, err
	}
	a.StartedAt = time.Unix(started, 0).UTC()
	if pct.Valid {
		a.Percentage = &pct.Float64
	}
	if submitted.Valid {
		v := time.Unix(submitted.Int64, 0).UTC()
		a.SubmittedAt = &v
	}
	return a, nil
}

// --- helpers ---

func unixOrNull(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func limitOffset(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite, postgres
		strings.Contains(msg, "duplicate key") // postgres
}
