package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/crit/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from concurrent batch chunks.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Review sessions ---

func (s *SQLiteStore) CreateReviewSession(ctx context.Context, sess *models.ReviewSession) error {
	if sess.ID == "" {
		sess.ID = newULID()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	if sess.Status == "" {
		sess.Status = models.SessionStatusActive
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_sessions (id, status, files_reviewed, files_approved, files_rejected, total_issues, critical_issues, static_duration_ms, ai_duration_ms, approval_duration_ms, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Status, sess.FilesReviewed, sess.FilesApproved, sess.FilesRejected,
		sess.TotalIssues, sess.CriticalIssues,
		sess.StaticDuration.Milliseconds(), sess.AIDuration.Milliseconds(), sess.ApprovalDuration.Milliseconds(),
		sess.StartedAt, sess.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("create review session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetReviewSession(ctx context.Context, id string) (*models.ReviewSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, files_reviewed, files_approved, files_rejected, total_issues, critical_issues, static_duration_ms, ai_duration_ms, approval_duration_ms, started_at, completed_at
		FROM review_sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get review session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) ListReviewSessions(ctx context.Context, limit int) ([]*models.ReviewSession, error) {
	query := `SELECT id, status, files_reviewed, files_approved, files_rejected, total_issues, critical_issues, static_duration_ms, ai_duration_ms, approval_duration_ms, started_at, completed_at
		FROM review_sessions ORDER BY started_at DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+" LIMIT ?", limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list review sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*models.ReviewSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) UpdateReviewSession(ctx context.Context, sess *models.ReviewSession) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE review_sessions SET status=?, files_reviewed=?, files_approved=?, files_rejected=?, total_issues=?, critical_issues=?, static_duration_ms=?, ai_duration_ms=?, approval_duration_ms=?, completed_at=?
		WHERE id=?`,
		sess.Status, sess.FilesReviewed, sess.FilesApproved, sess.FilesRejected,
		sess.TotalIssues, sess.CriticalIssues,
		sess.StaticDuration.Milliseconds(), sess.AIDuration.Milliseconds(), sess.ApprovalDuration.Milliseconds(),
		sess.CompletedAt, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update review session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("review session not found: %s", sess.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.ReviewSession, error) {
	sess := &models.ReviewSession{}
	var staticMs, aiMs, approvalMs int64
	var completedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.Status, &sess.FilesReviewed, &sess.FilesApproved, &sess.FilesRejected,
		&sess.TotalIssues, &sess.CriticalIssues, &staticMs, &aiMs, &approvalMs, &sess.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	sess.StaticDuration = time.Duration(staticMs) * time.Millisecond
	sess.AIDuration = time.Duration(aiMs) * time.Millisecond
	sess.ApprovalDuration = time.Duration(approvalMs) * time.Millisecond
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}
	return sess, nil
}

// --- File reviews ---

func (s *SQLiteStore) CreateFileReview(ctx context.Context, r *models.FileReview) error {
	if r.ID == "" {
		r.ID = newULID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_reviews (id, session_id, file_id, path, combined_score, decision, issue_count, critical_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.FileID, r.Path, r.CombinedScore, r.Decision,
		r.IssueCount, r.CriticalCount, r.Duration.Milliseconds(), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create file review: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListFileReviews(ctx context.Context, sessionID string) ([]*models.FileReview, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, file_id, path, combined_score, decision, issue_count, critical_count, duration_ms, created_at
		FROM file_reviews WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list file reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reviews []*models.FileReview
	for rows.Next() {
		r := &models.FileReview{}
		var score sql.NullInt64
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.SessionID, &r.FileID, &r.Path, &score, &r.Decision,
			&r.IssueCount, &r.CriticalCount, &durationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file review: %w", err)
		}
		if score.Valid {
			v := int(score.Int64)
			r.CombinedScore = &v
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// --- Approval decisions ---

func (s *SQLiteStore) CreateApprovalDecision(ctx context.Context, d *models.ApprovalDecision) error {
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}
	changes, err := json.Marshal(d.RequestedChanges)
	if err != nil {
		return fmt.Errorf("marshal requested changes: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO approval_decisions (id, file_id, decision, reasoning, reviewer, comments, requested_changes, approved_issues, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		newULID(), d.FileID, d.Decision, d.Reasoning, d.Reviewer, d.Comments,
		string(changes), d.ApprovedIssues, d.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("create approval decision: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListApprovalDecisions(ctx context.Context, fileID string) ([]*models.ApprovalDecision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_id, decision, reasoning, reviewer, comments, requested_changes, approved_issues, decided_at
		FROM approval_decisions WHERE file_id = ? ORDER BY decided_at`, fileID)
	if err != nil {
		return nil, fmt.Errorf("list approval decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []*models.ApprovalDecision
	for rows.Next() {
		d := &models.ApprovalDecision{}
		var changes string
		if err := rows.Scan(&d.FileID, &d.Decision, &d.Reasoning, &d.Reviewer, &d.Comments,
			&changes, &d.ApprovedIssues, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan approval decision: %w", err)
		}
		if changes != "" {
			if err := json.Unmarshal([]byte(changes), &d.RequestedChanges); err != nil {
				return nil, fmt.Errorf("unmarshal requested changes: %w", err)
			}
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}
