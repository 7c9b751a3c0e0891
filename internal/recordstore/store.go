package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phonescreen-labs/phonescreen-core/internal/config"
	"github.com/phonescreen-labs/phonescreen-core/internal/interview"
	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed durable home of interview records. It implements
// interview.Persistence.
type Store struct {
	db    *sql.DB
	cfg   config.RecordStoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the record store according to config.
func Open(ctx context.Context, cfg config.RecordStoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("record store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("record store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS interviews (
    interview_id TEXT PRIMARY KEY,
    phone_number TEXT NOT NULL,
    topic TEXT NOT NULL,
    status TEXT NOT NULL,
    call_id TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS responses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    interview_id TEXT NOT NULL,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(interview_id) REFERENCES interviews(interview_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_interviews_call ON interviews(call_id);
CREATE INDEX IF NOT EXISTS idx_responses_interview ON responses(interview_id, id);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Healthy reports whether the database answers a ping.
func (s *Store) Healthy(ctx context.Context) bool {
	return s.db != nil && s.db.PingContext(ctx) == nil
}

// CreateInterview inserts a new record row.
func (s *Store) CreateInterview(ctx context.Context, rec interview.Record) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interviews(interview_id, phone_number, topic, status, call_id, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PhoneNumber, rec.Topic, string(rec.Status), rec.CallID, created)
	return err
}

// AttachCall stores the provider call identifier and marks the interview
// in progress.
func (s *Store) AttachCall(ctx context.Context, interviewID, callID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE interviews SET call_id = ?, status = ? WHERE interview_id = ?`,
		callID, string(interview.StatusInProgress), interviewID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AppendResponse appends a question/answer pair to the transcript.
func (s *Store) AppendResponse(ctx context.Context, interviewID string, resp interview.Response) error {
	created := resp.CreatedAt
	if created.IsZero() {
		created = s.clock().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO responses(interview_id, question, answer, created_at)
		 SELECT interview_id, ?, ?, ? FROM interviews WHERE interview_id = ?`,
		resp.Question, resp.Answer, created, interviewID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateStatus sets the interview status.
func (s *Store) UpdateStatus(ctx context.Context, interviewID string, status interview.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE interviews SET status = ? WHERE interview_id = ?`,
		string(status), interviewID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// GetInterview loads a record and its ordered transcript.
func (s *Store) GetInterview(ctx context.Context, interviewID string) (interview.Record, error) {
	return s.getRecord(ctx, `interview_id = ?`, interviewID)
}

// GetByCallID loads the record owning a provider call.
func (s *Store) GetByCallID(ctx context.Context, callID string) (interview.Record, error) {
	return s.getRecord(ctx, `call_id = ?`, callID)
}

func (s *Store) getRecord(ctx context.Context, where string, arg any) (interview.Record, error) {
	var rec interview.Record
	var status string
	var callID sql.NullString
	var created string
	row := s.db.QueryRowContext(ctx,
		`SELECT interview_id, phone_number, topic, status, call_id, created_at
		 FROM interviews WHERE `+where, arg)
	if err := row.Scan(&rec.ID, &rec.PhoneNumber, &rec.Topic, &status, &callID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return interview.Record{}, interview.ErrRecordNotFound
		}
		return interview.Record{}, err
	}
	rec.Status = interview.Status(status)
	rec.CallID = callID.String
	rec.CreatedAt = parseTime(created)

	rows, err := s.db.QueryContext(ctx,
		`SELECT question, answer, created_at FROM responses WHERE interview_id = ? ORDER BY id ASC`,
		rec.ID)
	if err != nil {
		return interview.Record{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var resp interview.Response
		var at string
		if err := rows.Scan(&resp.Question, &resp.Answer, &at); err != nil {
			return interview.Record{}, err
		}
		resp.CreatedAt = parseTime(at)
		rec.Responses = append(rec.Responses, resp)
	}
	return rec, rows.Err()
}

// Prune applies the configured retention window. Retention is opt-in: with
// retention_days 0 records are kept forever.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionDays <= 0 {
		return nil
	}
	cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UTC()
	_, err := s.db.ExecContext(ctx, `DELETE FROM interviews WHERE created_at < ?`, cutoff)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return interview.ErrRecordNotFound
	}
	return nil
}

func parseTime(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
