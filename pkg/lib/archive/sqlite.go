package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/drericflores/hstp/pkg/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	category         TEXT NOT NULL,
	command          TEXT NOT NULL,
	expected_seconds REAL NOT NULL DEFAULT 0,
	cancellable      INTEGER NOT NULL DEFAULT 0,
	state            TEXT NOT NULL,
	submitted_at     INTEGER NOT NULL,
	started_at       INTEGER,
	finished_at      INTEGER,
	exit_code        INTEGER,
	forced           INTEGER NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT '',
	output           TEXT NOT NULL DEFAULT '',
	output_lines     INTEGER NOT NULL DEFAULT 0,
	dropped_lines    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_submitted_at ON runs (submitted_at);
`

const columns = `id, category, command, expected_seconds, cancellable, state,
	submitted_at, started_at, finished_at, exit_code, forced, error, output,
	output_lines, dropped_lines`

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at source, which may be
// a file path, a file: URI or ":memory:".
func OpenSQLite(ctx context.Context, source string) (*SQLiteStore, error) {
	if source == "" {
		return nil, errors.New("sqlite source is empty")
	}
	db, err := sql.Open("sqlite3", source)
	if err != nil {
		return nil, errors.Wrap(err, "error opening archive")
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "error connecting to archive")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "error creating archive schema")
	}

	logger.WithField("source", source).Debug("archive opened")
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec lib.Record) error {
	command, err := json.Marshal(rec.Command)
	if err != nil {
		return errors.Wrap(err, "error encoding command")
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		string(rec.Category),
		string(command),
		rec.ExpectedDurationSeconds,
		rec.Cancellable,
		string(rec.State),
		rec.SubmittedAt.UnixNano(),
		nullTime(rec.StartedAt),
		nullTime(rec.FinishedAt),
		nullInt(rec.ExitCode),
		rec.Forced,
		rec.Error,
		strings.Join(rec.Output, "\n"),
		len(rec.Output),
		rec.DroppedLines,
	)
	if err != nil {
		return errors.Wrapf(err, "error saving record %s", rec.ID)
	}
	logger.WithField("job", rec.ID).WithField("state", rec.State).Debug("record archived")
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (lib.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return lib.Record{}, lib.NewErrNotFound("record", id)
	}
	if err != nil {
		return lib.Record{}, errors.Wrapf(err, "error reading record %s", id)
	}
	return rec, nil
}

// List returns matching records oldest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]lib.Record, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(filter.State))
	}

	query := `SELECT ` + columns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY submitted_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error listing records")
	}
	defer rows.Close()

	var out []lib.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "error reading record")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error listing records")
	}

	// newest were selected first so Limit keeps them, present oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (lib.Record, error) {
	var (
		rec         lib.Record
		category    string
		command     string
		state       string
		submittedAt int64
		startedAt   sql.NullInt64
		finishedAt  sql.NullInt64
		exitCode    sql.NullInt64
		output      string
		outputLines int
	)
	err := row.Scan(
		&rec.ID, &category, &command, &rec.ExpectedDurationSeconds, &rec.Cancellable,
		&state, &submittedAt, &startedAt, &finishedAt, &exitCode, &rec.Forced,
		&rec.Error, &output, &outputLines, &rec.DroppedLines,
	)
	if err != nil {
		return lib.Record{}, err
	}

	if err := json.Unmarshal([]byte(command), &rec.Command); err != nil {
		return lib.Record{}, errors.Wrap(err, "error decoding command")
	}
	rec.Category = lib.Category(category)
	rec.State = lib.JobState(state)
	rec.SubmittedAt = time.Unix(0, submittedAt)
	rec.StartedAt = fromNullTime(startedAt)
	rec.FinishedAt = fromNullTime(finishedAt)
	if exitCode.Valid {
		code := int(exitCode.Int64)
		rec.ExitCode = &code
	}
	if outputLines > 0 {
		rec.Output = strings.SplitN(output, "\n", outputLines)
	}
	return rec, nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64)
	return &t
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
