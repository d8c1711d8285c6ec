package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded separation.
type Entry struct {
	ID          int64
	UUID        string
	InputPath   string
	InputSHA256 string
	Model       string
	OutputDir   string
	Stems       map[string]string
	SampleRate  int
	Duration    time.Duration
	CreatedAt   time.Time
}

const entryColumns = "id, uuid, input_path, input_sha256, model, output_dir, stems_json, sample_rate, duration_secs, created_at"

// Record inserts a completed separation and returns the stored entry. A
// missing UUID or timestamp is filled in.
func (s *Store) Record(ctx context.Context, entry Entry) (*Entry, error) {
	if entry.InputPath == "" || entry.Model == "" {
		return nil, errors.New("catalog: entry needs an input path and a model")
	}
	if entry.UUID == "" {
		entry.UUID = uuid.NewString()
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	stemsJSON, err := json.Marshal(entry.Stems)
	if err != nil {
		return nil, fmt.Errorf("marshal stems: %w", err)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO separations (
            uuid, input_path, input_sha256, model, output_dir,
            stems_json, sample_rate, duration_secs, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UUID,
		entry.InputPath,
		entry.InputSHA256,
		entry.Model,
		entry.OutputDir,
		string(stemsJSON),
		entry.SampleRate,
		entry.Duration.Seconds(),
		created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert separation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.getByID(ctx, id)
}

// FindBySource returns the most recent separation of the given input hash
// with the given model, or nil when the work has not been done yet.
func (s *Store) FindBySource(ctx context.Context, inputSHA256, model string) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM separations WHERE input_sha256 = ? AND model = ? ORDER BY id DESC LIMIT 1`,
		inputSHA256, model,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source: %w", err)
	}
	return entry, nil
}

// Get resolves an entry by full UUID or unique prefix. It returns nil when
// nothing matches and errors when the prefix is ambiguous.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("catalog: empty id")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM separations WHERE uuid LIKE ? ORDER BY id DESC LIMIT 2`,
		id+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	defer rows.Close()

	var matches []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("get entry: %w", err)
		}
		matches = append(matches, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("catalog: id %q matches more than one entry", id)
	}
}

// List returns entries newest first. A limit of zero or less returns
// everything.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM separations ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list separations: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list separations: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list separations: %w", err)
	}
	return entries, nil
}

// Prune deletes all but the newest keep entries and reports how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM separations WHERE id NOT IN (SELECT id FROM separations ORDER BY id DESC LIMIT ?)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune separations: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) getByID(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM separations WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id           int64
		entryUUID    string
		inputPath    string
		inputSHA256  string
		model        string
		outputDir    string
		stemsJSON    string
		sampleRate   int64
		durationSecs float64
		createdRaw   string
	)
	if err := scanner.Scan(
		&id,
		&entryUUID,
		&inputPath,
		&inputSHA256,
		&model,
		&outputDir,
		&stemsJSON,
		&sampleRate,
		&durationSecs,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:          id,
		UUID:        entryUUID,
		InputPath:   inputPath,
		InputSHA256: inputSHA256,
		Model:       model,
		OutputDir:   outputDir,
		SampleRate:  int(sampleRate),
		Duration:    time.Duration(durationSecs * float64(time.Second)),
	}
	if stemsJSON != "" {
		if err := json.Unmarshal([]byte(stemsJSON), &entry.Stems); err != nil {
			return nil, fmt.Errorf("parse stems for %s: %w", entry.UUID, err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
