package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lordwilsonDev/transparency-log/models"
)

// ErrNotFound is returned when a lookup matches no entry. Absence is an
// expected outcome, not a storage failure.
var ErrNotFound = errors.New("log entry not found")

// LogRepository handles transparency log persistence
type LogRepository interface {
	Insert(ctx context.Context, entry *models.LogEntry) error
	Tail(ctx context.Context) (*models.LogEntry, error)
	GetByHash(ctx context.Context, actionHash string) (*models.LogEntry, error)
	GetRecent(ctx context.Context, limit int) ([]models.LogEntry, error)
	GetAll(ctx context.Context) ([]models.LogEntry, error)
	GetAllHashes(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
	TimeBounds(ctx context.Context) (first, last time.Time, err error)
}

// sqliteLogRepository implements LogRepository interface
type sqliteLogRepository struct {
	db *sql.DB
}

// NewLogRepository creates a new log repository
func NewLogRepository(db *sql.DB) LogRepository {
	return &sqliteLogRepository{db: db}
}

const entryColumns = `sequence_id, timestamp, action_type, action_data, action_hash,
	signature, auxiliary_state, previous_hash, merkle_root`

// Insert persists a complete log entry in a single transaction. The
// entry is durable when this returns; a failure leaves no trace.
func (r *sqliteLogRepository) Insert(ctx context.Context, entry *models.LogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `
		INSERT INTO transparency_log
		(sequence_id, timestamp, action_type, action_data, action_hash,
		 signature, auxiliary_state, previous_hash, merkle_root)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		entry.SequenceID,
		models.CanonicalTimestamp(entry.Timestamp),
		entry.ActionType,
		entry.ActionData,
		entry.ActionHash,
		entry.Signature,
		entry.AuxiliaryState,
		entry.PreviousHash,
		entry.MerkleRoot,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert log entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit log entry: %w", err)
	}

	return nil
}

// Tail retrieves the most recent entry, or ErrNotFound for an empty log
func (r *sqliteLogRepository) Tail(ctx context.Context) (*models.LogEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transparency_log
		ORDER BY sequence_id DESC LIMIT 1
	`, entryColumns)

	return r.scanOne(r.db.QueryRowContext(ctx, query))
}

// GetByHash retrieves a specific entry by its action hash
func (r *sqliteLogRepository) GetByHash(ctx context.Context, actionHash string) (*models.LogEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transparency_log
		WHERE action_hash = ?
	`, entryColumns)

	return r.scanOne(r.db.QueryRowContext(ctx, query, actionHash))
}

// GetRecent retrieves up to limit entries, most recent first
func (r *sqliteLogRepository) GetRecent(ctx context.Context, limit int) ([]models.LogEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transparency_log
		ORDER BY sequence_id DESC LIMIT ?
	`, entryColumns)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent entries: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// GetAll retrieves every entry in sequence order. A single query gives
// verification a consistent snapshot even while appends continue.
func (r *sqliteLogRepository) GetAll(ctx context.Context) ([]models.LogEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transparency_log
		ORDER BY sequence_id ASC
	`, entryColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// GetAllHashes retrieves the ordered action hashes, the Merkle leaves
func (r *sqliteLogRepository) GetAllHashes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action_hash FROM transparency_log
		ORDER BY sequence_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query action hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("failed to scan action hash: %w", err)
		}
		hashes = append(hashes, hash)
	}

	return hashes, rows.Err()
}

// Count returns the number of entries in the log
func (r *sqliteLogRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transparency_log").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count log entries: %w", err)
	}
	return count, nil
}

// TimeBounds returns the timestamps of the first and last entries by
// sequence. The stored RFC3339Nano strings do not sort chronologically
// (trailing zero nanoseconds are dropped), so MIN/MAX over the text
// column would pick the wrong rows; sequence order is chain order.
func (r *sqliteLogRepository) TimeBounds(ctx context.Context) (time.Time, time.Time, error) {
	first, err := r.boundTimestamp(ctx, "ASC")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	last, err := r.boundTimestamp(ctx, "DESC")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return first, last, nil
}

// boundTimestamp reads the timestamp of the lowest or highest sequence
func (r *sqliteLogRepository) boundTimestamp(ctx context.Context, direction string) (time.Time, error) {
	query := fmt.Sprintf(`
		SELECT timestamp FROM transparency_log
		ORDER BY sequence_id %s LIMIT 1
	`, direction)

	var raw string
	err := r.db.QueryRowContext(ctx, query).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("failed to query time bounds: %w", err)
	}

	t, err := models.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse bound timestamp: %w", err)
	}
	return t, nil
}

// scanOne scans a single entry row, mapping sql.ErrNoRows to ErrNotFound
func (r *sqliteLogRepository) scanOne(row *sql.Row) (*models.LogEntry, error) {
	var entry models.LogEntry
	var timestamp string

	err := row.Scan(
		&entry.SequenceID,
		&timestamp,
		&entry.ActionType,
		&entry.ActionData,
		&entry.ActionHash,
		&entry.Signature,
		&entry.AuxiliaryState,
		&entry.PreviousHash,
		&entry.MerkleRoot,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan log entry: %w", err)
	}

	entry.Timestamp, err = models.ParseTimestamp(timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry timestamp: %w", err)
	}

	return &entry, nil
}

// scanAll scans all entry rows from a result set
func (r *sqliteLogRepository) scanAll(rows *sql.Rows) ([]models.LogEntry, error) {
	var entries []models.LogEntry
	for rows.Next() {
		var entry models.LogEntry
		var timestamp string

		err := rows.Scan(
			&entry.SequenceID,
			&timestamp,
			&entry.ActionType,
			&entry.ActionData,
			&entry.ActionHash,
			&entry.Signature,
			&entry.AuxiliaryState,
			&entry.PreviousHash,
			&entry.MerkleRoot,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		entry.Timestamp, err = models.ParseTimestamp(timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse entry timestamp: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
