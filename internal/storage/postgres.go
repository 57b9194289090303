package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bdougie/scxmask/internal/models"
)

// PostgresStorage records mask results per stat log in PostgreSQL
type PostgresStorage struct {
	pool    *pgxpool.Pool
	logID   int
	logPath string

	mu      sync.Mutex
	pending []models.MaskResult
}

// NewPostgresStorage connects to databaseURL and registers logPath
func NewPostgresStorage(ctx context.Context, databaseURL, logPath string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &PostgresStorage{
		pool:    pool,
		logPath: logPath,
	}

	logID, err := storage.getOrCreateLog(ctx, logPath)
	if err != nil {
		pool.Close()
		return nil, err
	}
	storage.logID = logID

	return storage, nil
}

// Close flushes pending rows and closes the pool
func (s *PostgresStorage) Close() error {
	if s.pool == nil {
		return nil
	}
	err := s.Flush()
	s.pool.Close()
	return err
}

func (s *PostgresStorage) getOrCreateLog(ctx context.Context, logPath string) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM stat_logs WHERE path = $1",
		logPath).Scan(&id)

	if err == nil {
		return id, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("error checking for existing log: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		"INSERT INTO stat_logs (path, created_at) VALUES ($1, $2) RETURNING id",
		logPath, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create log entry: %w", err)
	}

	return id, nil
}

// AddResult queues a frame and writes the queue once it reaches batchSize
func (s *PostgresStorage) AddResult(ctx context.Context, result models.MaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, result)
	if len(s.pending) >= batchSize {
		return s.flush(ctx)
	}
	return nil
}

// Flush writes every queued frame
func (s *PostgresStorage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush(context.Background())
}

func (s *PostgresStorage) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range s.pending {
		batch.Queue(
			`INSERT INTO mask_frames
			(log_id, frame_number, logical_index, frame_type, fill, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (log_id, frame_number) DO UPDATE
			SET logical_index = EXCLUDED.logical_index,
				frame_type = EXCLUDED.frame_type,
				fill = EXCLUDED.fill`,
			s.logID, r.Frame, r.LogicalIndex, r.Type, int(r.Fill), time.Now())
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store mask frames: %w", err)
	}
	s.pending = s.pending[:0]
	return nil
}

// Keyframes returns the output frame numbers stored with a white mask
func (s *PostgresStorage) Keyframes(ctx context.Context) ([]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT frame_number FROM mask_frames
		WHERE log_id = $1 AND fill = $2
		ORDER BY frame_number`,
		s.logID, int(models.White))
	if err != nil {
		return nil, fmt.Errorf("failed to query keyframes: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// InitSchema creates the database schema if it doesn't exist
func InitSchema(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS stat_logs (
            id SERIAL PRIMARY KEY,
            path TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(path)
        );

        CREATE TABLE IF NOT EXISTS mask_frames (
            id SERIAL PRIMARY KEY,
            log_id INTEGER REFERENCES stat_logs(id) ON DELETE CASCADE,
            frame_number INTEGER NOT NULL,
            logical_index INTEGER NOT NULL,
            frame_type VARCHAR(1) NOT NULL,
            fill SMALLINT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(log_id, frame_number)
        );

        CREATE INDEX IF NOT EXISTS idx_mask_frames_log_id ON mask_frames(log_id);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	return nil
}
