// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"marketminds/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	CandleStore
	CheckpointStore
	FileLedger

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// CandleStore caches price history per symbol and timeframe.
type CandleStore interface {
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
}

// CheckpointStore keeps one serialized conversation state per session.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, sessionID string, state []byte) error
	LoadCheckpoint(ctx context.Context, sessionID string) ([]byte, error)
	DeleteCheckpoint(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) ([]SessionInfo, error)
}

// FileLedger records which ingestion files have been processed.
type FileLedger interface {
	IsFileProcessed(ctx context.Context, path string) (bool, error)
	MarkFileProcessed(ctx context.Context, path string, documents int) error
	ListProcessedFiles(ctx context.Context) ([]ProcessedFile, error)
}

// SessionInfo describes a stored conversation.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProcessedFile is an ingestion ledger entry.
type ProcessedFile struct {
	Path        string    `json:"path"`
	Documents   int       `json:"documents"`
	ProcessedAt time.Time `json:"processed_at"`
}
