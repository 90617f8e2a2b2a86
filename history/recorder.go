// Package history persists one JSON lines record per trade attempt.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Record is the persisted form of one trade attempt.
type Record struct {
	Timestamp   time.Time `json:"timestamp"`
	TradeType   string    `json:"trade_type"`
	Method      string    `json:"method"`
	Success     bool      `json:"success"`
	Signature   string    `json:"signature,omitempty"`
	BundleID    string    `json:"bundle_id,omitempty"`
	LoanAmount  uint64    `json:"loan_amount"`
	FinalAmount uint64    `json:"final_amount"`
	GrossProfit int64     `json:"gross_profit"`
	LoanFee     uint64    `json:"loan_fee"`
	Tip         uint64    `json:"tip"`
	NetProfit   int64     `json:"net_profit"`
	ProfitPct   float64   `json:"profit_pct"`
	Error       string    `json:"error,omitempty"`
}

// Recorder receives trade records.
type Recorder interface {
	Record(rec Record) error
	Close() error
}

// FileRecorder appends records to a JSON lines file.
type FileRecorder struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileRecorder opens (or creates) the history file for appending.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	return &FileRecorder{file: f}, nil
}

// Record appends one trade record.
func (r *FileRecorder) Record(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal trade record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write trade record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// NopRecorder discards all records.
type NopRecorder struct{}

func (NopRecorder) Record(Record) error { return nil }
func (NopRecorder) Close() error        { return nil }
