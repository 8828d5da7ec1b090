package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultMaxAuditSize caps one audit file at 100MB before rotation.
	DefaultMaxAuditSize = 100 * 1024 * 1024
	auditFileExtension  = ".jsonl"
	auditArchiveDir     = "archive"
)

// AuditEntry is one persisted stream event.
type AuditEntry struct {
	Timestamp time.Time  `json:"timestamp"`
	Stream    StreamKind `json:"stream"`
	CommandID string     `json:"command_id,omitempty"`
	Payload   any        `json:"payload,omitempty"`
}

// AuditLog is an append-only JSONL record of published events, rotated by
// size into an archive directory. It gives operators a durable trail of
// alerts and notifications after the in-memory streams are gone.
type AuditLog struct {
	mu          sync.Mutex
	file        *os.File
	currentSize int64
	maxSize     int64
	path        string
	rotations   int
}

// NewAuditLog opens (or creates) the audit file at path. maxSize <= 0 uses
// the default cap.
func NewAuditLog(path string, maxSize int64) (*AuditLog, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxAuditSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}

	l := &AuditLog{path: path, maxSize: maxSize}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *AuditLog) open() error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	l.file = file
	l.currentSize = stat.Size()
	return nil
}

// Write appends one event as a JSONL line, rotating first when the file
// would exceed the size cap.
func (l *AuditLog) Write(event Event) error {
	entry := AuditEntry{
		Timestamp: event.Timestamp,
		Stream:    event.Kind,
		CommandID: event.CommandID,
		Payload:   event.Payload,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentSize+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotate audit log: %w", err)
		}
	}
	n, err := l.file.Write(data)
	if err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	l.currentSize += int64(n)
	return nil
}

// Subscriber adapts the log into a bus subscriber. A failed write drops the
// entry: disk trouble must never propagate back into the publisher.
func (l *AuditLog) Subscriber() Subscriber {
	return func(event Event) {
		l.Write(event)
	}
}

// rotate must be called with l.mu held.
func (l *AuditLog) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close audit log: %w", err)
	}

	archiveDir := filepath.Join(filepath.Dir(l.path), auditArchiveDir)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	l.rotations++
	base := filepath.Base(l.path)
	name := base
	if filepath.Ext(base) == auditFileExtension {
		name = base[:len(base)-len(auditFileExtension)]
	}
	archiveName := fmt.Sprintf("%s.%s.%d%s",
		name, time.Now().UTC().Format("20060102_150405"), l.rotations, auditFileExtension)
	if err := os.Rename(l.path, filepath.Join(archiveDir, archiveName)); err != nil {
		return fmt.Errorf("archive audit log: %w", err)
	}
	return l.open()
}

// Close flushes and closes the audit file.
func (l *AuditLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	err := l.file.Close()
	l.file = nil
	return err
}
