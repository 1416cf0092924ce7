package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	ErrWriterClosed = errors.New("jsonl writer closed")
	ErrBufferFull   = errors.New("jsonl buffer full")
)

// JSONLWriter appends JSON lines asynchronously to
// baseDir/<utc date>/subDir/<name>.jsonl, rotating by size via lumberjack
// and by date when the UTC day changes.
type JSONLWriter struct {
	baseDir   string
	subDir    string
	name      string
	maxSizeMB int

	writeCh chan any
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	// sendMu orders queueing against Close: no send is in flight once
	// closed is set.
	sendMu sync.RWMutex
	closed bool

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
	now         func() time.Time
}

// NewJSONLWriter starts a writer. An empty name falls back to the unix
// timestamp at first write.
func NewJSONLWriter(baseDir, subDir, name string, bufferSize, maxSizeMB int) *JSONLWriter {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	w := &JSONLWriter{
		baseDir:   baseDir,
		subDir:    subDir,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan any, bufferSize),
		done:      make(chan struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
	if name != "" {
		w.name = SafeSegment(name)
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Write queues a record. It never blocks: a full buffer drops the record.
func (w *JSONLWriter) Write(record any) error {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}
	select {
	case w.writeCh <- record:
		return nil
	default:
		slog.Warn("jsonl buffer full, dropping record", "subdir", w.subDir)
		return ErrBufferFull
	}
}

// Close stops the writer, flushing whatever is still queued. Safe to call
// more than once.
func (w *JSONLWriter) Close() error {
	var err error
	w.once.Do(func() {
		w.sendMu.Lock()
		w.closed = true
		w.sendMu.Unlock()

		close(w.done)
		w.wg.Wait()

		deadline := time.After(5 * time.Second)
	drain:
		for {
			select {
			case record := <-w.writeCh:
				w.writeRecord(record)
			case <-deadline:
				slog.Warn("jsonl close timed out, records lost", "subdir", w.subDir)
				break drain
			default:
				break drain
			}
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.logger != nil {
			err = w.logger.Close()
			w.logger = nil
		}
	})
	return err
}

// Path returns the file currently written to, or "" before the first write.
func (w *JSONLWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger == nil {
		return ""
	}
	return w.logger.Filename
}

func (w *JSONLWriter) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case record := <-w.writeCh:
			w.writeRecord(record)
		case <-w.done:
			return
		}
	}
}

func (w *JSONLWriter) writeRecord(record any) {
	data, err := json.Marshal(record)
	if err != nil {
		slog.Error("jsonl marshal failed", "error", err, "subdir", w.subDir)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().Format("2006-01-02")
	if w.logger == nil || date != w.currentDate {
		if err := w.openForDate(date); err != nil {
			slog.Error("jsonl open failed", "error", err, "subdir", w.subDir)
			return
		}
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("jsonl write failed", "error", err, "subdir", w.subDir)
	}
}

func (w *JSONLWriter) openForDate(date string) error {
	if w.logger != nil {
		_ = w.logger.Close()
		w.logger = nil
	}
	dir := filepath.Join(w.baseDir, date, w.subDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	name := w.name
	if name == "" {
		name = fmt.Sprintf("%d", w.now().Unix())
	}
	w.logger = &lumberjack.Logger{
		Filename:   filepath.Join(dir, name+".jsonl"),
		MaxSize:    w.maxSizeMB,
		MaxBackups: 20,
		MaxAge:     30,
	}
	w.currentDate = date
	slog.Debug("jsonl file opened", "file", w.logger.Filename)
	return nil
}
