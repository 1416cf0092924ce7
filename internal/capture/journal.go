package capture

import (
	"log/slog"
	"time"
)

// RecordWriter is the subset of storage.JSONLWriter the journal needs.
type RecordWriter interface {
	Write(record any) error
}

// JournalEntry is one line of the capture journal.
type JournalEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Session      string    `json:"session"`
	Test         string    `json:"test,omitempty"`
	URL          string    `json:"url"`
	Method       string    `json:"method"`
	PostData     *string   `json:"post_data"`
	Truncated    bool      `json:"truncated,omitempty"`
	OriginalSize int       `json:"original_size,omitempty"`
	SHA256       string    `json:"sha256,omitempty"`
}

// Journal appends every captured request to a JSONL writer.
type Journal struct {
	w            RecordWriter
	session      string
	test         string
	maxBodyBytes int
	now          func() time.Time
}

func NewJournal(w RecordWriter, session, test string, maxBodyBytes int) *Journal {
	return &Journal{
		w:            w,
		session:      session,
		test:         test,
		maxBodyBytes: maxBodyBytes,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Record implements Sink. Write failures are logged and dropped.
func (j *Journal) Record(r Request) {
	entry := JournalEntry{
		Timestamp: j.now(),
		Session:   j.session,
		Test:      j.test,
		URL:       r.URL,
		Method:    r.Method,
	}
	if r.PostData != nil {
		c := clipBody(*r.PostData, j.maxBodyBytes)
		entry.PostData = &c.Body
		if c.Truncated {
			entry.Truncated = true
			entry.OriginalSize = c.Size
			entry.SHA256 = c.SHA256
		}
	}
	if err := j.w.Write(entry); err != nil {
		slog.Debug("capture journal write failed", "session", j.session, "error", err)
	}
}
