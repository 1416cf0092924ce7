package relay

import (
	"log/slog"
	"time"

	"github.com/dgnsrekt/formprobe/internal/capture"
)

// CaptureEvent is the payload of the capture feed.
type CaptureEvent struct {
	Session    string          `json:"session"`
	Test       string          `json:"test,omitempty"`
	CapturedAt time.Time       `json:"captured_at"`
	Request    capture.Request `json:"request"`
}

// CaptureSink publishes every captured request on the capture feed.
type CaptureSink struct {
	broker  *Broker
	session string
	test    string
}

var _ capture.Sink = (*CaptureSink)(nil)

func NewCaptureSink(b *Broker, session, test string) *CaptureSink {
	return &CaptureSink{broker: b, session: session, test: test}
}

func (s *CaptureSink) Record(r capture.Request) {
	evt := CaptureEvent{Session: s.session, Test: s.test, CapturedAt: time.Now().UTC(), Request: r}
	if err := s.broker.PublishJSON(FeedCapture, evt); err != nil {
		slog.Debug("relay capture publish failed", "error", err)
	}
}
