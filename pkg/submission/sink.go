package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-onboard/pkg/form"
)

// Sink receives submitted payloads. Delivery beyond the process (webhooks,
// queues) is left to callers implementing Sink.
type Sink interface {
	Deliver(ctx context.Context, p form.Payload) error
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(ctx context.Context, p form.Payload) error

func (fn SinkFunc) Deliver(ctx context.Context, p form.Payload) error {
	return fn(ctx, p)
}

// WriterSink encodes each payload to w, followed by a newline.
type WriterSink struct {
	mu      sync.Mutex
	w       io.Writer
	encoder *Encoder
}

// NewWriterSink builds a sink writing to w.
func NewWriterSink(w io.Writer, encoder *Encoder) *WriterSink {
	if encoder == nil {
		encoder = NewEncoder(FormatJSON)
	}
	return &WriterSink{w: w, encoder: encoder}
}

func (s *WriterSink) Deliver(ctx context.Context, p form.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := s.encoder.Encode(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("submission: write: %w", err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		_, err = io.WriteString(s.w, "\n")
	}
	return err
}

// FileSink writes one file per payload into a directory.
type FileSink struct {
	dir     string
	encoder *Encoder
	now     func() time.Time
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithClock overrides the timestamp source used in file names.
func WithClock(now func() time.Time) FileSinkOption {
	return func(s *FileSink) {
		if now != nil {
			s.now = now
		}
	}
}

// NewFileSink builds a sink writing into dir, creating it when missing.
func NewFileSink(dir string, encoder *Encoder, opts ...FileSinkOption) (*FileSink, error) {
	if dir == "" {
		return nil, errors.New("submission: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("submission: create %s: %w", dir, err)
	}
	if encoder == nil {
		encoder = NewEncoder(FormatEnvelope)
	}
	s := &FileSink{dir: dir, encoder: encoder, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *FileSink) Deliver(ctx context.Context, p form.Payload) error {
	_, err := s.Write(ctx, p)
	return err
}

// Write delivers p and returns the path written.
func (s *FileSink) Write(ctx context.Context, p form.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := s.encoder.Encode(p)
	if err != nil {
		return "", err
	}
	prefix := p.SchemaID
	if prefix == "" {
		prefix = "submission"
	}
	name := fmt.Sprintf("%s-%s-%s%s", prefix, s.now().UTC().Format("20060102T150405Z"), uuid.NewString()[:8], s.encoder.Format().Extension())
	path := filepath.Join(s.dir, name)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", fmt.Errorf("submission: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("submission: rename %s: %w", tmp, err)
	}
	return path, nil
}

// LogSink records each submission with the logger.
func LogSink(logger *zap.Logger) Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return SinkFunc(func(_ context.Context, p form.Payload) error {
		logger.Info("onboarding submitted",
			zap.String("schema", p.SchemaID),
			zap.Any("drivers", p.Drivers().Scalars()),
			zap.Int("answers", p.Len()),
		)
		return nil
	})
}

// Multi delivers to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, p form.Payload) error {
		var errs []error
		for _, sink := range sinks {
			if sink == nil {
				continue
			}
			if err := sink.Deliver(ctx, p); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
