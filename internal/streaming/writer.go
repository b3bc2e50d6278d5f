package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"photovault/internal/logging"
)

var (
	// ErrWriteTimeout means a single write exceeded the configured
	// timeout, usually a client draining data too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone means the client disconnected mid-stream.
	ErrClientGone = errors.New("client disconnected")
)

// Config bounds one streaming response.
type Config struct {
	// WriteTimeout is the maximum time for a single write.
	WriteTimeout time.Duration
	// ChunkSize splits large writes so a stalled client is detected
	// per chunk rather than per response. 0 writes as received.
	ChunkSize int
}

// DefaultConfig returns the bounds used for media streaming.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// Writer wraps an http.ResponseWriter so a slow or vanished client
// cannot pin a handler goroutine forever.
type Writer struct {
	w       http.ResponseWriter
	ctx     context.Context
	config  Config
	flusher http.Flusher

	mu           sync.Mutex
	start        time.Time
	bytesWritten int64
}

// NewWriter returns a Writer tied to the request context.
func NewWriter(ctx context.Context, w http.ResponseWriter, config Config) *Writer {
	sw := &Writer{
		w:      w,
		ctx:    ctx,
		config: config,
		start:  time.Now(),
	}
	if flusher, ok := w.(http.Flusher); ok {
		sw.flusher = flusher
	}
	return sw
}

func (sw *Writer) Write(p []byte) (int, error) {
	select {
	case <-sw.ctx.Done():
		return 0, ErrClientGone
	default:
	}

	if sw.config.ChunkSize > 0 && len(p) > sw.config.ChunkSize {
		return sw.writeChunked(p)
	}
	return sw.writeOne(p)
}

func (sw *Writer) writeChunked(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		select {
		case <-sw.ctx.Done():
			return total, ErrClientGone
		default:
		}

		chunk := sw.config.ChunkSize
		if len(p) < chunk {
			chunk = len(p)
		}

		n, err := sw.writeOne(p[:chunk])
		total += n
		if err != nil {
			return total, err
		}
		p = p[chunk:]

		if sw.flusher != nil {
			sw.flusher.Flush()
		}
	}
	return total, nil
}

func (sw *Writer) writeOne(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		n, err := sw.w.Write(p)
		done <- result{n, err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			sw.mu.Lock()
			sw.bytesWritten += int64(res.n)
			sw.mu.Unlock()
		}
		return res.n, res.err
	case <-time.After(sw.config.WriteTimeout):
		return 0, ErrWriteTimeout
	case <-sw.ctx.Done():
		return 0, ErrClientGone
	}
}

// Stats reports bytes written and elapsed time so far.
func (sw *Writer) Stats() (int64, time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.bytesWritten, time.Since(sw.start)
}

// Copy streams r to the response through a timeout-protected writer.
func Copy(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) error {
	sw := NewWriter(ctx, w, config)

	w.Header().Set("X-Content-Type-Options", "nosniff")

	_, err := io.Copy(sw, r)

	bytesWritten, duration := sw.Stats()
	logging.Debug("stream done: %d bytes in %v", bytesWritten, duration)
	return err
}
