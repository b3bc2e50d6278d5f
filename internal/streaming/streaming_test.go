package streaming

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCopySmallBody(t *testing.T) {
	rec := httptest.NewRecorder()

	err := Copy(context.Background(), rec, strings.NewReader("tiny"), DefaultConfig())
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if rec.Body.String() != "tiny" {
		t.Errorf("body = %q, want tiny", rec.Body.String())
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestCopyChunksLargeBody(t *testing.T) {
	rec := httptest.NewRecorder()
	payload := bytes.Repeat([]byte("v"), 200*1024)

	config := Config{WriteTimeout: time.Second, ChunkSize: 64 * 1024}
	if err := Copy(context.Background(), rec, bytes.NewReader(payload), config); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("body length = %d, want %d", rec.Body.Len(), len(payload))
	}
	if rec.Flushed != true {
		t.Error("large body was not flushed between chunks")
	}
}

func TestCopyClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	err := Copy(ctx, rec, strings.NewReader("never sent"), DefaultConfig())
	if !errors.Is(err, ErrClientGone) {
		t.Errorf("err = %v, want ErrClientGone", err)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

// blockingWriter never completes a write, simulating a stalled client.
type blockingWriter struct {
	header http.Header
}

func (b *blockingWriter) Header() http.Header {
	if b.header == nil {
		b.header = make(http.Header)
	}
	return b.header
}

func (b *blockingWriter) Write(p []byte) (int, error) {
	select {} // block forever
}

func (b *blockingWriter) WriteHeader(int) {}

func TestWriteTimeout(t *testing.T) {
	config := Config{WriteTimeout: 20 * time.Millisecond}
	sw := NewWriter(context.Background(), &blockingWriter{}, config)

	_, err := sw.Write([]byte("stalls"))
	if !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("err = %v, want ErrWriteTimeout", err)
	}
}

func TestStats(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(context.Background(), rec, DefaultConfig())

	if _, err := sw.Write([]byte("12345")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	bytesWritten, duration := sw.Stats()
	if bytesWritten != 5 {
		t.Errorf("bytesWritten = %d, want 5", bytesWritten)
	}
	if duration <= 0 {
		t.Errorf("duration = %v, want > 0", duration)
	}
}
