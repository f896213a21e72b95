package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/release-sync/internal/domain"
	"github.com/vertextoedge/release-sync/internal/httpx"
)

// mockNotifier implements port.Notifier for testing
type mockNotifier struct {
	mu       sync.Mutex
	messages []string
	sendErr  error
}

func (m *mockNotifier) Send(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.messages = append(m.messages, text)
	return nil
}

func (m *mockNotifier) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

// flakyServer serves payload honoring Range offsets and truncates the first
// failures responses mid-stream by declaring more bytes than it writes.
type flakyServer struct {
	mu       sync.Mutex
	payload  []byte
	failures int // number of responses to truncate
	chunk    int // bytes actually written on a truncated response
	requests int
	offsets  []int64
}

// parseRangeOffset runs inside handler goroutines, so it must not FailNow.
func parseRangeOffset(t *testing.T, header string) int64 {
	t.Helper()
	if !strings.HasPrefix(header, "bytes=") || !strings.HasSuffix(header, "-") {
		t.Errorf("malformed Range header %q", header)
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(header, "bytes="), "-"), 10, 64)
	if err != nil {
		t.Errorf("malformed Range offset in %q: %v", header, err)
		return 0
	}
	return n
}

func (f *flakyServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests++
		offset := parseRangeOffset(t, r.Header.Get("Range"))
		f.offsets = append(f.offsets, offset)
		fail := f.failures > 0
		if fail {
			f.failures--
		}
		f.mu.Unlock()

		remaining := f.payload[offset:]
		if fail && f.chunk < len(remaining) {
			// Promise the full range but deliver only a prefix; the client
			// sees an unexpected EOF mid-stream.
			w.Header().Set("Content-Length", strconv.Itoa(len(remaining)))
			w.WriteHeader(http.StatusPartialContent)
			w.Write(remaining[:f.chunk])
			if fl, ok := w.(http.Flusher); ok {
				fl.Flush()
			}
			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(remaining)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(remaining)
	}
}

func (f *flakyServer) stats() (int, []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests, append([]int64(nil), f.offsets...)
}

func testPayload(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	return payload
}

func newDownloader(notifier *mockNotifier) *Downloader {
	return NewDownloader(httpx.NewClient(), notifier, zap.NewNop())
}

func TestDownload_CleanTransfer(t *testing.T) {
	payload := testPayload(4096)
	fs := &flakyServer{payload: payload}
	srv := httptest.NewServer(fs.handler(t))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "build-42.zip")
	notifier := &mockNotifier{}

	artifact := &domain.Artifact{
		PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DownloadURL: srv.URL + "/f.zip",
		ContentHash: "abc123",
		FileName:    "build-42.zip",
		PublicURL:   "http://localhost:8080/assets/build-42.zip",
	}

	written, err := newDownloader(notifier).Download(context.Background(), artifact, dest)
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if written != int64(len(payload)) {
		t.Errorf("written = %d, want %d", written, len(payload))
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("destination content does not match payload")
	}

	messages := notifier.sent()
	if len(messages) != 1 {
		t.Fatalf("expected 1 completion notification, got %d", len(messages))
	}
	for _, want := range []string{"build-42.zip", "abc123", srv.URL + "/f.zip"} {
		if !strings.Contains(messages[0], want) {
			t.Errorf("notification missing %q: %q", want, messages[0])
		}
	}
}

func TestDownload_ResumesAfterStreamErrors(t *testing.T) {
	payload := testPayload(10000)
	fs := &flakyServer{payload: payload, failures: 2, chunk: 3000}
	srv := httptest.NewServer(fs.handler(t))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "build-42.zip")
	notifier := &mockNotifier{}

	artifact := &domain.Artifact{DownloadURL: srv.URL + "/f.zip", FileName: "build-42.zip"}

	written, err := newDownloader(notifier).Download(context.Background(), artifact, dest)
	if err != nil {
		t.Fatalf("Download() error after recoverable failures: %v", err)
	}
	if written != int64(len(payload)) {
		t.Errorf("written = %d, want %d", written, len(payload))
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("resumed transfer produced wrong content")
	}

	// Two failures then success: three requests, each resuming exactly at
	// the bytes already written to disk.
	requests, offsets := fs.stats()
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
	wantOffsets := []int64{0, 3000, 6000}
	if len(offsets) != len(wantOffsets) {
		t.Fatalf("offsets = %v, want %v", offsets, wantOffsets)
	}
	for i, want := range wantOffsets {
		if offsets[i] != want {
			t.Errorf("offsets[%d] = %d, want %d", i, offsets[i], want)
		}
	}

	if len(notifier.sent()) != 1 {
		t.Error("expected completion notification after resumed transfer")
	}
}

func TestDownload_RetriesExhausted(t *testing.T) {
	payload := testPayload(10000)
	fs := &flakyServer{payload: payload, failures: retryLimit + 1, chunk: 1000}
	srv := httptest.NewServer(fs.handler(t))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "build-42.zip")
	notifier := &mockNotifier{}

	artifact := &domain.Artifact{DownloadURL: srv.URL + "/f.zip", FileName: "build-42.zip"}

	written, err := newDownloader(notifier).Download(context.Background(), artifact, dest)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var te *domain.TransferError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransferError, got %v", err)
	}
	if te.Attempts != retryLimit {
		t.Errorf("Attempts = %d, want %d", te.Attempts, retryLimit)
	}
	if requests, _ := fs.stats(); requests != retryLimit {
		t.Errorf("requests = %d, want %d", requests, retryLimit)
	}

	// The partial file stays on disk, intact up to the last written chunk.
	got, readErr := os.ReadFile(dest)
	if readErr != nil {
		t.Fatalf("read destination: %v", readErr)
	}
	if written != int64(len(got)) {
		t.Errorf("written = %d but file holds %d bytes", written, len(got))
	}
	if !bytes.Equal(got, payload[:len(got)]) {
		t.Error("partial file content diverges from payload prefix")
	}

	if len(notifier.sent()) != 0 {
		t.Error("no notification should be sent for a failed transfer")
	}
}

func TestDownload_ZeroLengthBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "empty.zip")
	notifier := &mockNotifier{}

	artifact := &domain.Artifact{DownloadURL: srv.URL + "/empty.zip", FileName: "empty.zip"}

	written, err := newDownloader(notifier).Download(context.Background(), artifact, dest)
	if err != nil {
		t.Fatalf("Download() error for empty body: %v", err)
	}
	if written != 0 {
		t.Errorf("written = %d, want 0", written)
	}

	info, statErr := os.Stat(dest)
	if statErr != nil {
		t.Fatalf("destination missing: %v", statErr)
	}
	if info.Size() != 0 {
		t.Errorf("destination size = %d, want 0", info.Size())
	}
	if len(notifier.sent()) != 1 {
		t.Error("zero-byte transfer is a success and should notify")
	}
}

func TestDownload_NotificationFailureIsNotFatal(t *testing.T) {
	payload := testPayload(128)
	fs := &flakyServer{payload: payload}
	srv := httptest.NewServer(fs.handler(t))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "build-42.zip")
	notifier := &mockNotifier{sendErr: fmt.Errorf("chat unreachable")}

	artifact := &domain.Artifact{DownloadURL: srv.URL + "/f.zip", FileName: "build-42.zip"}

	if _, err := newDownloader(notifier).Download(context.Background(), artifact, dest); err != nil {
		t.Fatalf("notification failure must not fail the transfer: %v", err)
	}
}

func TestDownload_DestinationNotWritable(t *testing.T) {
	notifier := &mockNotifier{}
	artifact := &domain.Artifact{DownloadURL: "http://127.0.0.1:1/f.zip", FileName: "f.zip"}

	dest := filepath.Join(t.TempDir(), "no-such-dir", "f.zip")
	_, err := newDownloader(notifier).Download(context.Background(), artifact, dest)
	if !domain.IsTransfer(err) {
		t.Fatalf("expected TransferError for unwritable destination, got %v", err)
	}
}

func TestAlreadyFetched(t *testing.T) {
	dir := t.TempDir()

	if AlreadyFetched(dir, "build-42.zip") {
		t.Error("absent file reported as fetched")
	}

	if err := os.WriteFile(filepath.Join(dir, "build-42.zip"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Bare existence is the marker; even a truncated file counts.
	if !AlreadyFetched(dir, "build-42.zip") {
		t.Error("existing file not reported as fetched")
	}
}
