package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestServer(t *testing.T, saveDir string) *httptest.Server {
	t.Helper()
	s := New(&Config{
		BindAddr:    "127.0.0.1:0",
		AssetsPath:  "/assets",
		SaveDir:     saveDir,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 5 * time.Second,
	}, zap.NewNop())

	srv := httptest.NewServer(s.server.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_ServesSavedArtifacts(t *testing.T) {
	saveDir := t.TempDir()
	srv := newTestServer(t, saveDir)

	// A file written after the server started is served with no
	// registration step.
	if err := os.WriteFile(filepath.Join(saveDir, "build-42.zip"), []byte("rom bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := http.Get(srv.URL + "/assets/build-42.zip")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	body, _ := io.ReadAll(res.Body)
	if string(body) != "rom bytes" {
		t.Errorf("body = %q", body)
	}
}

func TestServer_MissingArtifact(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	res, err := http.Get(srv.URL + "/assets/nope.zip")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", res.StatusCode)
	}
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	res, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	body, _ := io.ReadAll(res.Body)
	if want := `"status":"healthy"`; !strings.Contains(string(body), want) {
		t.Errorf("body = %s, want it to contain %s", body, want)
	}

	postRes, err := http.Post(srv.URL+"/health", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	postRes.Body.Close()
	if postRes.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", postRes.StatusCode)
	}
}
