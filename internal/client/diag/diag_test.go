package diag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newStore(path string) *Store {
	s := New(path)
	s.now = func() time.Time { return t0 }
	return s
}

func TestAppend_FormatsAndCaps(t *testing.T) {
	s := newStore("")
	for i := 0; i < MaxEntries+5; i++ {
		s.Appendf("line %d", i)
	}
	logs := s.Logs()
	require.Len(t, logs, MaxEntries)
	assert.Equal(t, "[2025-06-01T09:30:00Z] line 5", logs[0])
	assert.Equal(t, fmt.Sprintf("[2025-06-01T09:30:00Z] line %d", MaxEntries+4), logs[len(logs)-1])
}

func TestExportText(t *testing.T) {
	s := newStore("")
	s.Append("creating share")
	s.SetLastShareURL("https://cloud.invalid/share/s1")
	s.SetLastError(errors.New("quota"))

	want := strings.Join([]string{
		"Share Debug Export",
		"Timestamp: 2025-06-01T09:30:00Z",
		"LastShareURL: https://cloud.invalid/share/s1",
		"LastError: quota",
		"\nLogs:\n",
		"[2025-06-01T09:30:00Z] creating share",
	}, "\n")
	assert.Equal(t, want, s.ExportText())

	s.Clear()
	assert.NotContains(t, s.ExportText(), "LastError")
	assert.Empty(t, s.Logs())
}

func TestPersistence_ReloadsLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "share_debug.log")
	s := newStore(path)
	s.Append("one")
	s.Append("two")

	reloaded := New(path)
	assert.Equal(t, s.Logs(), reloaded.Logs())
}

func TestPersistence_ReloadsMultiLineEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "share_debug.log")
	s := newStore(path)
	s.Append("first")
	s.Appendf("createShare: failed: %v", errors.New("rpc error:\n[detail] quota exceeded\n\tretry later"))
	s.Append("last")

	reloaded := New(path)
	require.Len(t, reloaded.Logs(), 3)
	assert.Equal(t, s.Logs(), reloaded.Logs())
}

func TestPersistence_WriteFailureSwallowed(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	// The parent "directory" is a regular file, so every save fails.
	s := newStore(filepath.Join(blocker, "share_debug.log"))
	assert.NotPanics(t, func() { s.Append("still logged") })
	assert.Len(t, s.Logs(), 1)
}

type fakeRequester struct {
	url string
	err error
}

func (f fakeRequester) RequestSupportUpload(ctx context.Context, contentType string) (string, string, error) {
	return f.url, "support/abc.txt", f.err
}

func TestUpload(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		b, _ := io.ReadAll(r.Body)
		got = string(b)
	}))
	defer srv.Close()

	s := newStore("")
	s.Append("hello")

	key, err := s.Upload(context.Background(), fakeRequester{url: srv.URL}, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "support/abc.txt", key)
	assert.Contains(t, got, "Share Debug Export")
	assert.Contains(t, got, "hello")

	_, err = s.Upload(context.Background(), fakeRequester{err: errors.New("denied")}, srv.Client())
	require.ErrorContains(t, err, "denied")
}
