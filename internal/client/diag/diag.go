// Package diag keeps a small, persistent log of sharing activity that the
// user can export and send to support.
package diag

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/filex"
	"github.com/dmitrijs2005/myhealthdata/internal/netx"
)

// MaxEntries bounds the in-memory and on-disk log.
const MaxEntries = 200

const logsHeader = "Logs:"

// Store is the share debug log. The zero value is not usable; call New.
// Persistence is best effort: failures to read or write the file are
// ignored.
type Store struct {
	mu           sync.Mutex
	path         string
	logs         []string
	lastShareURL string
	lastError    string
	now          func() time.Time
}

// New loads the log at path. An empty path keeps the log in memory only.
func New(path string) *Store {
	s := &Store{path: path, now: time.Now}
	s.load()
	return s
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// Append adds a timestamped line and drops the oldest lines beyond
// MaxEntries.
func (s *Store) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, fmt.Sprintf("[%s] %s", s.stamp(), text))
	if over := len(s.logs) - MaxEntries; over > 0 {
		s.logs = append([]string(nil), s.logs[over:]...)
	}
	s.save()
}

func (s *Store) Appendf(format string, args ...any) {
	s.Append(fmt.Sprintf(format, args...))
}

func (s *Store) SetLastShareURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastShareURL = url
	s.save()
}

// SetLastError remembers err; nil clears it.
func (s *Store) SetLastError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.save()
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
	s.lastShareURL = ""
	s.lastError = ""
	s.save()
}

// Logs returns a copy of the current lines, oldest first.
func (s *Store) Logs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logs...)
}

// ExportText renders the plain-text dump handed to support.
func (s *Store) ExportText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exportText()
}

func (s *Store) exportText() string {
	parts := []string{
		"Share Debug Export",
		"Timestamp: " + s.stamp(),
	}
	if s.lastShareURL != "" {
		parts = append(parts, "LastShareURL: "+s.lastShareURL)
	}
	if s.lastError != "" {
		parts = append(parts, "LastError: "+s.lastError)
	}
	parts = append(parts, "\n"+logsHeader+"\n")
	parts = append(parts, strings.Join(s.logs, "\n"))
	return strings.Join(parts, "\n")
}

func (s *Store) save() {
	if s.path == "" {
		return
	}
	if err := filex.EnsureParentDir(s.path); err != nil {
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(s.exportText()), 0o600); err != nil {
		return
	}
	_ = os.Rename(tmp, s.path)
}

func (s *Store) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(filepath.Clean(s.path))
	if err != nil {
		return
	}
	lines := strings.Split(string(data), "\n")
	start := 0
	for i, l := range lines {
		if strings.TrimSpace(l) == logsHeader {
			start = i + 1
			break
		}
	}
	var logs []string
	for _, l := range lines[start:] {
		switch {
		case isEntryStart(l):
			logs = append(logs, l)
		case len(logs) > 0:
			// continuation of a multi-line entry
			logs[len(logs)-1] += "\n" + l
		}
	}
	if len(logs) > MaxEntries {
		logs = logs[len(logs)-MaxEntries:]
	}
	s.logs = logs
}

// isEntryStart reports whether l begins with the "[RFC3339] " stamp Append
// writes.
func isEntryStart(l string) bool {
	if !strings.HasPrefix(l, "[") {
		return false
	}
	end := strings.Index(l, "] ")
	if end < 0 {
		return false
	}
	_, err := time.Parse(time.RFC3339, l[1:end])
	return err == nil
}

// UploadURLRequester issues presigned upload URLs for support bundles.
type UploadURLRequester interface {
	RequestSupportUpload(ctx context.Context, contentType string) (url string, objectKey string, err error)
}

// Upload sends the export to support storage and returns the object key.
func (s *Store) Upload(ctx context.Context, req UploadURLRequester, client *http.Client) (string, error) {
	const contentType = "text/plain; charset=utf-8"
	url, key, err := req.RequestSupportUpload(ctx, contentType)
	if err != nil {
		return "", fmt.Errorf("request upload url: %w", err)
	}
	if err := netx.UploadToPresignedURL(ctx, client, url, contentType, []byte(s.ExportText())); err != nil {
		return "", err
	}
	return key, nil
}
