package terraform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/cloudconsole/engine/pkg/errors"
)

// LogStore keeps one append-only log file per deployment under a directory.
type LogStore struct {
	dir string
}

func NewLogStore(dir string) *LogStore {
	return &LogStore{dir: dir}
}

// Path returns the log file path of a deployment.
func (s *LogStore) Path(id string) string {
	return filepath.Join(s.dir, id+".log")
}

// Open opens the deployment's log for appending, creating it if needed.
func (s *LogStore) Open(id string) (*LogStream, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	f, err := os.OpenFile(s.Path(id), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return &LogStream{f: f}, nil
}

// Read returns the full log content.
func (s *LogStore) Read(id string) ([]byte, error) {
	b, err := os.ReadFile(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "no logs for deployment %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return b, nil
}

// ReadFrom returns the bytes appended after offset and the new offset.
func (s *LogStore) ReadFrom(id string, offset int64) ([]byte, int64, error) {
	f, err := os.Open(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, offset, apperrors.Newf(apperrors.CodeNotFound, "no logs for deployment %s", id)
	}
	if err != nil {
		return nil, offset, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log: %w", err)
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, offset, fmt.Errorf("read log: %w", err)
	}
	return b, offset + int64(len(b)), nil
}

// Exists reports whether a log file exists.
func (s *LogStore) Exists(id string) bool {
	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Tail returns the last n lines of the log.
func (s *LogStore) Tail(id string, n int) (string, error) {
	b, err := s.Read(id)
	if err != nil {
		return "", err
	}
	return lastLines(b, n), nil
}

// Remove deletes the log. A missing log is not an error.
func (s *LogStore) Remove(id string) error {
	if err := os.Remove(s.Path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove log: %w", err)
	}
	return nil
}

// LogStream is an open deployment log. Writes are appended in arrival order.
type LogStream struct {
	mu sync.Mutex
	f  *os.File
}

func (l *LogStream) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Write(p)
}

// Printf appends one formatted line.
func (l *LogStream) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	_, _ = l.Write([]byte(line))
}

func (l *LogStream) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

func lastLines(b []byte, n int) string {
	b = bytes.TrimRight(b, "\n")
	if n <= 0 || len(b) == 0 {
		return ""
	}
	idx := len(b)
	for i := 0; i < n; i++ {
		j := bytes.LastIndexByte(b[:idx], '\n')
		if j < 0 {
			return string(b)
		}
		idx = j
	}
	return string(b[idx+1:])
}

// tailBuffer retains the last n lines written to it.
type tailBuffer struct {
	n     int
	lines []string
	part  []byte
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.part = append(t.part, p...)
	for {
		i := bytes.IndexByte(t.part, '\n')
		if i < 0 {
			break
		}
		t.push(string(t.part[:i]))
		t.part = t.part[i+1:]
	}
	return len(p), nil
}

func (t *tailBuffer) push(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tailBuffer) String() string {
	lines := t.lines
	if len(t.part) > 0 {
		lines = append(append([]string(nil), lines...), string(t.part))
		if len(lines) > t.n {
			lines = lines[len(lines)-t.n:]
		}
	}
	return strings.Join(lines, "\n")
}
