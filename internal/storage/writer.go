package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Transcript is one saved dictation.
type Transcript struct {
	Text           string
	Translation    string
	Language       string
	TargetLanguage string
	CreatedAt      time.Time
}

func (t Transcript) FormatMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Dictation %s\n\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	if t.Language != "" {
		fmt.Fprintf(&b, "_Language: %s_\n\n", t.Language)
	}
	b.WriteString(strings.TrimSpace(t.Text))
	b.WriteString("\n")
	if tr := strings.TrimSpace(t.Translation); tr != "" {
		fmt.Fprintf(&b, "\n## Translation (%s)\n\n%s\n", t.TargetLanguage, tr)
	}
	return b.String()
}

// Writer saves transcripts as markdown files, one per dictation.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join("data", "transcripts")
	}
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string { return w.dir }

// Save writes t and returns the file path. Saving twice within the same second
// gets a numeric suffix rather than overwriting.
func (w *Writer) Save(t Transcript) (string, error) {
	if strings.TrimSpace(t.Text) == "" {
		return "", fmt.Errorf("transcript is empty")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	base := t.CreatedAt.Format("2006-01-02-150405")
	path := filepath.Join(w.dir, base+".md")
	for i := 2; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(w.dir, fmt.Sprintf("%s-%d.md", base, i))
	}

	if err := os.WriteFile(path, []byte(t.FormatMarkdown()), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
