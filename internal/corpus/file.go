package corpus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verity-rag/verity/internal/domain"
)

// maxLineBytes bounds one JSONL record: 160KB of text plus a few thousand
// float literals fits comfortably under 4MB.
const maxLineBytes = 4 << 20

// FileSource reads a JSONL snapshot, one Record per line. Used for local
// and dev corpora.
type FileSource struct {
	path string
}

// NewFileSource creates a JSONL snapshot source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads every record in the snapshot. Blank lines are skipped; a
// malformed line fails the load, since a partial corpus silently changes
// what the system can answer.
func (s *FileSource) Load(ctx context.Context) ([]domain.Document, error) {
	f, err := os.Open(filepath.Clean(s.path))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrCorpusUnreadable, s.path, err)
	}
	defer f.Close()

	var docs []domain.Document

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %w", domain.ErrCorpusUnreadable, s.path, line, err)
		}

		doc, err := rec.toDocument()
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, line, err)
		}
		docs = append(docs, doc)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrCorpusUnreadable, s.path, err)
	}

	return docs, nil
}
