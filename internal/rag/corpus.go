package rag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CorpusFile is one document from the docs folder.
type CorpusFile struct {
	Name    string
	Content string
}

// corpus file extensions we ingest. PDF extraction is out of scope; the
// corpus is expected as extracted text.
var corpusExtensions = map[string]bool{".txt": true, ".md": true}

// LoadCorpus reads every supported file from folder.
func LoadCorpus(folder string) ([]CorpusFile, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("docs folder %q: %w", folder, err)
	}
	var out []CorpusFile
	for _, e := range entries {
		if e.IsDir() || !corpusExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(folder, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		out = append(out, CorpusFile{Name: e.Name(), Content: string(data)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no documents found in %q", folder)
	}
	return out, nil
}

// SplitText cuts content into chunks of at most size runes with the given
// overlap between consecutive chunks.
func SplitText(content string, size, overlap int) []string {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}
	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
