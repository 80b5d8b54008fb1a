package evaluator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadReferences reads the reference policy corpus from dir. Plain-text
// and Markdown files are taken verbatim; JSON files are expected to be
// policy documents carrying their text in a "generated_text" or "content"
// field. Files are read in lexicographic order.
func LoadReferences(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading reference directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var refs []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading reference %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(name)) {
		case ".txt", ".md":
			refs = append(refs, string(data))
		case ".json":
			var doc struct {
				GeneratedText string `json:"generated_text"`
				Content       string `json:"content"`
			}
			if err := json.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("parsing reference %s: %w", path, err)
			}
			if doc.GeneratedText != "" {
				refs = append(refs, doc.GeneratedText)
			} else if doc.Content != "" {
				refs = append(refs, doc.Content)
			}
		}
	}
	return refs, nil
}
