package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileSource reads keywords from a YAML snapshot:
//
//	keywords:
//	  - id: kw-1
//	    frequency: daily
//	    engines: [openai, perplexity]
//	  - id: kw-2
//	    frequency: weekly
//	    active: false
//
// Entries without an active field are active.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path on every call.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type keywordsFile struct {
	Keywords []struct {
		Active  *bool `yaml:"active"`
		Keyword `yaml:",inline"`
	} `yaml:"keywords"`
}

// ActiveKeywords parses the file and returns its active entries.
func (s *FileSource) ActiveKeywords(context.Context) ([]Keyword, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("schedule: read %s: %w", s.path, err)
	}
	return parseKeywords(data)
}

func parseKeywords(data []byte) ([]Keyword, error) {
	var f keywordsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrInvalidSourceFile, err)
	}

	out := make([]Keyword, 0, len(f.Keywords))
	for _, e := range f.Keywords {
		if e.Active != nil && !*e.Active {
			continue
		}
		out = append(out, e.Keyword)
	}
	return out, nil
}
