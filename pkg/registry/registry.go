// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// LoadQuestionSet reads and validates the question set at path.
func LoadQuestionSet(path string) (*QuestionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseQuestionSet(data)
}

// ParseQuestionSet validates data against the question set schema and the
// cross-field rules, then decodes it.
func ParseQuestionSet(data []byte) (*QuestionSet, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(questionSetSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("question set validation failed: %s", strings.Join(errs, "; "))
	}

	var set QuestionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode question set: %w", err)
	}

	if set.NicknameQuestion > len(set.Questions) {
		return nil, fmt.Errorf("nicknameQuestion %d outside [1, %d]", set.NicknameQuestion, len(set.Questions))
	}
	ids := make(map[string]bool, len(set.Questions))
	for _, q := range set.Questions {
		if ids[q.ID] {
			return nil, fmt.Errorf("duplicate question ID: %s", q.ID)
		}
		ids[q.ID] = true
	}
	return &set, nil
}

// SaveQuestionSet writes set to path as indented JSON.
func SaveQuestionSet(set *QuestionSet, path string) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal question set: %w", err)
	}
	if _, err := ParseQuestionSet(data); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write question set: %w", err)
	}
	return nil
}
