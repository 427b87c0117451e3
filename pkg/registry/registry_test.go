package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadQuestionSet_Shipped(t *testing.T) {
	set, err := LoadQuestionSet(filepath.Join("..", "..", "configs", "questions.json"))
	require.NoError(t, err)

	assert.Equal(t, 9, set.Count())
	assert.Equal(t, 2, set.NicknameQuestion)
	assert.Len(t, set.Texts(), 9)
	assert.Equal(t, "weak application", set.ReasonCategory("weak application"))
	assert.Equal(t, OtherReason, set.ReasonCategory("weak"))
}

func TestParseQuestionSet_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "no questions",
			doc:     `{"version":"1","nicknameQuestion":1,"questions":[]}`,
			wantErr: "validation failed",
		},
		{
			name:    "missing version",
			doc:     `{"nicknameQuestion":1,"questions":[{"id":"a","text":"A?"}]}`,
			wantErr: "version",
		},
		{
			name:    "nickname question out of range",
			doc:     `{"version":"1","nicknameQuestion":3,"questions":[{"id":"a","text":"A?"}]}`,
			wantErr: "nicknameQuestion 3",
		},
		{
			name:    "duplicate id",
			doc:     `{"version":"1","nicknameQuestion":1,"questions":[{"id":"a","text":"A?"},{"id":"a","text":"B?"}]}`,
			wantErr: "duplicate question ID",
		},
		{
			name:    "not json",
			doc:     `questions`,
			wantErr: "validation error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuestionSet([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveQuestionSet_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "questions.json")
	set := &QuestionSet{
		Version:          "2.0.0",
		NicknameQuestion: 1,
		Questions:        []Question{{ID: "nick", Text: "Nickname?"}},
	}

	require.NoError(t, SaveQuestionSet(set, path))

	loaded, err := LoadQuestionSet(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nickname?"}, loaded.Texts())
	assert.Equal(t, OtherReason, loaded.ReasonCategory("anything"))
}
