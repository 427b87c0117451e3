// pkg/registry/schema.go
package registry

// QuestionSet is the fixed, ordered questionnaire of one deployment.
type QuestionSet struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Questions   []Question `json:"questions"`
	// NicknameQuestion is the 1-based position of the question whose answer
	// holds the applicant's in-game nickname.
	NicknameQuestion int      `json:"nicknameQuestion"`
	RejectReasons    []string `json:"rejectReasons"`
}

type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Texts returns the question texts in order.
func (s *QuestionSet) Texts() []string {
	texts := make([]string, len(s.Questions))
	for i, q := range s.Questions {
		texts[i] = q.Text
	}
	return texts
}

// Count returns the number of questions.
func (s *QuestionSet) Count() int {
	return len(s.Questions)
}

// OtherReason is the category of a reject reason that is not one of the
// configured suggestions.
const OtherReason = "other"

// ReasonCategory maps a reviewer-entered reject reason to one of the
// configured reasons. Free text falls into OtherReason.
func (s *QuestionSet) ReasonCategory(reason string) string {
	for _, r := range s.RejectReasons {
		if r == reason {
			return r
		}
	}
	return OtherReason
}

const questionSetSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "questions", "nicknameQuestion"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "lastUpdated": {"type": "string"},
    "nicknameQuestion": {"type": "integer", "minimum": 1},
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "text"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "text": {"type": "string", "minLength": 1, "maxLength": 250}
        }
      }
    },
    "rejectReasons": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "uniqueItems": true
    }
  }
}`
