package intake

import (
	"fmt"
	"net/url"
	"strings"

	"whitelist-intake/internal/models"
)

const (
	defaultFieldLimit = 1024
	noAnswer          = "[no answer]"
)

// summaryFields pairs every question with its answer. Answers longer than
// limit runes continue in extra fields.
func summaryFields(questions []string, answers []models.Answer, limit int) []models.SummaryField {
	if limit <= 0 {
		limit = defaultFieldLimit
	}
	fields := make([]models.SummaryField, 0, len(questions))
	for i, q := range questions {
		name := fmt.Sprintf("%d. %s", i+1, q)

		text := ""
		if i < len(answers) {
			text = answers[i].Text
		}
		if strings.TrimSpace(text) == "" {
			fields = append(fields, models.SummaryField{Name: name, Value: noAnswer})
			continue
		}

		for j, chunk := range splitRunes(text, limit) {
			if j > 0 {
				name = fmt.Sprintf("Answer %d (continued)", i+1)
			}
			fields = append(fields, models.SummaryField{Name: name, Value: chunk})
		}
	}
	return fields
}

func splitRunes(s string, size int) []string {
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// thumbnailURL renders the avatar template for the nickname answer.
func thumbnailURL(template string, answers []models.Answer, nicknameQuestion int) string {
	if template == "" || nicknameQuestion < 1 || nicknameQuestion > len(answers) {
		return ""
	}
	nickname := models.CleanNickname(answers[nicknameQuestion-1].Text)
	if nickname == "" || strings.ContainsAny(nickname, "\n ") {
		return ""
	}
	return fmt.Sprintf(template, url.PathEscape(nickname))
}
