package intake

import (
	"context"
	"fmt"
	"strings"

	"whitelist-intake/internal/common/logger"
	"whitelist-intake/internal/models"
)

const (
	voiceMarker     = "[voice message]"
	addendumHeading = "Addendum:"
)

// aggregate folds a batch of raw messages into one answer. Texts keep their
// arrival order; every attachment is fetched on its own and a failed fetch
// leaves a placeholder part instead of failing the batch.
func aggregate(ctx context.Context, fetcher AttachmentFetcher, log logger.Logger, msgs []models.Message) models.Answer {
	var (
		answer models.Answer
		parts  []string
	)
	for _, msg := range msgs {
		if msg.Text != "" {
			parts = append(parts, msg.Text)
		}

		voice := false
		for _, att := range msg.Attachments {
			stored := att
			stored.Data = nil

			data, err := fetcher.Fetch(ctx, att)
			if err != nil {
				log.Warn("attachment fetch failed", map[string]interface{}{
					"filename": att.Filename,
					"error":    err,
				})
				stored.FetchFailed = true
				parts = append(parts, fmt.Sprintf("[%s](attachment unavailable)", att.Filename))
			} else {
				stored.Data = data
				parts = append(parts, fmt.Sprintf("[%s](attached below)", att.Filename))
			}
			answer.Attachments = append(answer.Attachments, stored)

			if att.IsVoice() {
				voice = true
			}
		}
		if voice {
			parts = append(parts, voiceMarker)
			answer.Voice = true
		}
	}
	answer.Text = strings.Join(parts, "\n")
	return answer
}

// appendAddendum extends an existing answer with a supplemental one.
func appendAddendum(existing, addition models.Answer) models.Answer {
	out := existing.Clone()
	out.Text = existing.Text + "\n" + addendumHeading + "\n" + addition.Text
	out.Attachments = append(out.Attachments, addition.Clone().Attachments...)
	out.Voice = existing.Voice || addition.Voice
	return out
}
