package intake

import (
	"context"
	"errors"
	"time"

	apperrors "whitelist-intake/internal/common/errors"
	commonhttp "whitelist-intake/internal/common/http"
	"whitelist-intake/internal/models"
)

var errNoURL = errors.New("attachment has no url")

// AttachmentFetcher downloads the bytes behind an attachment reference.
type AttachmentFetcher interface {
	Fetch(ctx context.Context, att models.Attachment) ([]byte, error)
}

// HTTPFetcher downloads attachments over HTTP, bounding every fetch by
// timeout so a slow host cannot stall a session.
type HTTPFetcher struct {
	client  *commonhttp.Client
	timeout time.Duration
}

func NewHTTPFetcher(client *commonhttp.Client, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: client, timeout: timeout}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, att models.Attachment) ([]byte, error) {
	if att.URL == "" {
		return nil, apperrors.NewAttachmentFetchFailedError(att.Filename, errNoURL)
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	data, err := f.client.Download(ctx, att.URL)
	if err != nil {
		return nil, apperrors.NewAttachmentFetchFailedError(att.Filename, err)
	}
	return data, nil
}
