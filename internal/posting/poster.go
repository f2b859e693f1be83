package posting

import (
	"context"
	"errors"

	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/webhook"
)

// PublishResult — ответ внешней платформы.
type PublishResult struct {
	ExternalPostID string `json:"external_post_id"`
	URL            string `json:"url,omitempty"`
}

// Poster публикует контент на внешней платформе.
type Poster interface {
	Publish(ctx context.Context, c domain.ContentCandidate) (PublishResult, error)
}

// ErrMissingPostID — платформа ответила без идентификатора поста.
var ErrMissingPostID = errors.New("publish response has no external_post_id")

// WebhookPoster публикует через HTTP-вебхук.
type WebhookPoster struct {
	client *webhook.Client
}

// NewWebhookPoster создаёт Poster поверх webhook.Client.
func NewWebhookPoster(client *webhook.Client) *WebhookPoster {
	return &WebhookPoster{client: client}
}

type publishRequest struct {
	ContentID   string `json:"content_id"`
	Platform    string `json:"platform"`
	ContentType string `json:"content_type"`
	Title       string `json:"title,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
}

// Publish отправляет кандидата на вебхук.
func (p *WebhookPoster) Publish(ctx context.Context, c domain.ContentCandidate) (PublishResult, error) {
	req := publishRequest{
		ContentID:   c.ID.String(),
		Platform:    c.Platform,
		ContentType: c.ContentType,
		Title:       c.Title,
		SourceURL:   c.SourceURL,
	}

	var res PublishResult
	if err := p.client.PostJSON(ctx, req, &res); err != nil {
		return PublishResult{}, err
	}
	if res.ExternalPostID == "" {
		return PublishResult{}, ErrMissingPostID
	}
	return res, nil
}

// PosterFunc адаптирует функцию к Poster.
type PosterFunc func(ctx context.Context, c domain.ContentCandidate) (PublishResult, error)

// Publish вызывает f.
func (f PosterFunc) Publish(ctx context.Context, c domain.ContentCandidate) (PublishResult, error) {
	return f(ctx, c)
}
