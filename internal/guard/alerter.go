package guard

import (
	"context"
	"errors"

	"github.com/shaiso/Herald/internal/webhook"
)

// WebhookAlerter отправляет Remediation JSON-вебхуком.
type WebhookAlerter struct {
	client *webhook.Client
}

// NewWebhookAlerter создаёт Alerter поверх webhook.Client.
func NewWebhookAlerter(client *webhook.Client) *WebhookAlerter {
	return &WebhookAlerter{client: client}
}

type alertPayload struct {
	Text        string      `json:"text"`
	Remediation Remediation `json:"remediation"`
}

// Alert отправляет сообщение.
func (a *WebhookAlerter) Alert(ctx context.Context, r Remediation) error {
	return a.client.PostJSON(ctx, alertPayload{Text: r.Message, Remediation: r}, nil)
}

// MultiAlerter рассылает сообщение во все каналы; ошибки объединяются.
type MultiAlerter []Alerter

// Alert вызывает все Alerter'ы.
func (m MultiAlerter) Alert(ctx context.Context, r Remediation) error {
	var errs []error
	for _, a := range m {
		if err := a.Alert(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
