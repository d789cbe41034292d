package service

import (
	"context"

	"staffdesk/account-worker/internal/app/worker/entity"
	"staffdesk/pkg/logger"
)

// LogMailer пишет письмо в лог вместо отправки
type LogMailer struct{}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) Send(ctx context.Context, msg entity.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// ссылка содержит одноразовый токен, в лог попадает только получатель и тема
	logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_len", len(msg.Body)).
		Msg("Email dispatched")
	return nil
}
