package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"staffdesk/account-worker/internal/app/worker/entity"
)

var (
	// ErrPermanent - задание не может быть выполнено, повторять бессмысленно
	ErrPermanent = errors.New("permanent notification failure")
)

// NotificationService превращает задание в письмо со ссылкой на фронтенд
type NotificationService struct {
	mailer      Mailer
	frontendURL string
}

func NewNotificationService(mailer Mailer, frontendURL string) *NotificationService {
	return &NotificationService{
		mailer:      mailer,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
	}
}

// Deliver строит письмо и передаёт его Mailer.
// Ошибки формата задания оборачивают ErrPermanent, ошибки Mailer возвращаются как есть.
func (s *NotificationService) Deliver(ctx context.Context, job *entity.NotificationJob) error {
	msg, err := s.Render(job)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s email: %w", job.Kind, err)
	}
	return nil
}

// Render собирает письмо: ссылка вида {frontend}/activate/{uid}/{token}
// или {frontend}/reset-password/{uid}/{token}
func (s *NotificationService) Render(job *entity.NotificationJob) (entity.EmailMessage, error) {
	if job.Email == "" || job.UID == "" || job.Token == "" {
		return entity.EmailMessage{}, fmt.Errorf("%w: incomplete %s job for user %s", ErrPermanent, job.Kind, job.UserID)
	}

	var (
		path    string
		subject string
		intro   string
	)
	switch job.Kind {
	case entity.NotificationActivation:
		path, subject = "activate", "Activate your account"
		intro = "Please confirm your email address to activate your account:"
	case entity.NotificationPasswordReset:
		path, subject = "reset-password", "Reset your password"
		intro = "A password reset was requested for your account. Follow the link to choose a new password:"
	default:
		return entity.EmailMessage{}, fmt.Errorf("%w: unknown kind %q", ErrPermanent, job.Kind)
	}

	link := s.frontendURL + "/" + path + "/" + url.PathEscape(job.UID) + "/" + url.PathEscape(job.Token)

	name := job.Username
	if name == "" {
		name = job.Email
	}
	body := fmt.Sprintf("Hello %s,\n\n%s\n%s\n\nIf you did not request this, ignore this email.\n", name, intro, link)

	return entity.EmailMessage{
		To:      job.Email,
		Subject: subject,
		Body:    body,
		Link:    link,
	}, nil
}
