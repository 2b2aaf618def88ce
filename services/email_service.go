package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"

	"github.com/Dosada05/volley-tournament/config"
	"github.com/Dosada05/volley-tournament/models"
)

// Notifier сообщает организатору о событиях турнира.
type Notifier interface {
	RegistrationReceived(ctx context.Context, organizer *models.User, tournament *models.Tournament, reg *models.Registration) error
}

type noopNotifier struct{}

func (noopNotifier) RegistrationReceived(context.Context, *models.User, *models.Tournament, *models.Registration) error {
	return nil
}

// NewNotifier returns an SMTP notifier, or one that drops messages when SMTP is not configured.
func NewNotifier(cfg config.SMTPConfig, logger *slog.Logger) Notifier {
	if !cfg.Enabled() {
		logger.Info("smtp is not configured, e-mail notifications are disabled")
		return noopNotifier{}
	}
	return &EmailService{cfg: cfg}
}

var registrationTemplate = template.Must(template.New("registration").Parse(`<p>Новая заявка на турнир <b>{{.Tournament}}</b>.</p>
<p>Участник: {{.Entry}}<br>Статус: {{.Status}}</p>
<p>Подтвердите или отклоните заявку в панели организатора.</p>`))

type EmailService struct {
	cfg config.SMTPConfig
}

func (s *EmailService) RegistrationReceived(ctx context.Context, organizer *models.User, tournament *models.Tournament, reg *models.Registration) error {
	if organizer == nil || organizer.Email == "" {
		return nil
	}
	var body bytes.Buffer
	err := registrationTemplate.Execute(&body, struct {
		Tournament string
		Entry      string
		Status     string
	}{
		Tournament: tournament.Name,
		Entry:      reg.DisplayName(),
		Status:     string(reg.Status),
	})
	if err != nil {
		return fmt.Errorf("ошибка генерации письма о заявке: %w", err)
	}
	subject := fmt.Sprintf("Турнир '%s': новая заявка", tournament.Name)
	return s.SendEmail(ctx, []string{organizer.Email}, subject, body.String())
}

func (s *EmailService) SendEmail(ctx context.Context, to []string, subject string, body string) error {
	if len(to) == 0 {
		return nil
	}
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)

	msg := []byte("To: " + to[0] + "\r\n" +
		"From: " + s.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	tlsconfig := &tls.Config{ServerName: s.cfg.Host}

	var client *smtp.Client
	if s.cfg.Port == 465 {
		// Прямое TLS-соединение
		dialer := &tls.Dialer{Config: tlsconfig}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("ошибка TLS соединения: %w", err)
		}
		client, err = smtp.NewClient(conn, s.cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("ошибка создания SMTP клиента: %w", err)
		}
	} else {
		// STARTTLS (обычно порт 587)
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("ошибка соединения SMTP: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("ошибка команды STARTTLS: %w", err)
		}
	}
	defer client.Quit()

	if s.cfg.User != "" {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("ошибка аутентификации SMTP: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("ошибка MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("ошибка RCPT TO: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("ошибка команды DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("ошибка записи сообщения: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия DATA: %w", err)
	}
	return nil
}
