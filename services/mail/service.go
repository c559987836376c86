package mail

import (
	"bytes"
	"context"
	"fmt"
	htmlTemplate "html/template"
	"path/filepath"
	textTemplate "text/template"
	"time"

	"github.com/tech-arch1tect/scanassist/config"
	"github.com/tech-arch1tect/scanassist/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Sender is the notification-gateway contract the verification engine
// depends on. Both methods are best-effort: callers log failures and never
// let them change the caller-visible response.
type Sender interface {
	SendLink(ctx context.Context, recipient, url, template string, data map[string]any) error
	SendCode(ctx context.Context, recipient, code string) error
}

// Client abstracts the SMTP client so tests can substitute delivery.
type Client interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Service struct {
	config        *config.MailConfig
	appName       string
	client        Client
	htmlTemplates *htmlTemplate.Template
	textTemplates *textTemplate.Template
	logger        *logging.Service
}

func NewService(cfg *config.MailConfig, appName string, logger *logging.Service) (*Service, error) {
	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	switch cfg.Encryption {
	case "tls", "starttls":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		clientOpts = append(clientOpts, mail.WithSMTPAuth(mail.SMTPAuthPlain), mail.WithUsername(cfg.Username))
	}
	if cfg.Password != "" {
		clientOpts = append(clientOpts, mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		logger.Error("failed to create mail client",
			zap.Error(err),
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port))
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return NewServiceWithClient(cfg, appName, logger, client)
}

func NewServiceWithClient(cfg *config.MailConfig, appName string, logger *logging.Service, client Client) (*Service, error) {
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("SCANASSIST_MAIL_FROM_ADDRESS is required")
	}

	service := &Service{
		config:  cfg,
		appName: appName,
		client:  client,
		logger:  logger,
	}

	if err := service.loadTemplates(); err != nil {
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}

	logger.Info("mail service initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("from_address", cfg.FromAddress))

	return service, nil
}

func (s *Service) loadTemplates() error {
	if s.config.TemplatesDir == "" {
		s.logger.Debug("no template directory configured, skipping template loading")
		return nil
	}

	htmlPattern := filepath.Join(s.config.TemplatesDir, "*.html")
	textPattern := filepath.Join(s.config.TemplatesDir, "*.txt")

	if matches, err := filepath.Glob(htmlPattern); err != nil {
		return fmt.Errorf("failed to glob HTML templates: %w", err)
	} else if len(matches) > 0 {
		s.htmlTemplates, err = htmlTemplate.ParseGlob(htmlPattern)
		if err != nil {
			return fmt.Errorf("failed to parse HTML templates: %w", err)
		}
	}

	if matches, err := filepath.Glob(textPattern); err != nil {
		return fmt.Errorf("failed to glob text templates: %w", err)
	} else if len(matches) > 0 {
		s.textTemplates, err = textTemplate.ParseGlob(textPattern)
		if err != nil {
			return fmt.Errorf("failed to parse text templates: %w", err)
		}
	}

	return nil
}

// SendLink delivers a verification link. The secret inside the URL never
// gets logged.
func (s *Service) SendLink(ctx context.Context, recipient, url, template string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	data["URL"] = url
	data["AppName"] = s.appName

	subject, ok := linkSubjects[template]
	if !ok {
		subject = fmt.Sprintf("%s verification", s.appName)
	}

	message := s.newMessage()
	if err := message.To(recipient); err != nil {
		return fmt.Errorf("failed to set TO address: %w", err)
	}
	message.Subject(subject)

	if err := s.renderTemplate(template, data, message); err != nil {

		// fall back to a plain body so a missing template never blocks delivery
		message.SetBodyString(mail.TypeTextPlain, fmt.Sprintf("Follow this link to continue: %s", url))
	}

	return s.send(ctx, message)
}

// SendCode delivers a short numeric code in a plain message body.
func (s *Service) SendCode(ctx context.Context, recipient, code string) error {
	message := s.newMessage()
	if err := message.To(recipient); err != nil {
		return fmt.Errorf("failed to set TO address: %w", err)
	}
	message.Subject(fmt.Sprintf("Your %s verification code", s.appName))
	message.SetBodyString(mail.TypeTextPlain, fmt.Sprintf("Your verification code is: %s", code))

	return s.send(ctx, message)
}

var linkSubjects = map[string]string{
	"verify_email":   "Confirm your email address",
	"password_reset": "Password Reset Request",
	"change_email":   "Confirm your new email address",
	"delete_account": "Confirm account deletion",
}

func (s *Service) newMessage() *mail.Msg {
	message := mail.NewMsg()

	fromAddr := s.config.FromAddress
	if s.config.FromName != "" {
		fromAddr = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress)
	}

	if err := message.From(fromAddr); err != nil {
		panic(fmt.Sprintf("failed to set FROM address: %s", err))
	}

	return message
}

func (s *Service) send(ctx context.Context, message *mail.Msg) error {
	if s.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.SendTimeout)
		defer cancel()
	}

	startTime := time.Now()
	err := s.client.DialAndSendWithContext(ctx, message)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("failed to send email",
			zap.Error(err),
			zap.Duration("attempt_duration", duration))
		return err
	}

	s.logger.Info("email sent", zap.Duration("send_duration", duration))
	return nil
}

func (s *Service) renderTemplate(templateName string, data map[string]any, message *mail.Msg) error {
	var hasTemplate bool

	if s.htmlTemplates != nil {
		if tpl := s.htmlTemplates.Lookup(templateName + ".html"); tpl != nil {
			var buf bytes.Buffer
			if err := tpl.Execute(&buf, data); err != nil {
				return fmt.Errorf("failed to execute HTML template: %w", err)
			}
			message.SetBodyString(mail.TypeTextHTML, buf.String())
			hasTemplate = true
		}
	}

	if s.textTemplates != nil {
		if tpl := s.textTemplates.Lookup(templateName + ".txt"); tpl != nil {
			var buf bytes.Buffer
			if err := tpl.Execute(&buf, data); err != nil {
				return fmt.Errorf("failed to execute text template: %w", err)
			}
			if hasTemplate {
				message.AddAlternativeString(mail.TypeTextPlain, buf.String())
			} else {
				message.SetBodyString(mail.TypeTextPlain, buf.String())
			}
			hasTemplate = true
		}
	}

	if !hasTemplate {
		return fmt.Errorf("template '%s' not found", templateName)
	}

	return nil
}
