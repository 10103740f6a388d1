package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/tlux-store/tlux-api/pkg/logger"
)

// EmailService defines the interface for sending emails
type EmailService interface {
	SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error
	SendCodeEmail(ctx context.Context, email, code string, ttl time.Duration) error
	SendLicenseEmail(ctx context.Context, email, accessKey string, expiresAt time.Time) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, log *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      log,
	}, nil
}

// SendVerificationEmail sends the email-verification link to the user
func (s *AWSSESEmailService) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)
	hours := int(time.Until(expiresAt).Hours())

	textBody := fmt.Sprintf(`Verify your email address

Thank you for creating a T-Lux account. To finish registration, open the link below:

%s

The link expires in %d hours. If you didn't sign up, ignore this email.
`, link, hours)

	htmlBody := fmt.Sprintf(`<html><body>
<h2>Verify your email address</h2>
<p>Thank you for creating a T-Lux account. To finish registration, click the link below:</p>
<p><a href="%s">Verify email address</a></p>
<p>Or paste this link in your browser:<br><code>%s</code></p>
<p>The link expires in %d hours. If you didn't sign up, ignore this email.</p>
</body></html>`, link, link, hours)

	return s.send(ctx, email, "Verify your email address", textBody, htmlBody)
}

// SendCodeEmail sends a one-time confirmation code
func (s *AWSSESEmailService) SendCodeEmail(ctx context.Context, email, code string, ttl time.Duration) error {
	minutes := int(ttl.Minutes())

	textBody := fmt.Sprintf(`Your T-Lux confirmation code is: %s

The code expires in %d minutes. If you didn't request it, ignore this email.
`, code, minutes)

	htmlBody := fmt.Sprintf(`<html><body>
<h2>Your confirmation code</h2>
<p style="font-size:24px;letter-spacing:4px;"><strong>%s</strong></p>
<p>The code expires in %d minutes. If you didn't request it, ignore this email.</p>
</body></html>`, code, minutes)

	return s.send(ctx, email, "Your T-Lux confirmation code", textBody, htmlBody)
}

// SendLicenseEmail notifies the user of an issued access key
func (s *AWSSESEmailService) SendLicenseEmail(ctx context.Context, email, accessKey string, expiresAt time.Time) error {
	expiry := expiresAt.Format("2006-01-02 15:04 MST")

	textBody := fmt.Sprintf(`Your T-Lux access is active.

Access key: %s
Valid until: %s

Sign in to your dashboard to start using it.
`, accessKey, expiry)

	htmlBody := fmt.Sprintf(`<html><body>
<h2>Your T-Lux access is active</h2>
<p>Access key: <code>%s</code><br>Valid until: <strong>%s</strong></p>
<p>Sign in to your dashboard to start using it.</p>
</body></html>`, accessKey, expiry)

	return s.send(ctx, email, "Your T-Lux access is active", textBody, htmlBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", logger.SanitizedEmail(to)),
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", logger.SanitizedEmail(to)),
		slog.String("subject", subject),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
