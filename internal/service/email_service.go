package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog"

	"homestock/internal/logging"
)

// sesSender is the part of the SES client the service uses
type sesSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     sesSender
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	log        zerolog.Logger
}

// NewEmailService creates a new email service. Without a from address it is disabled
// and every send is skipped.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string) (*EmailService, error) {
	log := logging.WithComponent("email")

	if fromEmail == "" {
		log.Info().Msg("email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, log: log}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info().Str("from", fromEmail).Str("region", awsRegion).Msg("email service enabled")
	return &EmailService{
		client:     sesv2.NewFromConfig(cfg),
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
		log:        log,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s != nil && s.enabled
}

var inviteHTML = template.Must(template.New("invite").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #2f855a; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.code { font-family: monospace; font-size: 24px; letter-spacing: 2px; background: #fff; padding: 10px 20px; border: 1px solid #ddd; display: inline-block; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header"><h1>You're invited to HomeStock</h1></div>
		<div class="content">
			<p>You have been invited to join{{if .Family}} the <strong>{{.Family}}</strong> family{{end}} on HomeStock.</p>
			<p>Sign in at <a href="{{.JoinURL}}">{{.JoinURL}}</a> and enter this code:</p>
			<p class="code">{{.Code}}</p>
			<p>The code can be used once and expires on {{.Expires}}.</p>
		</div>
		<div class="footer"><p>If you weren't expecting this invitation you can ignore this email.</p></div>
	</div>
</body>
</html>`))

// SendInviteEmail sends an invite code to a prospective member
func (s *EmailService) SendInviteEmail(ctx context.Context, toEmail, familyName, code string, expiresAt time.Time) error {
	if !s.IsEnabled() {
		s.log.Debug().Str("to", toEmail).Msg("skipping invite email (service disabled)")
		return nil
	}

	data := struct {
		Family  string
		JoinURL string
		Code    string
		Expires string
	}{
		Family:  familyName,
		JoinURL: s.appBaseURL + "/join",
		Code:    code,
		Expires: expiresAt.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
	}

	var html bytes.Buffer
	if err := inviteHTML.Execute(&html, data); err != nil {
		return fmt.Errorf("failed to render invite email: %w", err)
	}
	text := fmt.Sprintf("You have been invited to join HomeStock.\n\nSign in at %s and enter this code:\n\n  %s\n\nThe code can be used once and expires on %s.\n",
		data.JoinURL, code, data.Expires)

	return s.sendEmail(ctx, toEmail, "Your HomeStock invite code", html.String(), text)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	event := s.log.Info().Str("to", toEmail).Str("subject", subject)
	if result.MessageId != nil {
		event = event.Str("message_id", *result.MessageId)
	}
	event.Msg("email sent")
	return nil
}
