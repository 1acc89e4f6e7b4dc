package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/dental-agenda/internal/config"
	"github.com/wolfman30/dental-agenda/internal/notify"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

// BuildEmailSender picks the provider named by EMAIL_PROVIDER. Missing
// credentials fall back to the stub so "email myself" never panics; the
// returned reason says why.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), "stub", "missing config"
	}

	from := notify.Sender{
		Email:   cfg.EmailFromAddress,
		Name:    cfg.EmailFromName,
		ReplyTo: cfg.EmailReplyTo,
	}

	switch cfg.EmailProvider {
	case "ses":
		if awsCfg == nil {
			return notify.NewStubEmailSender(logger), "stub", "ses selected without aws config"
		}
		if cfg.EmailFromAddress == "" {
			return notify.NewStubEmailSender(logger), "stub", "ses selected without EMAIL_FROM_ADDRESS"
		}
		var opts []notify.SESOption
		if cfg.SESConfigSet != "" {
			opts = append(opts, notify.WithConfigurationSet(cfg.SESConfigSet))
		}
		sender := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), from, logger, opts...)
		return sender, "ses", ""
	case "sendgrid":
		sender := notify.NewSendGridSender(cfg.SendGridAPIKey, from, logger)
		if sender == nil {
			return notify.NewStubEmailSender(logger), "stub", "sendgrid selected without SENDGRID_API_KEY"
		}
		return sender, "sendgrid", ""
	case "", "stub":
		return notify.NewStubEmailSender(logger), "stub", ""
	default:
		return notify.NewStubEmailSender(logger), "stub", "unknown provider " + cfg.EmailProvider
	}
}
