package notify

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/dental-agenda/pkg/logging"
)

type sesAPI interface {
	SendEmail(context.Context, *sesv2.SendEmailInput, ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES only accepts tag names and values made of these characters.
var sesTagUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SESSender delivers through AWS SES v2.
type SESSender struct {
	client           sesAPI
	from             Sender
	configurationSet string
	logger           *logging.Logger
}

// SESOption tunes an SESSender.
type SESOption func(*SESSender)

// WithConfigurationSet routes sends through an SES configuration set for
// bounce and complaint events.
func WithConfigurationSet(name string) SESOption {
	return func(s *SESSender) { s.configurationSet = name }
}

// NewSESSender returns nil without a client.
func NewSESSender(client sesAPI, from Sender, logger *logging.Logger, opts ...SESOption) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &SESSender{client: client, from: from.withDefaults(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func utf8Content(data string) *types.Content {
	return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}
	if err := checkRecipient(msg); err != nil {
		return err
	}

	body := &types.Body{}
	if msg.Body != "" {
		body.Text = utf8Content(msg.Body)
	}
	if msg.HTML != "" {
		body.Html = utf8Content(msg.HTML)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from.Address()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8Content(msg.Subject), Body: body},
		},
		EmailTags: sesTags(msg.Tags),
	}
	if replyTo := s.from.replyTo(msg); replyTo != "" {
		input.ReplyToAddresses = []string{replyTo}
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	output, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("SES send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: SES send failed: %w", err)
	}

	s.logger.Info("email sent via SES", "to", msg.To, "subject", msg.Subject, "message_id", aws.ToString(output.MessageId))
	return nil
}

func sesTags(tags map[string]string) []types.MessageTag {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.MessageTag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.MessageTag{
			Name:  aws.String(sesTagUnsafe.ReplaceAllString(k, "_")),
			Value: aws.String(sesTagUnsafe.ReplaceAllString(tags[k], "_")),
		})
	}
	return out
}

var _ EmailSender = (*SESSender)(nil)
