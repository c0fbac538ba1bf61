package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"
)

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier publishes plain-text notifications to one SNS topic.
type Notifier struct {
	svc      publisher
	topicArn string
}

func NewNotifier(cfg aws.Config, topicArn string) *Notifier {
	return &Notifier{svc: sns.NewFromConfig(cfg), topicArn: topicArn}
}

// SNS rejects subjects longer than 100 characters.
const maxSubject = 100

func (c *Notifier) SendAlert(ctx context.Context, subject, message string) error {
	if len(subject) > maxSubject {
		subject = subject[:maxSubject]
	}
	out, err := c.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	log.Debug().Str("message_id", aws.ToString(out.MessageId)).Msg("notification sent")
	return nil
}

// SendContact forwards a contact form submission.
func (c *Notifier) SendContact(ctx context.Context, name, email, message string) error {
	name = strings.TrimSpace(name)
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", name)
	fmt.Fprintf(&b, "Email: %s\n\n", strings.TrimSpace(email))
	b.WriteString(message)
	return c.SendAlert(ctx, "Smart ventilation contact: "+name, b.String())
}
