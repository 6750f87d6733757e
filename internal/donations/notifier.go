package donations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/multierr"
)

// Claim is a self-reported donation awaiting manual confirmation.
type Claim struct {
	UserID   string
	Email    string
	FullName string
	Amount   int
	Currency string
	At       time.Time
}

// Notifier tells people about a donation claim.
type Notifier interface {
	DonationClaimed(ctx context.Context, claim Claim) error
}

type nopNotifier struct{}

// NopNotifier drops every claim.
func NopNotifier() Notifier { return nopNotifier{} }

func (nopNotifier) DonationClaimed(context.Context, Claim) error { return nil }

type multiNotifier []Notifier

// MultiNotifier fans a claim out to every notifier and combines failures.
func MultiNotifier(notifiers ...Notifier) Notifier {
	return multiNotifier(notifiers)
}

func (m multiNotifier) DonationClaimed(ctx context.Context, claim Claim) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.DonationClaimed(ctx, claim))
	}
	return err
}

// SNSPublisher is the part of the SNS client used for admin alerts.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type snsNotifier struct {
	client   SNSPublisher
	topicARN string
}

// NewSNSNotifier publishes each claim to the admin topic so someone can match
// it against the payee account.
func NewSNSNotifier(client SNSPublisher, topicARN string) Notifier {
	return &snsNotifier{client: client, topicARN: topicARN}
}

func (n *snsNotifier) DonationClaimed(ctx context.Context, claim Claim) error {
	message := fmt.Sprintf("%s <%s> reports a donation of %d %s at %s (user %s). Please confirm against the UPI account.",
		displayName(claim, "A user"), claim.Email, claim.Amount, claim.Currency, claim.At.Format(time.RFC3339), claim.UserID)

	_, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(fmt.Sprintf("Donation claim: %d %s", claim.Amount, claim.Currency)),
		Message:  aws.String(message),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"user_id": {DataType: aws.String("String"), StringValue: aws.String(claim.UserID)},
			"amount":  {DataType: aws.String("Number"), StringValue: aws.String(fmt.Sprint(claim.Amount))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish donation claim: %w", err)
	}
	return nil
}

// EmailSender is the part of the SES v2 client used for donor mail.
type EmailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesNotifier struct {
	client EmailSender
	from   string
	bcc    []string
}

// NewSESNotifier thanks the donor by email, copying admins.
func NewSESNotifier(client EmailSender, from string, admins []string) Notifier {
	return &sesNotifier{client: client, from: from, bcc: admins}
}

func (n *sesNotifier) DonationClaimed(ctx context.Context, claim Claim) error {
	if claim.Email == "" {
		return nil
	}
	body := strings.Join([]string{
		fmt.Sprintf("Hi %s,", displayName(claim, "there")),
		"",
		fmt.Sprintf("Thank you for supporting CollegeStar with %d %s.", claim.Amount, claim.Currency),
		"Your supporter badge is now visible on your profile.",
		"",
		"Team CollegeStar",
	}, "\n")

	_, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination: &sestypes.Destination{
			ToAddresses:  []string{claim.Email},
			BccAddresses: n.bcc,
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String("Thank you for your support"), Charset: aws.String("UTF-8")},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send thank-you email: %w", err)
	}
	return nil
}

func displayName(c Claim, fallback string) string {
	if strings.TrimSpace(c.FullName) != "" {
		return c.FullName
	}
	return fallback
}
