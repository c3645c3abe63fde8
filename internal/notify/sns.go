package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Publisher is the subset of *sns.Client used by SNS.
type Publisher interface {
	Publish(ctx context.Context, in *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

// SNS delivers push messages to platform endpoints and SMS to phone numbers
// through Amazon SNS. Device tokens are endpoint ARNs.
type SNS struct {
	client   Publisher
	senderID string
}

// NewSNS loads the default AWS configuration for region.
func NewSNS(ctx context.Context, region, senderID string) (*SNS, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return NewSNSWithClient(awssns.NewFromConfig(cfg), senderID), nil
}

// NewSNSWithClient wraps an existing publisher.
func NewSNSWithClient(c Publisher, senderID string) *SNS {
	return &SNS{client: c, senderID: senderID}
}

type gcmPayload struct {
	Notification struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"notification"`
	Data map[string]string `json:"data,omitempty"`
}

type apnsPayload struct {
	APS struct {
		Alert struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		} `json:"alert"`
		Sound string `json:"sound"`
	} `json:"aps"`
	Data map[string]string `json:"data,omitempty"`
}

// pushDocument builds the per-platform JSON message SNS expects with
// MessageStructure=json. Platform values are themselves JSON strings.
func pushDocument(msg Message) (string, error) {
	var g gcmPayload
	g.Notification.Title, g.Notification.Body, g.Data = msg.Title, msg.Body, msg.Data
	var a apnsPayload
	a.APS.Alert.Title, a.APS.Alert.Body, a.APS.Sound, a.Data = msg.Title, msg.Body, "default", msg.Data

	gb, err := json.Marshal(g)
	if err != nil {
		return "", err
	}
	ab, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	doc, err := json.Marshal(map[string]string{
		"default":      msg.Body,
		"GCM":          string(gb),
		"APNS":         string(ab),
		"APNS_SANDBOX": string(ab),
	})
	return string(doc), err
}

// Push publishes msg to the endpoint ARN.
func (s *SNS) Push(ctx context.Context, endpointArn string, msg Message) error {
	doc, err := pushDocument(msg)
	if err != nil {
		return err
	}
	_, err = s.client.Publish(ctx, &awssns.PublishInput{
		MessageStructure: aws.String("json"),
		Message:          aws.String(doc),
		TargetArn:        aws.String(endpointArn),
	})
	return err
}

// SendSMS publishes a transactional SMS.
func (s *SNS) SendSMS(ctx context.Context, phone, text string) error {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.senderID)}
	}
	_, err := s.client.Publish(ctx, &awssns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(text),
		MessageAttributes: attrs,
	})
	return err
}

var (
	_ Pusher    = (*SNS)(nil)
	_ SMSSender = (*SNS)(nil)
)
