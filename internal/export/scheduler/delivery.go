package scheduler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"coopregistry/portal-backend/pkg/storage"
)

// EmailSender is the subset of the SES v2 client used for delivery.
type EmailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// NewSESSender creates an SES v2 client from the default AWS credential chain.
func NewSESSender(ctx context.Context, region string) (*sesv2.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return sesv2.NewFromConfig(cfg), nil
}

// DeliveryConfig configures where exports are sent
type DeliveryConfig struct {
	FromAddress   string
	Bucket        string
	ArchivePrefix string
}

// DeliveryManager handles export delivery
type DeliveryManager struct {
	sender EmailSender
	store  storage.S3Client
	config DeliveryConfig
	logger *zap.Logger
}

// EmailDelivery represents an email delivery request
type EmailDelivery struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Attachment represents an email attachment
type Attachment struct {
	Name        string
	Data        []byte
	ContentType string
}

// S3Delivery represents an archive upload
type S3Delivery struct {
	Key         string
	Data        []byte
	ContentType string
}

// NewDeliveryManager creates a delivery manager. A nil sender disables
// email; a nil store disables archiving.
func NewDeliveryManager(sender EmailSender, store storage.S3Client, config DeliveryConfig, logger *zap.Logger) *DeliveryManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryManager{sender: sender, store: store, config: config, logger: logger}
}

// DeliverByEmail sends one raw MIME message to all recipients.
func (d *DeliveryManager) DeliverByEmail(ctx context.Context, delivery *EmailDelivery) error {
	if len(delivery.To) == 0 {
		return errors.New("no recipients specified")
	}
	if d.sender == nil {
		return errors.New("email delivery is not configured")
	}
	if d.config.FromAddress == "" {
		return errors.New("sender address is not configured")
	}

	raw, err := d.buildEmailMessage(delivery)
	if err != nil {
		return fmt.Errorf("failed to build email: %w", err)
	}

	_, err = d.sender.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(d.config.FromAddress),
		Destination:      &types.Destination{ToAddresses: delivery.To},
		Content:          &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	})
	if err != nil {
		d.logger.Error("Failed to send email",
			zap.Error(err),
			zap.Strings("to", delivery.To))
		return fmt.Errorf("failed to send email: %w", err)
	}

	d.logger.Info("Email sent",
		zap.Strings("to", delivery.To),
		zap.String("subject", delivery.Subject))
	return nil
}

// DeliverToS3 uploads an export under the archive prefix.
func (d *DeliveryManager) DeliverToS3(ctx context.Context, delivery *S3Delivery) (string, error) {
	if d.store == nil {
		return "", errors.New("archive is not configured")
	}
	key := delivery.Key
	if d.config.ArchivePrefix != "" {
		key = d.config.ArchivePrefix + "/" + key
	}
	if err := d.store.Upload(ctx, d.config.Bucket, key, bytes.NewReader(delivery.Data), delivery.ContentType); err != nil {
		return "", fmt.Errorf("failed to archive export: %w", err)
	}
	d.logger.Info("Export archived",
		zap.String("bucket", d.config.Bucket),
		zap.String("key", key))
	return key, nil
}

// buildEmailMessage builds a multipart/mixed message. The subject and
// attachment names are encoded for non-ASCII (Lao) text.
func (d *DeliveryManager) buildEmailMessage(delivery *EmailDelivery) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", d.config.FromAddress)
	header("To", strings.Join(delivery.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", delivery.Subject))
	header("Date", time.Now().UTC().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()}))
	buf.WriteString("\r\n")

	body, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64(body, []byte(delivery.Body)); err != nil {
		return nil, err
	}

	for _, a := range delivery.Attachments {
		mediaType, params, err := mime.ParseMediaType(a.ContentType)
		if err != nil {
			mediaType, params = "application/octet-stream", map[string]string{}
		}
		params["name"] = a.Name
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {mime.FormatMediaType(mediaType, params)},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Name})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, a.Data); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBase64 writes data in 76 character lines.
func writeBase64(w io.Writer, data []byte) error {
	const lineLen = 76
	encoded := base64.StdEncoding.EncodeToString(data)
	for i := 0; i < len(encoded); i += lineLen {
		end := min(i+lineLen, len(encoded))
		if _, err := w.Write([]byte(encoded[i:end] + "\r\n")); err != nil {
			return err
		}
	}
	return nil
}
