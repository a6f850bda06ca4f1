// Package storage issues presigned S3 URLs for request attachments.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrDisabled is returned when no attachments bucket is configured.
var ErrDisabled = errors.New("attachment storage not configured")

const keyPrefix = "requests/"

// Presigner is the subset of *s3.PresignClient used here.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Attachments hands out upload and download URLs for requirement documents.
type Attachments struct {
	presigner Presigner
	bucket    string
	ttl       time.Duration
	now       func() time.Time
	newID     func() string
}

// PresignedURL is a time-limited URL for one object.
type PresignedURL struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

// NewAttachments loads the default AWS config for region. An empty bucket
// returns a disabled store rather than an error.
func NewAttachments(ctx context.Context, bucket, region string, ttl time.Duration) (*Attachments, error) {
	if bucket == "" {
		return &Attachments{}, nil
	}
	if region == "" {
		region = "eu-central-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewAttachmentsWithPresigner(s3.NewPresignClient(s3.NewFromConfig(cfg)), bucket, ttl), nil
}

// NewAttachmentsWithPresigner builds an Attachments around an existing presigner.
func NewAttachmentsWithPresigner(p Presigner, bucket string, ttl time.Duration) *Attachments {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Attachments{presigner: p, bucket: bucket, ttl: ttl, now: time.Now, newID: uuid.NewString}
}

// Enabled reports whether a bucket is configured.
func (a *Attachments) Enabled() bool { return a != nil && a.presigner != nil && a.bucket != "" }

// ObjectKey returns requests/<userID>/<id>/<sanitized label>.
func ObjectKey(userID, id, label string) string {
	return keyPrefix + userID + "/" + id + "/" + SanitizeLabel(label)
}

// OwnedBy reports whether key was issued to userID.
func OwnedBy(userID, key string) bool {
	return userID != "" && strings.HasPrefix(key, keyPrefix+userID+"/") && !strings.Contains(key, "..")
}

// SanitizeLabel maps a requirement label onto a safe object name. Letters and
// digits in any script are kept; runs of anything else become one dash.
func SanitizeLabel(label string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "document"
	}
	return out
}

// PresignUpload issues a PUT URL for a new object under the user's prefix.
func (a *Attachments) PresignUpload(ctx context.Context, userID, label, contentType string) (*PresignedURL, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	key := ObjectKey(userID, a.newID(), label)
	in := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	req, err := a.presigner.PresignPutObject(ctx, in, s3.WithPresignExpires(a.ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", key, err)
	}
	log.Printf("[ATTACHMENTS] Presigned upload for key: %s", key)
	return &PresignedURL{Key: key, URL: req.URL, ExpiresAt: a.now().Add(a.ttl).UTC()}, nil
}

// PresignDownload issues a GET URL for an existing object.
func (a *Attachments) PresignDownload(ctx context.Context, key string) (*PresignedURL, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	req, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(a.ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned GET URL for key %s: %w", key, err)
	}
	return &PresignedURL{Key: key, URL: req.URL, ExpiresAt: a.now().Add(a.ttl).UTC()}, nil
}
