package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlinePresigner() *s3.PresignClient {
	client := s3.New(s3.Options{
		Region: "eu-central-1",
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"}, nil
		}),
	})
	return s3.NewPresignClient(client)
}

func TestDisabledWithoutBucket(t *testing.T) {
	a, err := NewAttachments(context.Background(), "", "", 0)
	require.NoError(t, err)
	assert.False(t, a.Enabled())

	_, err = a.PresignUpload(context.Background(), "u1", "Passport", "")
	assert.True(t, errors.Is(err, ErrDisabled))
	_, err = a.PresignDownload(context.Background(), "requests/u1/x/passport")
	assert.True(t, errors.Is(err, ErrDisabled))

	var nilStore *Attachments
	assert.False(t, nilStore.Enabled())
}

func TestSanitizeLabel(t *testing.T) {
	cases := map[string]string{
		"Medical check":       "medical-check",
		"  ../../etc/passwd ": "etc-passwd",
		"صورة السجل التجاري":  "صورة-السجل-التجاري",
		"Fee receipt (2025)!": "fee-receipt-2025",
		"///":                 "document",
		"":                    "document",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeLabel(in), "label %q", in)
	}
}

func TestObjectKeyAndOwnership(t *testing.T) {
	key := ObjectKey("u1", "abc", "Medical check")
	assert.Equal(t, "requests/u1/abc/medical-check", key)
	assert.True(t, OwnedBy("u1", key))
	assert.False(t, OwnedBy("u2", key))
	assert.False(t, OwnedBy("u1", "requests/u10/abc/x"))
	assert.False(t, OwnedBy("u1", "requests/u1/../u2/x"))
	assert.False(t, OwnedBy("", key))
}

func TestPresignUpload(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	a := NewAttachmentsWithPresigner(offlinePresigner(), "enjaz-attachments", 10*time.Minute)
	a.now = func() time.Time { return now }
	a.newID = func() string { return "fixed-id" }

	p, err := a.PresignUpload(context.Background(), "u1", "Medical check", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "requests/u1/fixed-id/medical-check", p.Key)
	assert.True(t, p.ExpiresAt.Equal(now.Add(10*time.Minute)))
	assert.True(t, strings.Contains(p.URL, "enjaz-attachments"))
	assert.True(t, strings.Contains(p.URL, "requests/u1/fixed-id/medical-check"))
	assert.True(t, strings.Contains(p.URL, "X-Amz-Signature="))
	assert.True(t, strings.Contains(p.URL, "X-Amz-Expires=600"))

	d, err := a.PresignDownload(context.Background(), p.Key)
	require.NoError(t, err)
	assert.Equal(t, p.Key, d.Key)
	assert.True(t, strings.Contains(d.URL, "X-Amz-Signature="))
}
