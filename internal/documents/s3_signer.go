package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PresignAPI is the subset of s3.PresignClient used by S3URLSigner.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3URLSigner presigns s3://bucket/key locations. Other URLs pass through.
type S3URLSigner struct {
	client PresignAPI
	ttl    time.Duration
}

// NewS3URLSigner builds a signer from an S3 client.
func NewS3URLSigner(client *s3.Client, ttl time.Duration) *S3URLSigner {
	return newS3URLSigner(s3.NewPresignClient(client), ttl)
}

func newS3URLSigner(client PresignAPI, ttl time.Duration) *S3URLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3URLSigner{client: client, ttl: ttl}
}

// Sign implements URLSigner.
func (s *S3URLSigner) Sign(ctx context.Context, raw string) (string, error) {
	bucket, key, ok := parseS3URL(raw)
	if !ok {
		return raw, nil
	}
	req, err := s.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

func parseS3URL(raw string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(raw, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
