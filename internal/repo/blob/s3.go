// Package blob stores media content in S3, addressed by content hash so
// re-uploads of the same bytes are free.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/nguyentranbao-ct/chat-gateway/internal/store"
)

type S3Store struct {
	client    *s3.S3
	bucket    string
	publicURL string
}

var _ store.BlobStore = (*S3Store)(nil)

func NewS3Store(region, bucket, endpoint, publicURL string) (*S3Store, error) {
	conf := aws.NewConfig().WithRegion(region)
	if endpoint != "" {
		conf = conf.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return &S3Store{
		client:    s3.New(sess),
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

func (s *S3Store) Exists(ctx context.Context, fileID string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		if aerr, ok := err.(awserr.RequestFailure); ok && aerr.StatusCode() == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", err)
	}
	return true, nil
}

func (s *S3Store) Put(ctx context.Context, fileID string, content []byte) error {
	contentType := http.DetectContentType(content)
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fileID),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
		ACL:         aws.String(s3.ObjectCannedACLPublicRead),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

func (s *S3Store) URL(fileID string) string {
	return s.publicURL + "/" + fileID
}
