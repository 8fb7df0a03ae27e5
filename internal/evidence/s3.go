package evidence

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
)

type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps claim photos in a bucket under claim_images/<claimID>/.
type S3Store struct {
	client PutObjectAPI
	bucket string
}

func NewS3Store(client PutObjectAPI, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// NewS3Client loads the default AWS config. A non-empty endpoint (LocalStack,
// MinIO) switches the client to path-style addressing against that URL.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func BuildKey(claimID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s%s", imageDir, claimID, ulid.Make().String(), extension(fileName))
}

func (s *S3Store) Save(ctx context.Context, claimID string, file File) (string, error) {
	key := BuildKey(claimID, file.Name)
	contentType := file.ContentType()
	if contentType == "" {
		contentType = allowedExt[extension(file.Name)]
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 file.Body,
		ContentLength:        aws.Int64(file.Size),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		Metadata:             map[string]string{"claim_id": claimID},
	})
	if err != nil {
		return "", fmt.Errorf("put claim image: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
