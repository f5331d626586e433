package dataset

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source yields the raw dataset document
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

// FileSource reads the dataset from local disk
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Load(ctx context.Context) ([]byte, error) {
	return os.ReadFile(f.Path)
}

// s3GetObjectAPI is the slice of *s3.Client the loader needs
type s3GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the dataset from an S3 object
type S3Source struct {
	bucket string
	key    string
	s3     s3GetObjectAPI
}

func NewS3Source(client s3GetObjectAPI, bucket, key string) *S3Source {
	return &S3Source{bucket: bucket, key: key, s3: client}
}

func (s *S3Source) Load(ctx context.Context) ([]byte, error) {
	resp, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
