// Package imagestore caches base root-filesystem and kernel images in S3
// so a freshly provisioned host can fetch them before it can serve any
// SpawnWarm call, instead of requiring every host to carry its own copy
// out of band.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hypercore/hc/internal/pkg/fsutil"
)

// Config configures the S3-backed image store.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // non-empty selects an S3-compatible store
	AccessKeyID     string
	SecretAccessKey string
}

// Store fetches and publishes base images by object key (e.g.
// "root.qcow2" or "vmlinuz").
type Store struct {
	client *s3.Client
	bucket string
}

// New builds a Store from cfg. When AccessKeyID is empty, credentials are
// resolved from the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// FetchTo downloads key from the bucket into destPath, overwriting it.
func (s *Store) FetchTo(ctx context.Context, key, destPath string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get s3 object %s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

// Publish uploads srcPath to the bucket under key, for distributing a
// newly baked base image to every host.
func (s *Store) Publish(ctx context.Context, key, srcPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("put s3 object %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// FetchToVerified downloads key into destPath and reports its SHA256-derived
// content fingerprint (fsutil.HashFile: the first 16 hex characters of the
// digest). It always downloads; it keeps no record of earlier fingerprints
// to compare against.
func (s *Store) FetchToVerified(ctx context.Context, key, destPath string) (string, error) {
	if err := s.FetchTo(ctx, key, destPath); err != nil {
		return "", err
	}
	sum, err := fsutil.HashFile(destPath)
	if err != nil {
		return "", fmt.Errorf("hash fetched image %s: %w", destPath, err)
	}
	return sum, nil
}

// Exists reports whether key is already present in the bucket.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}
