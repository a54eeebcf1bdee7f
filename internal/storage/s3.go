package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/OFFIS-RIT/listenkg/internal/config"
	"github.com/OFFIS-RIT/listenkg/internal/util"
	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"
	"github.com/OFFIS-RIT/listenkg/pkg/metadata"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	maxTries = 3
	backoff  = 500 * time.Millisecond
)

// Artifacts are the files a preprocessing run publishes, in upload order.
// The metadata goes last so a reader never sees digests for files that are
// not uploaded yet.
var Artifacts = []string{
	common.RatingsFileBase + common.TextExt,
	common.KGFileBase + common.TextExt,
	metadata.FileName,
}

func NewS3Client(ctx context.Context, cfg config.S3) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client, nil
}

// ArtifactStore publishes and fetches dataset files under
// <prefix>/<dataset>/<file> in one bucket.
type ArtifactStore struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewArtifactStore(client *s3.Client, bucket, prefix string) *ArtifactStore {
	return &ArtifactStore{client: client, bucket: bucket, prefix: prefix}
}

func (a *ArtifactStore) Key(dataset, name string) string {
	return path.Join(a.prefix, dataset, name)
}

func (a *ArtifactStore) PutFile(ctx context.Context, key string, file io.ReadSeeker) error {
	mimeType := mime.TypeByExtension(path.Ext(key))
	if mimeType == "" {
		mimeType = "text/plain"
	}
	return util.RetryErrWithContext(ctx, maxTries, backoff, func(ctx context.Context) error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        file,
			ContentType: aws.String(mimeType),
		})
		if err != nil {
			return fmt.Errorf("failed to upload file to S3: %w", err)
		}
		return nil
	})
}

func (a *ArtifactStore) GetFile(ctx context.Context, key string) ([]byte, error) {
	return util.RetryWithContext(ctx, maxTries, backoff, func(ctx context.Context) ([]byte, error) {
		result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get file from S3: %w", err)
		}
		defer result.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, result.Body); err != nil {
			return nil, fmt.Errorf("failed to read file contents: %w", err)
		}
		return buf.Bytes(), nil
	})
}

func (a *ArtifactStore) DeleteFile(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// List returns the keys stored for dataset.
func (a *ArtifactStore) List(ctx context.Context, dataset string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(a.Key(dataset, "") + "/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list files in S3: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Publish uploads the artifacts found in dir. A missing ratings or KG
// file aborts; a missing metadata file is skipped with a warning.
func (a *ArtifactStore) Publish(ctx context.Context, dataset, dir string) ([]string, error) {
	var keys []string
	for _, name := range Artifacts {
		f, err := os.Open(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) && name == metadata.FileName {
			logger.Warn("[Storage] No metadata to publish", "dataset", dataset)
			continue
		}
		if err != nil {
			return keys, err
		}

		key := a.Key(dataset, name)
		err = a.PutFile(ctx, key, f)
		f.Close()
		if err != nil {
			return keys, err
		}
		logger.Info("[Storage] Artifact uploaded", "bucket", a.bucket, "key", key)
		keys = append(keys, key)
	}
	return keys, nil
}

// Fetch downloads the artifacts of dataset into dir, replacing local
// copies. Stale binary caches in dir are the caller's concern: the
// downloaded text files are newer than them, so the next load rebuilds.
func (a *ArtifactStore) Fetch(ctx context.Context, dataset, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, name := range Artifacts {
		data, err := a.GetFile(ctx, a.Key(dataset, name))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
		logger.Info("[Storage] Artifact downloaded", "dataset", dataset, "file", name, "bytes", len(data))
	}
	return nil
}

// DownloadLink presigns a GET for one artifact.
func (a *ArtifactStore) DownloadLink(ctx context.Context, dataset, name string, ttl time.Duration) (string, error) {
	presigner := s3.NewPresignClient(a.client)
	out, err := presigner.PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(a.Key(dataset, name)),
		},
		s3.WithPresignExpires(ttl),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}
	return out.URL, nil
}
