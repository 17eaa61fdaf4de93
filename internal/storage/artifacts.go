package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// ArtifactStore keeps finished clip files. The returned location is what
// gets persisted on the GeneratedClip row.
type ArtifactStore interface {
	Store(ctx context.Context, localPath, key string) (string, error)
}

// LocalArtifactStore moves finished clips into a flat directory on disk.
type LocalArtifactStore struct {
	Dir string
}

func (s *LocalArtifactStore) Store(_ context.Context, localPath, key string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(s.Dir, key)
	if err := os.Rename(localPath, dest); err != nil {
		// Rename fails across filesystems; fall back to copy.
		if err := copyFile(localPath, dest); err != nil {
			return "", err
		}
		_ = os.Remove(localPath)
	}
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// S3ArtifactStore uploads finished clips to an S3 bucket.
type S3ArtifactStore struct {
	bucket   string
	uploader *s3manager.Uploader
}

func NewS3ArtifactStore(bucket, region string) (*S3ArtifactStore, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3ArtifactStore{
		bucket:   bucket,
		uploader: s3manager.NewUploader(sess),
	}, nil
}

func (s *S3ArtifactStore) Store(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("video/mp4"),
	})
	if err != nil {
		return "", fmt.Errorf("upload clip to s3: %w", err)
	}
	_ = os.Remove(localPath)
	return out.Location, nil
}
