package avatar

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store persists processed avatars and returns the location to put on the
// user record.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// DirStore keeps avatars as plain files under the data directory,
// for self-contained mode.
type DirStore struct {
	dir string
}

func NewDirStore(dir string) (*DirStore, error) {
	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return nil, err
	}
	return &DirStore{dir: dir}, nil
}

func (s *DirStore) Put(_ context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	err := os.WriteFile(path, data, 0o600)
	if err != nil {
		return "", err
	}
	return path, nil
}

// MinioStore uploads avatars into one bucket of an s3-compatible store.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, err
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "image/webp",
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", s.bucket, name), nil
}
