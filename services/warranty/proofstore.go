package warranty

import (
	"context"
	"fmt"
	"io"
	"sync"

	"licensecore/pkg/config"

	"github.com/minio/minio-go/v7"
)

// ProofStore persists proof screenshots and returns a stable URL.
type ProofStore interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

type minioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(client *minio.Client, cfg *config.Config) ProofStore {
	return &minioStore{client: client, bucket: cfg.Minio.BucketName}
}

func (s *minioStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	object := "warranty-proofs/" + name

	_, err := s.client.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, object), nil
}

// MemoryStore keeps proofs in memory for tests.
type MemoryStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.Objects[name] = b
	s.mu.Unlock()

	return "mem://warranty-proofs/" + name, nil
}
