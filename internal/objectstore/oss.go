package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/MJ-02/BillSplitter/internal/receipt"
)

var _ receipt.ImageStore = (*OSSStore)(nil)

// objectPutter is the part of *oss.Bucket the store uses.
type objectPutter interface {
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
}

// OSSConfig holds the bucket credentials.
type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string

	// PublicBaseURL overrides the https://<bucket>.<endpoint> URL prefix,
	// e.g. for a CDN domain.
	PublicBaseURL string
}

// OSSStore uploads images to an Aliyun OSS bucket.
type OSSStore struct {
	bucket  objectPutter
	baseURL string
	now     func() time.Time
}

func NewOSSStore(cfg OSSConfig) (*OSSStore, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", cfg.Bucket, err)
	}
	return newOSSStore(bucket, publicBaseURL(cfg)), nil
}

func newOSSStore(bucket objectPutter, baseURL string) *OSSStore {
	return &OSSStore{bucket: bucket, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

func (s *OSSStore) Put(ctx context.Context, image receipt.Image) (string, error) {
	if len(image.Data) == 0 {
		return "", ErrEmptyImage
	}

	key := objectKey(image, s.now())
	err := s.bucket.PutObject(key, bytes.NewReader(image.Data),
		oss.WithContext(ctx),
		oss.ContentType(contentType(image)),
		oss.ContentDisposition("inline"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

func publicBaseURL(cfg OSSConfig) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}
	host := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s", cfg.Bucket, strings.TrimRight(host, "/"))
}
