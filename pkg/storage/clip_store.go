package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
)

// ErrInvalidJobID is returned for job ids that cannot be used as a single key segment.
var ErrInvalidJobID = errors.New("invalid job id for object key")

// ObjectPutter is the part of *minio.Client the clip store needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type MinioClipStore struct {
	client     ObjectPutter
	bucket     string
	publicURL  string
	httpClient *http.Client
}

// NewMinioClipStore stores clips in bucket. publicURL is the address customers fetch objects
// from, usually the MinIO endpoint or a CDN in front of it.
func NewMinioClipStore(client ObjectPutter, bucket, publicURL string, httpClient *http.Client) *MinioClipStore {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &MinioClipStore{
		client:     client,
		bucket:     bucket,
		publicURL:  strings.TrimSuffix(publicURL, "/"),
		httpClient: httpClient,
	}
}

// ObjectName is the job-scoped key a clip is stored under.
func ObjectName(jobID string, index int) (string, error) {
	if jobID == "" || jobID == "." || jobID == ".." || strings.ContainsAny(jobID, "/\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return "jobs/" + jobID + "/" + fmt.Sprintf("clip-%03d.mp4", index), nil
}

// SaveClip streams the clip at downloadURL into the bucket and returns its public URL. It
// returns only after the put is acknowledged, so a timeout never yields a location.
func (s *MinioClipStore) SaveClip(ctx context.Context, jobID string, index int, downloadURL string) (string, error) {
	objectName, err := ObjectName(jobID, index)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download clip: unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}

	info, err := s.client.PutObject(ctx, s.bucket, objectName, resp.Body, resp.ContentLength, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("object", objectName).Msg("failed to upload clip")
		return "", fmt.Errorf("upload clip: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("job_id", jobID).
		Str("object", objectName).
		Int64("size", info.Size).
		Msg("clip stored")
	return s.objectURL(objectName), nil
}

func (s *MinioClipStore) objectURL(objectName string) string {
	if s.publicURL == "" {
		return path.Join(s.bucket, objectName)
	}
	u, err := url.JoinPath(s.publicURL, s.bucket, objectName)
	if err != nil {
		return s.publicURL + "/" + path.Join(s.bucket, objectName)
	}
	return u
}
