package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/qiniu/go-sdk/v7/auth/qbox"
	qiniu "github.com/qiniu/go-sdk/v7/storage"
	"github.com/rs/zerolog/log"

	"github.com/tripvista/travel-platform/internal/config"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds the upload size limit")
	ErrFileTypeInvalid = errors.New("only image uploads are accepted")
)

// Uploader stores media files in qiniu object storage under randomized keys
// and returns their public URLs.
type Uploader struct {
	mac      *qbox.Mac
	bucket   string
	domain   string
	zone     *qiniu.Zone
	maxBytes int64
}

func NewUploader(cfg config.StorageConfig, maxBytes int64) *Uploader {
	return &Uploader{
		mac:      qbox.NewMac(cfg.AccessKey, cfg.SecretKey),
		bucket:   cfg.Bucket,
		domain:   cfg.Domain,
		zone:     zoneFor(cfg.Zone),
		maxBytes: maxBytes,
	}
}

func zoneFor(zone string) *qiniu.Zone {
	switch zone {
	case "z1":
		return &qiniu.ZoneHuabei
	case "z2":
		return &qiniu.ZoneHuanan
	case "na0":
		return &qiniu.ZoneBeimei
	case "as0":
		return &qiniu.ZoneXinjiapo
	default: // z0
		return &qiniu.ZoneHuadong
	}
}

// Upload validates and stores one image, returning its public URL. The key
// is a fresh UUID with the original extension, so uploads never collide and
// file names leak nothing.
func (u *Uploader) Upload(ctx context.Context, data []byte, fileName string) (string, error) {
	if int64(len(data)) > u.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: got %s", ErrFileTypeInvalid, contentType)
	}

	policy := qiniu.PutPolicy{Scope: u.bucket}
	token := policy.UploadToken(u.mac)

	uploader := qiniu.NewFormUploader(&qiniu.Config{Zone: u.zone})
	key := uuid.NewString() + extensionFor(fileName, contentType)

	var ret qiniu.PutRet
	err := uploader.Put(ctx, &ret, token, key, bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return "", fmt.Errorf("uploading %q: %w", key, err)
	}

	return u.publicURL(ret.Key), nil
}

// Delete removes a previously uploaded file by its public URL. A failed
// delete is logged and reported but leaves no inconsistent state: the object
// simply lingers.
func (u *Uploader) Delete(ctx context.Context, fileURL string) error {
	if fileURL == "" {
		return nil
	}

	parsed, err := url.Parse(fileURL)
	if err != nil {
		return fmt.Errorf("parsing file url: %w", err)
	}
	key := strings.TrimPrefix(parsed.Path, "/")
	if key == "" {
		return fmt.Errorf("no object key in url %q", fileURL)
	}

	manager := qiniu.NewBucketManager(u.mac, &qiniu.Config{Zone: u.zone})
	if err := manager.Delete(u.bucket, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("object delete failed")
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

func extensionFor(fileName, contentType string) string {
	if ext := filepath.Ext(fileName); ext != "" {
		return ext
	}
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func (u *Uploader) publicURL(key string) string {
	domain := u.domain
	if !strings.HasPrefix(domain, "http") {
		domain = "http://" + domain
	}
	return strings.TrimRight(domain, "/") + "/" + key
}
