package services

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

const BucketScripts = "scripts"

// Storage keeps uploaded files on local disk, one directory per bucket.
type Storage struct {
	BasePath      string
	PublicBaseURL string
	Tokens        TokenService
	SignedTTL     time.Duration
}

type StoredFile struct {
	Bucket   string
	Key      string
	Checksum string
	Size     int64
}

func (s Storage) ensureBucket(bucket string) (string, error) {
	path := filepath.Join(s.BasePath, bucket)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", err
	}
	return path, nil
}

// Save writes body under "{unixMillis}_{filename}" in bucket.
func (s Storage) Save(bucket, filename string, body io.Reader, now time.Time) (StoredFile, error) {
	bucketPath, err := s.ensureBucket(bucket)
	if err != nil {
		return StoredFile{}, err
	}
	key := fmt.Sprintf("%d_%s", now.UnixMilli(), SanitizeFilename(filename))
	targetPath := filepath.Join(bucketPath, key)

	file, err := os.OpenFile(targetPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return StoredFile{}, err
	}
	hasher := blake3.New()
	size, err := io.Copy(io.MultiWriter(file, hasher), body)
	_ = file.Close()
	if err != nil {
		_ = os.Remove(targetPath)
		return StoredFile{}, err
	}
	if size == 0 {
		_ = os.Remove(targetPath)
		return StoredFile{}, ErrBadRequest("File is empty")
	}
	return StoredFile{
		Bucket:   bucket,
		Key:      key,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
		Size:     size,
	}, nil
}

// Path resolves a stored object, refusing keys that escape the bucket.
func (s Storage) Path(bucket, key string) (string, error) {
	if bucket == "" || key == "" || strings.ContainsAny(bucket+key, `/\`) || strings.Contains(key, "..") || bucket == ".." {
		return "", ErrNotFound("File not found")
	}
	return filepath.Join(s.BasePath, bucket, key), nil
}

func (s Storage) Remove(bucket, key string) error {
	path, err := s.Path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s Storage) PublicURL(bucket, key string) string {
	return s.PublicBaseURL + "/storage/" + url.PathEscape(bucket) + "/" + url.PathEscape(key)
}

// SignedURL returns a time-limited download link for a stored object.
func (s Storage) SignedURL(bucket, key string) (string, error) {
	token, err := s.Tokens.CreateDownloadToken(bucket, key, s.SignedTTL)
	if err != nil {
		return "", err
	}
	return s.PublicBaseURL + "/storage/signed?token=" + url.QueryEscape(token), nil
}

func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}
