package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the artifact store contract: immutable blobs under retrievable
// keys, with time-bounded public URLs for platform uploads that need one.
type Store interface {
	// PutFile uploads a local file under key and returns its locator.
	PutFile(ctx context.Context, localPath, key, contentType string) (string, error)
	// Put uploads raw bytes under key and returns its locator.
	Put(ctx context.Context, data []byte, key, contentType string) (string, error)
	// Presign returns a temporary publicly fetchable URL for key.
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Key builds a unique object key: prefix/<uuid>.<ext>.
func Key(prefix, ext string) string {
	prefix = strings.Trim(prefix, "/")
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s/%s.%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""), ext)
}

// ContentTypeForExt maps common media extensions to their MIME type.
func ContentTypeForExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp4":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "srt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
