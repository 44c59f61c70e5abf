// Package objectstore keeps uploaded receipt images: on local disk or in an
// Aliyun OSS bucket.
package objectstore

import (
	"errors"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MJ-02/BillSplitter/internal/receipt"
)

// ErrEmptyImage is returned when there are no bytes to store.
var ErrEmptyImage = errors.New("empty image")

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)

const keyPrefix = "receipts"

// objectKey names a new object: receipts/<yyyymmdd>/<uuid><ext>.
func objectKey(image receipt.Image, now time.Time) string {
	return keyPrefix + "/" + now.UTC().Format("20060102") + "/" + uuid.NewString() + extension(image)
}

// extension takes the upload's extension when it looks sane, then one
// matching the content type, then ".jpg".
func extension(image receipt.Image) string {
	ext := strings.ToLower(filepath.Ext(image.Filename))
	if extPattern.MatchString(ext) {
		return ext
	}
	if image.ContentType == "image/jpeg" {
		return ".jpg"
	}
	if image.ContentType != "" {
		if exts, err := mime.ExtensionsByType(image.ContentType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ".jpg"
}

func contentType(image receipt.Image) string {
	if image.ContentType != "" {
		return image.ContentType
	}
	if ct := mime.TypeByExtension(extension(image)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
