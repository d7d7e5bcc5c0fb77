// Package upload stores listing images on local disk or in S3-compatible
// object storage.
package upload

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/listings/internal/model"
)

// Driver names accepted in configuration.
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// keyPrefix groups listing images under one folder in every backend.
const keyPrefix = "listings"

// ErrUnsupportedType is returned for files that are not a known image type.
var ErrUnsupportedType = eris.New("upload: unsupported file type")

// Uploader stores an image and returns where it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, filename, contentType string) (model.Image, error)
	Delete(ctx context.Context, filename string) error
}

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// objectKey builds a collision-free storage key that keeps the original
// extension. The client-supplied name is otherwise discarded.
func objectKey(filename string) (key, contentType string, err error) {
	ext := strings.ToLower(path.Ext(filename))
	ct, ok := allowedExt[ext]
	if !ok {
		return "", "", eris.Wrapf(ErrUnsupportedType, "%q", filename)
	}
	return keyPrefix + "/" + uuid.New().String() + ext, ct, nil
}
