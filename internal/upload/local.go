package upload

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listings/internal/model"
)

// LocalUploader writes images under a directory and serves them from
// URLPrefix.
type LocalUploader struct {
	dir       string
	urlPrefix string
}

// NewLocal creates a LocalUploader rooted at dir.
func NewLocal(dir, urlPrefix string) (*LocalUploader, error) {
	if dir == "" {
		return nil, eris.New("upload: local dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "upload: create dir %s", dir)
	}
	if urlPrefix == "" {
		urlPrefix = "/upload"
	}
	return &LocalUploader{dir: dir, urlPrefix: "/" + strings.Trim(urlPrefix, "/")}, nil
}

// URLPrefix is the path under which Handler must be mounted.
func (u *LocalUploader) URLPrefix() string { return u.urlPrefix }

// Upload implements Uploader.
func (u *LocalUploader) Upload(_ context.Context, r io.Reader, filename, _ string) (model.Image, error) {
	key, _, err := objectKey(filename)
	if err != nil {
		return model.Image{}, err
	}

	dst := filepath.Join(u.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return model.Image{}, eris.Wrap(err, "upload: create key dir")
	}
	f, err := os.Create(dst)
	if err != nil {
		return model.Image{}, eris.Wrapf(err, "upload: create %s", key)
	}
	defer f.Close() //nolint:errcheck

	n, err := io.Copy(f, r)
	if err != nil {
		_ = os.Remove(dst)
		return model.Image{}, eris.Wrapf(err, "upload: write %s", key)
	}

	zap.L().Debug("upload: stored locally", zap.String("key", key), zap.Int64("bytes", n))
	return model.Image{URL: u.urlPrefix + "/" + key, Filename: key}, nil
}

// Delete implements Uploader. Missing files are ignored.
func (u *LocalUploader) Delete(_ context.Context, filename string) error {
	if filename == "" {
		return nil
	}
	clean := filepath.Clean("/" + filename)
	err := os.Remove(filepath.Join(u.dir, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "upload: delete %s", filename)
	}
	return nil
}

// widthSegment matches the leading resize segment added by model.ThumbnailURL.
var widthSegment = regexp.MustCompile(`^/w_\d+/`)

// Handler serves stored images. It expects the URL prefix to be stripped and
// ignores a leading resize segment such as "/w_250/".
func (u *LocalUploader) Handler() http.Handler {
	files := http.FileServer(http.Dir(u.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if loc := widthSegment.FindStringIndex(r.URL.Path); loc != nil {
			r2 := r.Clone(r.Context())
			r2.URL.Path = "/" + r.URL.Path[loc[1]:]
			r = r2
		}
		files.ServeHTTP(w, r)
	})
}
