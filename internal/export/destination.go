package export

import (
	"context"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
)

// GCSLocation is a parsed gs://bucket/object destination.
type GCSLocation struct {
	Bucket string
	Object string
}

// ParseGCS reports whether dst is a gs:// URL and splits it.
func ParseGCS(dst string) (GCSLocation, bool, error) {
	rest, ok := strings.CutPrefix(dst, "gs://")
	if !ok {
		return GCSLocation{}, false, nil
	}
	bucket, object, _ := strings.Cut(rest, "/")
	if bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return GCSLocation{}, true, eris.Errorf("export: %q must be gs://bucket/object", dst)
	}
	return GCSLocation{Bucket: bucket, Object: object}, true, nil
}

// Open returns a writer for dst: a gs:// object when gcs is non-nil and dst
// is a gs:// URL, otherwise a local file. Close commits the object.
func Open(ctx context.Context, gcs *storage.Client, dst string, f Format) (io.WriteCloser, error) {
	loc, isGCS, err := ParseGCS(dst)
	if err != nil {
		return nil, err
	}
	if isGCS {
		if gcs == nil {
			return nil, eris.New("export: gs:// destination needs a storage client")
		}
		w := gcs.Bucket(loc.Bucket).Object(loc.Object).NewWriter(ctx)
		w.ContentType = f.ContentType()
		return w, nil
	}

	file, err := os.Create(dst)
	if err != nil {
		return nil, eris.Wrapf(err, "export: create %s", dst)
	}
	return file, nil
}
