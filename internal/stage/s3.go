package stage

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rampotla586/ut-de-framework/internal/config"
)

// S3 serves files from an S3-compatible bucket through minio-go. File
// names are object keys; the prefix is matched as a key prefix, the way
// object stores resolve it.
type S3 struct {
	name   string
	bucket string
	client *minio.Client
}

// newS3 builds the client without dialing; connectivity errors surface
// on the first List or Open. access_key/secret_key option values are
// environment-expanded so configs can reference ${VAR} instead of
// embedding credentials.
func newS3(name string, opts config.Options) (*S3, error) {
	endpoint := opts.String("endpoint", "")
	bucket := opts.String("bucket", "")
	if endpoint == "" || bucket == "" {
		return nil, fmt.Errorf("stage %s: s3 stage needs options.endpoint and options.bucket", name)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(
			os.ExpandEnv(opts.String("access_key", "")),
			os.ExpandEnv(opts.String("secret_key", "")),
			"",
		),
		Secure: opts.Bool("use_ssl", false),
		Region: opts.String("region", ""),
	})
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	return &S3{name: name, bucket: bucket, client: client}, nil
}

func (s *S3) List(ctx context.Context, prefix string) ([]File, error) {
	var out []File
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("stage %s: list %q: %w", s.name, prefix, obj.Err)
		}
		// Zero-byte keys ending in "/" are directory markers.
		if strings.HasSuffix(obj.Key, "/") && obj.Size == 0 {
			continue
		}
		out = append(out, File{Name: obj.Key, Size: obj.Size})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("stage %s: open %q: %w", s.name, name, err)
	}
	return obj, nil
}

var _ Stage = (*S3)(nil)
