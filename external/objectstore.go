package external

import (
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gitlab.com/NebulousLabs/errors"
)

// ObjectStore implements §6's S3-shaped ObjectStore role: GetObject
// fetches a single key's full bytes from a bucket. Chunk keys follow the
// "[prefix/]<data_root>/<relative_offset>" layout §6 specifies, built by
// ChunkKey below so callers never hand-assemble the path.
type ObjectStore struct {
	client *s3.Client
	prefix string
}

// NewObjectStore builds an ObjectStore using the default AWS credential
// chain (environment, shared config, or attached role), matching the
// teacher pack's aws-sdk-go-v2 manifest usage: config.LoadDefaultConfig
// plus an explicit region rather than a hand-rolled signer.
func NewObjectStore(ctx context.Context, region, keyPrefix string) (*ObjectStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.AddContext(err, "unable to load aws config")
	}
	return &ObjectStore{client: s3.NewFromConfig(cfg), prefix: keyPrefix}, nil
}

// ChunkKey builds the object key for a chunk identified by data root and
// relative offset, per §6's persisted-state layout for object-store-
// backed chunk storage.
func (s *ObjectStore) ChunkKey(dataRootB64URL string, relativeOffset uint64) string {
	key := dataRootB64URL + "/" + strconv.FormatUint(relativeOffset, 10)
	if s.prefix != "" {
		return s.prefix + "/" + key
	}
	return key
}

// GetObject fetches the full bytes of bucket/key.
func (s *ObjectStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.AddContext(err, "s3 GetObject failed")
	}
	defer out.Body.Close()

	buf := &bytes.Buffer{}
	if out.ContentLength != nil {
		buf.Grow(int(*out.ContentLength))
	}
	if _, err := io.Copy(buf, out.Body); err != nil {
		return nil, errors.AddContext(err, "unable to read s3 object body")
	}
	return buf.Bytes(), nil
}
