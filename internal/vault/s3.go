package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// versionKey is the user metadata entry holding a snapshot version.
const versionKey = "acta-version"

// S3Options configures an S3 or S3-compatible vault.
type S3Options struct {
	Name     string
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string
}

// s3API is the subset of *s3.Client the vault uses.
type s3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Vault stores objects under <prefix>/content/<checksum> and
// <prefix>/snapshots/<deviceID>/<name>.
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   s3API
	uploader *manager.Uploader
}

// NewS3Vault loads AWS configuration and builds the vault client.
func NewS3Vault(ctx context.Context, opts S3Options) (*S3Vault, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		provider := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(provider))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Vault(opts.Name, opts.Bucket, opts.Prefix, client), nil
}

func newS3Vault(name, bucket, prefix string, client s3API) *S3Vault {
	return &S3Vault{
		name:     name,
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

func (v *S3Vault) Name() string { return v.name }

func (v *S3Vault) PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error {
	if err := checkKey("checksum", checksum); err != nil {
		return err
	}
	data, err := readSized(r, size)
	if err != nil {
		return err
	}

	exists, err := v.HasContent(ctx, checksum)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return v.upload(ctx, v.contentKey(checksum), data, nil)
}

func (v *S3Vault) GetContent(ctx context.Context, checksum string, w io.Writer) error {
	if err := checkKey("checksum", checksum); err != nil {
		return err
	}
	return v.download(ctx, v.contentKey(checksum), w, "content "+checksum)
}

func (v *S3Vault) HasContent(ctx context.Context, checksum string) (bool, error) {
	if err := checkKey("checksum", checksum); err != nil {
		return false, err
	}
	_, err := v.head(ctx, v.contentKey(checksum))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (v *S3Vault) PutSnapshot(ctx context.Context, deviceID, name string, r io.Reader, size int64, version int64) error {
	key, err := v.snapshotKey(deviceID, name)
	if err != nil {
		return err
	}
	data, err := readSized(r, size)
	if err != nil {
		return err
	}
	meta := map[string]string{versionKey: strconv.FormatInt(version, 10)}
	return v.upload(ctx, key, data, meta)
}

func (v *S3Vault) GetSnapshot(ctx context.Context, deviceID, name string, w io.Writer) error {
	key, err := v.snapshotKey(deviceID, name)
	if err != nil {
		return err
	}
	return v.download(ctx, key, w, fmt.Sprintf("snapshot %q for device %s", name, deviceID))
}

func (v *S3Vault) SnapshotVersion(ctx context.Context, deviceID, name string) (int64, error) {
	key, err := v.snapshotKey(deviceID, name)
	if err != nil {
		return 0, err
	}
	out, err := v.head(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	raw, ok := out.Metadata[versionKey]
	if !ok {
		return 0, nil
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version of %s: %w", key, err)
	}
	return version, nil
}

// ValidateSetup checks that the bucket exists and the credentials reach it.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func (v *S3Vault) contentKey(checksum string) string {
	return path.Join(v.prefix, "content", checksum)
}

func (v *S3Vault) snapshotKey(deviceID, name string) (string, error) {
	if err := checkKey("device id", deviceID); err != nil {
		return "", err
	}
	if err := checkKey("snapshot name", name); err != nil {
		return "", err
	}
	return path.Join(v.prefix, "snapshots", deviceID, name), nil
}

func (v *S3Vault) upload(ctx context.Context, key string, data []byte, meta map[string]string) error {
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(v.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: meta,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

func (v *S3Vault) download(ctx context.Context, key string, w io.Writer, what string) error {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return fmt.Errorf("downloading %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return nil
}

func (v *S3Vault) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		var nsk *types.NoSuchKey
		if errors.As(err, &nf) || errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("inspecting %s: %w", key, err)
	}
	return out, nil
}

var _ Vault = (*S3Vault)(nil)
