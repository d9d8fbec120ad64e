package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"acta-go/internal/config"
)

type fakeObject struct {
	data []byte
	meta map[string]string
}

// fakeS3 is an in-memory bucket behind the s3API surface. Objects are
// small, so the uploader only ever issues PutObject.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	puts    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	f.objects[aws.ToString(in.Key)] = fakeObject{data: data, meta: maps.Clone(in.Metadata)}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data)), Metadata: obj.meta}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(obj.data))), Metadata: obj.meta}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not supported by fake")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported by fake")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported by fake")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestS3Vault(t *testing.T) {
	exerciseVault(t, newS3Vault("cloud", "actas", "dev", newFakeS3()))
}

func TestS3Vault_Keys(t *testing.T) {
	fake := newFakeS3()
	v := newS3Vault("cloud", "actas", "santiago", fake)
	ctx := context.Background()

	if err := v.PutContent(ctx, "abc", strings.NewReader("x"), 1); err != nil {
		t.Fatal(err)
	}
	if err := v.PutSnapshot(ctx, "dev-1", "db", strings.NewReader("yy"), 2, 7); err != nil {
		t.Fatal(err)
	}

	if _, ok := fake.objects["santiago/content/abc"]; !ok {
		t.Errorf("content key missing, have %v", keys(fake))
	}
	snap, ok := fake.objects["santiago/snapshots/dev-1/db"]
	if !ok {
		t.Fatalf("snapshot key missing, have %v", keys(fake))
	}
	if snap.meta[versionKey] != "7" {
		t.Errorf("version metadata = %v", snap.meta)
	}
}

func TestS3Vault_ExistingContentIsNotReuploaded(t *testing.T) {
	fake := newFakeS3()
	v := newS3Vault("cloud", "actas", "", fake)
	ctx := context.Background()

	for range 3 {
		if err := v.PutContent(ctx, "abc", strings.NewReader("x"), 1); err != nil {
			t.Fatal(err)
		}
	}
	if fake.puts != 1 {
		t.Errorf("PutObject calls = %d, want 1", fake.puts)
	}
}

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.VaultConfig
		wantErr bool
	}{
		{"memory", config.VaultConfig{Type: "memory", Name: "mem"}, false},
		{"filesystem", config.VaultConfig{Type: "filesystem", Name: "local", FSVaultRoot: t.TempDir()}, false},
		{"filesystem without root", config.VaultConfig{Type: "filesystem", Name: "local"}, true},
		{"s3 without bucket", config.VaultConfig{Type: "s3", Name: "cloud"}, true},
		{"s3 with static credentials", config.VaultConfig{
			Type: "s3", Name: "cloud", S3Bucket: "actas", S3Region: "sa-east-1",
			S3Endpoint: "http://127.0.0.1:9000", S3AccessKeyID: "minio", S3SecretAccessKey: "minio123",
		}, false},
		{"unknown", config.VaultConfig{Type: "ftp"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Name() != tt.cfg.Name {
				t.Errorf("Name() = %q, want %q", got.Name(), tt.cfg.Name)
			}
		})
	}
}

func keys(f *fakeS3) []string {
	var out []string
	for k := range f.objects {
		out = append(out, k)
	}
	return out
}
