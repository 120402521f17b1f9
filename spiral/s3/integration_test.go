package s3

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/justapithecus/spiral/spiral"
)

// flagIntegration gates integration tests that require running S3 services.
// Pass -integration to enable.
var flagIntegration = flag.Bool("integration", false, "run integration tests against LocalStack and MinIO")

// Integration tests for S3-compatible backends.
//
// To run:
//
//	docker run -d -p 4566:4566 localstack/localstack
//	docker run -d -p 9000:9000 minio/minio server /data
//	go test -v ./spiral/s3/... -integration
func skipIfNoS3(t *testing.T) {
	t.Helper()
	if !*flagIntegration {
		t.Skip("skipping integration test; use -integration to enable")
	}
}

// s3Backend describes an S3-compatible backend for table-driven tests.
type s3Backend struct {
	name      string
	newClient func(context.Context) (*s3.Client, error)
}

var s3Backends = []s3Backend{
	{"LocalStack", NewLocalStackClient},
	{"MinIO", func(ctx context.Context) (*s3.Client, error) {
		return NewClient(ctx, ClientConfig{
			Endpoint:     "http://localhost:9000",
			UsePathStyle: true,
			Credentials:  credentials.NewStaticCredentialsProvider("minioadmin", "minioadmin", ""),
		})
	}},
}

// setupTestBucket creates a unique bucket and registers cleanup via t.Cleanup.
func setupTestBucket(t *testing.T, backend s3Backend) *Store {
	t.Helper()
	skipIfNoS3(t)

	ctx := t.Context()
	client, err := backend.newClient(ctx)
	if err != nil {
		t.Fatalf("failed to create %s client: %v", backend.name, err)
	}

	bucket := fmt.Sprintf("spiral-test-%d", time.Now().UnixNano())
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	t.Cleanup(func() {
		cleanupCtx := context.Background()
		out, _ := client.ListObjectsV2(cleanupCtx, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
		if out != nil {
			for _, obj := range out.Contents {
				_, _ = client.DeleteObject(cleanupCtx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: obj.Key})
			}
		}
		_, _ = client.DeleteBucket(cleanupCtx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	})

	store, err := New(client, Config{Bucket: bucket})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestIntegration_PutGetList(t *testing.T) {
	for _, backend := range s3Backends {
		t.Run(backend.name, func(t *testing.T) {
			store := setupTestBucket(t, backend)
			ctx := t.Context()

			body := spiral.NewStringStream("integration body")
			_, _ = body.ReadN(4)

			if err := store.Put(ctx, "dir/a.txt", body); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, err := store.Get(ctx, "dir/a.txt")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.String() != "integration body" {
				t.Errorf("expected whole body, got %q", got.String())
			}

			keys, err := store.List(ctx, "dir/")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if !slices.Equal(keys, []string{"dir/a.txt"}) {
				t.Errorf("expected [dir/a.txt], got %v", keys)
			}

			part, err := store.ReadRange(ctx, "dir/a.txt", 12, 4)
			if err != nil {
				t.Fatalf("ReadRange failed: %v", err)
			}
			if part.String() != "body" {
				t.Errorf("expected range %q, got %q", "body", part.String())
			}
		})
	}
}

func TestIntegration_ImmutabilityEnforcement(t *testing.T) {
	for _, backend := range s3Backends {
		t.Run(backend.name, func(t *testing.T) {
			store := setupTestBucket(t, backend)
			ctx := t.Context()

			if err := store.Put(ctx, "immutable.txt", spiral.NewStringStream("immutable")); err != nil {
				t.Fatalf("first Put failed: %v", err)
			}
			err := store.Put(ctx, "immutable.txt", spiral.NewStringStream("modified"))
			if !errors.Is(err, spiral.ErrPathExists) {
				t.Errorf("expected ErrPathExists on second write, got: %v", err)
			}
		})
	}
}

func TestIntegration_NotFound(t *testing.T) {
	for _, backend := range s3Backends {
		t.Run(backend.name, func(t *testing.T) {
			store := setupTestBucket(t, backend)
			ctx := t.Context()

			if _, err := store.Get(ctx, "nonexistent/path.txt"); !errors.Is(err, spiral.ErrNotFound) {
				t.Errorf("expected ErrNotFound for Get, got: %v", err)
			}
			if _, err := store.ReadRange(ctx, "nonexistent/path.txt", 0, 10); !errors.Is(err, spiral.ErrNotFound) {
				t.Errorf("expected ErrNotFound for ReadRange, got: %v", err)
			}
		})
	}
}
