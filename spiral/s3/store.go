// Package s3 provides an S3-compatible Store for spiral bodies.
//
// This adapter supports AWS S3, MinIO, LocalStack, Cloudflare R2,
// and other S3-compatible object stores.
//
// # Bodies
//
// Spiral bodies are already seekable and sized, so Put hands them straight
// to the SDK without spooling:
//   - Atomic (≤5GB): PutObject with If-None-Match, body passed as an
//     io.ReadSeeker with an explicit ContentLength.
//   - Multipart (>5GB): parts are cut with io.SectionReader over the body's
//     io.ReaderAt view and completed with If-None-Match.
//
// Get and ReadRange return fresh spiral streams positioned at offset zero.
//
// # Consistency
//
// AWS S3 provides strong read-after-write consistency (since Dec 2020).
// Other S3-compatible backends (MinIO, LocalStack, R2) may have different
// consistency guarantees; consult their documentation.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/justapithecus/spiral/spiral"
)

// S3 multipart upload constraints.
const (
	// minPartSize is the minimum part size for S3 multipart uploads (except last part).
	minPartSize = 5 * 1024 * 1024 // 5MB

	// maxPartSize is the maximum part size for S3 multipart uploads.
	maxPartSize = 5 * 1024 * 1024 * 1024 // 5GB

	// maxParts is the maximum number of parts allowed in an S3 multipart upload.
	maxParts = 10000

	// maxObjectSize is the maximum object size for S3 (5TB per AWS documentation).
	maxObjectSize = 5 * 1024 * 1024 * 1024 * 1024 // 5TB
)

// maxAtomicPutSize is the threshold for atomic vs multipart Put routing.
// Set to 5GB (the S3 PutObject limit) to maximize atomic upload coverage.
const maxAtomicPutSize = 5 * 1024 * 1024 * 1024 // 5GB

// maxReadRangeLength is the maximum length for ReadRange to prevent overflow
// when converting int64 to int on 32-bit platforms.
const maxReadRangeLength = int64(math.MaxInt)

// API defines the subset of the S3 client interface used by the store.
// This enables testing with mock implementations.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds configuration for the S3 store.
type Config struct {
	// Bucket is the S3 bucket name. Required.
	Bucket string

	// Prefix is an optional key prefix for all operations.
	// If set, all keys are prefixed with this value (with a trailing slash added if missing).
	Prefix string
}

// ConfigFromOptions reads the bucket from validated client options.
//
// The client's prefix option is applied by spiral.Client, so it is not
// repeated here.
func ConfigFromOptions(opts *spiral.Options) Config {
	return Config{Bucket: opts.Value(spiral.OptionBucket)}
}

// Store implements spiral.Store using an S3-compatible backend.
type Store struct {
	client API
	bucket string
	prefix string
}

var _ spiral.Store = (*Store)(nil)

// New creates a new S3 store with the given client and configuration.
//
// The client must be pre-configured with credentials, region, and endpoint.
// Use NewClient to build one from spiral options.
func New(client API, cfg Config) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
	}, nil
}

// Factory returns a spiral.StoreFactory yielding a store for client and cfg.
func Factory(client API, cfg Config) spiral.StoreFactory {
	return func() (spiral.Store, error) {
		return New(client, cfg)
	}
}

// shouldUseAtomicPath returns true if the given size should use the atomic Put path.
func shouldUseAtomicPath(size int64) bool {
	return size <= maxAtomicPutSize
}

// Put transmits the whole body to the given key.
// Returns ErrPathExists if the key already exists, ErrInvalidPath for empty
// or escaping keys, and ErrStreamClosed for a closed body.
func (s *Store) Put(ctx context.Context, key string, body spiral.Stream) error {
	fullKey, err := s.validateKey(key)
	if err != nil {
		return err
	}

	if body == nil {
		return fmt.Errorf("s3: put: %w", spiral.ErrStreamClosed)
	}
	size, ok := body.Size()
	if !ok {
		return fmt.Errorf("s3: put: %w", spiral.ErrStreamClosed)
	}
	if err := body.Rewind(); err != nil {
		return fmt.Errorf("s3: rewinding body: %w", err)
	}

	if shouldUseAtomicPath(size) {
		return s.putAtomic(ctx, fullKey, body, size)
	}

	ra, ok := body.(io.ReaderAt)
	if !ok {
		// Multipart parts are cut at arbitrary offsets; materialize a
		// random-access copy for bodies that only offer a cursor.
		data, err := body.Contents()
		if err != nil {
			return fmt.Errorf("s3: reading body: %w", err)
		}
		ra = spiral.NewStream(data)
	}
	return s.putMultipart(ctx, fullKey, ra, size)
}

// putAtomic implements atomic Put via PutObject with If-None-Match.
// Supports uploads up to 5GB (S3 PutObject limit).
func (s *Store) putAtomic(ctx context.Context, fullKey string, body io.ReadSeeker, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(fullKey),
		Body:          body,
		ContentLength: aws.Int64(size),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			code := apiErr.ErrorCode()
			if code == "PreconditionFailed" || code == "412" {
				return spiral.ErrPathExists
			}
		}
		return fmt.Errorf("s3: put object: %w", err)
	}
	return nil
}

// partSizeFor returns the part size for an object of size bytes, scaled up
// for large objects to stay under maxParts.
func partSizeFor(size int64) int64 {
	partSize := int64(minPartSize)
	if size > int64(minPartSize)*maxParts {
		partSize = (size + maxParts - 1) / maxParts
	}
	return partSize
}

// putMultipart implements multipart upload for objects > 5GB.
//
// Uses conditional completion (If-None-Match) for atomic no-overwrite
// guarantee. The preflight existence check only fails fast before parts
// are uploaded.
func (s *Store) putMultipart(ctx context.Context, fullKey string, body io.ReaderAt, size int64) error {
	if size > maxObjectSize {
		return fmt.Errorf("s3: object size %d exceeds maximum %d (5TB)", size, maxObjectSize)
	}
	partSize := partSizeFor(size)

	exists, err := s.exists(ctx, fullKey)
	if err != nil {
		return fmt.Errorf("s3: checking existence: %w", err)
	}
	if exists {
		return spiral.ErrPathExists
	}

	createResp, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		return fmt.Errorf("s3: create multipart upload: %w", err)
	}
	uploadID := aws.ToString(createResp.UploadId)

	var completedParts []types.CompletedPart

	// Abort with a background context so cleanup survives cancellation of ctx.
	//nolint:contextcheck // Intentionally uses background context for cleanup resilience
	abortUpload := func() {
		abortCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, _ = s.client.AbortMultipartUpload(abortCtx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(fullKey),
			UploadId: aws.String(uploadID),
		})
	}

	var offset int64
	partNum := int32(0)
	for offset < size {
		partNum++
		thisPartSize := min(partSize, size-offset)

		uploadResp, uploadErr := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(fullKey),
			UploadId:      aws.String(uploadID),
			PartNumber:    aws.Int32(partNum),
			Body:          io.NewSectionReader(body, offset, thisPartSize),
			ContentLength: aws.Int64(thisPartSize),
		})
		if uploadErr != nil {
			abortUpload()
			return fmt.Errorf("s3: upload part %d: %w", partNum, uploadErr)
		}
		completedParts = append(completedParts, types.CompletedPart{
			ETag:       uploadResp.ETag,
			PartNumber: aws.Int32(partNum),
		})

		offset += thisPartSize
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(fullKey),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completedParts,
		},
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		abortUpload()
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			code := apiErr.ErrorCode()
			if code == "PreconditionFailed" || code == "412" ||
				code == "ConditionalRequestConflict" || code == "409" {
				return spiral.ErrPathExists
			}
		}
		return fmt.Errorf("s3: complete multipart upload: %w", err)
	}

	return nil
}

// Get fetches the object at key as a new stream.
// Returns ErrNotFound if the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (*spiral.StringStream, error) {
	fullKey, err := s.validateKey(key)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, spiral.ErrNotFound
		}
		return nil, fmt.Errorf("s3: get object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: reading object body: %w", err)
	}
	return spiral.NewStream(data), nil
}

// Exists checks whether a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	fullKey, err := s.validateKey(key)
	if err != nil {
		return false, err
	}

	return s.exists(ctx, fullKey)
}

// List returns all keys under the given prefix, relative to the store prefix.
// Pagination is handled automatically.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix, err := s.validatePrefix(prefix)
	if err != nil {
		return nil, err
	}

	var keys []string
	var continuationToken *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(fullPrefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: list objects: %w", err)
		}

		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, strings.TrimPrefix(*obj.Key, s.prefix))
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	return keys, nil
}

// Delete removes the key if it exists. Safe to call on missing keys.
func (s *Store) Delete(ctx context.Context, key string) error {
	fullKey, err := s.validateKey(key)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		return fmt.Errorf("s3: delete object: %w", err)
	}

	return nil
}

// ReadRange fetches length bytes starting at offset as a new stream.
// If offset is beyond EOF, the stream is empty. If the range extends beyond
// EOF, the stream holds the available bytes.
func (s *Store) ReadRange(ctx context.Context, key string, offset, length int64) (*spiral.StringStream, error) {
	if offset < 0 || length < 0 || length > maxReadRangeLength {
		return nil, spiral.ErrInvalidPath
	}
	if offset > math.MaxInt64-length {
		return nil, spiral.ErrInvalidPath
	}

	fullKey, err := s.validateKey(key)
	if err != nil {
		return nil, err
	}

	// Zero-length read still reports ErrNotFound for missing keys.
	if length == 0 {
		exists, err := s.exists(ctx, fullKey)
		if err != nil {
			return nil, fmt.Errorf("s3: checking existence: %w", err)
		}
		if !exists {
			return nil, spiral.ErrNotFound
		}
		return spiral.NewStream(nil), nil
	}

	// S3 Range header format: "bytes=start-end" (inclusive)
	rangeHeader := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, spiral.ErrNotFound
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange" {
			return spiral.NewStream(nil), nil
		}
		return nil, fmt.Errorf("s3: range read: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: reading range body: %w", err)
	}

	return spiral.NewStream(data), nil
}

// exists checks if an object exists (internal helper).
func (s *Store) exists(ctx context.Context, fullKey string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// validateKey validates and returns the full key for object operations.
func (s *Store) validateKey(key string) (string, error) {
	if key == "" {
		return "", spiral.ErrInvalidPath
	}

	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", spiral.ErrInvalidPath
	}
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" {
		return "", spiral.ErrInvalidPath
	}

	return s.prefix + cleaned, nil
}

// validatePrefix validates and returns the full prefix for list operations.
func (s *Store) validatePrefix(prefix string) (string, error) {
	if prefix == "" {
		return s.prefix, nil
	}

	cleaned := path.Clean(prefix)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", spiral.ErrInvalidPath
	}
	if cleaned == "." {
		return s.prefix, nil
	}
	cleaned = strings.TrimPrefix(cleaned, "/")

	return s.prefix + cleaned, nil
}

// isNotFound checks if an error indicates the object was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}
