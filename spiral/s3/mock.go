package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// MockPageSize is the number of keys MockClient returns per ListObjectsV2
// page, so callers exercise pagination.
const MockPageSize = 2

// multipartUpload tracks an in-progress multipart upload.
type multipartUpload struct {
	key   string
	parts map[int32][]byte
}

// MockClient is an in-memory test double for API.
type MockClient struct {
	mu       sync.RWMutex
	objects  map[string][]byte
	uploads  map[string]*multipartUpload
	uploadID int

	// Call counters for test assertions.
	PutObjectCalls             int
	CreateMultipartUploadCalls int
	UploadPartCalls            int
	AbortMultipartUploadCalls  int

	// ContentLengths records the ContentLength of every PutObject call.
	ContentLengths []int64

	// UploadPartFailOnCall causes UploadPart to fail on the Nth call.
	// Zero disables the failure.
	UploadPartFailOnCall int

	// BeforeComplete runs inside CompleteMultipartUpload before the
	// conditional check, with the lock held.
	BeforeComplete func(objects map[string][]byte, key string)
}

// NewMockClient creates an empty mock S3 client.
func NewMockClient() *MockClient {
	return &MockClient{
		objects: make(map[string][]byte),
		uploads: make(map[string]*multipartUpload),
	}
}

// Object returns the stored bytes for a full key.
func (m *MockClient) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

// PendingUploads returns the number of multipart uploads neither completed
// nor aborted.
func (m *MockClient) PendingUploads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.uploads)
}

// PutObject stores the body, honouring If-None-Match.
func (m *MockClient) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	if params.ContentLength != nil && *params.ContentLength != int64(len(data)) {
		return nil, &apiError{code: "IncompleteBody", message: "body shorter than content length"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutObjectCalls++
	m.ContentLengths = append(m.ContentLengths, aws.ToInt64(params.ContentLength))

	if aws.ToString(params.IfNoneMatch) == "*" {
		if _, exists := m.objects[key]; exists {
			return nil, &apiError{code: "PreconditionFailed", message: "object already exists"}
		}
	}

	m.objects[key] = data
	return &s3.PutObjectOutput{}, nil
}

// GetObject returns the stored object or the requested byte range.
func (m *MockClient) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)

	m.mu.RLock()
	data, exists := m.objects[key]
	m.mu.RUnlock()

	if !exists {
		return nil, &types.NoSuchKey{}
	}

	if params.Range != nil {
		var start, end int64
		if _, err := fmt.Sscanf(aws.ToString(params.Range), "bytes=%d-%d", &start, &end); err != nil {
			return nil, &apiError{code: "InvalidArgument", message: err.Error()}
		}
		if start >= int64(len(data)) {
			return nil, &apiError{code: "InvalidRange"}
		}
		end = min(end, int64(len(data))-1)
		data = data[start : end+1]
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

// HeadObject reports whether the key exists.
func (m *MockClient) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.RLock()
	data, exists := m.objects[aws.ToString(params.Key)]
	m.mu.RUnlock()

	if !exists {
		return nil, &apiError{code: "NotFound"}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

// CreateMultipartUpload starts a new upload.
func (m *MockClient) CreateMultipartUpload(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateMultipartUploadCalls++
	m.uploadID++
	uploadID := "upload-" + strconv.Itoa(m.uploadID)
	m.uploads[uploadID] = &multipartUpload{
		key:   aws.ToString(params.Key),
		parts: make(map[int32][]byte),
	}

	return &s3.CreateMultipartUploadOutput{
		Bucket:   params.Bucket,
		Key:      params.Key,
		UploadId: aws.String(uploadID),
	}, nil
}

// UploadPart records one part of an upload.
func (m *MockClient) UploadPart(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	uploadID := aws.ToString(params.UploadId)
	partNum := aws.ToInt32(params.PartNumber)

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.UploadPartCalls++
	if m.UploadPartFailOnCall > 0 && m.UploadPartCalls >= m.UploadPartFailOnCall {
		return nil, &apiError{code: "InternalError", message: "simulated upload part failure"}
	}

	upload, exists := m.uploads[uploadID]
	if !exists {
		return nil, &apiError{code: "NoSuchUpload", message: "upload not found"}
	}
	upload.parts[partNum] = data

	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("%q", fmt.Sprintf("%d-%d", partNum, len(data))))}, nil
}

// CompleteMultipartUpload assembles the listed parts, honouring If-None-Match.
func (m *MockClient) CompleteMultipartUpload(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	uploadID := aws.ToString(params.UploadId)
	key := aws.ToString(params.Key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.BeforeComplete != nil {
		m.BeforeComplete(m.objects, key)
	}

	if aws.ToString(params.IfNoneMatch) == "*" {
		if _, exists := m.objects[key]; exists {
			return nil, &apiError{code: "PreconditionFailed", message: "object already exists"}
		}
	}

	upload, exists := m.uploads[uploadID]
	if !exists {
		return nil, &apiError{code: "NoSuchUpload", message: "upload not found"}
	}

	var assembled []byte
	if params.MultipartUpload != nil {
		for _, part := range params.MultipartUpload.Parts {
			data, ok := upload.parts[aws.ToInt32(part.PartNumber)]
			if !ok {
				return nil, &apiError{code: "InvalidPart", message: "part not uploaded"}
			}
			assembled = append(assembled, data...)
		}
	}

	m.objects[key] = assembled
	delete(m.uploads, uploadID)

	return &s3.CompleteMultipartUploadOutput{}, nil
}

// AbortMultipartUpload discards an upload.
func (m *MockClient) AbortMultipartUpload(_ context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	m.mu.Lock()
	m.AbortMultipartUploadCalls++
	delete(m.uploads, aws.ToString(params.UploadId))
	m.mu.Unlock()

	return &s3.AbortMultipartUploadOutput{}, nil
}

// DeleteObject removes the key. Missing keys are not an error.
func (m *MockClient) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	delete(m.objects, aws.ToString(params.Key))
	m.mu.Unlock()

	return &s3.DeleteObjectOutput{}, nil
}

// ListObjectsV2 returns keys under the prefix in lexical order, MockPageSize
// keys per page. The continuation token is the last key of the previous page.
func (m *MockClient) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)
	after := aws.ToString(params.ContinuationToken)

	m.mu.RLock()
	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) && key > after {
			keys = append(keys, key)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)

	truncated := len(keys) > MockPageSize
	if truncated {
		keys = keys[:MockPageSize]
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(truncated)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	if truncated {
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	return out, nil
}

// apiError implements smithy.APIError for the mock.
type apiError struct {
	code    string
	message string
}

func (e *apiError) Error() string {
	if e.message == "" {
		return e.code
	}
	return e.code + ": " + e.message
}

func (e *apiError) ErrorCode() string {
	return e.code
}

func (e *apiError) ErrorMessage() string {
	return e.message
}

func (e *apiError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}

var _ API = (*MockClient)(nil)
