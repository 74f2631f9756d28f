package storage

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MockS3Client is a mock implementation of S3Client for testing
type MockS3Client struct {
	// Objects stores mock S3 objects keyed by object key
	Objects map[string][]byte
	// Buckets stores the set of known buckets
	Buckets map[string]bool
	// Err, when set, is returned from every operation
	Err error
	// Track function calls
	HeadBucketCalled    bool
	PutObjectCalled     bool
	GetObjectCalled     bool
	ListObjectsV2Called bool
	DeleteObjectsCalled bool
	// Store last call parameters
	LastBucket string
	LastKey    string
}

// NewMockS3Client creates a new mock S3 client
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{
		Objects: make(map[string][]byte),
		Buckets: map[string]bool{"test-bucket": true},
	}
}

// HeadBucket mocks checking bucket existence
func (m *MockS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	m.HeadBucketCalled = true
	m.LastBucket = aws.ToString(params.Bucket)
	if m.Err != nil {
		return nil, m.Err
	}
	return &s3.HeadBucketOutput{}, nil
}

// PutObject mocks object upload
func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.PutObjectCalled = true
	m.LastBucket = aws.ToString(params.Bucket)
	m.LastKey = aws.ToString(params.Key)
	if m.Err != nil {
		return nil, m.Err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.Objects[m.LastKey] = data
	return &s3.PutObjectOutput{}, nil
}

// GetObject mocks object retrieval
func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.GetObjectCalled = true
	m.LastBucket = aws.ToString(params.Bucket)
	m.LastKey = aws.ToString(params.Key)
	if m.Err != nil {
		return nil, m.Err
	}
	data, ok := m.Objects[m.LastKey]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(data))),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

// ListObjectsV2 mocks listing with prefix filtering
func (m *MockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.ListObjectsV2Called = true
	m.LastBucket = aws.ToString(params.Bucket)
	if m.Err != nil {
		return nil, m.Err
	}
	prefix := aws.ToString(params.Prefix)
	keys := make([]string, 0)
	for key := range m.Objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	contents := make([]types.Object, 0, len(keys))
	for _, key := range keys {
		contents = append(contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(m.Objects[key]))),
		})
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

// DeleteObjects mocks batch deletion
func (m *MockS3Client) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	m.DeleteObjectsCalled = true
	m.LastBucket = aws.ToString(params.Bucket)
	if m.Err != nil {
		return nil, m.Err
	}
	for _, obj := range params.Delete.Objects {
		delete(m.Objects, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}
