package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// memS3 is a map-backed Client covering single and multipart uploads.
type memS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	uploads  map[string]map[int32][]byte
	pageSize int
	nextID   int

	multiparts int
}

var _ Client = (*memS3)(nil)

func newMemS3() *memS3 {
	return &memS3{
		objects:  make(map[string][]byte),
		uploads:  make(map[string]map[int32][]byte),
		pageSize: 2,
	}
}

func (m *memS3) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (m *memS3) object(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key]
}

func (m *memS3) corrupt(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key][len(m.objects[key])-1] ^= 0xff
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if want := aws.ToString(in.ChecksumCRC32C); want != "" && want != checksumCRC32C(data) {
		return nil, errors.New("checksum mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	data, ok := m.objects[aws.ToString(in.Key)]
	m.mu.Unlock()
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	if r := aws.ToString(in.Range); r != "" {
		var start, end int
		if _, err := fmt.Sscanf(r, "bytes=%d-%d", &start, &end); err != nil || start > end || start >= len(data) {
			return nil, fmt.Errorf("invalid range %q", r)
		}
		data = data[start:min(end+1, len(data))]
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (m *memS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *memS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	after := aws.ToString(in.ContinuationToken)
	var page []types.Object
	truncated := false
	for _, k := range m.keys() {
		if !strings.HasPrefix(k, aws.ToString(in.Prefix)) || k <= after {
			continue
		}
		if len(page) == m.pageSize {
			truncated = true
			break
		}
		page = append(page, types.Object{Key: aws.String(k)})
	}
	out := &s3.ListObjectsV2Output{Contents: page, IsTruncated: aws.Bool(truncated)}
	if truncated {
		out.NextContinuationToken = page[len(page)-1].Key
	}
	return out, nil
}

func (m *memS3) CreateMultipartUpload(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := strconv.Itoa(m.nextID)
	m.uploads[id] = make(map[int32][]byte)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (m *memS3) UploadPart(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	parts, ok := m.uploads[aws.ToString(in.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	n := aws.ToInt32(in.PartNumber)
	parts[n] = data
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", n))}, nil
}

func (m *memS3) CompleteMultipartUpload(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := aws.ToString(in.UploadId)
	parts, ok := m.uploads[id]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	var buf bytes.Buffer
	for _, p := range in.MultipartUpload.Parts {
		buf.Write(parts[aws.ToInt32(p.PartNumber)])
	}
	m.objects[aws.ToString(in.Key)] = buf.Bytes()
	delete(m.uploads, id)
	m.multiparts++
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (m *memS3) AbortMultipartUpload(_ context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.uploads, aws.ToString(in.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

// memDDB is a map-backed DDBClient for one table keyed by (index_set, seq).
type memDDB struct {
	mu       sync.Mutex
	items    map[string]map[int64]map[string]ddbtypes.AttributeValue
	pageSize int32

	// beforePut runs ahead of every PutItem, outside the lock.
	beforePut func()
}

var _ DDBClient = (*memDDB)(nil)

func newMemDDB() *memDDB {
	return &memDDB{
		items:    make(map[string]map[int64]map[string]ddbtypes.AttributeValue),
		pageSize: 2,
	}
}

func itemKey(item map[string]ddbtypes.AttributeValue) (string, int64) {
	set := item[attrIndexSet].(*ddbtypes.AttributeValueMemberS).Value
	seq, _ := strconv.ParseInt(item[attrSeq].(*ddbtypes.AttributeValueMemberN).Value, 10, 64)
	return set, seq
}

func (d *memDDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if d.beforePut != nil {
		d.beforePut()
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	set, seq := itemKey(in.Item)
	if d.items[set] == nil {
		d.items[set] = make(map[int64]map[string]ddbtypes.AttributeValue)
	}
	if _, taken := d.items[set][seq]; taken && in.ConditionExpression != nil {
		return nil, &ddbtypes.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	d.items[set][seq] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (d *memDDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := in.ExpressionAttributeValues[":set"].(*ddbtypes.AttributeValueMemberS).Value
	seqs := make([]int64, 0, len(d.items[set]))
	for seq := range d.items[set] {
		seqs = append(seqs, seq)
	}
	slices.Sort(seqs)
	if !aws.ToBool(in.ScanIndexForward) {
		slices.Reverse(seqs)
	}
	if in.ExclusiveStartKey != nil {
		_, start := itemKey(in.ExclusiveStartKey)
		i := slices.Index(seqs, start)
		seqs = seqs[i+1:]
	}

	limit := d.pageSize
	if in.Limit != nil {
		limit = min(limit, *in.Limit)
	}
	out := &dynamodb.QueryOutput{}
	for _, seq := range seqs {
		if int32(len(out.Items)) == limit {
			last := out.Items[len(out.Items)-1]
			out.LastEvaluatedKey = map[string]ddbtypes.AttributeValue{
				attrIndexSet: last[attrIndexSet],
				attrSeq:      last[attrSeq],
			}
			break
		}
		out.Items = append(out.Items, d.items[set][seq])
	}
	return out, nil
}
