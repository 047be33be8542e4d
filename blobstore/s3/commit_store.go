package s3

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/diskidx/blobstore"
)

// CurrentName is the blob name CommitStore serves from DynamoDB.
const CurrentName = "CURRENT"

// DefaultMaxRetries is the number of times Commit retries a lost race.
const DefaultMaxRetries = 3

// ErrConcurrentModification is returned when Commit keeps losing the race
// for the next sequence number.
var ErrConcurrentModification = errors.New("s3: concurrent modification detected")

// DDBClient is the subset of the DynamoDB API used by CommitStore.
// *dynamodb.Client satisfies it.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Item attributes of the commit table.
const (
	attrIndexSet    = "index_set"
	attrSeq         = "seq"
	attrSnapshot    = "snapshot"
	attrCommittedAt = "committed_at"
)

// CommitOptions configures a CommitStore.
type CommitOptions struct {
	// MaxRetries bounds the retries of a commit that lost a race.
	MaxRetries int
	// Now stamps commits. Default: time.Now.
	Now func() time.Time
}

// WithMaxRetries sets CommitOptions.MaxRetries.
func WithMaxRetries(n int) func(o *CommitOptions) {
	return func(o *CommitOptions) { o.MaxRetries = n }
}

// WithClock sets CommitOptions.Now.
func WithClock(now func() time.Time) func(o *CommitOptions) {
	return func(o *CommitOptions) { o.Now = now }
}

// Commit is one entry of the CURRENT history.
type Commit struct {
	Seq         int64
	Snapshot    string
	CommittedAt time.Time
}

// CommitStore stores snapshot blobs in another BlobStore and keeps the CURRENT
// pointer of one index set in a DynamoDB table. Every Put of CURRENT appends
// a commit with the next sequence number under a conditional write, so
// concurrent savers never overwrite each other and every commit stays in the
// history.
//
// Table schema: partition key index_set (S), sort key seq (N).
//
//	aws dynamodb create-table \
//	  --table-name diskidx-commits \
//	  --attribute-definitions AttributeName=index_set,AttributeType=S AttributeName=seq,AttributeType=N \
//	  --key-schema AttributeName=index_set,KeyType=HASH AttributeName=seq,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	blobs    blobstore.BlobStore
	client   DDBClient
	table    string
	indexSet string
	opts     CommitOptions
}

var _ blobstore.BlobStore = (*CommitStore)(nil)

// NewCommitStore returns a CommitStore keeping blobs in blobs and commits of
// indexSet in table.
func NewCommitStore(blobs blobstore.BlobStore, client DDBClient, table, indexSet string, optFns ...func(o *CommitOptions)) *CommitStore {
	opts := CommitOptions{MaxRetries: DefaultMaxRetries, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &CommitStore{
		blobs:    blobs,
		client:   client,
		table:    table,
		indexSet: indexSet,
		opts:     opts,
	}
}

// Open serves CURRENT from the latest commit and everything else from the blob store.
func (c *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != CurrentName {
		return c.blobs.Open(ctx, name)
	}
	latest, err := c.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return blobstore.NewBytesBlob([]byte(latest.Snapshot)), nil
}

// Create writes to the blob store. CURRENT cannot be streamed.
func (c *CommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if name == CurrentName {
		return nil, fmt.Errorf("s3: %s is committed with Put: %w", CurrentName, errors.ErrUnsupported)
	}
	return c.blobs.Create(ctx, name)
}

// Put commits CURRENT to DynamoDB and writes everything else to the blob store.
func (c *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != CurrentName {
		return c.blobs.Put(ctx, name, data)
	}
	_, err := c.Commit(ctx, strings.TrimSpace(string(data)))
	return err
}

// Delete removes a blob. The commit history is append-only.
func (c *CommitStore) Delete(ctx context.Context, name string) error {
	if name == CurrentName {
		return fmt.Errorf("s3: %s history is append-only: %w", CurrentName, errors.ErrUnsupported)
	}
	return c.blobs.Delete(ctx, name)
}

// List lists the blob store and adds CURRENT once a commit exists.
func (c *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := c.blobs.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	names = slices.DeleteFunc(names, func(n string) bool { return n == CurrentName })
	if strings.HasPrefix(CurrentName, prefix) {
		if _, err := c.Latest(ctx); err == nil {
			names = append(names, CurrentName)
			slices.Sort(names)
		} else if !errors.Is(err, blobstore.ErrNotFound) {
			return nil, err
		}
	}
	return names, nil
}

// Commit appends a commit pointing at snapshot. A commit that loses the race
// for its sequence number is retried on the next one.
func (c *CommitStore) Commit(ctx context.Context, snapshot string) (Commit, error) {
	if snapshot == "" {
		return Commit{}, errors.New("s3: empty snapshot name")
	}
	for attempt := 0; ; attempt++ {
		var seq int64 = 1
		latest, err := c.Latest(ctx)
		switch {
		case err == nil:
			seq = latest.Seq + 1
		case !errors.Is(err, blobstore.ErrNotFound):
			return Commit{}, err
		}

		commit := Commit{Seq: seq, Snapshot: snapshot, CommittedAt: c.opts.Now().UTC()}
		err = c.put(ctx, commit)
		if err == nil {
			return commit, nil
		}
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return Commit{}, fmt.Errorf("s3: commit %s: %w", snapshot, err)
		}
		if attempt >= c.opts.MaxRetries {
			return Commit{}, fmt.Errorf("%w: seq %d of %s taken %d times", ErrConcurrentModification, seq, c.indexSet, attempt+1)
		}
	}
}

func (c *CommitStore) put(ctx context.Context, commit Commit) error {
	_, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item: map[string]types.AttributeValue{
			attrIndexSet:    &types.AttributeValueMemberS{Value: c.indexSet},
			attrSeq:         &types.AttributeValueMemberN{Value: strconv.FormatInt(commit.Seq, 10)},
			attrSnapshot:    &types.AttributeValueMemberS{Value: commit.Snapshot},
			attrCommittedAt: &types.AttributeValueMemberS{Value: commit.CommittedAt.Format(time.RFC3339Nano)},
		},
		ConditionExpression:      aws.String("attribute_not_exists(#seq)"),
		ExpressionAttributeNames: map[string]string{"#seq": attrSeq},
	})
	return err
}

// Latest returns the newest commit, or an error wrapping blobstore.ErrNotFound
// when none exists.
func (c *CommitStore) Latest(ctx context.Context) (Commit, error) {
	commits, err := c.History(ctx, 1)
	if err != nil {
		return Commit{}, err
	}
	if len(commits) == 0 {
		return Commit{}, fmt.Errorf("s3: no commit for %s: %w", c.indexSet, blobstore.ErrNotFound)
	}
	return commits[0], nil
}

// History returns up to limit commits, newest first. limit <= 0 returns all.
func (c *CommitStore) History(ctx context.Context, limit int) ([]Commit, error) {
	in := &dynamodb.QueryInput{
		TableName:                aws.String(c.table),
		KeyConditionExpression:   aws.String("#set = :set"),
		ExpressionAttributeNames: map[string]string{"#set": attrIndexSet},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":set": &types.AttributeValueMemberS{Value: c.indexSet},
		},
		ScanIndexForward: aws.Bool(false),
		ConsistentRead:   aws.Bool(true),
	}

	var commits []Commit
	for {
		if limit > 0 {
			in.Limit = aws.Int32(int32(min(limit-len(commits), 1000)))
		}
		out, err := c.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("s3: query %s: %w", c.table, err)
		}
		for _, item := range out.Items {
			commit, err := decodeCommit(item)
			if err != nil {
				return nil, err
			}
			commits = append(commits, commit)
		}
		if len(out.LastEvaluatedKey) == 0 || (limit > 0 && len(commits) >= limit) {
			return commits, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func decodeCommit(item map[string]types.AttributeValue) (Commit, error) {
	seqAttr, ok := item[attrSeq].(*types.AttributeValueMemberN)
	if !ok {
		return Commit{}, fmt.Errorf("s3: commit item without %s", attrSeq)
	}
	seq, err := strconv.ParseInt(seqAttr.Value, 10, 64)
	if err != nil {
		return Commit{}, fmt.Errorf("s3: commit %s %q: %w", attrSeq, seqAttr.Value, err)
	}
	snap, ok := item[attrSnapshot].(*types.AttributeValueMemberS)
	if !ok {
		return Commit{}, fmt.Errorf("s3: commit %d without %s", seq, attrSnapshot)
	}
	commit := Commit{Seq: seq, Snapshot: snap.Value}
	if at, ok := item[attrCommittedAt].(*types.AttributeValueMemberS); ok {
		if commit.CommittedAt, err = time.Parse(time.RFC3339Nano, at.Value); err != nil {
			return Commit{}, fmt.Errorf("s3: commit %d %s: %w", seq, attrCommittedAt, err)
		}
	}
	return commit, nil
}
