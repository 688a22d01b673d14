package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/db/envelope"
	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/clock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"
)

const (
	attrBucket    = "bucket"
	attrSortKey   = "sk"
	attrType      = "type"
	attrData      = "data"
	attrRevokedAt = "revoked_at"
	attrExpiresAt = "expires_at"

	defaultBucketSize  = time.Hour
	defaultParallelism = 8
)

// API is the subset of the DynamoDB client the repo uses.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type Options struct {
	Table string
	// BucketSize is the width of one partition. Records land in partition
	// revoked_at / BucketSize.
	BucketSize time.Duration
	// Retention sets expires_at for DynamoDB TTL and is also the furthest
	// back a query will look.
	Retention      time.Duration
	ConsistentRead bool
	// Parallelism bounds concurrent partition queries.
	Parallelism int
}

// DynamoRevocationRepo stores revocations in a table keyed by
// (bucket N, sk S) where sk is the zero-padded revoked_at followed by a ulid.
// Reads are eventually consistent unless ConsistentRead is set, so a record
// written through one replica may show up in a later poll only.
type DynamoRevocationRepo struct {
	api   API
	clock clock.Clock
	opts  Options
}

func NewDynamoRevocationRepo(api API, clk clock.Clock, opts Options) (*DynamoRevocationRepo, error) {
	if opts.Table == "" {
		return nil, customErrors.NewInvalidArgument("dynamodb table is required")
	}
	if opts.Retention <= 0 {
		return nil, customErrors.NewInvalidArgument("dynamodb retention must be positive")
	}
	if opts.BucketSize < time.Second {
		opts.BucketSize = defaultBucketSize
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	return &DynamoRevocationRepo{api: api, clock: clk, opts: opts}, nil
}

func (r *DynamoRevocationRepo) bucketSeconds() int64 {
	return int64(r.opts.BucketSize / time.Second)
}

func (r *DynamoRevocationRepo) bucketOf(ts int64) int64 {
	return ts / r.bucketSeconds()
}

func sortKeyFloor(ts int64) string {
	return fmt.Sprintf("%019d", ts)
}

func (r *DynamoRevocationRepo) StoreRevocation(ctx context.Context, rec model.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	env, err := envelope.Wrap(rec)
	if err != nil {
		return err
	}

	expiresAt := rec.RevokedAt + int64(r.opts.Retention/time.Second)
	item := map[string]types.AttributeValue{
		attrBucket:    &types.AttributeValueMemberN{Value: strconv.FormatInt(r.bucketOf(rec.RevokedAt), 10)},
		attrSortKey:   &types.AttributeValueMemberS{Value: sortKeyFloor(rec.RevokedAt) + "#" + env.ID},
		attrType:      &types.AttributeValueMemberS{Value: env.Type},
		attrData:      &types.AttributeValueMemberS{Value: string(env.Data)},
		attrRevokedAt: &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.RevokedAt, 10)},
		attrExpiresAt: &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
	}

	_, err = r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.opts.Table),
		Item:      item,
	})
	if err != nil {
		return classify(err, "dynamodb put")
	}
	return nil
}

// GetRevocations scans every partition from since up to one bucket past the
// current time. since is raised to the retention floor; negative values
// start at zero.
func (r *DynamoRevocationRepo) GetRevocations(ctx context.Context, since int64) ([]model.Record, error) {
	now := r.clock.Now()
	from := since
	if floor := now - int64(r.opts.Retention/time.Second); from < floor {
		from = floor
	}
	if from < 0 {
		from = 0
	}

	first, last := r.bucketOf(from), r.bucketOf(now)+1
	if first > last {
		return []model.Record{}, nil
	}

	var (
		mu  sync.Mutex
		out = make([]model.Record, 0)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallelism)
	for b := first; b <= last; b++ {
		bucket := b
		g.Go(func() error {
			recs, err := r.queryBucket(gctx, bucket, from)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, recs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DynamoRevocationRepo) queryBucket(ctx context.Context, bucket, from int64) ([]model.Record, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.opts.Table),
		KeyConditionExpression: aws.String("#b = :b AND #sk >= :from"),
		ExpressionAttributeNames: map[string]string{
			"#b":  attrBucket,
			"#sk": attrSortKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":b":    &types.AttributeValueMemberN{Value: strconv.FormatInt(bucket, 10)},
			":from": &types.AttributeValueMemberS{Value: sortKeyFloor(from)},
		},
		ConsistentRead: aws.Bool(r.opts.ConsistentRead),
	}

	var out []model.Record
	pages := dynamodb.NewQueryPaginator(r.api, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "dynamodb query")
		}
		for _, item := range page.Items {
			rec, err := decodeItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *DynamoRevocationRepo) Ping(ctx context.Context) error {
	_, err := r.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.opts.Table)})
	if err != nil {
		return customErrors.WrapUnavailable(err, "dynamodb describe table")
	}
	return nil
}

func decodeItem(item map[string]types.AttributeValue) (model.Record, error) {
	sk, ok1 := item[attrSortKey].(*types.AttributeValueMemberS)
	typ, ok2 := item[attrType].(*types.AttributeValueMemberS)
	data, ok3 := item[attrData].(*types.AttributeValueMemberS)
	at, ok4 := item[attrRevokedAt].(*types.AttributeValueMemberN)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return model.Record{}, customErrors.WrapInternal(errors.New("missing attribute"), "decode dynamodb item")
	}
	revokedAt, err := strconv.ParseInt(at.Value, 10, 64)
	if err != nil {
		return model.Record{}, customErrors.WrapInternal(err, "decode dynamodb item "+sk.Value)
	}
	return envelope.Envelope{
		ID:        sk.Value,
		Type:      typ.Value,
		Data:      []byte(data.Value),
		RevokedAt: revokedAt,
	}.Record()
}

func classify(err error, op string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationException" {
		return customErrors.NewInvalidArgument(op + ": " + apiErr.ErrorMessage())
	}
	return customErrors.WrapUnavailable(err, op)
}
