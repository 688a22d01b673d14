package dynamo

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/db/storetest"
	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/repo"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/clock"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

/* ───────────────────────────── fake table ───────────────────────────── */

type fakeTable struct {
	mu             sync.Mutex
	buckets        map[string][]map[string]types.AttributeValue
	pageSize       int
	err            error
	queries        int
	lastConsistent bool
}

func newFakeTable() *fakeTable {
	return &fakeTable{buckets: make(map[string][]map[string]types.AttributeValue), pageSize: 3}
}

func s(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	b := s(in.Item[attrBucket])
	f.buckets[b] = append(f.buckets[b], in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.queries++
	f.lastConsistent = in.ConsistentRead != nil && *in.ConsistentRead

	from := s(in.ExpressionAttributeValues[":from"])
	var after string
	if in.ExclusiveStartKey != nil {
		after = s(in.ExclusiveStartKey[attrSortKey])
	}

	var matched []map[string]types.AttributeValue
	for _, item := range f.buckets[s(in.ExpressionAttributeValues[":b"])] {
		sk := s(item[attrSortKey])
		if sk >= from && sk > after {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return s(matched[i][attrSortKey]) < s(matched[j][attrSortKey]) })

	out := &dynamodb.QueryOutput{}
	if len(matched) > f.pageSize {
		matched = matched[:f.pageSize]
		last := matched[len(matched)-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{attrBucket: last[attrBucket], attrSortKey: last[attrSortKey]}
	}
	out.Items = matched
	out.Count = int32(len(matched))
	return out, nil
}

func (f *fakeTable) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

/* ───────────────────────────── helpers ───────────────────────────── */

func newRepo(t *testing.T, opts Options) (*DynamoRevocationRepo, *fakeTable, *clock.Manual) {
	t.Helper()
	if opts.Table == "" {
		opts.Table = "revocations"
	}
	if opts.Retention == 0 {
		opts.Retention = 1_000_000 * time.Second
	}
	if opts.BucketSize == 0 {
		opts.BucketSize = 1000 * time.Second
	}
	table := newFakeTable()
	clk := clock.NewManual(10_000)
	r, err := NewDynamoRevocationRepo(table, clk, opts)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return r, table, clk
}

func tokenAt(at int64) model.Record {
	return model.Record{Type: model.TypeToken, Data: model.TokenData{TokenHash: "h" + strconv.FormatInt(at, 10)}, RevokedAt: at}
}

/* ───────────────────────────── tests ───────────────────────────── */

func TestDynamoRevocationRepo_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repo.Store {
		r, _, _ := newRepo(t, Options{})
		return r
	})
}

func TestDynamoRevocationRepo_ItemShape(t *testing.T) {
	r, table, _ := newRepo(t, Options{Retention: 500 * time.Second})
	if err := r.StoreRevocation(context.Background(), tokenAt(2500)); err != nil {
		t.Fatal(err)
	}

	items := table.buckets["2"]
	if len(items) != 1 {
		t.Fatalf("want item in bucket 2, got %v", table.buckets)
	}
	item := items[0]
	if got := s(item[attrExpiresAt]); got != "3000" {
		t.Fatalf("expires_at want 3000 got %s", got)
	}
	if sk := s(item[attrSortKey]); sk[:19] != "0000000000000002500" || sk[19] != '#' {
		t.Fatalf("unexpected sort key %q", sk)
	}
}

func TestDynamoRevocationRepo_PaginatesAcrossPages(t *testing.T) {
	r, table, _ := newRepo(t, Options{})
	table.pageSize = 2
	for i := int64(0); i < 7; i++ {
		if err := r.StoreRevocation(context.Background(), tokenAt(4000+i)); err != nil {
			t.Fatal(err)
		}
	}
	got, err := r.GetRevocations(context.Background(), 4000)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 7 {
		t.Fatalf("want 7 records across pages, got %d", len(got))
	}
}

func TestDynamoRevocationRepo_RetentionFloor(t *testing.T) {
	r, _, clk := newRepo(t, Options{Retention: 1000 * time.Second})
	ctx := context.Background()
	for _, at := range []int64{8000, 9500} {
		if err := r.StoreRevocation(ctx, tokenAt(at)); err != nil {
			t.Fatal(err)
		}
	}

	clk.Set(10_000)
	got, err := r.GetRevocations(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].RevokedAt != 9500 {
		t.Fatalf("records older than retention must not be returned, got %+v", got)
	}
}

func TestDynamoRevocationRepo_UpperBoundKeepsDuplicates(t *testing.T) {
	r, table, clk := newRepo(t, Options{})
	clk.Set(model.MaxRevokedAt)
	ctx := context.Background()
	rec := tokenAt(model.MaxRevokedAt)
	for i := 0; i < 2; i++ {
		if err := r.StoreRevocation(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	keys := map[string]bool{}
	for _, items := range table.buckets {
		for _, item := range items {
			keys[s(item[attrSortKey])] = true
		}
	}
	if len(keys) != 2 {
		t.Fatalf("identical records must get distinct sort keys, got %v", keys)
	}
	got, err := r.GetRevocations(ctx, model.MaxRevokedAt)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want both records, got %+v", got)
	}
}

func TestDynamoRevocationRepo_ConsistentReadOption(t *testing.T) {
	r, table, _ := newRepo(t, Options{ConsistentRead: true})
	if _, err := r.GetRevocations(context.Background(), 9000); err != nil {
		t.Fatal(err)
	}
	if !table.lastConsistent {
		t.Fatal("consistent read not requested")
	}
	if table.queries == 0 {
		t.Fatal("no partition queried")
	}
}

func TestDynamoRevocationRepo_FutureSinceSkipsQueries(t *testing.T) {
	r, table, _ := newRepo(t, Options{})
	got, err := r.GetRevocations(context.Background(), 1<<40)
	if err != nil || len(got) != 0 {
		t.Fatalf("want empty,nil got %v,%v", got, err)
	}
	if table.queries != 0 {
		t.Fatalf("want no queries, got %d", table.queries)
	}
}

func TestDynamoRevocationRepo_ErrorClassification(t *testing.T) {
	r, table, _ := newRepo(t, Options{})
	ctx := context.Background()

	table.err = &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException", Message: "slow down"}
	if _, err := r.GetRevocations(ctx, 0); !customErrors.IsUnavailable(err) {
		t.Fatalf("throttling must be unavailable, got %v", err)
	}
	if err := r.Ping(ctx); !customErrors.IsUnavailable(err) {
		t.Fatalf("ping must be unavailable, got %v", err)
	}

	table.err = &smithy.GenericAPIError{Code: "ValidationException", Message: "item too large"}
	if err := r.StoreRevocation(ctx, tokenAt(9000)); !customErrors.IsInvalidArgument(err) {
		t.Fatalf("validation error must be invalid argument, got %v", err)
	}
}

func TestNewDynamoRevocationRepo_Validation(t *testing.T) {
	clk := clock.NewManual(0)
	if _, err := NewDynamoRevocationRepo(newFakeTable(), clk, Options{Retention: time.Hour}); err == nil {
		t.Fatal("missing table must fail")
	}
	if _, err := NewDynamoRevocationRepo(newFakeTable(), clk, Options{Table: "t"}); err == nil {
		t.Fatal("missing retention must fail")
	}
	r, err := NewDynamoRevocationRepo(newFakeTable(), clk, Options{Table: "t", Retention: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	if r.opts.BucketSize != defaultBucketSize || r.opts.Parallelism != defaultParallelism {
		t.Fatalf("defaults not applied: %+v", r.opts)
	}
}
