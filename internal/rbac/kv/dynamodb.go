package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxBatchSize is DynamoDB's hard limit on items per BatchWriteItem call.
const MaxBatchSize = 25

// DynamoDB is an Adapter backed by a real DynamoDB-class table. It normalizes
// AWS SDK errors into the Kind taxonomy and drains BatchWriteItem's
// UnprocessedItems with exponential backoff, the way
// BatchDeleteOrchestrator.executeChunkWithRetry does for delete-only
// batches -- generalized here to mixed put/delete batches.
type DynamoDB struct {
	client      *dynamodb.Client
	table       string
	log         *zap.Logger
	batchSize   int
	retryBudget time.Duration
}

// NewDynamoDB wraps client for table. log may be nil, in which case a no-op
// logger is used; batchSize is clamped to (0, MaxBatchSize]. Construction
// and credentials are the caller's responsibility.
func NewDynamoDB(client *dynamodb.Client, table string, log *zap.Logger, batchSize int, retryBudget time.Duration) *DynamoDB {
	if log == nil {
		log = zap.NewNop()
	}
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	if retryBudget <= 0 {
		retryBudget = 30 * time.Second
	}
	return &DynamoDB{client: client, table: table, log: log, batchSize: batchSize, retryBudget: retryBudget}
}

// withFreshETag backfills an eTag when the caller didn't stamp one, the
// same fallback Memory applies, so every row written through either
// adapter carries a version token.
func withFreshETag(item Item) Item {
	if asString(item["eTag"]) != "" {
		return item
	}
	out := make(Item, len(item)+1)
	for k, v := range item {
		out[k] = v
	}
	out["eTag"] = uuid.NewString()
	return out
}

func (d *DynamoDB) Put(ctx context.Context, item Item, precondition Precondition) error {
	item = withFreshETag(item)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return newError(KindInternal, "Put", rowKey(item), err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	}
	applyPutPrecondition(input, precondition)

	_, err = d.client.PutItem(ctx, input)
	return classify(err, "Put", rowKey(item))
}

func (d *DynamoDB) Get(ctx context.Context, key Key) (Item, error) {
	keyAV, err := attributevalue.MarshalMap(map[string]any{
		"entityName":  key.EntityName,
		"subjectName": key.SubjectName,
	})
	if err != nil {
		return nil, newError(KindInternal, "Get", key, err)
	}

	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            keyAV,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify(err, "Get", key)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item Item
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, newError(KindInternal, "Get", key, err)
	}
	return item, nil
}

func (d *DynamoDB) Delete(ctx context.Context, key Key, precondition Precondition) error {
	keyAV, err := attributevalue.MarshalMap(map[string]any{
		"entityName":  key.EntityName,
		"subjectName": key.SubjectName,
	})
	if err != nil {
		return newError(KindInternal, "Delete", key, err)
	}

	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       keyAV,
	}
	applyDeletePrecondition(input, precondition)

	_, err = d.client.DeleteItem(ctx, input)
	return classify(err, "Delete", key)
}

// BatchWrite chunks ops into configured batch-size groups and, for each
// chunk, issues BatchWriteItem and keeps resubmitting UnprocessedItems with
// exponential backoff until the chunk drains or the retry budget runs out --
// the same chunk-then-drain shape as ExecuteBatchDelete/executeChunkWithRetry,
// widened to mixed put/delete requests.
func (d *DynamoDB) BatchWrite(ctx context.Context, ops []WriteOp) error {
	for start := 0; start < len(ops); start += d.batchSize {
		end := start + d.batchSize
		if end > len(ops) {
			end = len(ops)
		}
		chunk := ops[start:end]
		if err := d.writeChunkWithRetry(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (d *DynamoDB) writeChunkWithRetry(ctx context.Context, chunk []WriteOp) error {
	reqs, err := toWriteRequests(chunk)
	if err != nil {
		return newError(KindInternal, "BatchWrite", Key{}, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = d.retryBudget
	boCtx := backoff.WithContext(bo, ctx)

	pending := map[string][]ddbtypes.WriteRequest{d.table: reqs}
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			d.log.Warn("batch write failed", zap.Int("attempt", attempt), zap.Error(err))
			return classifyRetryable(err)
		}
		if len(out.UnprocessedItems) == 0 {
			return nil
		}
		d.log.Info("batch write draining unprocessed items",
			zap.Int("attempt", attempt),
			zap.Int("unprocessed", len(out.UnprocessedItems[d.table])))
		pending = out.UnprocessedItems
		return errUnprocessed
	}, boCtx)
	if err == nil {
		return nil
	}
	if _, classified := AsKind(err); classified {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindCancelled, "BatchWrite", Key{}, err)
	}
	// Retry budget exhausted on throttling or unprocessed items.
	return newError(KindUnavailable, "BatchWrite", Key{}, err)
}

var errUnprocessed = errors.New("unprocessed items remain")

func (d *DynamoDB) Query(ctx context.Context, in QueryInput) ([]Item, error) {
	expr := "entityName = :en"
	values := map[string]any{":en": in.EntityName}
	if in.SubjectNameBegin != "" {
		expr += " AND begins_with(subjectName, :sn)"
		values[":sn"] = in.SubjectNameBegin
	}
	valuesAV, err := attributevalue.MarshalMap(values)
	if err != nil {
		return nil, newError(KindInternal, "Query", Key{}, err)
	}

	var items []Item
	var startKey map[string]ddbtypes.AttributeValue
	for {
		out, err := d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(d.table),
			KeyConditionExpression:    aws.String(expr),
			ExpressionAttributeValues: valuesAV,
			ConsistentRead:            aws.Bool(true),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, classify(err, "Query", Key{EntityName: in.EntityName})
		}
		page, err := unmarshalItems(out.Items)
		if err != nil {
			return nil, newError(KindInternal, "Query", Key{}, err)
		}
		items = append(items, page...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return items, nil
}

func (d *DynamoDB) Scan(ctx context.Context, in ScanInput) ([]Item, error) {
	expr := "begins_with(subjectName, :prefix)"
	valuesAV, err := attributevalue.MarshalMap(map[string]any{":prefix": in.Prefix})
	if err != nil {
		return nil, newError(KindInternal, "Scan", Key{}, err)
	}

	var items []Item
	var startKey map[string]ddbtypes.AttributeValue
	for {
		out, err := d.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(d.table),
			FilterExpression:          aws.String(expr),
			ExpressionAttributeValues: valuesAV,
			ConsistentRead:            aws.Bool(true),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, classify(err, "Scan", Key{})
		}
		page, err := unmarshalItems(out.Items)
		if err != nil {
			return nil, newError(KindInternal, "Scan", Key{}, err)
		}
		items = append(items, page...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return items, nil
}

func unmarshalItems(raw []map[string]ddbtypes.AttributeValue) ([]Item, error) {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		var item Item
		if err := attributevalue.UnmarshalMap(r, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func toWriteRequests(ops []WriteOp) ([]ddbtypes.WriteRequest, error) {
	reqs := make([]ddbtypes.WriteRequest, 0, len(ops))
	for _, op := range ops {
		switch {
		case op.Put != nil:
			av, err := attributevalue.MarshalMap(withFreshETag(op.Put))
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, ddbtypes.WriteRequest{PutRequest: &ddbtypes.PutRequest{Item: av}})
		case op.Delete != nil:
			av, err := attributevalue.MarshalMap(map[string]any{
				"entityName":  op.Delete.EntityName,
				"subjectName": op.Delete.SubjectName,
			})
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, ddbtypes.WriteRequest{DeleteRequest: &ddbtypes.DeleteRequest{Key: av}})
		}
	}
	return reqs, nil
}

func applyPutPrecondition(input *dynamodb.PutItemInput, p Precondition) {
	switch p.Mode {
	case PreconditionNotExists:
		input.ConditionExpression = aws.String("attribute_not_exists(entityName)")
	case PreconditionETagEquals:
		input.ConditionExpression = aws.String("eTag = :expectedETag")
		av, _ := attributevalue.Marshal(p.ETag)
		input.ExpressionAttributeValues = map[string]ddbtypes.AttributeValue{":expectedETag": av}
	}
}

func applyDeletePrecondition(input *dynamodb.DeleteItemInput, p Precondition) {
	switch p.Mode {
	case PreconditionNotExists:
		input.ConditionExpression = aws.String("attribute_not_exists(entityName)")
	case PreconditionETagEquals:
		input.ConditionExpression = aws.String("eTag = :expectedETag")
		av, _ := attributevalue.Marshal(p.ETag)
		input.ExpressionAttributeValues = map[string]ddbtypes.AttributeValue{":expectedETag": av}
	}
}

// classify maps an AWS SDK error into the adapter's Kind taxonomy.
func classify(err error, op string, key Key) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindCancelled, op, key, err)
	}

	var condFailed *ddbtypes.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return newError(KindPreconditionFailed, op, key, err)
	}
	var throttled *ddbtypes.ProvisionedThroughputExceededException
	if errors.As(err, &throttled) {
		return newError(KindThrottled, op, key, err)
	}
	var notFoundTable *ddbtypes.ResourceNotFoundException
	if errors.As(err, &notFoundTable) {
		return newError(KindNotFound, op, key, err)
	}
	var internalServer *ddbtypes.InternalServerError
	if errors.As(err, &internalServer) {
		return newError(KindUnavailable, op, key, err)
	}
	return newError(KindInternal, op, key, err)
}

// classifyRetryable decides whether backoff.Retry should keep retrying
// (throttling and 5xx errors are returned as-is) or stop (any other error is
// classified and wrapped in backoff.Permanent).
func classifyRetryable(err error) error {
	var throttled *ddbtypes.ProvisionedThroughputExceededException
	if errors.As(err, &throttled) {
		return err // transient, keep retrying
	}
	var internalServer *ddbtypes.InternalServerError
	if errors.As(err, &internalServer) {
		return err // transient, keep retrying
	}
	return backoff.Permanent(classify(fmt.Errorf("batch write: %w", err), "BatchWrite", Key{}))
}
