// Package dynamostore keeps todos in a DynamoDB table, one item per todo,
// scoped by owner. Live queries are served by polling the owner's items and
// publishing a snapshot whenever they change.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idilsaglam/cloudtodo/internal/model"
	"github.com/idilsaglam/cloudtodo/internal/store"
)

// API is the subset of the DynamoDB client used here.
type API interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ddbTodo is the table item layout.
type ddbTodo struct {
	ID        string `dynamodbav:"id"`
	Owner     string `dynamodbav:"owner"`
	Content   string `dynamodbav:"content"`
	CreatedAt string `dynamodbav:"createdAt"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

// Backend creates per-owner collections sharing one client.
type Backend struct {
	client       API
	table        string
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewBackend(client API, table string, pollInterval time.Duration, logger *zap.Logger) *Backend {
	return &Backend{client: client, table: table, pollInterval: pollInterval, logger: logger}
}

func (b *Backend) For(owner string) (store.Collection, error) {
	if owner == "" {
		return nil, errors.New("dynamostore: owner is required")
	}
	return &Collection{
		client:       b.client,
		table:        b.table,
		owner:        owner,
		pollInterval: b.pollInterval,
		logger:       b.logger.With(zap.String("owner", owner)),
		now:          time.Now,
		subs:         make(map[chan struct{}]struct{}),
	}, nil
}

// Collection is one owner's todos.
type Collection struct {
	client       API
	table        string
	owner        string
	pollInterval time.Duration
	logger       *zap.Logger
	now          func() time.Time

	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// List scans the owner's items, oldest first.
func (c *Collection) List(ctx context.Context) (model.Snapshot, error) {
	filt := expression.Name("owner").Equal(expression.Value(c.owner))
	expr, err := expression.NewBuilder().WithFilter(filt).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var rows []ddbTodo
	var startKey map[string]types.AttributeValue
	for {
		out, err := c.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(c.table),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
			ConsistentRead:            aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan todos: %w", err)
		}
		var page []ddbTodo
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal todos: %w", err)
		}
		rows = append(rows, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CreatedAt != rows[j].CreatedAt {
			return rows[i].CreatedAt < rows[j].CreatedAt
		}
		return rows[i].ID < rows[j].ID
	})

	items := make(model.Snapshot, 0, len(rows))
	for _, r := range rows {
		createdAt, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
		items = append(items, model.Item{ID: r.ID, Content: r.Content, CreatedAt: createdAt})
	}
	return items, nil
}

func (c *Collection) Create(ctx context.Context, content string) (model.Item, error) {
	now := c.now().UTC()
	row := ddbTodo{
		ID:        uuid.NewString(),
		Owner:     c.owner,
		Content:   content,
		CreatedAt: now.Format(time.RFC3339Nano),
		UpdatedAt: now.Format(time.RFC3339Nano),
	}
	av, err := attributevalue.MarshalMap(row)
	if err != nil {
		return model.Item{}, fmt.Errorf("failed to marshal todo: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("id").AttributeNotExists()).
		Build()
	if err != nil {
		return model.Item{}, fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(c.table),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return model.Item{}, fmt.Errorf("failed to put todo: %w", err)
	}

	c.logger.Debug("todo created", zap.String("id", row.ID))
	c.nudge()
	return model.Item{ID: row.ID, Content: content, CreatedAt: now}, nil
}

// Delete removes id if it belongs to the owner; otherwise store.ErrNotFound.
func (c *Collection) Delete(ctx context.Context, id string) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("owner").Equal(expression.Value(c.owner))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	c.logger.Debug("todo deleted", zap.String("id", id))
	c.nudge()
	return nil
}

// Subscribe publishes the first snapshot right away, then polls.
func (c *Collection) Subscribe(ctx context.Context) (store.Subscription, error) {
	poke := make(chan struct{}, 1)
	c.mu.Lock()
	c.subs[poke] = struct{}{}
	c.mu.Unlock()

	feed := store.NewFeed(func() {
		c.mu.Lock()
		delete(c.subs, poke)
		c.mu.Unlock()
	})
	go c.poll(ctx, feed, poke)
	return feed, nil
}

func (c *Collection) poll(ctx context.Context, feed *store.Feed, poke <-chan struct{}) {
	defer feed.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-feed.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	var last model.Snapshot
	first := true
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		items, err := c.List(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			c.logger.Warn("poll failed", zap.Error(err))
			feed.Publish(store.Update{Err: err})
		case first || !items.Equal(last):
			first = false
			last = items
			feed.Publish(store.Update{Items: items.Clone()})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-poke:
		}
	}
}

func (c *Collection) nudge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for poke := range c.subs {
		select {
		case poke <- struct{}{}:
		default:
		}
	}
}
