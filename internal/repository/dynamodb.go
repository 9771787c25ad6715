package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"store-assistant/internal/domain"
)

const skDraft = "DRAFT#"

// dynamodbAPI is the minimal DynamoDB interface required by dynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// dynamoStore keeps one item per session. The table's TTL attribute is
// "ttl"; because DynamoDB expiry is lazy, Load also ignores stale items.
type dynamoStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func (s *dynamoStore) itemKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: skDraft},
	}
}

func (s *dynamoStore) Load(ctx context.Context, sessionID string) (*domain.Draft, error) {
	if err := requireSession("load", sessionID); err != nil {
		return nil, err
	}
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.itemKey(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	expires, err := int64Attr(out.Item, "ttl")
	if err != nil {
		return nil, fmt.Errorf("repository: Load decode ttl: %w", err)
	}
	if s.now().Unix() >= expires {
		return nil, nil
	}
	raw, err := strAttr(out.Item, "draft")
	if err != nil {
		return nil, fmt.Errorf("repository: Load decode draft: %w", err)
	}
	var d domain.Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("repository: Load unmarshal draft: %w", err)
	}
	return &d, nil
}

func (s *dynamoStore) Save(ctx context.Context, draft domain.Draft) error {
	if err := requireSession("save", draft.SessionID); err != nil {
		return err
	}
	body, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("repository: Save marshal draft: %w", err)
	}
	item := s.itemKey(draft.SessionID)
	item["sessionId"] = &types.AttributeValueMemberS{Value: draft.SessionID}
	item["state"] = &types.AttributeValueMemberS{Value: string(draft.State)}
	item["draft"] = &types.AttributeValueMemberS{Value: string(body)}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10)}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: Save: %w", err)
	}
	return nil
}

func (s *dynamoStore) Delete(ctx context.Context, sessionID string) error {
	if err := requireSession("delete", sessionID); err != nil {
		return err
	}
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.itemKey(sessionID),
	})
	if err != nil {
		return fmt.Errorf("repository: Delete: %w", err)
	}
	return nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
