package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConcurrentBackup is returned when another writer published a backup
// with the same generation number first.
var ErrConcurrentBackup = errors.New("concurrent backup detected")

// DDBClient is the subset of the DynamoDB API the pointer store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBPointerStore tracks which backup generation under an S3 prefix is the
// latest, using DynamoDB conditional writes for the compare-and-swap that S3
// itself lacks. Multiple writers backing up to the same prefix coordinate
// through it without clobbering each other.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 bucket/prefix
//   - Sort key: generation (number) - monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name mailindex-backups \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=generation,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=generation,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBPointerStore struct {
	client    DDBClient
	tableName string
	baseURI   string
}

// NewDDBPointerStore creates a pointer store. baseURI identifies the backup
// location, in "s3://bucket/prefix" form.
func NewDDBPointerStore(client DDBClient, tableName, baseURI string) *DDBPointerStore {
	return &DDBPointerStore{
		client:    client,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Latest returns the newest published generation and the backup prefix it
// points at. A zero generation means no backup was published yet.
func (s *DDBPointerStore) Latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query backup pointer: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	genAttr, ok := item["generation"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid generation attribute")
	}
	prefixAttr, ok := item["backup_prefix"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid backup_prefix attribute")
	}

	var generation uint64
	if _, err := fmt.Sscanf(genAttr.Value, "%d", &generation); err != nil {
		return 0, "", fmt.Errorf("parse generation: %w", err)
	}

	return generation, prefixAttr.Value, nil
}

// Publish makes backupPrefix the latest generation. The conditional write
// fails with ErrConcurrentBackup when another writer claimed the next
// generation first; the caller should re-run the backup.
func (s *DDBPointerStore) Publish(ctx context.Context, backupPrefix string) (uint64, error) {
	current, _, err := s.Latest(ctx)
	if err != nil {
		return 0, err
	}

	next := current + 1

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: s.baseURI},
			"generation":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", next)},
			"backup_prefix": &types.AttributeValueMemberS{Value: backupPrefix},
		},
		ConditionExpression: aws.String("attribute_not_exists(generation)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentBackup
		}
		return 0, fmt.Errorf("publish backup pointer: %w", err)
	}

	return next, nil
}
