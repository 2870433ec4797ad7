package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table run ledger.
const (
	pkPrefix     = "RUN#"
	skMeta       = "META"
	skCheckpoint = "CHECKPOINT"
)

// DynamoAPI is the subset of the DynamoDB client used by the ledger.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoLedger records run metadata and checkpoints in DynamoDB so progress
// is visible outside the machine running the pipeline.
type DynamoLedger struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// Compile-time interface check.
var _ CheckpointSink = (*DynamoLedger)(nil)

// NewDynamoLedger creates a ledger for the given table.
func NewDynamoLedger(client DynamoAPI, tableName string) *DynamoLedger {
	return &DynamoLedger{client: client, tableName: tableName, now: time.Now}
}

func runPK(runID string) string {
	return pkPrefix + runID
}

// PutRun writes (or overwrites) the META record for a run.
func (l *DynamoLedger) PutRun(ctx context.Context, rec *RunRecord) error {
	if err := l.putItem(ctx, runPK(rec.RunID), skMeta, rec); err != nil {
		return err
	}
	log.Debug().Str("runId", rec.RunID).Str("status", rec.Status).Msg("Run record written")
	return nil
}

// GetRun reads the META record; returns (nil, nil) if the run is unknown.
func (l *DynamoLedger) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var rec RunRecord
	found, err := l.getItem(ctx, runPK(runID), skMeta, &rec)
	if err != nil || !found {
		return nil, err
	}
	rec.RunID = runID
	return &rec, nil
}

// PutCheckpoint overwrites the CHECKPOINT record for a run.
func (l *DynamoLedger) PutCheckpoint(ctx context.Context, runID string, cp *Checkpoint) error {
	return l.putItem(ctx, runPK(runID), skCheckpoint, cp)
}

// GetCheckpoint reads the CHECKPOINT record; returns (nil, nil) if absent.
func (l *DynamoLedger) GetCheckpoint(ctx context.Context, runID string) (*Checkpoint, error) {
	var cp Checkpoint
	found, err := l.getItem(ctx, runPK(runID), skCheckpoint, &cp)
	if err != nil || !found {
		return nil, err
	}
	return &cp, nil
}

// putItem marshals a record and writes it with PK, SK and TTL attributes.
func (l *DynamoLedger) putItem(ctx context.Context, pk, sk string, data any) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(l.now().Add(RunTTL).Unix(), 10)}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &l.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads one record. Returns false if it does not exist.
func (l *DynamoLedger) getItem(ctx context.Context, pk, sk string, out any) (bool, error) {
	result, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &l.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}
