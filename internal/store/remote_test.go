package store

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type fakeS3 struct {
	objects map[string][]byte
	tagging string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	if in.Tagging != nil {
		f.tagging = *in.Tagging
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3MirrorRoundTrip(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	m, err := NewS3Mirror(fake, "bucket", "cache")
	if err != nil {
		t.Fatalf("NewS3Mirror: %v", err)
	}
	ctx := context.Background()
	payload := bytes.Repeat([]byte(`{"text":"hello world"}`), 50)

	if err := m.Put(ctx, "transcripts/abc.json", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}
	stored, ok := fake.objects["cache/transcripts/abc.json.zst"]
	if !ok {
		t.Fatalf("expected object at cache/transcripts/abc.json.zst, have %v", fake.objects)
	}
	if len(stored) >= len(payload) {
		t.Errorf("expected compressed object, got %d >= %d bytes", len(stored), len(payload))
	}
	if fake.tagging != "Project=transcript-insight" {
		t.Errorf("tagging = %q", fake.tagging)
	}

	got, err := m.Get(ctx, "transcripts/abc.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("round-tripped payload differs")
	}
}

func TestS3MirrorMissingKey(t *testing.T) {
	m, _ := NewS3Mirror(&fakeS3{objects: map[string][]byte{}}, "bucket", "cache")
	got, err := m.Get(context.Background(), "transcripts/none.json")
	if err != nil {
		t.Fatalf("expected nil error for missing key, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil data, got %q", got)
	}
}

func TestIsMissingObject(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", &s3types.NoSuchKey{}, true},
		{"generic not found", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"other", io.ErrUnexpectedEOF, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isMissingObject(tt.err); got != tt.want {
				t.Errorf("isMissingObject = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
}

func itemKey(item map[string]types.AttributeValue) string {
	pk := item["PK"].(*types.AttributeValueMemberS).Value
	sk := item["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func TestDynamoLedgerCheckpoint(t *testing.T) {
	fake := &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
	ledger := NewDynamoLedger(fake, "runs")
	ledger.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	ctx := context.Background()

	cp := &Checkpoint{CompletedCount: 1, CompletedIDs: []string{"a"}, Failed: []FailedItem{{Index: 1, ItemID: "b", Error: "boom"}}}
	if err := ledger.PutCheckpoint(ctx, "run-1", cp); err != nil {
		t.Fatalf("PutCheckpoint: %v", err)
	}

	item := fake.items["RUN#run-1|CHECKPOINT"]
	if item == nil {
		t.Fatal("expected CHECKPOINT item under RUN#run-1")
	}
	ttl := item["expiresAt"].(*types.AttributeValueMemberN).Value
	if ttl != "1702592000" {
		t.Errorf("expected expiresAt 1702592000, got %s", ttl)
	}

	got, err := ledger.GetCheckpoint(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	if got.CompletedCount != 1 || got.Failed[0].ItemID != "b" {
		t.Errorf("unexpected checkpoint: %+v", got)
	}
}

func TestDynamoLedgerRunRecord(t *testing.T) {
	fake := &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
	ledger := NewDynamoLedger(fake, "runs")
	ctx := context.Background()

	if rec, err := ledger.GetRun(ctx, "nope"); err != nil || rec != nil {
		t.Fatalf("expected (nil, nil) for unknown run, got %+v, %v", rec, err)
	}

	err := ledger.PutRun(ctx, &RunRecord{RunID: "run-2", Kind: "transcription", Status: RunStatusComplete, ItemCount: 3, Successful: 2, Failed: 1})
	if err != nil {
		t.Fatalf("PutRun: %v", err)
	}
	got, err := ledger.GetRun(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.RunID != "run-2" || got.Successful != 2 || got.Status != RunStatusComplete {
		t.Errorf("unexpected run record: %+v", got)
	}
}
