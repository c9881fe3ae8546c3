package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startContainer runs a throwaway container exposing a single port and
// returns its endpoint
func startContainer(t *testing.T, req testcontainers.ContainerRequest, port, scheme string) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	req.ExposedPorts = []string{port}
	req.Labels = map[string]string{
		"test":      "club-ledger-infrastructure",
		"test-name": t.Name(),
		"cleanup":   "auto",
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, scheme)
	require.NoError(t, err)
	return endpoint
}

func TestRedisIdempotencyStore(t *testing.T) {
	endpoint := startContainer(t, testcontainers.ContainerRequest{
		Image:      "redis:7-alpine",
		WaitingFor: wait.ForLog("Ready to accept connections"),
	}, "6379/tcp", "")
	ctx := context.Background()

	client, err := NewRedis(ctx, "redis://"+endpoint+"/0")
	require.NoError(t, err)
	defer client.Close()
	store := NewRedisIdempotencyStore(client, time.Minute)

	stored, err := store.Begin(ctx, "acc-1:submit:k1")
	require.NoError(t, err)
	assert.Nil(t, stored, "first use claims the key")

	_, err = store.Begin(ctx, "acc-1:submit:k1")
	assert.ErrorIs(t, err, ErrIdempotencyInFlight)

	body := json.RawMessage(`{"data":{"id":"tx-1"}}`)
	require.NoError(t, store.Complete(ctx, "acc-1:submit:k1", StoredResponse{Status: 201, Body: body}))

	stored, err = store.Begin(ctx, "acc-1:submit:k1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 201, stored.Status)
	assert.JSONEq(t, string(body), string(stored.Body))

	// A released key can be claimed again
	_, err = store.Begin(ctx, "acc-1:submit:k2")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "acc-1:submit:k2"))
	stored, err = store.Begin(ctx, "acc-1:submit:k2")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestNewRedis_EmptyURLDisables(t *testing.T) {
	client, err := NewRedis(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestS3ReceiptStore(t *testing.T) {
	endpoint := startContainer(t, testcontainers.ContainerRequest{
		Image: "minio/minio:latest",
		Cmd:   []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	}, "9000/tcp", "http")
	ctx := context.Background()

	store, err := NewS3ReceiptStore(ctx, S3Config{
		Endpoint:  endpoint,
		Region:    "us-east-1",
		Bucket:    "receipts-test",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)
	require.NoError(t, store.EnsureBucket(ctx))
	require.NoError(t, store.EnsureBucket(ctx), "second call finds the bucket")

	key := "receipts/acc-1/receipt.png"
	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	content := []byte("\x89PNG receipt")
	require.NoError(t, store.Put(ctx, key, "image/png", bytes.NewReader(content), int64(len(content))))

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	url, err := store.PresignGet(ctx, key, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, endpoint+"/receipts-test/"+key), url)
	assert.Contains(t, url, "X-Amz-Expires=300")
}

func TestNewS3ReceiptStore_RequiresBucket(t *testing.T) {
	_, err := NewS3ReceiptStore(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestNATSClient_PublishesToLedgerStream(t *testing.T) {
	endpoint := startContainer(t, testcontainers.ContainerRequest{
		Image:      "nats:2.10-alpine",
		Cmd:        []string{"-js"},
		WaitingFor: wait.ForLog("Server is ready"),
	}, "4222/tcp", "nats")
	ctx := context.Background()

	client := NewNATSClient(endpoint)
	require.NoError(t, client.Connect(ctx))
	defer client.Close()
	assert.True(t, client.IsConnected())

	mapper := NewEventSubjectMapper()
	require.NoError(t, client.EnsureStream(LedgerEventStream, mapper.GetAllSubjects()))
	require.NoError(t, client.EnsureStream(LedgerEventStream, mapper.GetAllSubjects()))

	bridge := NewNATSEventBridge(client, mapper)
	require.NoError(t, bridge.Forward(ctx, balanceChanged()))

	info, err := client.js.StreamInfo(LedgerEventStream)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs)
}

func TestNATSClient_PublishWithoutConnection(t *testing.T) {
	client := NewNATSClient("nats://127.0.0.1:1")
	err := client.Publish(context.Background(), "ledger.balance_changed", []byte("{}"))
	assert.Error(t, err)
	assert.False(t, client.IsConnected())
	assert.NoError(t, client.Close())
}
