package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("GATEKEEPER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("GATEKEEPER_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })
	require.NoError(t, client.Ping(ctx, nil))

	s := NewMongoStore(client, "gatekeeper_test", "")
	require.NoError(t, s.EnsureIndexes(ctx))
	testIdentityStore(t, s)
}

func TestNewMongoStorePanicsOnNilClient(t *testing.T) {
	require.Panics(t, func() { NewMongoStore(nil, "", "") })
}
