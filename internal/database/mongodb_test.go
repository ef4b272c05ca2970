package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectMongoRejectsBadURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), "not-a-uri", time.Second)
	require.Error(t, err)
}

func TestWaitForMongoGivesUp(t *testing.T) {
	client, err := OpenMongo("mongodb://127.0.0.1:1")
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	start := time.Now()
	err = WaitForMongo(context.Background(), client, 100*time.Millisecond, 2, 10*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 2 attempts")
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestWaitForMongoHonoursCancel(t *testing.T) {
	client, err := OpenMongo("mongodb://127.0.0.1:1")
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = WaitForMongo(ctx, client, time.Second, 3, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenMongoIsLazy(t *testing.T) {
	// nothing listens here; Connect must still succeed without a server
	client, err := OpenMongo("mongodb://127.0.0.1:1")
	require.NoError(t, err)
	require.NoError(t, client.Disconnect(context.Background()))
}
