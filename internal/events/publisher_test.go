package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/nutrid/internal/nutrition"
	"github.com/fyrsmithlabs/nutrid/internal/tracking"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func connect(t *testing.T, srv *natsserver.Server) *nats.Conn {
	t.Helper()
	nc, err := Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestNewPublisher(t *testing.T) {
	srv := startTestNATSServer(t)
	nc := connect(t, srv)

	p, err := NewPublisher(nc, "")
	require.NoError(t, err)
	assert.Equal(t, "nutrid.tracking.food_added", p.Subject("food_added"))

	_, err = NewPublisher(nil, "x")
	assert.Error(t, err)

	for _, bad := range []string{"a..b", "a.*", "a.>", "has space", ".leading"} {
		_, err := NewPublisher(nc, bad)
		assert.True(t, errors.Is(err, ErrInvalidSubject), bad)
	}
}

func TestPublisher_PublishesTrackingEvents(t *testing.T) {
	srv := startTestNATSServer(t)
	nc := connect(t, srv)

	sub, err := nc.SubscribeSync("test.tracking.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	p, err := NewPublisher(nc, "test.tracking")
	require.NoError(t, err)

	store := tracking.NewStore(tracking.WithPublisher(p))
	ctx := context.Background()
	store.Initialize(ctx, "u1", "2024-01-01", nutrition.Targets{Calories: 500})
	_, err = store.AddFood(ctx, "u1", "2024-01-01", tracking.FoodEntry{
		Name:      "Rice",
		Portion:   50,
		Nutrients: nutrition.Nutrients{Calories: 65},
	})
	require.NoError(t, err)

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "test.tracking.initialized", msg.Subject)
	assert.Equal(t, "application/json", msg.Header.Get("Content-Type"))

	msg, err = sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "test.tracking.food_added", msg.Subject)

	var ev tracking.Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, tracking.EventFoodAdded, ev.Type)
	assert.Equal(t, "u1", ev.UserID)
	require.NotNil(t, ev.Entry)
	assert.Equal(t, "Rice", ev.Entry.Name)
	assert.Equal(t, 65.0, ev.Totals.Calories)
}

func TestPublisher_Errors(t *testing.T) {
	srv := startTestNATSServer(t)
	nc := connect(t, srv)

	p, err := NewPublisher(nc, "")
	require.NoError(t, err)

	err = p.Publish(context.Background(), "", struct{}{})
	assert.True(t, errors.Is(err, ErrInvalidSubject))

	err = p.Publish(context.Background(), "a.b", struct{}{})
	assert.True(t, errors.Is(err, ErrInvalidSubject))

	err = p.Publish(context.Background(), "bad", make(chan int))
	assert.ErrorContains(t, err, "marshal")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "initialized", struct{}{}), context.Canceled)
}

func TestPublisher_Close(t *testing.T) {
	srv := startTestNATSServer(t)
	nc := connect(t, srv)

	p, err := NewPublisher(nc, "")
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), "initialized", map[string]string{"user_id": "u1"}))

	require.NoError(t, p.Close())
	assert.Eventually(t, nc.IsClosed, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, p.Close())

	err = p.Publish(context.Background(), "initialized", struct{}{})
	assert.Error(t, err)
}
