package pubsub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const project = "news-crawler-test"

func newTestClient(t *testing.T) *pubsub.Client {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	client, err := pubsub.NewClient(context.Background(), project, option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublishAndReceiveRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)
	topic := "projects/" + project + "/topics/article-index"
	sub := "projects/" + project + "/subscriptions/indexer"
	_, err := client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topic})
	require.NoError(t, err)
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{Name: sub, Topic: topic})
	require.NoError(t, err)

	pub := New(client)
	defer pub.Stop()
	id, err := pub.Publish(ctx, topic, map[string]string{"article_id": "a-1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var (
		mu  sync.Mutex
		got []string
	)
	err = NewSubscriber(client, sub).Receive(recvCtx, func(_ context.Context, data []byte) error {
		var payload map[string]string
		require.NoError(t, json.Unmarshal(data, &payload))
		mu.Lock()
		got = append(got, payload["article_id"])
		mu.Unlock()
		cancel()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a-1"}, got)
}

func TestPublishWithoutClient(t *testing.T) {
	t.Parallel()

	_, err := (&Publisher{}).Publish(context.Background(), "t", "x")
	require.EqualError(t, err, "pubsub client is not configured")
}

func TestCarrier(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{}
	c.Set("traceparent", "00-abc-def-01")
	require.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	require.Equal(t, []string{"traceparent"}, c.Keys())
	require.Empty(t, c.Get("missing"))
}
