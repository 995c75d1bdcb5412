package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestSubscriptionNamesSkipsBlank(t *testing.T) {
	names := subscriptionNames(config.PubSubConfig{
		NotificationSubscription: " order-notifications ",
		AnalyticsSubscription:    "",
	})
	assert.Equal(t, []string{"order-notifications"}, names)
	assert.Empty(t, subscriptionNames(config.PubSubConfig{}))
}

func TestResourceName(t *testing.T) {
	c := &Client{projectID: "shop-prod"}

	cases := []struct {
		kind resourceKind
		in   string
		want string
	}{
		{kindTopic, "orders", "projects/shop-prod/topics/orders"},
		{kindTopic, "projects/other/topics/orders", "projects/other/topics/orders"},
		{kindSubscription, " notify ", "projects/shop-prod/subscriptions/notify"},
		{kindSubscription, "projects/other/topics/notify", "projects/shop-prod/subscriptions/projects/other/topics/notify"},
		{kindSubscription, "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.resourceName(tc.kind, tc.in), tc.in)
	}

	assert.Equal(t, "", (&Client{}).resourceName(kindTopic, "orders"))
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("orders"))
	assert.Nil(t, c.Subscriber("notify"))
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
}

func TestClientOptions(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/creds.json"}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{}))
}

func TestDescribeLookup(t *testing.T) {
	assert.NoError(t, describeLookup("topic", "orders", nil))

	err := describeLookup("subscription", "notify", status.Error(codes.NotFound, "gone"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `subscription "notify" does not exist`)

	cause := status.Error(codes.PermissionDenied, "nope")
	err = describeLookup("topic", "orders", cause)
	assert.ErrorIs(t, err, cause)
}
