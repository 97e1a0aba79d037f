package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.agent/internal/config"
)

func TestNewDefaultsToInMemoryWhenDisabled(t *testing.T) {
	pub, err := New(config.MessagingConfig{Enabled: false}, nil)
	require.NoError(t, err)
	_, ok := pub.(*InMemoryPublisher)
	assert.True(t, ok)
}

func TestInMemoryPublisherInvokesHandlerSynchronously(t *testing.T) {
	var received IngestJob
	pub := NewInMemoryPublisher(func(job IngestJob) { received = job })

	err := pub.Publish(context.Background(), IngestJob{SessionID: "s1", DocID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", received.SessionID)
	assert.Equal(t, "d1", received.DocID)
}

func TestInMemoryPublisherNoHandlerIsNoOp(t *testing.T) {
	pub := NewInMemoryPublisher(nil)
	require.NoError(t, pub.Publish(context.Background(), IngestJob{SessionID: "s1"}))
	require.NoError(t, pub.Close())
}

func TestNewKafkaPublisherRequiresBroker(t *testing.T) {
	_, err := NewKafkaPublisher(config.MessagingConfig{Topic: "kb"}, nil)
	require.Error(t, err)
}

func TestNewRabbitMQPublisherRequiresBroker(t *testing.T) {
	_, err := NewRabbitMQPublisher(config.MessagingConfig{Topic: "kb"}, nil)
	require.Error(t, err)
}
