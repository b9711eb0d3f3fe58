package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/nestly/internal/notification/application"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	routingKey string
	payload    []byte
	err        error
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	p.routingKey = routingKey
	p.payload = payload
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

func TestBrokerNotifier(t *testing.T) {
	pub := &capturePublisher{}
	n := NewBrokerNotifier(pub)
	msg := application.Notification{ID: uuid.New(), UserID: uuid.New(), Kind: application.KindBookingConfirmed, Subject: "Booking confirmed"}

	require.NoError(t, n.Notify(context.Background(), msg))
	assert.Equal(t, "notification.booking_confirmed", pub.routingKey)

	var decoded application.Notification
	require.NoError(t, json.Unmarshal(pub.payload, &decoded))
	assert.Equal(t, msg.UserID, decoded.UserID)

	pub.err = errors.New("broker down")
	assert.Error(t, n.Notify(context.Background(), msg))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(nil).Notify(context.Background(), application.Notification{Kind: application.KindBookingRequested}))
}
