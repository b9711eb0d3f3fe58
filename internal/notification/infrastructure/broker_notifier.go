package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/nestly/internal/notification/application"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/eventbus"
)

// RoutingKeyPrefix prefixes the routing key of every notification message,
// followed by its kind.
const RoutingKeyPrefix = "notification."

// BrokerNotifier hands notifications to a delivery service over the message
// broker (RabbitMQ or Kafka).
type BrokerNotifier struct {
	publisher eventbus.Publisher
}

// NewBrokerNotifier creates a BrokerNotifier.
func NewBrokerNotifier(publisher eventbus.Publisher) *BrokerNotifier {
	return &BrokerNotifier{publisher: publisher}
}

func (n *BrokerNotifier) Notify(ctx context.Context, msg application.Notification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.publisher.Publish(ctx, RoutingKeyPrefix+string(msg.Kind), body); err != nil {
		return fmt.Errorf("publish notification %s: %w", msg.ID, err)
	}
	return nil
}
