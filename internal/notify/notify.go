// Package notify delivers order events to Google Pub/Sub or to the log.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"sales-ledger/internal/core"
)

// PubSubNotifier publishes each event as a JSON message with the event type as an attribute.
type PubSubNotifier struct {
	client  *pubsub.Client
	topic   *pubsub.Topic
	timeout time.Duration
}

// NewPubSubNotifier connects to projectID. It uses Application Default Credentials
// unless credentialsJSON is provided.
func NewPubSubNotifier(ctx context.Context, projectID, topic, credentialsJSON string) (*PubSubNotifier, error) {
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	if topic == "" {
		return nil, errors.New("PUBSUB_TOPIC is required")
	}

	var (
		c   *pubsub.Client
		err error
	)
	if credentialsJSON != "" {
		c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credentialsJSON)))
	} else {
		c, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &PubSubNotifier{client: c, topic: c.Topic(topic), timeout: 10 * time.Second}, nil
}

func (n *PubSubNotifier) Notify(ctx context.Context, evt core.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	res := n.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": string(evt.Type),
			"order_id":   evt.OrderID.String(),
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", evt.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (n *PubSubNotifier) Close() error {
	n.topic.Stop()
	return n.client.Close()
}

// LogNotifier writes events to the structured log. It is used when Pub/Sub is not configured.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, evt core.Event) error {
	fields := logrus.Fields{
		"event":    evt.Type,
		"order_id": evt.OrderID,
		"agent_id": evt.AgentID,
	}
	if evt.Reason != "" {
		fields["reason"] = evt.Reason
	}
	n.log.WithFields(fields).Info("order event")
	return nil
}
