package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/models"
)

// Subscriber consumes the execution event stream published by Store.
type Subscriber struct {
	client *redis.Client
	log    *logrus.Logger
}

func NewSubscriber(client *redis.Client, log *logrus.Logger) *Subscriber {
	if log == nil {
		log = logrus.New()
	}
	return &Subscriber{client: client, log: log}
}

// SubscribeExecutions invokes handler for every published execution record
// until the context is cancelled.
func (s *Subscriber) SubscribeExecutions(ctx context.Context, handler func(*models.ExecutionRecord)) error {
	pubsub := s.client.Subscribe(ctx, executionsChannel)
	defer pubsub.Close()

	s.log.WithField("channel", executionsChannel).Info("subscribed to execution events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var rec models.ExecutionRecord
			if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
				s.log.WithError(err).Warn("dropping malformed execution event")
				continue
			}
			handler(&rec)
		}
	}
}
