package messaging

import (
	"context"

	"github.com/aegisfin/txmonitor/internal/aml"
)

// AlertPublisher adapts a Producer to the dispatcher's notification
// contract. Notifications are keyed by tenant so a tenant's alerts stay
// ordered on one partition.
type AlertPublisher struct {
	producer Producer
	topic    Topic
}

// NewAlertPublisher publishes alert notifications to the given topic; an
// empty topic uses the default.
func NewAlertPublisher(producer Producer, topic Topic) *AlertPublisher {
	if topic == "" {
		topic = TopicAlertsRaised
	}
	return &AlertPublisher{producer: producer, topic: topic}
}

// PublishAlert implements aml.NotificationPublisher.
func (p *AlertPublisher) PublishAlert(ctx context.Context, notification aml.AlertNotification) error {
	return p.producer.Publish(ctx, p.topic, notification.TenantID, notification)
}
