package repository

import (
	"context"
	"fmt"

	"GreyPulse/internal/domain/models"
	pkgkafka "GreyPulse/pkg/kafka"
)

// KafkaSpikePublisher emits spike events to the notification topic, keyed by
// IPO so all events for one listing land in order on one partition.
type KafkaSpikePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSpikePublisher(producer *pkgkafka.Producer, topic string) *KafkaSpikePublisher {
	if topic == "" {
		topic = "greypulse.spikes"
	}
	return &KafkaSpikePublisher{producer: producer, topic: topic}
}

func (p *KafkaSpikePublisher) Publish(ctx context.Context, ev *models.SpikeEvent) error {
	if ev == nil {
		return nil
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.IPOKey), ev); err != nil {
		return fmt.Errorf("publish spike %s: %w", ev.IPOKey, err)
	}
	return nil
}

func (p *KafkaSpikePublisher) Close() error {
	return p.producer.Close()
}
