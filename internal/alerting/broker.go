// Package alerting fans vital alerts out to external channels.
package alerting

import (
	"context"

	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/pkg/messaging"
)

const EventVitalAlert = "vital.alert"

type BrokerSink struct {
	pub messaging.Publisher
}

func NewBrokerSink(pub messaging.Publisher) *BrokerSink {
	return &BrokerSink{pub: pub}
}

func (s *BrokerSink) Publish(ctx context.Context, a model.VitalAlert) error {
	return s.pub.Publish(ctx, EventVitalAlert, a)
}
