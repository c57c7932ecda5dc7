package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gradebox/internal/common/mq"
	"gradebox/internal/grader/model"
	appErr "gradebox/pkg/errors"
)

// StatusEventPublisher publishes terminal job events for async consumers
// (gradebook sync, notifications).
type StatusEventPublisher interface {
	PublishFinalStatus(ctx context.Context, status model.JobStatus) error
}

// MQStatusEventPublisher publishes job events to a message queue.
type MQStatusEventPublisher struct {
	queue mq.Producer
	topic string
}

// NewMQStatusEventPublisher creates a new MQ status event publisher.
func NewMQStatusEventPublisher(queue mq.Producer, topic string) *MQStatusEventPublisher {
	return &MQStatusEventPublisher{queue: queue, topic: topic}
}

// PublishFinalStatus publishes a final status event.
func (p *MQStatusEventPublisher) PublishFinalStatus(ctx context.Context, status model.JobStatus) error {
	if p == nil || p.queue == nil {
		return appErr.New(appErr.EventPublishFailed).WithMessage("event publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("event topic is required")
	}
	if status.JobID == "" {
		return appErr.ValidationError("job_id", "required")
	}
	event := model.StatusEvent{
		Type:      model.StatusEventFinal,
		Status:    status,
		CreatedAt: time.Now().Unix(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = status.JobID
	// Consumers route on the header without decoding the payload.
	message.SetHeader("eventType", model.StatusEventFinal)
	if err := p.queue.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.EventPublishFailed, "publish status event failed")
	}
	return nil
}
