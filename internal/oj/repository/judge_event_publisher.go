package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"codejudge/internal/common/mq"
	"codejudge/internal/oj/model"
	appErr "codejudge/pkg/errors"
)

// JudgeEventPublisher publishes judge outcomes for async consumers.
type JudgeEventPublisher interface {
	PublishJudgeEvent(ctx context.Context, event model.JudgeEvent) error
}

// MQJudgeEventPublisher publishes judge events to a message queue.
type MQJudgeEventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQJudgeEventPublisher creates a new MQ judge event publisher.
func NewMQJudgeEventPublisher(producer mq.Producer, topic string) *MQJudgeEventPublisher {
	return &MQJudgeEventPublisher{producer: producer, topic: topic}
}

func (p *MQJudgeEventPublisher) PublishJudgeEvent(ctx context.Context, event model.JudgeEvent) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("judge event publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("judge event topic is required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal judge event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = event.Problem + "-" + strconv.FormatInt(event.CreatedAt, 10)
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish judge event failed")
	}
	return nil
}

// NopJudgeEventPublisher drops every event.
type NopJudgeEventPublisher struct{}

func (NopJudgeEventPublisher) PublishJudgeEvent(context.Context, model.JudgeEvent) error {
	return nil
}
