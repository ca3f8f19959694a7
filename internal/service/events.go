package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediscommon "github.com/GreaLake/checkIn/common/redis"
	"github.com/GreaLake/checkIn/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 状态变更事件类型
const (
	EventCheckedIn  = "checked_in"
	EventCheckedOut = "checked_out"
	EventApproved   = "approved"
	EventRejected   = "rejected"
)

// DefaultEventStream 事件 stream 名
const DefaultEventStream = "checkin:events"

// Event 一次成功的状态变更
type Event struct {
	Type          string               `json:"event"`
	EntryID       string               `json:"entry_id"`
	WorkerID      string               `json:"worker_id"`
	ActivityType  domain.ActivityType  `json:"activity_type"`
	ApprovalState domain.ApprovalState `json:"approval_state,omitempty"`
	At            time.Time            `json:"at"`
}

func newEvent(typ string, e *domain.CheckEntry, at time.Time) Event {
	return Event{
		Type:          typ,
		EntryID:       e.EntryID,
		WorkerID:      e.WorkerID,
		ActivityType:  e.ActivityType,
		ApprovalState: e.ApprovalState,
		At:            at,
	}
}

// EventPublisher 事件发布（尽力而为，失败由调用方记录日志）
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher 不发布
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// StreamPublisher 发布到 Redis Streams
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	if stream == "" {
		stream = DefaultEventStream
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, ev Event) error {
	if _, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, ev, p.maxLen); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	return nil
}

// mqttPublisher common/mqtt.Client 的发布能力
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTPublisher 发布到 MQTT：{prefix}/{worker_id}/{event}
type MQTTPublisher struct {
	client mqttPublisher
	prefix string
	qos    byte
}

func NewMQTTPublisher(client mqttPublisher, prefix string, qos byte) *MQTTPublisher {
	if prefix == "" {
		prefix = "checkin/events"
	}
	return &MQTTPublisher{client: client, prefix: prefix, qos: qos}
}

func (p *MQTTPublisher) Publish(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/%s", p.prefix, ev.WorkerID, ev.Type)
	return p.client.Publish(topic, p.qos, false, payload)
}

// MultiPublisher 依次发布到多个目标，返回第一个错误
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// publish 发布失败只记录日志，不影响已完成的变更
func publish(ctx context.Context, p EventPublisher, logger *zap.Logger, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.Warn("Failed to publish checkin event",
			zap.String("event", ev.Type),
			zap.String("entry_id", ev.EntryID),
			zap.Error(err),
		)
	}
}
