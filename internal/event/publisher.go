// Package event はリマインダー通知作成イベントの発行を提供する。
// KAFKA_BROKERSが設定されている場合はKafkaへ発行し、
// 未設定の場合は何もしないNopPublisherを使用する。
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hitoshi/shaho/internal/model"
)

// DefaultTopic は通知作成イベントのデフォルトトピック名。
const DefaultTopic = "notification.created"

// NotificationCreated は通知作成イベントのメッセージ本文。
type NotificationCreated struct {
	NotificationID string                     `json:"notificationId"`
	UserID         string                     `json:"userId"`
	OrganizationID string                     `json:"organizationId"`
	ApplicationID  *string                    `json:"applicationId"`
	EmployeeID     *string                    `json:"employeeId"`
	Type           model.NotificationType     `json:"type"`
	Priority       model.NotificationPriority `json:"priority"`
	Title          string                     `json:"title"`
	CreatedAt      time.Time                  `json:"createdAt"`
}

// NewNotificationCreated は通知からイベント本文を生成する。
func NewNotificationCreated(n *model.Notification) NotificationCreated {
	return NotificationCreated{
		NotificationID: n.ID,
		UserID:         n.UserID,
		OrganizationID: n.OrganizationID,
		ApplicationID:  n.ApplicationID,
		EmployeeID:     n.EmployeeID,
		Type:           n.Type,
		Priority:       n.Priority,
		Title:          n.Title,
		CreatedAt:      n.CreatedAt,
	}
}

// Publisher は通知作成イベントを発行するインターフェース。
type Publisher interface {
	PublishNotificationCreated(ctx context.Context, n *model.Notification) error
	Close() error
}

// WriterInterface はテストのためにkafka.Writerを抽象化する。
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher はKafkaへ通知作成イベントを発行する。
// メッセージキーは組織IDとし、同一組織のイベント順序を保つ。
type KafkaPublisher struct {
	writer WriterInterface
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher はブローカー一覧からKafkaPublisherを生成する。
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 100 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
	return newKafkaPublisher(writer, topic, logger), nil
}

func newKafkaPublisher(w WriterInterface, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, logger: logger}
}

// PublishNotificationCreated は通知作成イベントを1件発行する。
func (p *KafkaPublisher) PublishNotificationCreated(ctx context.Context, n *model.Notification) error {
	value, err := json.Marshal(NewNotificationCreated(n))
	if err != nil {
		return fmt.Errorf("イベントのエンコードに失敗しました: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(n.OrganizationID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(DefaultTopic)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("イベントの発行に失敗しました: %w", err)
	}

	p.logger.Debug("通知作成イベントを発行しました",
		slog.String("topic", p.topic),
		slog.String("notification_id", n.ID),
	)
	return nil
}

// Close はWriterを閉じる。
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher はイベントを発行しないPublisher。
type NopPublisher struct{}

func (NopPublisher) PublishNotificationCreated(context.Context, *model.Notification) error {
	return nil
}

func (NopPublisher) Close() error { return nil }

// compile-time interface check
var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
