package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yanqian/location-insights/internal/domain/pipeline"
	"github.com/yanqian/location-insights/pkg/metrics"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RunEvent is the message published for every finished run.
type RunEvent struct {
	RunID         string             `json:"runId"`
	ZipCode       string             `json:"zipcode"`
	StoreType     string             `json:"storeType"`
	Status        string             `json:"status"`
	FailedStage   string             `json:"failedStage,omitempty"`
	ErrorCode     string             `json:"errorCode,omitempty"`
	StoreCount    int                `json:"storeCount"`
	WeatherOK     bool               `json:"weatherAvailable"`
	CampaignCount int                `json:"campaignCount"`
	Titles        []string           `json:"campaignTitles,omitempty"`
	Usage         metrics.TokenUsage `json:"usage"`
	StartedAt     time.Time          `json:"startedAt"`
	FinishedAt    time.Time          `json:"finishedAt"`
}

// KafkaPublisher publishes run events keyed by run ID.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher builds a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// Archive implements pipeline.Archiver.
func (p *KafkaPublisher) Archive(ctx context.Context, run pipeline.Run) error {
	payload, err := json.Marshal(newRunEvent(run))
	if err != nil {
		return fmt.Errorf("encode run event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(run.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(run.Status)},
		},
	})
	metrics.CountUpstream("kafka", err)
	if err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func newRunEvent(run pipeline.Run) RunEvent {
	event := RunEvent{
		RunID:       run.ID,
		ZipCode:     run.Request.ZipCode,
		StoreType:   run.Request.StoreType,
		Status:      string(run.Status),
		FailedStage: string(run.FailedStage),
		ErrorCode:   run.ErrorCode,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
	if run.Insights != nil {
		event.StoreCount = len(run.Insights.Stores)
		event.WeatherOK = run.Insights.Weather.Available()
	}
	if run.Draft != nil {
		event.Usage = event.Usage.Add(run.Draft.Usage)
	}
	if run.Selection != nil {
		event.Usage = event.Usage.Add(run.Selection.Usage)
	}
	for _, c := range run.TopCampaigns() {
		event.Titles = append(event.Titles, c.Title)
	}
	event.CampaignCount = len(event.Titles)
	return event
}

var _ pipeline.Archiver = (*KafkaPublisher)(nil)
