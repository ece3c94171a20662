package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/location-insights/internal/domain/campaign"
	"github.com/yanqian/location-insights/internal/domain/insights"
	"github.com/yanqian/location-insights/internal/domain/pipeline"
	"github.com/yanqian/location-insights/pkg/metrics"
)

type recordingWriter struct {
	msgs  []kafka.Message
	err   error
	calls int
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.calls++
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error { return nil }

func TestArchivePublishesRunEvent(t *testing.T) {
	writer := &recordingWriter{}
	publisher := &KafkaPublisher{writer: writer}

	run := pipeline.Run{
		ID:       "run-42",
		Request:  insights.Request{ZipCode: "94103", StoreType: "Flower store"},
		Status:   pipeline.StatusSucceeded,
		Insights: &insights.LocationInsights{ZipCode: "94103", Stores: make([]insights.Place, 3)},
		Draft:    &campaign.Draft{Text: "ideas", Usage: metrics.TokenUsage{PromptTokens: 10, TotalTokens: 30}},
		Selection: &campaign.Selection{
			Campaigns: []campaign.Campaign{{Title: "Spring Blooms"}, {Title: "Rainy Day Roses"}},
			Usage:     metrics.TokenUsage{PromptTokens: 5, TotalTokens: 9},
		},
	}
	require.NoError(t, publisher.Archive(context.Background(), run))
	require.Len(t, writer.msgs, 1)

	msg := writer.msgs[0]
	require.Equal(t, "run-42", string(msg.Key))
	require.Equal(t, "succeeded", string(msg.Headers[0].Value))

	var event RunEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	require.Equal(t, 3, event.StoreCount)
	require.False(t, event.WeatherOK)
	require.Equal(t, 2, event.CampaignCount)
	require.Equal(t, []string{"Spring Blooms", "Rainy Day Roses"}, event.Titles)
	require.Equal(t, 39, event.Usage.TotalTokens)
}

func TestArchiveFailedRun(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker unavailable")}
	publisher := &KafkaPublisher{writer: writer}

	err := publisher.Archive(context.Background(), pipeline.Run{
		ID:          "run-7",
		Status:      pipeline.StatusFailed,
		FailedStage: pipeline.StageAggregate,
		ErrorCode:   "location_unavailable",
	})
	require.Error(t, err)
	require.Equal(t, 1, writer.calls)

	var event RunEvent
	require.NoError(t, json.Unmarshal(writer.msgs[0].Value, &event))
	require.Equal(t, "aggregate", event.FailedStage)
	require.Zero(t, event.CampaignCount)
}
