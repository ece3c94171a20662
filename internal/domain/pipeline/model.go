package pipeline

import (
	"time"

	"github.com/yanqian/location-insights/internal/domain/campaign"
	"github.com/yanqian/location-insights/internal/domain/insights"
)

// Stage names one step of a run.
type Stage string

const (
	StageAggregate Stage = "aggregate"
	StageGenerate  Stage = "generate"
	StageSelect    Stage = "select"
	StagePersist   Stage = "persist"
)

// Status is the final state of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run records everything produced by one campaign run. Fields after
// FailedStage stay empty.
type Run struct {
	ID            string                     `json:"runId"`
	Request       insights.Request           `json:"request"`
	Status        Status                     `json:"status"`
	StartedAt     time.Time                  `json:"startedAt"`
	FinishedAt    time.Time                  `json:"finishedAt"`
	Insights      *insights.LocationInsights `json:"insights,omitempty"`
	InsightsPath  string                     `json:"insightsPath,omitempty"`
	Draft         *campaign.Draft            `json:"draft,omitempty"`
	Selection     *campaign.Selection        `json:"selection,omitempty"`
	CampaignsPath string                     `json:"campaignsPath,omitempty"`
	FailedStage   Stage                      `json:"failedStage,omitempty"`
	ErrorCode     string                     `json:"errorCode,omitempty"`
	Error         string                     `json:"error,omitempty"`
}

// TopCampaigns returns the selected campaigns, or nil when selection did not succeed.
func (r Run) TopCampaigns() []campaign.Campaign {
	if r.Selection == nil {
		return nil
	}
	return r.Selection.Campaigns
}
