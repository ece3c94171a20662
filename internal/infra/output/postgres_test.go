package output

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/location-insights/internal/domain/campaign"
	"github.com/yanqian/location-insights/internal/domain/insights"
	"github.com/yanqian/location-insights/internal/domain/pipeline"
)

func sampleRun() pipeline.Run {
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return pipeline.Run{
		ID:         "6f1c2f2e-8f59-4a55-9d5c-0c1c5b1f7a10",
		Request:    insights.Request{ZipCode: "94103", StoreType: "Flower store"},
		Status:     pipeline.StatusSucceeded,
		StartedAt:  started,
		FinishedAt: started.Add(12 * time.Second),
		Insights:   &insights.LocationInsights{ZipCode: "94103", Stores: []insights.Place{}},
		Draft:      &campaign.Draft{Text: "ten ideas"},
		Selection: &campaign.Selection{
			Raw:      "[...]",
			Attempts: 1,
			Campaigns: []campaign.Campaign{
				{Title: "A", Description: "B", Insight: "C", StartDate: "2025-03-01", EndDate: "2025-03-10", Discount: campaign.NumberDiscount(10)},
				{Title: "D", Description: "E", Insight: "F", StartDate: "2025-04-01", EndDate: "2025-04-10"},
			},
		},
	}
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresArchiveInsertsRunAndCampaigns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run := sampleRun()
	runID := uuid.MustParse(run.ID)
	runArgs := anyArgs(16)
	runArgs[0] = runID
	runArgs[1] = "94103"
	runArgs[2] = "Flower store"
	runArgs[3] = "succeeded"

	campaignArgs := anyArgs(16)
	campaignArgs[0] = runID
	campaignArgs[1] = 1
	campaignArgs[2] = "A"
	campaignArgs[8] = runID
	campaignArgs[9] = 2
	campaignArgs[10] = "D"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO insight_runs").WithArgs(runArgs...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO campaigns").WithArgs(campaignArgs...).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	require.NoError(t, NewPostgresArchive(mock).Archive(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchiveFailedRunSkipsCampaigns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run := sampleRun()
	run.Status = pipeline.StatusFailed
	run.Selection = nil
	run.FailedStage = pipeline.StageSelect
	run.Error = "Error selecting top campaigns: boom"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO insight_runs").WithArgs(anyArgs(16)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewPostgresArchive(mock).Archive(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchiveRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO insight_runs").WithArgs(anyArgs(16)...).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = NewPostgresArchive(mock).Archive(context.Background(), sampleRun())
	require.Error(t, err)
	require.Contains(t, err.Error(), "insert run")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildCampaignInsertPlaceholders(t *testing.T) {
	sql, args, err := buildCampaignInsert(uuid.New(), sampleRun().Selection.Campaigns)
	require.NoError(t, err)
	require.Contains(t, sql, "VALUES ($1,$2,$3,$4,$5,$6,$7,$8),($9,$10,$11,$12,$13,$14,$15,$16)")
	require.Len(t, args, 16)
	require.Equal(t, []byte("10"), args[7])
	require.Nil(t, args[15])
}
