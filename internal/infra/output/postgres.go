package output

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yanqian/location-insights/internal/domain/campaign"
	"github.com/yanqian/location-insights/internal/domain/pipeline"
	"github.com/yanqian/location-insights/pkg/metrics"
)

// txStarter is satisfied by *pgxpool.Pool.
type txStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresArchive records every run and its selected campaigns.
type PostgresArchive struct {
	db txStarter
}

// NewPostgresArchive constructs the archive.
func NewPostgresArchive(db txStarter) *PostgresArchive {
	return &PostgresArchive{db: db}
}

func (a *PostgresArchive) Name() string { return "postgres" }

// Archive inserts the run row and its campaigns in one transaction.
func (a *PostgresArchive) Archive(ctx context.Context, run pipeline.Run) (err error) {
	runID, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}
	runSQL, runArgs, err := buildRunInsert(runID, run)
	if err != nil {
		return err
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, runSQL, runArgs...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if campaigns := run.TopCampaigns(); len(campaigns) > 0 {
		campaignSQL, campaignArgs, buildErr := buildCampaignInsert(runID, campaigns)
		if buildErr != nil {
			err = buildErr
			return err
		}
		if _, err = tx.Exec(ctx, campaignSQL, campaignArgs...); err != nil {
			return fmt.Errorf("insert campaigns: %w", err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

func buildRunInsert(runID uuid.UUID, run pipeline.Run) (string, []any, error) {
	var insightsJSON []byte
	if run.Insights != nil {
		encoded, err := json.Marshal(run.Insights)
		if err != nil {
			return "", nil, fmt.Errorf("encode insights: %w", err)
		}
		insightsJSON = encoded
	}

	var (
		draft    *string
		rawSel   *string
		attempts int
		usage    metrics.TokenUsage
	)
	if run.Draft != nil {
		draft = &run.Draft.Text
		usage = usage.Add(run.Draft.Usage)
	}
	if run.Selection != nil {
		rawSel = &run.Selection.Raw
		attempts = run.Selection.Attempts
		usage = usage.Add(run.Selection.Usage)
	}

	return squirrel.Insert("insight_runs").
		Columns(
			"id", "zipcode", "store_type", "status", "failed_stage", "error_code", "error_message",
			"insights", "draft", "raw_selection", "select_attempts",
			"prompt_tokens", "completion_tokens", "total_tokens", "started_at", "finished_at",
		).
		Values(
			runID, run.Request.ZipCode, run.Request.StoreType, string(run.Status),
			nullable(string(run.FailedStage)), nullable(run.ErrorCode), nullable(run.Error),
			insightsJSON, draft, rawSel, attempts,
			usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, run.StartedAt, run.FinishedAt,
		).
		Suffix("ON CONFLICT (id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

func buildCampaignInsert(runID uuid.UUID, campaigns []campaign.Campaign) (string, []any, error) {
	builder := squirrel.Insert("campaigns").
		Columns("run_id", "position", "title", "description", "insight", "start_date", "end_date", "discount_amount").
		PlaceholderFormat(squirrel.Dollar)
	for i, c := range campaigns {
		start, err := time.Parse(time.DateOnly, c.StartDate)
		if err != nil {
			return "", nil, fmt.Errorf("campaign %d start_date: %w", i+1, err)
		}
		end, err := time.Parse(time.DateOnly, c.EndDate)
		if err != nil {
			return "", nil, fmt.Errorf("campaign %d end_date: %w", i+1, err)
		}
		var discount []byte
		if c.Discount != nil {
			if discount, err = json.Marshal(c.Discount); err != nil {
				return "", nil, fmt.Errorf("campaign %d discount: %w", i+1, err)
			}
		}
		builder = builder.Values(runID, i+1, c.Title, c.Description, c.Insight, start, end, discount)
	}
	return builder.ToSql()
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

var _ pipeline.Archiver = (*PostgresArchive)(nil)
