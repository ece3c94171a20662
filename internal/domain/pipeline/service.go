package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yanqian/location-insights/internal/domain/campaign"
	"github.com/yanqian/location-insights/internal/domain/insights"
	apperrors "github.com/yanqian/location-insights/pkg/errors"
	"github.com/yanqian/location-insights/pkg/metrics"
	"github.com/yanqian/location-insights/pkg/util"
)

// Service executes complete campaign runs.
type Service interface {
	Insights(ctx context.Context, req insights.Request) (insights.LocationInsights, error)
	Run(ctx context.Context, req insights.Request) (Run, error)
}

// ResultStore persists the two run artifacts and returns where they went.
type ResultStore interface {
	SaveInsights(ctx context.Context, runID string, data insights.LocationInsights) (string, error)
	SaveCampaigns(ctx context.Context, runID string, campaigns []campaign.Campaign) (string, error)
}

// Archiver receives every finished run. Failures are logged and never fail the run.
type Archiver interface {
	Name() string
	Archive(ctx context.Context, run Run) error
}

// Archivers is the set of configured archives.
type Archivers []Archiver

type service struct {
	insights  insights.Service
	campaigns campaign.Service
	store     ResultStore
	archivers Archivers
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

// NewService wires the run orchestrator.
func NewService(insightsSvc insights.Service, campaignSvc campaign.Service, store ResultStore, archivers Archivers, logger *slog.Logger) Service {
	return &service{
		insights:  insightsSvc,
		campaigns: campaignSvc,
		store:     store,
		archivers: archivers,
		logger:    logger.With("component", "pipeline.service"),
		tracer:    otel.Tracer("pipeline"),
		now:       util.NowUTC,
		newID:     uuid.NewString,
	}
}

func (s *service) Insights(ctx context.Context, req insights.Request) (insights.LocationInsights, error) {
	req = normalize(req)
	var data insights.LocationInsights
	err := s.stage(ctx, StageAggregate, func(ctx context.Context) error {
		var err error
		data, err = s.insights.Aggregate(ctx, req)
		return err
	})
	return data, err
}

func (s *service) Run(ctx context.Context, req insights.Request) (Run, error) {
	req = normalize(req)
	run := Run{ID: s.newID(), Request: req, StartedAt: s.now()}
	ctx, span := s.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.zipcode", req.ZipCode),
		attribute.String("run.store_type", req.StoreType),
	))
	defer span.End()

	err := s.execute(ctx, &run)
	run.FinishedAt = s.now()
	if err != nil {
		run.Status = StatusFailed
		run.ErrorCode = apperrors.CodeOf(err)
		run.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(run.FailedStage))
		s.logger.Warn("campaign run failed", "runId", run.ID, "stage", run.FailedStage, "error", err)
	} else {
		run.Status = StatusSucceeded
		span.SetStatus(codes.Ok, "run completed")
		s.logger.Info("campaign run completed", "runId", run.ID, "campaigns", len(run.TopCampaigns()), "elapsed", util.Elapsed(run.StartedAt, run.FinishedAt))
	}

	s.archive(context.WithoutCancel(ctx), run)
	return run, err
}

func (s *service) execute(ctx context.Context, run *Run) error {
	fail := func(stage Stage, err error) error {
		run.FailedStage = stage
		return err
	}

	var data insights.LocationInsights
	if err := s.stage(ctx, StageAggregate, func(ctx context.Context) error {
		var err error
		data, err = s.insights.Aggregate(ctx, run.Request)
		return err
	}); err != nil {
		return fail(StageAggregate, err)
	}
	run.Insights = &data

	if err := s.stage(ctx, StagePersist, func(ctx context.Context) error {
		path, err := s.store.SaveInsights(ctx, run.ID, data)
		if err != nil {
			return apperrors.Wrap(apperrors.CodePersistError, "failed to write location insights", err)
		}
		run.InsightsPath = path
		return nil
	}); err != nil {
		return fail(StagePersist, err)
	}

	var draft campaign.Draft
	if err := s.stage(ctx, StageGenerate, func(ctx context.Context) error {
		var err error
		draft, err = s.campaigns.Generate(ctx, data, run.Request.StoreType)
		return err
	}); err != nil {
		return fail(StageGenerate, err)
	}
	run.Draft = &draft

	var selection campaign.Selection
	selectErr := s.stage(ctx, StageSelect, func(ctx context.Context) error {
		var err error
		selection, err = s.campaigns.Select(ctx, draft.Text)
		return err
	})
	if selectErr != nil {
		if selection.Raw != "" {
			run.Selection = &selection
		}
		return fail(StageSelect, selectErr)
	}
	run.Selection = &selection

	if err := s.stage(ctx, StagePersist, func(ctx context.Context) error {
		path, err := s.store.SaveCampaigns(ctx, run.ID, selection.Campaigns)
		if err != nil {
			return apperrors.Wrap(apperrors.CodePersistError, "failed to write top campaigns", err)
		}
		run.CampaignsPath = path
		return nil
	}); err != nil {
		return fail(StagePersist, err)
	}
	return nil
}

// stage runs fn inside a span and records its duration.
func (s *service) stage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "pipeline."+string(stage))
	defer span.End()

	started := time.Now()
	err := fn(ctx)
	metrics.ObserveStage(string(stage), time.Since(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.CodeOf(err))
	}
	return err
}

func (s *service) archive(ctx context.Context, run Run) {
	for _, archiver := range s.archivers {
		if archiver == nil {
			continue
		}
		if err := archiver.Archive(ctx, run); err != nil {
			s.logger.Error("run archive failed", "archive", archiver.Name(), "runId", run.ID, "error", err)
		}
	}
}

func normalize(req insights.Request) insights.Request {
	return insights.Request{
		ZipCode:   strings.TrimSpace(req.ZipCode),
		StoreType: strings.TrimSpace(req.StoreType),
	}
}
