package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/yanqian/location-insights/internal/domain/campaign"
	"github.com/yanqian/location-insights/internal/domain/insights"
	"github.com/yanqian/location-insights/internal/domain/pipeline"
	apperrors "github.com/yanqian/location-insights/pkg/errors"
)

const (
	zipPrompt   = "Please enter the ZIP code: "
	storePrompt = "Please enter the store type (e.g., Flower store, Art store, Grocery store): "
)

// Runner drives one interactive campaign run over a terminal.
type Runner struct {
	pipeline    pipeline.Service
	in          *bufio.Reader
	out         io.Writer
	selectCount int
	logger      *slog.Logger
}

// NewRunner builds a Runner reading answers from in and printing to out.
func NewRunner(svc pipeline.Service, in io.Reader, out io.Writer, selectCount int, logger *slog.Logger) *Runner {
	return &Runner{
		pipeline:    svc,
		in:          bufio.NewReader(in),
		out:         out,
		selectCount: selectCount,
		logger:      logger.With("component", "cli.runner"),
	}
}

// Run prompts for a ZIP code and store type, executes the run and prints the
// outcome. Run failures are reported on out and do not produce an error; only
// unreadable input does.
func (r *Runner) Run(ctx context.Context) error {
	zip, err := r.ask(zipPrompt)
	if err != nil {
		return err
	}
	storeType, err := r.ask(storePrompt)
	if err != nil {
		return err
	}

	r.printf("Fetching data for ZIP Code: %s and store type: %s...\n", zip, storeType)
	run, runErr := r.pipeline.Run(ctx, insights.Request{ZipCode: zip, StoreType: storeType})
	r.report(run, runErr)
	return nil
}

func (r *Runner) report(run pipeline.Run, runErr error) {
	if run.Insights == nil || run.InsightsPath == "" {
		r.printf("Data fetch failed: %s\n", failureText(runErr))
		return
	}
	r.printf("Data saved to %s\n", run.InsightsPath)

	r.printf("\nGenerated Campaigns:\n")
	if run.Draft == nil {
		r.printf("%s\n", failureText(runErr))
		return
	}
	r.printf("%s\n", run.Draft.Text)

	r.printf("\nTop %d Campaigns (JSON):\n", r.selectCount)
	if run.Selection == nil {
		r.printf("%s\n", failureText(runErr))
		return
	}
	r.printf("%s\n", run.Selection.Raw)

	switch {
	case runErr == nil:
		r.printf("Top campaigns saved to %s\n", run.CampaignsPath)
	case apperrors.IsCode(runErr, apperrors.CodeParseError):
		r.printf("%s\n", campaign.MsgParseFailed)
	default:
		r.printf("%s\n", failureText(runErr))
	}
}

func (r *Runner) ask(prompt string) (string, error) {
	r.printf("%s", prompt)
	line, err := r.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (r *Runner) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(r.out, format, args...); err != nil {
		r.logger.Warn("write to terminal failed", "error", err)
	}
}

func failureText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
