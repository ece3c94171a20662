package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yanqian/location-insights/internal/domain/campaign"
	"github.com/yanqian/location-insights/internal/domain/insights"
	"github.com/yanqian/location-insights/internal/domain/pipeline"
)

// FileStore writes run results as indented JSON files in one directory.
// Each run overwrites the files of the previous one unless the store keeps a
// directory per run.
type FileStore struct {
	dir           string
	insightsFile  string
	campaignsFile string
	perRun        bool
}

// NewFileStore builds a store rooted at dir.
func NewFileStore(dir, insightsFile, campaignsFile string) *FileStore {
	if dir == "" {
		dir = "."
	}
	if insightsFile == "" {
		insightsFile = "location_insights.json"
	}
	if campaignsFile == "" {
		campaignsFile = "top_campaigns.json"
	}
	return &FileStore{dir: dir, insightsFile: insightsFile, campaignsFile: campaignsFile}
}

// PerRun returns a store that writes each run into dir/<runID>/.
func (s *FileStore) PerRun() *FileStore {
	clone := *s
	clone.perRun = true
	return &clone
}

// SaveInsights implements pipeline.ResultStore.
func (s *FileStore) SaveInsights(_ context.Context, runID string, data insights.LocationInsights) (string, error) {
	return s.write(runID, s.insightsFile, data)
}

// SaveCampaigns implements pipeline.ResultStore.
func (s *FileStore) SaveCampaigns(_ context.Context, runID string, campaigns []campaign.Campaign) (string, error) {
	if campaigns == nil {
		campaigns = []campaign.Campaign{}
	}
	return s.write(runID, s.campaignsFile, campaigns)
}

func (s *FileStore) write(runID, name string, value any) (string, error) {
	payload, err := encodeIndented(value)
	if err != nil {
		return "", err
	}
	dir := s.dir
	if s.perRun {
		if runID == "" || runID == "." || runID == ".." || runID != filepath.Base(runID) {
			return "", fmt.Errorf("invalid run id %q", runID)
		}
		dir = filepath.Join(s.dir, runID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return path, nil
}

// encodeIndented renders value with four space indentation and no HTML escaping.
func encodeIndented(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(value); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

var _ pipeline.ResultStore = (*FileStore)(nil)
