package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bullbot/history/pkg/types"
)

// Input is a tracked item as handed in by the fetching layer: its
// current state plus the raw events gathered for it.
type Input struct {
	ItemID      string            `json:"item_id"`
	Labels      []string          `json:"labels"`
	LastUpdated time.Time         `json:"last_updated"`
	Events      []types.Event     `json:"events"`
	Commits     []CommitInput     `json:"commits"`
	Reviews     []types.RawReview `json:"reviews"`
}

// CommitInput is the serialized form of a raw commit.
type CommitInput struct {
	SHA           string        `json:"sha"`
	Committer     types.GitUser `json:"committer"`
	CommitterDate time.Time     `json:"committer_date"`
	Message       string        `json:"message"`
}

// RawCommits converts the serialized commits.
func (in *Input) RawCommits() []types.RawCommit {
	out := make([]types.RawCommit, len(in.Commits))
	for i, c := range in.Commits {
		out[i] = types.RawCommit{
			SHA:           c.SHA,
			Committer:     c.Committer,
			CommitterDate: c.CommitterDate,
			Message:       c.Message,
		}
	}
	return out
}

// ReadInput reads an Input from a JSON file.
func ReadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse input %s: %w", path, err)
	}
	return &in, nil
}
