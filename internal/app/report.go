package app

import (
	"time"

	"github.com/bullbot/history/internal/history"
	"github.com/bullbot/history/internal/observability"
	"github.com/bullbot/history/internal/query"
)

// Report summarizes a history for inspection.
type Report struct {
	ItemID          string                 `json:"item_id"`
	Source          history.Source         `json:"source"`
	Events          int                    `json:"events"`
	LastCommit      *time.Time             `json:"last_commit,omitempty"`
	ChangedLabels   []string               `json:"changed_labels"`
	WafflingLabels  []string               `json:"waffling_labels"`
	Commands        []query.Command        `json:"commands"`
	ComponentLines  int                    `json:"component_commands"`
	Boilerplates    []string               `json:"boilerplates"`
	CommandStatuses map[string]bool        `json:"command_statuses"`
	Cache           observability.Snapshot `json:"cache"`
}

// Summarize runs the standard queries against h. commands are the phrases
// looked up in comments and labels.
func (a *App) Summarize(h *history.History, commands []string) Report {
	ix := h.Index()
	bots := ix.BotNames()

	r := Report{
		ItemID:          h.ItemID(),
		Source:          h.Source(),
		Events:          h.Len(),
		ChangedLabels:   ix.ChangedLabels("", bots),
		Commands:        ix.ExtractCommands(nil, commands, true),
		ComponentLines:  len(ix.ComponentCommands(a.cfg.Query.ComponentMarker)),
		Boilerplates:    ix.BoilerplateNames(),
		CommandStatuses: make(map[string]bool),
		Cache:           a.stats.Snapshot(),
	}
	if when, ok := ix.LastCommitDate(); ok {
		r.LastCommit = &when
	}
	for _, label := range ix.ChangedLabels("", nil) {
		if ix.LabelIsWaffling(label, a.cfg.Query.WaffleLimit) {
			r.WafflingLabels = append(r.WafflingLabels, label)
		}
	}
	for _, c := range commands {
		if enabled, set := ix.CommandStatus(c); set {
			r.CommandStatuses[c] = enabled
		}
	}
	return r
}
