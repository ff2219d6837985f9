package query

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/bullbot/history/pkg/types"
)

const (
	// DefaultComponentMarker starts a component command line.
	DefaultComponentMarker = "!component"

	// quotedReplyPrefix opens comments that quote another platform's thread.
	quotedReplyPrefix = "_From @"
)

// Command is a command phrase found in the timeline.
type Command struct {
	At   time.Time `json:"at"`
	Name string    `json:"name"`
}

// CommandNames returns just the names of cmds, in order.
func CommandNames(cmds []Command) []string {
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
	}
	return names
}

// ExtractCommands finds command phrases from keys used by actors (nil for
// anyone) in chronological order. Bot events and quoted replies are skipped.
//
// A comment yields key k when k is one of its whitespace-delimited tokens
// and "!k" is not. With useLabels, adding a label in keys yields the label
// and removing it yields "!" + label.
func (ix *Index) ExtractCommands(actors []string, keys []string, useLabels bool) []Command {
	events := ix.FindAllByActor(types.KindCommented, actors)
	events = append(events, ix.FindAllByActor(types.KindLabeled, actors)...)
	events = append(events, ix.FindAllByActor(types.KindUnlabeled, actors)...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})

	var cmds []Command
	for i := range events {
		e := &events[i]
		if ix.IsBot(e.Actor) {
			continue
		}
		switch e.Kind {
		case types.KindCommented:
			if strings.HasPrefix(e.Body, quotedReplyPrefix) {
				continue
			}
			tokens := strings.Fields(e.Body)
			for _, k := range keys {
				if slices.Contains(tokens, k) && !slices.Contains(tokens, "!"+k) {
					cmds = append(cmds, Command{At: e.CreatedAt, Name: k})
				}
			}
		case types.KindLabeled:
			if useLabels && slices.Contains(keys, e.Label) {
				cmds = append(cmds, Command{At: e.CreatedAt, Name: e.Label})
			}
		case types.KindUnlabeled:
			if useLabels && slices.Contains(keys, e.Label) {
				cmds = append(cmds, Command{At: e.CreatedAt, Name: "!" + e.Label})
			}
		}
	}
	return cmds
}

// ComponentCommands returns non-bot comments with a line that starts with
// marker once surrounding whitespace is removed. An empty marker uses
// DefaultComponentMarker.
func (ix *Index) ComponentCommands(marker string) []types.Event {
	if marker == "" {
		marker = DefaultComponentMarker
	}

	var matches []types.Event
	for _, e := range ix.FindAllByActor(types.KindCommented, nil) {
		if ix.IsBot(e.Actor) || e.Body == "" {
			continue
		}
		for _, line := range strings.Split(e.Body, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), marker) {
				matches = append(matches, e)
				break
			}
		}
	}
	return matches
}

// CommandStatus reports the latest standalone use of command. Every event
// body equal to command (after trimming) sets it; "!" + command unsets it.
// set is false when neither form ever appears.
func (ix *Index) CommandStatus(command string) (enabled, set bool) {
	negated := "!" + command
	for i := range ix.events {
		body := ix.events[i].Body
		if body == "" {
			continue
		}
		switch strings.TrimSpace(body) {
		case command:
			enabled, set = true, true
		case negated:
			enabled, set = false, true
		}
	}
	return enabled, set
}
