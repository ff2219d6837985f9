package query

import (
	"strings"
	"time"

	"github.com/bullbot/history/pkg/types"
)

const boilerplateMarker = "boilerplate:"

// Boilerplate is a templated bot comment.
type Boilerplate struct {
	At   time.Time `json:"at"`
	Name string    `json:"name"`
	Body string    `json:"body"`
}

// BoilerplateComments returns bot comments tagged with a boilerplate
// marker, oldest first. The template name is the third token of the first
// marker line, as in "<!--- boilerplate: needs_info --->".
func (ix *Index) BoilerplateComments() []Boilerplate {
	var out []Boilerplate
	for _, e := range ix.FindAllByActor(types.KindCommented, ix.botNames) {
		if !strings.Contains(e.Body, boilerplateMarker) {
			continue
		}
		name, ok := boilerplateName(e.Body)
		if !ok {
			continue
		}
		out = append(out, Boilerplate{At: e.CreatedAt, Name: name, Body: e.Body})
	}
	return out
}

// BoilerplateNames returns the template names of BoilerplateComments.
func (ix *Index) BoilerplateNames() []string {
	bps := ix.BoilerplateComments()
	names := make([]string, len(bps))
	for i, bp := range bps {
		names[i] = bp.Name
	}
	return names
}

// BoilerplateContents returns the bodies of BoilerplateComments.
func (ix *Index) BoilerplateContents() []string {
	bps := ix.BoilerplateComments()
	bodies := make([]string, len(bps))
	for i, bp := range bps {
		bodies[i] = bp.Body
	}
	return bodies
}

// LastDateForBoilerplate returns when template name was last posted.
func (ix *Index) LastDateForBoilerplate(name string) (time.Time, bool) {
	var last time.Time
	found := false
	for _, bp := range ix.BoilerplateComments() {
		if bp.Name == name {
			last, found = bp.At, true
		}
	}
	return last, found
}

func boilerplateName(body string) (string, bool) {
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" || !strings.Contains(line, boilerplateMarker) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return "", false
		}
		return fields[2], true
	}
	return "", false
}
