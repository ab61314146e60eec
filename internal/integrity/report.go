package integrity

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/matthewbaird/caseforms/internal/depindex"
)

// PathSeparator joins ancestor labels in a blocker path.
const PathSeparator = " › "

// Blocker is one item whose rule prevents an edit.
type Blocker struct {
	Kind   string   `json:"kind"`
	LinkID string   `json:"linkId"`
	Label  string   `json:"label"`
	Path   []string `json:"path"` // ancestor labels from the root, then the item's own
}

// PathString renders the path with PathSeparator.
func (b Blocker) PathString() string {
	return strings.Join(b.Path, PathSeparator)
}

// Report groups a decision's blockers by dependency kind with the path to
// each blocking item, for authors to act on.
type Report struct {
	Decision Decision  `json:"decision"`
	Blockers []Blocker `json:"items"`
}

// NewReport resolves each blocker's ancestor path through idx.
func NewReport(d Decision, idx *depindex.Index) *Report {
	r := &Report{Decision: d, Blockers: []Blocker{}}
	for _, k := range depindex.Kinds {
		for _, it := range d.Blockers.Of(k) {
			var path []string
			for _, id := range idx.Path(it.LinkID) {
				if a := idx.Item(id); a != nil {
					path = append(path, a.DisplayLabel())
				}
			}
			r.Blockers = append(r.Blockers, Blocker{
				Kind:   k.String(),
				LinkID: it.LinkID,
				Label:  it.DisplayLabel(),
				Path:   path,
			})
		}
	}
	return r
}

// Summary is a one-line description of the decision.
func (r *Report) Summary() string {
	if r.Decision.Allowed {
		return fmt.Sprintf("%s %q: allowed", r.Decision.Action, r.Decision.LinkID)
	}
	return r.Decision.Err().Error()
}

// String renders the blockers as a table.
func (r *Report) String() string {
	tw := table.NewWriter()
	tw.SetTitle(r.Summary())
	tw.AppendHeader(table.Row{"Dependency", "Item", "Path"})
	for _, b := range r.Blockers {
		tw.AppendRow(table.Row{b.Kind, b.LinkID, b.PathString()})
	}
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}
