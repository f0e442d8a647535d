package components

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/Liiesl/EasyScanlate/pkg/common"
	"github.com/Liiesl/EasyScanlate/pkg/probe"
)

// Advisory is the pre-install notice shown when the heavy dependency must be downloaded.
type Advisory struct {
	Title string
	Body  string
}

// Plan is the install plan: the ordered component list plus the advisory the
// planner raised. It may be mutated by the user selection step until frozen.
// Mutable until Freeze
type Plan struct {
	components []Component
	advisory   *Advisory
	frozen     bool
}

// NewPlan runs the selection policy over components for the given probe result.
// When the heavy dependency is already present it is deselected but stays
// optional, so picking it again forces a re-fetch. When it is absent it is
// forced on and locked, and an advisory about bandwidth and disk space is raised.
func NewPlan(list []Component, res probe.Result) *Plan {
	out := make([]Component, len(list))
	copy(out, list)

	p := &Plan{components: out}
	for i := range out {
		c := &out[i]
		if c.Required {
			c.Selected = true
			c.Locked = true
		}
		if c.ID != common.ComponentHeavy {
			continue
		}
		if res.Present {
			c.Selected = false
			c.Locked = false
			continue
		}
		c.Selected = true
		c.Locked = true
		size := humanize.IBytes(uint64(c.EstimatedSizeBytes))
		p.advisory = &Advisory{
			Title: "Large download required",
			Body: fmt.Sprintf(
				"%s is not installed yet. Setup will download about %s and needs roughly %s of free disk space. Keep the network connection open until it finishes.",
				c.Label, size, size),
		}
	}
	return p
}

// Components returns a copy of the planned components.
func (p *Plan) Components() []Component {
	out := make([]Component, len(p.components))
	copy(out, p.components)
	return out
}

// Advisory returns the pre-install advisory, or nil when none is needed.
func (p *Plan) Advisory() *Advisory {
	return p.advisory
}

// Select applies the user's choice; see ApplySelection.
func (p *Plan) Select(ids []common.ComponentID) error {
	if p.frozen {
		panic("cannot modify frozen plan")
	}
	return ApplySelection(p.components, ids)
}

// Freeze makes the plan immutable for execution.
func (p *Plan) Freeze() {
	p.frozen = true
}

// Selected reports whether id is selected in the plan.
func (p *Plan) Selected(id common.ComponentID) bool {
	return IsSelected(p.components, id)
}

// SelectedIDs returns the ids of the selected components, in plan order.
func (p *Plan) SelectedIDs() []common.ComponentID {
	var ids []common.ComponentID
	for _, c := range p.components {
		if c.Selected {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
