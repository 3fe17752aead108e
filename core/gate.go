package core

import (
	"github.com/scenesmith/genqueue/logging"
	"github.com/scenesmith/genqueue/probe"
)

// ResourceGate defers admission of tasks that would not fit in
// accelerator memory. Readings are sampled from the probe at decision
// time and nothing is reserved: the gate is a best-effort heuristic, not
// an allocator. With no probe configured it admits everything.
type ResourceGate struct {
	probe        probe.Probe
	requirements map[TaskType]uint64
	defaultMB    uint64
	headroomMB   uint64
	logger       logging.Logger
}

// GateConfig carries the admission rule inputs.
type GateConfig struct {
	// Requirements maps a task type to the free megabytes it needs.
	Requirements map[TaskType]uint64

	// DefaultRequirementMB applies to types missing from the table.
	// Zero means only the headroom applies to such tasks.
	DefaultRequirementMB uint64

	// HeadroomMB must stay free on top of the task's own requirement.
	HeadroomMB uint64

	Logger logging.Logger
}

// NewResourceGate builds a gate over p. A nil probe disables gating.
func NewResourceGate(p probe.Probe, cfg GateConfig) *ResourceGate {
	reqs := make(map[TaskType]uint64, len(cfg.Requirements))
	for k, v := range cfg.Requirements {
		reqs[k] = v
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &ResourceGate{
		probe:        p,
		requirements: reqs,
		defaultMB:    cfg.DefaultRequirementMB,
		headroomMB:   cfg.HeadroomMB,
		logger:       logger,
	}
}

// GateDecision is the outcome of one admission check. Free and Total are
// zero when no reading was taken (gate disabled or probe error).
type GateDecision struct {
	Admitted   bool
	FreeMB     uint64
	TotalMB    uint64
	RequiredMB uint64
}

// Admit checks whether t fits right now. The task's own declared
// requirement wins over the table; the table's default covers unknown
// types. A probe error fails open: a broken probe must not wedge the
// accelerator.
func (g *ResourceGate) Admit(t Task) GateDecision {
	required := g.requirementFor(t)
	if g.probe == nil {
		return GateDecision{Admitted: true, RequiredMB: required}
	}

	info, err := g.probe.Memory()
	if err != nil {
		g.logger.Warn("memory probe failed, admitting without a reading",
			logging.F("taskId", t.ID), logging.F("error", err.Error()))
		return GateDecision{Admitted: true, RequiredMB: required}
	}

	return GateDecision{
		Admitted:   info.FreeMB >= required+g.headroomMB,
		FreeMB:     info.FreeMB,
		TotalMB:    info.TotalMB,
		RequiredMB: required,
	}
}

// Status reports the current reading plus the bar the head task has to
// clear. The second return is false when no probe is configured or the
// reading failed.
func (g *ResourceGate) Status(head *Task) (ResourceStatus, bool) {
	if g.probe == nil {
		return ResourceStatus{}, false
	}
	info, err := g.probe.Memory()
	if err != nil {
		return ResourceStatus{}, false
	}

	st := ResourceStatus{
		FreeMB:      info.FreeMB,
		TotalMB:     info.TotalMB,
		ThresholdMB: g.headroomMB,
	}
	if head != nil {
		st.ThresholdMB = g.requirementFor(*head) + g.headroomMB
	}
	return st, true
}

func (g *ResourceGate) enabled() bool {
	return g.probe != nil
}

func (g *ResourceGate) requirementFor(t Task) uint64 {
	if t.RequiredMemoryMB > 0 {
		return t.RequiredMemoryMB
	}
	if mb, ok := g.requirements[t.Type]; ok {
		return mb
	}
	return g.defaultMB
}
