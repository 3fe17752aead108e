package core

import (
	"errors"
	"testing"

	"github.com/scenesmith/genqueue/probe"
)

// TestResourceGate_DefersWhenMemoryShort verifies the admission rule
// Given: A probe reporting 500 MB free and a task requiring 800 MB
// When: Admit is called
// Then: The task is not admitted and the decision carries both readings
func TestResourceGate_DefersWhenMemoryShort(t *testing.T) {
	// Arrange
	mem := probe.NewStatic(500, 8192)
	gate := NewResourceGate(mem, GateConfig{
		Requirements: map[TaskType]uint64{"image.generate": 800},
	})

	// Act
	decision := gate.Admit(Task{ID: "t-1", Type: "image.generate"})

	// Assert
	if decision.Admitted {
		t.Fatal("Admitted = true with 500 MB free and 800 MB required, want false")
	}
	if decision.FreeMB != 500 {
		t.Errorf("FreeMB = %d, want 500", decision.FreeMB)
	}
	if decision.RequiredMB != 800 {
		t.Errorf("RequiredMB = %d, want 800", decision.RequiredMB)
	}

	// Act - Memory recovers
	mem.SetFree(4096)
	decision = gate.Admit(Task{ID: "t-1", Type: "image.generate"})

	// Assert
	if !decision.Admitted {
		t.Error("Admitted = false after memory recovered, want true")
	}
}

// TestResourceGate_RequirementResolution verifies the lookup order
// Given: A gate with a per-type table, a default, and a task-level override
// When: Admit inspects different tasks
// Then: Declared requirement > table entry > default
func TestResourceGate_RequirementResolution(t *testing.T) {
	// Arrange
	mem := probe.NewStatic(1000, 8192)
	gate := NewResourceGate(mem, GateConfig{
		Requirements:         map[TaskType]uint64{"video.generate": 2000},
		DefaultRequirementMB: 300,
	})

	// Assert - Declared requirement wins over the table
	d := gate.Admit(Task{Type: "video.generate", RequiredMemoryMB: 900})
	if d.RequiredMB != 900 {
		t.Errorf("declared override RequiredMB = %d, want 900", d.RequiredMB)
	}
	if !d.Admitted {
		t.Error("900 MB requirement with 1000 MB free not admitted")
	}

	// Assert - Table entry applies to its type
	d = gate.Admit(Task{Type: "video.generate"})
	if d.RequiredMB != 2000 {
		t.Errorf("table RequiredMB = %d, want 2000", d.RequiredMB)
	}
	if d.Admitted {
		t.Error("2000 MB requirement with 1000 MB free was admitted")
	}

	// Assert - Unknown type falls back to the default
	d = gate.Admit(Task{Type: "audio.generate"})
	if d.RequiredMB != 300 {
		t.Errorf("default RequiredMB = %d, want 300", d.RequiredMB)
	}
}

// TestResourceGate_HeadroomRaisesTheBar verifies headroom handling
// Given: A gate with 200 MB headroom and a 700 MB requirement
// When: The probe reports exactly 800 MB free
// Then: The task is deferred because 800 < 700+200
func TestResourceGate_HeadroomRaisesTheBar(t *testing.T) {
	// Arrange
	mem := probe.NewStatic(800, 8192)
	gate := NewResourceGate(mem, GateConfig{
		Requirements: map[TaskType]uint64{"image.generate": 700},
		HeadroomMB:   200,
	})

	// Act and Assert
	if gate.Admit(Task{Type: "image.generate"}).Admitted {
		t.Error("admitted with free below requirement plus headroom")
	}

	// Act - Exactly at the bar is enough
	mem.SetFree(900)
	if !gate.Admit(Task{Type: "image.generate"}).Admitted {
		t.Error("not admitted with free exactly at requirement plus headroom")
	}
}

// TestResourceGate_FailsOpenOnProbeError verifies probe failure policy
// Given: A probe that returns an error
// When: Admit is called
// Then: The task is admitted without a reading
func TestResourceGate_FailsOpenOnProbeError(t *testing.T) {
	// Arrange
	mem := probe.NewStatic(100, 8192)
	mem.SetErr(errors.New("driver unavailable"))
	gate := NewResourceGate(mem, GateConfig{
		Requirements: map[TaskType]uint64{"image.generate": 800},
	})

	// Act
	decision := gate.Admit(Task{Type: "image.generate"})

	// Assert - Admitted, no reading recorded
	if !decision.Admitted {
		t.Fatal("Admitted = false on probe error, want fail-open true")
	}
	if decision.FreeMB != 0 || decision.TotalMB != 0 {
		t.Errorf("reading = %d/%d, want 0/0 when the probe failed", decision.FreeMB, decision.TotalMB)
	}
}

// TestResourceGate_NilProbeAdmitsEverything verifies the disabled gate
// Given: A gate constructed without a probe
// When: Admit and Status are called
// Then: Everything is admitted and Status reports no reading
func TestResourceGate_NilProbeAdmitsEverything(t *testing.T) {
	// Arrange
	gate := NewResourceGate(nil, GateConfig{
		Requirements: map[TaskType]uint64{"image.generate": 1 << 40},
	})

	// Act and Assert
	if !gate.Admit(Task{Type: "image.generate"}).Admitted {
		t.Error("gate without probe deferred a task")
	}
	if _, ok := gate.Status(nil); ok {
		t.Error("Status() without probe reported a reading")
	}
	if gate.enabled() {
		t.Error("enabled() without probe = true, want false")
	}
}

// TestResourceGate_StatusReflectsHeadTask verifies threshold reporting
// Given: A gate with headroom and a requirement table
// When: Status is called with and without a head task
// Then: ThresholdMB is requirement+headroom for the head, headroom alone otherwise
func TestResourceGate_StatusReflectsHeadTask(t *testing.T) {
	// Arrange
	mem := probe.NewStatic(1500, 8192)
	gate := NewResourceGate(mem, GateConfig{
		Requirements: map[TaskType]uint64{"image.generate": 800},
		HeadroomMB:   100,
	})

	// Act - With a head task
	st, ok := gate.Status(&Task{Type: "image.generate"})

	// Assert
	if !ok {
		t.Fatal("Status() = not ok, want a reading")
	}
	if st.FreeMB != 1500 || st.TotalMB != 8192 {
		t.Errorf("reading = %d/%d, want 1500/8192", st.FreeMB, st.TotalMB)
	}
	if st.ThresholdMB != 900 {
		t.Errorf("ThresholdMB with head = %d, want 900", st.ThresholdMB)
	}

	// Act - Empty queue
	st, ok = gate.Status(nil)

	// Assert
	if !ok {
		t.Fatal("Status(nil) = not ok, want a reading")
	}
	if st.ThresholdMB != 100 {
		t.Errorf("ThresholdMB without head = %d, want 100", st.ThresholdMB)
	}
}
