// Package probe abstracts how genqueue observes accelerator memory.
// Readings are sampled, never reserved: a probe answers "how much is free
// right now", and the admission layer decides what to do with that.
package probe

import "sync"

// MemoryInfo is a single sampled memory reading, in megabytes.
type MemoryInfo struct {
	FreeMB  uint64 `json:"freeMB"`
	TotalMB uint64 `json:"totalMB"`
}

// Probe supplies memory readings on demand. Implementations must be safe
// for concurrent use.
type Probe interface {
	Memory() (MemoryInfo, error)
}

// Func adapts a plain function into a Probe.
type Func func() (MemoryInfo, error)

func (f Func) Memory() (MemoryInfo, error) { return f() }

// Static is a fixed-reading probe. Tests and examples drive admission
// decisions by mutating it; real deployments use SystemMemory.
type Static struct {
	mu   sync.Mutex
	info MemoryInfo
	err  error
}

// NewStatic creates a Static probe reporting the given free and total MB.
func NewStatic(freeMB, totalMB uint64) *Static {
	return &Static{info: MemoryInfo{FreeMB: freeMB, TotalMB: totalMB}}
}

func (s *Static) Memory() (MemoryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return MemoryInfo{}, s.err
	}
	return s.info, nil
}

// SetFree updates the reported free amount.
func (s *Static) SetFree(freeMB uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.FreeMB = freeMB
}

// SetErr makes subsequent readings fail with err. Pass nil to recover.
func (s *Static) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
