package probe

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

const bytesPerMB = 1024 * 1024

// SystemMemory reads host virtual memory via gopsutil. "Free" is the
// kernel's available estimate, not the raw free counter, so cached pages
// count as usable.
type SystemMemory struct{}

var _ Probe = SystemMemory{}

// NewSystemMemory creates a probe backed by the host's memory counters.
func NewSystemMemory() SystemMemory {
	return SystemMemory{}
}

func (SystemMemory) Memory() (MemoryInfo, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("read virtual memory: %w", err)
	}
	return MemoryInfo{
		FreeMB:  v.Available / bytesPerMB,
		TotalMB: v.Total / bytesPerMB,
	}, nil
}
