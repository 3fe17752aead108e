package probe

import (
	"errors"
	"testing"
)

func TestStatic_ReportsAndMutates(t *testing.T) {
	p := NewStatic(500, 8192)

	info, err := p.Memory()
	if err != nil {
		t.Fatalf("Memory failed: %v", err)
	}
	if info.FreeMB != 500 || info.TotalMB != 8192 {
		t.Fatalf("reading = %+v, want free=500 total=8192", info)
	}

	p.SetFree(4096)
	info, err = p.Memory()
	if err != nil {
		t.Fatalf("Memory after SetFree failed: %v", err)
	}
	if info.FreeMB != 4096 {
		t.Fatalf("free = %d, want 4096", info.FreeMB)
	}
}

func TestStatic_ErrorInjection(t *testing.T) {
	p := NewStatic(1024, 8192)
	probeErr := errors.New("device lost")

	p.SetErr(probeErr)
	if _, err := p.Memory(); !errors.Is(err, probeErr) {
		t.Fatalf("Memory error = %v, want %v", err, probeErr)
	}

	p.SetErr(nil)
	info, err := p.Memory()
	if err != nil {
		t.Fatalf("Memory after clearing error failed: %v", err)
	}
	if info.FreeMB != 1024 {
		t.Fatalf("free = %d, want 1024", info.FreeMB)
	}
}

func TestFunc_Adapts(t *testing.T) {
	calls := 0
	p := Func(func() (MemoryInfo, error) {
		calls++
		return MemoryInfo{FreeMB: 7, TotalMB: 8}, nil
	})

	info, err := p.Memory()
	if err != nil {
		t.Fatalf("Memory failed: %v", err)
	}
	if info.FreeMB != 7 || info.TotalMB != 8 {
		t.Fatalf("reading = %+v, want free=7 total=8", info)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSystemMemory_ReadsHost(t *testing.T) {
	info, err := NewSystemMemory().Memory()
	if err != nil {
		t.Skipf("host memory counters unavailable: %v", err)
	}
	if info.TotalMB == 0 {
		t.Fatal("total = 0, want a non-zero host reading")
	}
	if info.FreeMB > info.TotalMB {
		t.Fatalf("free %d exceeds total %d", info.FreeMB, info.TotalMB)
	}
}
