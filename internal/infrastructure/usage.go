package infrastructure

import (
	"github.com/shirou/gopsutil/v3/process"
)

// usageSampler records CPU and memory of a running child
type usageSampler struct {
	proc  *process.Process
	usage ResourceUsage
}

func newUsageSampler(pid int) *usageSampler {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		// already gone
		return &usageSampler{}
	}
	return &usageSampler{proc: proc}
}

func (u *usageSampler) sample() {
	if u.proc == nil {
		return
	}
	if cpu, err := u.proc.CPUPercent(); err == nil {
		u.usage.CPUPercent = cpu
	}
	if mem, err := u.proc.MemoryInfo(); err == nil && mem != nil {
		if mem.RSS > u.usage.PeakRSS {
			u.usage.PeakRSS = mem.RSS
		}
	}
	u.usage.Samples++
}
