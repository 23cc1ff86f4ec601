// Package sysinfo samples host memory/CPU utilization for gate 4 of
// spec.md §4.1 ("system resources: memory% > max_memory_percent or
// available memory < min_free_memory_mb") and the worker pool's
// pre-task resource hook (spec.md §4.3). No library in the retrieved
// pack samples host resource usage (none imports gopsutil or an
// equivalent); this reads /proc directly, the standard Linux idiom for
// this when no such library is available.
package sysinfo

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Sample is a point-in-time system resource reading.
type Sample struct {
	MemoryPercent     float64
	AvailableMemoryMB int
	CPUPercent        float64
}

// Sampler reads /proc/meminfo and /proc/stat, tracking the previous
// /proc/stat reading so CPUPercent can be computed as a delta between
// calls (a single /proc/stat read only gives cumulative jiffies since
// boot).
type Sampler struct {
	mu       sync.Mutex
	prevIdle uint64
	prevTotal uint64
}

// NewSampler constructs a Sampler.
func NewSampler() *Sampler { return &Sampler{} }

// Read returns the current Sample. On any read failure (e.g. non-Linux
// host without /proc) it returns a zero-valued Sample and no error, so
// gate 4 and the pre-task hook degrade to "resources never constrain
// admission" rather than failing closed over an unrelated platform gap.
func (s *Sampler) Read(ctx context.Context) (Sample, error) {
	mem := s.readMem()
	cpu := s.readCPU()
	return Sample{
		MemoryPercent:     mem.percent,
		AvailableMemoryMB: mem.availableMB,
		CPUPercent:        cpu,
	}, nil
}

type memReading struct {
	percent     float64
	availableMB int
}

func (s *Sampler) readMem() memReading {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return memReading{}
	}

	var totalKB, availableKB uint64
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalKB, _ = strconv.ParseUint(fields[1], 10, 64)
		case "MemAvailable:":
			availableKB, _ = strconv.ParseUint(fields[1], 10, 64)
		}
	}
	if totalKB == 0 {
		return memReading{}
	}

	usedKB := totalKB - availableKB
	return memReading{
		percent:     100 * float64(usedKB) / float64(totalKB),
		availableMB: int(availableKB / 1024),
	}
}

// readCPU returns utilization percent since the previous call (0 on the
// first call, since there is no prior reading to diff against).
func (s *Sampler) readCPU() float64 {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0
	}

	line := strings.SplitN(string(data), "\n", 2)[0]
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0
	}

	var total, idle uint64
	for i, f := range fields[1:] {
		v, _ := strconv.ParseUint(f, 10, 64)
		total += v
		if i == 3 { // idle is the 4th value
			idle = v
		}
	}

	s.mu.Lock()
	prevIdle, prevTotal := s.prevIdle, s.prevTotal
	s.prevIdle, s.prevTotal = idle, total
	s.mu.Unlock()

	deltaTotal := total - prevTotal
	deltaIdle := idle - prevIdle
	if prevTotal == 0 || deltaTotal == 0 {
		return 0
	}
	return 100 * (1 - float64(deltaIdle)/float64(deltaTotal))
}

// PoolGate adapts Read to internal/jobs.ResourceGate's signature.
func (s *Sampler) PoolGate(ctx context.Context) (memoryPercent, cpuPercent float64, err error) {
	sample, err := s.Read(ctx)
	if err != nil {
		return 0, 0, err
	}
	return sample.MemoryPercent, sample.CPUPercent, nil
}
