package platform

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

// containerCPU measures CPU usage relative to the cgroup quota actually
// allocated to this process rather than the host's full core count, so
// a 1-CPU container reports near 100% under full load instead of the
// host's (possibly much lower) per-core share.
type containerCPU struct {
	mu             sync.Mutex
	cgroupPath     string
	cgroupVersion  int
	cpusAllocated  float64
	lastUsageUsec  uint64
	lastSampleTime time.Time
}

func newContainerCPU() (*containerCPU, error) {
	path, version, err := detectCgroupPath()
	if err != nil {
		return nil, fmt.Errorf("platform: detect cgroup: %w", err)
	}

	quota, period, err := readCPUQuota(path, version)
	if err != nil {
		return nil, fmt.Errorf("platform: read cpu quota: %w", err)
	}

	allocated := float64(runtime.NumCPU())
	if quota > 0 && period > 0 {
		allocated = float64(quota) / float64(period)
	}

	usage, err := readCPUUsage(path, version)
	if err != nil {
		return nil, fmt.Errorf("platform: read initial cpu usage: %w", err)
	}

	return &containerCPU{
		cgroupPath:     path,
		cgroupVersion:  version,
		cpusAllocated:  allocated,
		lastUsageUsec:  usage,
		lastSampleTime: time.Now(),
	}, nil
}

func (c *containerCPU) percent() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	elapsedUsec := now.Sub(c.lastSampleTime).Microseconds()
	if elapsedUsec == 0 {
		return 0, fmt.Errorf("platform: sample interval too small")
	}

	usage, err := readCPUUsage(c.cgroupPath, c.cgroupVersion)
	if err != nil {
		return 0, err
	}

	delta := usage - c.lastUsageUsec
	c.lastUsageUsec = usage
	c.lastSampleTime = now

	rawPercent := (float64(delta) / float64(elapsedUsec)) * 100.0
	return rawPercent / c.cpusAllocated, nil
}

func detectCgroupPath() (path string, version int, err error) {
	f, err := os.Open("/proc/self/cgroup")
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) != 3 {
			continue
		}
		if parts[0] == "0" && parts[1] == "" {
			return "/sys/fs/cgroup" + parts[2], 2, nil
		}
		if strings.Contains(parts[1], "cpu") {
			return "/sys/fs/cgroup/cpu" + parts[2], 1, nil
		}
	}
	return "", 0, fmt.Errorf("platform: could not detect cgroup path")
}

func readCPUQuota(cgroupPath string, version int) (quota, period int64, err error) {
	if version == 2 {
		data, err := os.ReadFile(cgroupPath + "/cpu.max")
		if err != nil {
			return 0, 0, err
		}
		fields := strings.Fields(string(data))
		if len(fields) != 2 {
			return 0, 0, fmt.Errorf("platform: unexpected cpu.max format: %q", string(data))
		}
		if fields[0] == "max" {
			return -1, 0, nil
		}
		quota, err = strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return 0, 0, err
		}
		period, err = strconv.ParseInt(fields[1], 10, 64)
		return quota, period, err
	}

	quotaData, err := os.ReadFile(cgroupPath + "/cpu.cfs_quota_us")
	if err != nil {
		return 0, 0, err
	}
	periodData, err := os.ReadFile(cgroupPath + "/cpu.cfs_period_us")
	if err != nil {
		return 0, 0, err
	}
	quota, err = strconv.ParseInt(strings.TrimSpace(string(quotaData)), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	period, err = strconv.ParseInt(strings.TrimSpace(string(periodData)), 10, 64)
	return quota, period, err
}

func readCPUUsage(cgroupPath string, version int) (uint64, error) {
	if version == 2 {
		f, err := os.Open(cgroupPath + "/cpu.stat")
		if err != nil {
			return 0, err
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if fields := strings.Fields(scanner.Text()); len(fields) == 2 && fields[0] == "usage_usec" {
				return strconv.ParseUint(fields[1], 10, 64)
			}
		}
		return 0, fmt.Errorf("platform: usage_usec not found in cpu.stat")
	}

	data, err := os.ReadFile(cgroupPath + "/cpuacct.usage")
	if err != nil {
		return 0, err
	}
	nsec, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, err
	}
	return nsec / 1000, nil
}

// CPUMonitor reports CPU usage as a percentage of the CPUs allocated to
// this process, using cgroup accounting when available and falling back
// to host-wide measurement via gopsutil otherwise.
type CPUMonitor struct {
	mode      string
	container *containerCPU
	logger    zerolog.Logger
}

// NewCPUMonitor probes for a usable cgroup and falls back to host CPU
// measurement if none is found (e.g. local development, non-Linux).
func NewCPUMonitor(logger zerolog.Logger) *CPUMonitor {
	c, err := newContainerCPU()
	if err != nil {
		logger.Warn().Err(err).Msg("platform: falling back to host CPU measurement")
		return &CPUMonitor{mode: "host", logger: logger}
	}
	logger.Info().
		Int("cgroup_version", c.cgroupVersion).
		Float64("cpus_allocated", c.cpusAllocated).
		Msg("platform: using container-aware CPU measurement")
	return &CPUMonitor{mode: "container", container: c, logger: logger}
}

// Percent returns CPU usage as a percentage of the allocated CPU
// budget (container quota, or host core count in host mode).
func (m *CPUMonitor) Percent() (float64, error) {
	if m.mode == "container" {
		return m.container.percent()
	}
	pcts, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, fmt.Errorf("platform: no CPU sample returned")
	}
	return pcts[0], nil
}

// Mode reports whether measurement is container-aware or host-wide.
func (m *CPUMonitor) Mode() string { return m.mode }
