package platform

import (
	"os"
	"strconv"
	"strings"
)

// MemoryLimit returns the container memory limit in bytes from the
// cgroup filesystem, trying cgroup v2 first and falling back to v1.
// Returns 0 with a nil error when no limit is detected (unlimited or a
// non-containerized environment).
func MemoryLimit() (int64, error) {
	if data, err := os.ReadFile("/sys/fs/cgroup/memory.max"); err == nil {
		limitStr := strings.TrimSpace(string(data))
		if limitStr != "max" {
			return strconv.ParseInt(limitStr, 10, 64)
		}
		return 0, nil
	}

	if data, err := os.ReadFile("/sys/fs/cgroup/memory/memory.limit_in_bytes"); err == nil {
		return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	}

	return 0, nil
}

// MaxSessionsForMemory derives a safe MaxSessions bound from the
// container memory limit: each Session plus its Subscriptions and
// MonitoredItem sample queues costs roughly bytesPerSession, and
// runtimeOverheadBytes is reserved for the Go runtime and broker
// clients before any of it is available for sessions.
func MaxSessionsForMemory(memoryLimitBytes int64) int {
	const (
		runtimeOverheadBytes = 128 * 1024 * 1024
		bytesPerSession      = 64 * 1024
		minSessions          = 10
		maxSessions          = 50000
		defaultSessions      = 500
	)

	if memoryLimitBytes == 0 {
		return defaultSessions
	}

	available := memoryLimitBytes - runtimeOverheadBytes
	if available < 0 {
		available = memoryLimitBytes / 2
	}

	n := int(available / bytesPerSession)
	if n < minSessions {
		n = minSessions
	}
	if n > maxSessions {
		n = maxSessions
	}
	return n
}
