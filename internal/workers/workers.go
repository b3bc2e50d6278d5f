package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns a worker count sized from GOMAXPROCS, which tracks
// container CPU limits on Go 1.19+. The multiplier adjusts for the
// workload (1.0 CPU-bound, 2.0 I/O-bound, 1.5 mixed) and limit caps
// the result; pass 0 for no cap.
//
// THUMBNAIL_WORKERS overrides the calculation when set to a positive
// integer, still subject to limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("THUMBNAIL_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns a worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns a worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns a worker count for mixed tasks such as thumbnail
// derivation, which downloads a preview and then resizes it (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
