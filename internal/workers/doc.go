// Package workers sizes worker pools from the CPUs the process is
// actually allowed to use.
//
// runtime.NumCPU reports the host's core count, which is wrong inside
// a cgroup-limited container. GOMAXPROCS tracks the container limit on
// Go 1.19+, so all calculations here start from runtime.GOMAXPROCS(0).
//
// Thumbnail derivation during remote library browsing uses ForMixed:
// each worker downloads a preview (I/O) and then resizes it (CPU).
// Operators can pin the count with the THUMBNAIL_WORKERS environment
// variable.
package workers
