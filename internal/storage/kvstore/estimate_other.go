//go:build !linux && !darwin && !freebsd

// ABOUTME: Free space lookup fallback for platforms without statfs
// ABOUTME: Always reports the estimate as unavailable
package kvstore

func freeBytes(string) (int64, error) {
	return 0, ErrEstimateUnavailable
}
