// ABOUTME: Storage capacity estimates for the key-value backend
// ABOUTME: Reports quota, usage, and percentage used; unavailable means zeros
package kvstore

import (
	"context"
	"errors"
)

// ErrEstimateUnavailable is returned by estimators that cannot measure capacity.
var ErrEstimateUnavailable = errors.New("storage estimate unavailable")

// Quota is a point-in-time capacity reading in bytes.
type Quota struct {
	Quota      int64   `json:"quota"`
	Usage      int64   `json:"usage"`
	Available  int64   `json:"available"`
	Percentage float64 `json:"percentage"`
}

// NewQuota derives Available and Percentage from a quota and usage.
func NewQuota(quota, usage int64) Quota {
	q := Quota{Quota: quota, Usage: usage}
	if quota > 0 {
		q.Available = quota - usage
		if q.Available < 0 {
			q.Available = 0
		}
		q.Percentage = float64(usage) / float64(quota) * 100
	}
	return q
}

// Estimator reports storage capacity.
type Estimator interface {
	Estimate(ctx context.Context) (Quota, error)
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc func(ctx context.Context) (Quota, error)

func (f EstimatorFunc) Estimate(ctx context.Context) (Quota, error) {
	return f(ctx)
}

// DiskEstimator measures the filesystem holding Dir. The quota is the bytes
// already used by the store plus the bytes still free on the filesystem.
type DiskEstimator struct {
	Dir   string
	Usage func() int64
}

func (d *DiskEstimator) Estimate(ctx context.Context) (Quota, error) {
	if err := ctx.Err(); err != nil {
		return Quota{}, err
	}
	free, err := freeBytes(d.Dir)
	if err != nil {
		return Quota{}, err
	}
	var usage int64
	if d.Usage != nil {
		usage = d.Usage()
	}
	return NewQuota(free+usage, usage), nil
}

type unavailableEstimator struct{}

func (unavailableEstimator) Estimate(context.Context) (Quota, error) {
	return Quota{}, ErrEstimateUnavailable
}
