package cu

import (
	"errors"

	"go.firedancer.io/harness/pkg/safemath"
	"k8s.io/klog/v2"
)

var ErrComputeExceeded = errors.New("Compute exceeded")

// ComputeMeter counts compute units down from a fixed limit. Once a charge
// overdraws it the meter stays empty and every later non-zero charge fails.
type ComputeMeter struct {
	limit     uint64
	remaining uint64
	exceeded  bool
}

func NewComputeMeter(limit uint64) ComputeMeter {
	return ComputeMeter{limit: limit, remaining: limit}
}

func NewComputeMeterDefault() ComputeMeter {
	return NewComputeMeter(DefaultComputeUnitLimit)
}

func (cm *ComputeMeter) Consume(cost uint64) error {
	if cost > cm.remaining {
		klog.V(2).Infof("compute budget exceeded: charge %d, remaining %d of %d", cost, cm.remaining, cm.limit)
		cm.remaining = 0
		cm.exceeded = true
		return ErrComputeExceeded
	}
	cm.remaining = safemath.SaturatingSubU64(cm.remaining, cost)
	return nil
}

func (cm *ComputeMeter) Used() uint64 {
	return cm.limit - cm.remaining
}

func (cm *ComputeMeter) Remaining() uint64 {
	return cm.remaining
}

func (cm *ComputeMeter) Limit() uint64 {
	return cm.limit
}

// Exceeded reports whether any charge has overdrawn the meter.
func (cm *ComputeMeter) Exceeded() bool {
	return cm.exceeded
}
