// Package baseline captures an idle RTT/jitter reference at startup and
// slowly drifts it toward current conditions, giving the controller a
// moving reference for congestion detection.
package baseline

import "github.com/mycoflow/mycoflow/internal/model"

// Keeper owns the current baseline and the sample accumulator used during
// the startup capture procedure.
type Keeper struct {
	current model.Baseline
	samples []model.Metrics
	want    int
}

// New returns a Keeper that will average `samples` consecutive metrics
// before it reports Ready.
func New(samples int) *Keeper {
	if samples < 1 {
		samples = 1
	}
	return &Keeper{want: samples}
}

// Reset clears any accumulated startup samples, used on configuration
// reload to re-run the startup capture procedure.
func (k *Keeper) Reset(samples int) {
	if samples < 1 {
		samples = 1
	}
	k.want = samples
	k.samples = k.samples[:0]
}

// Ready reports whether the startup baseline has been captured.
func (k *Keeper) Ready() bool {
	return len(k.samples) >= k.want
}

// Feed accumulates one spaced sample during startup capture. Once `want`
// samples have been seen, the baseline is computed as their RTT/jitter
// average and Ready becomes true; further calls are no-ops.
func (k *Keeper) Feed(m model.Metrics) {
	if k.Ready() {
		return
	}
	k.samples = append(k.samples, m)
	if len(k.samples) < k.want {
		return
	}
	var rttSum, jitterSum float64
	for _, s := range k.samples {
		rttSum += s.RTTMs
		jitterSum += s.JitterMs
	}
	n := float64(len(k.samples))
	k.current = model.Baseline{RTTMs: rttSum / n, JitterMs: jitterSum / n}
}

// Current returns the latest baseline, zero-valued until Ready.
func (k *Keeper) Current() model.Baseline {
	return k.current
}

// Drift slides the baseline toward the current sample: baseline ← (1-d)
// ·baseline + d·current, applied only to RTTMs and JitterMs, with weight
// d = decay.
func (k *Keeper) Drift(current model.Metrics, decay float64) {
	k.current.RTTMs = (1-decay)*k.current.RTTMs + decay*current.RTTMs
	k.current.JitterMs = (1-decay)*k.current.JitterMs + decay*current.JitterMs
}
