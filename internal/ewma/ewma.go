// Package ewma implements the exponentially-weighted moving average used
// to smooth RTT and jitter before they reach the controller.
package ewma

// Filter is a stateful scalar EWMA smoother, constructed with New. The
// zero value has alpha 0 and keeps returning its first sample.
type Filter struct {
	alpha       float64
	value       float64
	initialized bool
}

// New returns a Filter with the given alpha; an alpha outside (0,1] is
// replaced by 1.
func New(alpha float64) *Filter {
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	return &Filter{alpha: alpha}
}

// Apply feeds x through the filter and returns the smoothed value. On the
// first call the output equals the input.
func (f *Filter) Apply(x float64) float64 {
	if !f.initialized {
		f.value = x
		f.initialized = true
		return f.value
	}
	f.value = f.alpha*x + (1-f.alpha)*f.value
	return f.value
}

// Value returns the current smoothed value without advancing the filter.
func (f *Filter) Value() float64 {
	return f.value
}

// Reset clears the filter so the next Apply call reseeds it, used on
// configuration reload.
func (f *Filter) Reset() {
	f.initialized = false
	f.value = 0
}
