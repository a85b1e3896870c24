package sense

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// probeResult is the outcome of one latency/loss probe cycle.
type probeResult struct {
	RTTMs    float64
	JitterMs float64
	LossPct  float64
}

// dummyProbe generates a synthetic RTT uniformly in [10,20) ms, with a 5%
// chance of adding a uniform [0,60) ms spike, matching the source's
// dummy_metrics mode. A single synthetic sample has no jitter signal of
// its own, so jitter is derived as half the spike magnitude when one
// occurs and left at a small nominal value otherwise.
func dummyProbe(rng *rand.Rand) probeResult {
	rtt := 10 + rng.Float64()*10
	jitter := 1.0
	if rng.Float64() < 0.05 {
		spike := rng.Float64() * 60
		rtt += spike
		jitter = spike / 2
	}
	return probeResult{RTTMs: rtt, JitterMs: jitter, LossPct: 0}
}

// icmpProbe issues three ICMP echo requests bound to iface, targeting
// host, one second apart, and reports the mean RTT, the sample standard
// deviation as jitter, and packet loss percentage. A single 3s timeout
// covers the whole run; individual requests have no timeout of their own.
// On total failure the caller falls back to the synthetic generator.
func icmpProbe(iface, host string) (probeResult, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return probeResult{}, fmt.Errorf("create pinger: %w", err)
	}
	pinger.Count = 3
	pinger.Timeout = 3 * time.Second
	pinger.Interval = 1 * time.Second
	if iface != "" {
		pinger.InterfaceName = iface
	}
	pinger.SetPrivileged(true)

	if err := pinger.Run(); err != nil {
		return probeResult{}, fmt.Errorf("run pinger: %w", err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return probeResult{LossPct: 100}, fmt.Errorf("no echo replies received")
	}

	rtts := make([]float64, 0, len(stats.Rtts))
	for _, d := range stats.Rtts {
		rtts = append(rtts, float64(d.Microseconds())/1000.0)
	}
	return probeResult{
		RTTMs:    mean(rtts),
		JitterMs: stddev(rtts),
		LossPct:  stats.PacketLoss,
	}, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}
