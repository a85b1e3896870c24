// Package sense implements the Metric Sampler: per-tick collection of
// interface byte/packet counters, CPU busy percentage, qdisc statistics,
// latency/jitter/loss probing, and the kernel packet-counter map. It never
// fails outright; unavailable sources degrade to zero fields.
package sense

import (
	"log"
	"math/rand"
	"time"

	"github.com/mycoflow/mycoflow/internal/model"
)

// Sampler holds the previous-tick registers needed to compute deltas and
// rates, and the optional eBPF packet counter.
type Sampler struct {
	procRoot string
	rng      *rand.Rand

	havePrev   bool
	prevIface  ifaceCounters
	prevCPU    cpuTimes
	prevTicked time.Time

	havePrevEBPF bool
	prevEBPFPkts uint64

	qdisc *qdiscStatsReader
	ebpf  *packetCounter

	logger *log.Logger
}

// Options configures a Sampler. ProcRoot defaults to "/proc" and exists
// only so tests can point at a fixture tree.
type Options struct {
	ProcRoot string
	Logger   *log.Logger
}

// New returns a Sampler with no qdisc or eBPF backing attached. Attach them
// with AttachQdisc/AttachEBPF once the egress interface is known.
func New(opts Options) *Sampler {
	procRoot := opts.ProcRoot
	if procRoot == "" {
		procRoot = "/proc"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Sampler{
		procRoot: procRoot,
		rng:      rand.New(rand.NewSource(1)),
		logger:   logger,
	}
}

// AttachQdisc opens a routing netlink socket used for qdisc stats dumps.
// Failure is logged and left unattached; Metrics then reports zero qdisc
// fields.
func (s *Sampler) AttachQdisc() {
	r, err := newQdiscStatsReader()
	if err != nil {
		s.logger.Printf("[sense] qdisc stats unavailable: %v", err)
		return
	}
	s.qdisc = r
}

// AttachEBPF loads (and optionally attaches) the kernel packet counter
// program. Failure is logged and left unattached; Metrics then reports
// zero ebpf fields.
func (s *Sampler) AttachEBPF(objPath, iface, direction string, attach bool) {
	pc, err := loadPacketCounter(objPath, iface, direction, attach)
	if err != nil {
		s.logger.Printf("[sense] ebpf packet counter unavailable: %v", err)
		return
	}
	s.ebpf = pc
}

// Close releases the qdisc socket and eBPF resources.
func (s *Sampler) Close() {
	if s.qdisc != nil {
		s.qdisc.Close()
	}
	if s.ebpf != nil {
		s.ebpf.Close()
	}
}

// Sample runs one full Sense cycle for iface, probing probeHost, with
// intervalS the seconds elapsed since the previous tick (used for rate
// computation). It never returns an error; unavailable sources degrade to
// zero fields with a warn log.
func (s *Sampler) Sample(iface, probeHost string, intervalS float64, dummy bool) model.Metrics {
	now := time.Now()
	var m model.Metrics

	if ctrs, ok := readIfaceCounters(s.procRoot, iface); ok {
		if s.havePrev && intervalS > 0 {
			dBytesRx := float64(ctrs.rxBytes - s.prevIface.rxBytes)
			dBytesTx := float64(ctrs.txBytes - s.prevIface.txBytes)
			m.RxBps = (dBytesRx * 8) / intervalS
			m.TxBps = (dBytesTx * 8) / intervalS

			dPackets := (ctrs.rxPackets - s.prevIface.rxPackets) + (ctrs.txPackets - s.prevIface.txPackets)
			dBytes := (ctrs.rxBytes - s.prevIface.rxBytes) + (ctrs.txBytes - s.prevIface.txBytes)
			if dPackets > 0 {
				m.AvgPktSize = float64(dBytes) / float64(dPackets)
			}
		}
		s.prevIface = ctrs
	} else {
		s.logger.Printf("[sense] interface counters unavailable for %s", iface)
	}

	probe, err := s.probe(iface, probeHost, dummy)
	if err != nil {
		s.logger.Printf("[sense] latency probe failed: %v", err)
	}
	m.RTTMs = probe.RTTMs
	m.JitterMs = probe.JitterMs
	m.ProbeLossPct = probe.LossPct

	if cpu, ok := readCPUTimes(s.procRoot); ok {
		if s.havePrev {
			m.CPUPct = cpuPctDelta(s.prevCPU, cpu)
		}
		s.prevCPU = cpu
	} else {
		s.logger.Printf("[sense] cpu accounting unavailable")
	}

	if s.qdisc != nil {
		if ifindex, err := resolveIfindex(iface); err != nil {
			s.logger.Printf("[sense] qdisc ifindex resolution failed: %v", err)
		} else if totals, err := s.qdisc.Sum(ifindex); err != nil {
			s.logger.Printf("[sense] qdisc stats dump failed: %v", err)
		} else {
			m.QdiscBacklog = totals.Backlog
			m.QdiscDrops = totals.Drops
			m.QdiscOverlimits = totals.Overlimits
		}
	}

	if s.ebpf != nil {
		if pkts, bytes, err := s.ebpf.Read(); err != nil {
			s.logger.Printf("[sense] ebpf counter read failed: %v", err)
		} else {
			m.EBPFRxPkts = pkts
			m.EBPFRxBytes = bytes
			if s.havePrevEBPF && intervalS > 0 {
				dPkts := pkts - s.prevEBPFPkts
				m.EBPFPktRate = float64(dPkts) / intervalS
			}
			s.prevEBPFPkts = pkts
			s.havePrevEBPF = true
		}
	}

	s.havePrev = true
	s.prevTicked = now
	return m
}

func (s *Sampler) probe(iface, host string, dummy bool) (probeResult, error) {
	if dummy {
		return dummyProbe(s.rng), nil
	}
	r, err := icmpProbe(iface, host)
	if err != nil {
		fallback := dummyProbe(s.rng)
		fallback.LossPct = 100
		return fallback, err
	}
	return r, nil
}
