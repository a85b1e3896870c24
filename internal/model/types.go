// Package model defines the data types shared across the reflexive control
// pipeline: the metrics a tick produces, the baseline it is compared
// against, the persona classification, the policy the controller wants
// applied, and the snapshot external readers consume. These types are
// serialized to JSON for the status snapshot and the metric journal.
package model

import (
	"encoding/json"
	"time"
)

// Metrics is produced once per tick by the Sampler and flows through the
// EWMA Smoother, Persona Inferer, and Controller unchanged in shape.
type Metrics struct {
	RTTMs           float64 `json:"rtt_ms"`
	JitterMs        float64 `json:"jitter_ms"`
	RxBps           float64 `json:"rx_bps"`
	TxBps           float64 `json:"tx_bps"`
	CPUPct          float64 `json:"cpu_pct"`
	QdiscBacklog    uint32  `json:"qdisc_backlog"`
	QdiscDrops      uint32  `json:"qdisc_drops"`
	QdiscOverlimits uint32  `json:"qdisc_overlimits"`
	AvgPktSize      float64 `json:"avg_pkt_size"`
	EBPFRxPkts      uint64  `json:"ebpf_rx_pkts"`
	EBPFRxBytes     uint64  `json:"ebpf_rx_bytes"`
	ActiveFlows     int     `json:"active_flows"`
	ElephantFlow    bool    `json:"elephant_flow"`
	EBPFPktRate     float64 `json:"ebpf_pkt_rate"`
	ProbeLossPct    float64 `json:"probe_loss_pct"`
}

// Baseline holds only the two Metrics fields a baseline needs: RTTMs and
// JitterMs, with the same JSON keys as in Metrics.
type Baseline struct {
	RTTMs    float64 `json:"rtt_ms"`
	JitterMs float64 `json:"jitter_ms"`
}

// Persona is the coarse traffic-pattern classification.
type Persona int

const (
	PersonaUnknown Persona = iota
	PersonaInteractive
	PersonaBulk
)

func (p Persona) String() string {
	switch p {
	case PersonaInteractive:
		return "interactive"
	case PersonaBulk:
		return "bulk"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the persona as its lowercase name.
func (p Persona) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON parses the lowercase name written by MarshalJSON; any
// other name decodes as PersonaUnknown.
func (p *Persona) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "interactive":
		*p = PersonaInteractive
	case "bulk":
		*p = PersonaBulk
	default:
		*p = PersonaUnknown
	}
	return nil
}

// Policy is the bandwidth/AQM decision the controller wants actuated.
type Policy struct {
	BandwidthKbit  int  `json:"bandwidth_kbit"`
	IngressBwKbit  int  `json:"ingress_bw_kbit"`
	Boosted        bool `json:"boosted"`
}

// FeedbackRecord tracks whether a single throttle/boost action actually
// moved RTT in the expected direction.
type FeedbackRecord struct {
	Ts        time.Time
	BwBefore  int
	BwAfter   int
	RTTBefore float64
	RTTAfter  float64
	Filled    bool
}

// Snapshot is the concurrency-safe, read-only copy of the controller's
// current view of the world, exposed to the IPC surface and dumped to
// /tmp/myco_state.json each tick.
type Snapshot struct {
	Metrics              Metrics  `json:"metrics"`
	Baseline             Baseline `json:"baseline"`
	Policy               Policy   `json:"policy"`
	Persona              Persona  `json:"persona"`
	Reason               string   `json:"reason"`
	PersonaOverride      bool     `json:"persona_override"`
	PersonaOverrideValue Persona  `json:"persona_override_value"`
	SafeMode             bool     `json:"safe_mode"`
}

// JournalLine is the metric-journal record appended to metric_file each
// tick, one JSON object per line.
type JournalLine struct {
	Ts       float64 `json:"ts"`
	RTTMs    float64 `json:"rtt_ms"`
	JitterMs float64 `json:"jitter_ms"`
	TxBps    float64 `json:"tx_bps"`
	RxBps    float64 `json:"rx_bps"`
	CPUPct   float64 `json:"cpu_pct"`
	Persona  string  `json:"persona"`
	Reason   string  `json:"reason"`
}
