// Package config loads the controller's configuration from three layered
// sources, in increasing priority: compiled-in defaults, a host
// configuration store (OpenWrt UCI), and environment variables. This
// mirrors the load order of the original myco_config.c.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds every tunable the reflexive loop reads. It is treated as
// immutable for the duration of a tick; reload produces a new value.
type Config struct {
	Enabled      bool
	EgressIface  string
	SampleHz     float64
	MaxCPUPct    float64
	LogLevel     int
	DummyMetrics bool

	BaselineSamples int

	ActionCooldownS float64
	ActionRateLimit float64

	BandwidthKbit     int
	BandwidthStepKbit int
	MinBandwidthKbit  int
	MaxBandwidthKbit  int

	NoTC         bool
	MetricFile   string
	ProbeHost    string
	ForceActFail bool

	EBPFEnabled bool
	EBPFObj     string
	EBPFAttach  bool
	EBPFTCDir   string

	EWMAAlpha              float64
	BaselineDecay          float64
	BaselineUpdateInterval int
	RTTMarginFactor        float64

	IngressEnabled       bool
	IngressIface         string
	IngressBandwidthKbit int
}

// Default returns the compiled-in defaults, matching myco_config.c's
// config_defaults exactly.
func Default() Config {
	return Config{
		Enabled:      true,
		EgressIface:  "eth0",
		SampleHz:     1.0,
		MaxCPUPct:    40.0,
		LogLevel:     2,
		DummyMetrics: true,

		BaselineSamples: 5,

		ActionCooldownS: 3.0,
		ActionRateLimit: 0.5,

		BandwidthKbit:     20000,
		BandwidthStepKbit: 2000,
		MinBandwidthKbit:  2000,
		MaxBandwidthKbit:  100000,

		NoTC:         true,
		ProbeHost:    "1.1.1.1",
		ForceActFail: false,

		EBPFEnabled: false,
		EBPFObj:     "/usr/lib/mycoflow/mycoflow.bpf.o",
		EBPFAttach:  false,
		EBPFTCDir:   "ingress",

		EWMAAlpha:              0.3,
		BaselineDecay:          0.05,
		BaselineUpdateInterval: 60,
		RTTMarginFactor:        1.0,

		IngressEnabled:       false,
		IngressIface:         "ifb0",
		IngressBandwidthKbit: 0,
	}
}

// UCISource overlays options from a host configuration store. It is
// satisfied by *UCIReader (internal/config/uci.go); tests supply a stub.
type UCISource interface {
	Get(option string) (string, bool)
}

// Load builds the effective configuration: defaults, then a UCI overlay
// (if uci is non-nil), then environment variables prefixed MYCOFLOW_.
// Invalid or out-of-range values are clamped per §8 of the design.
func Load(uci UCISource) (Config, error) {
	cfg := Default()

	if uci != nil {
		applyUCI(&cfg, uci)
	}
	applyEnv(&cfg)

	clamp(&cfg)
	if cfg.EgressIface == "" {
		return cfg, fmt.Errorf("config: egress_iface must not be empty")
	}
	return cfg, nil
}

func clamp(cfg *Config) {
	if cfg.SampleHz <= 0.1 {
		cfg.SampleHz = 0.1
	}
	if cfg.ActionRateLimit <= 0 {
		cfg.ActionRateLimit = 0.1
	}
	if cfg.MinBandwidthKbit < 100 {
		cfg.MinBandwidthKbit = 100
	}
	if cfg.MaxBandwidthKbit < cfg.MinBandwidthKbit {
		cfg.MaxBandwidthKbit = cfg.MinBandwidthKbit
	}
	if cfg.BandwidthKbit < cfg.MinBandwidthKbit {
		cfg.BandwidthKbit = cfg.MinBandwidthKbit
	}
	if cfg.BandwidthKbit > cfg.MaxBandwidthKbit {
		cfg.BandwidthKbit = cfg.MaxBandwidthKbit
	}
	if cfg.EWMAAlpha <= 0 || cfg.EWMAAlpha > 1 {
		cfg.EWMAAlpha = 0.3
	}
	if cfg.BaselineSamples < 1 {
		cfg.BaselineSamples = 1
	}
	if cfg.BaselineUpdateInterval < 1 {
		cfg.BaselineUpdateInterval = 1
	}
}

// optionNames maps a Config field to its UCI/env option key, matching the
// names recognised by myco_config.c's option table.
var optionNames = []string{
	"enabled", "egress_iface", "sample_hz", "max_cpu_pct", "log_level", "dummy_metrics",
	"baseline_samples", "action_cooldown_s", "action_rate_limit",
	"bandwidth_kbit", "bandwidth_step_kbit", "min_bandwidth_kbit", "max_bandwidth_kbit",
	"no_tc", "metric_file", "probe_host", "force_act_fail",
	"ebpf_enabled", "ebpf_obj", "ebpf_attach", "ebpf_tc_dir",
	"ewma_alpha", "baseline_decay", "baseline_update_interval", "rtt_margin_factor",
	"ingress_enabled", "ingress_iface", "ingress_bandwidth_kbit",
}

func applyUCI(cfg *Config, uci UCISource) {
	for _, opt := range optionNames {
		if v, ok := uci.Get(opt); ok {
			setOption(cfg, opt, v)
		}
	}
}

func applyEnv(cfg *Config) {
	for _, opt := range optionNames {
		key := "MYCOFLOW_" + envName(opt)
		if v, ok := os.LookupEnv(key); ok {
			setOption(cfg, opt, v)
		}
	}
}

func envName(option string) string {
	out := make([]byte, 0, len(option))
	for _, c := range option {
		if c == '-' {
			c = '_'
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, byte(c))
	}
	return string(out)
}

func setOption(cfg *Config, option, raw string) {
	switch option {
	case "enabled":
		cfg.Enabled = parseBool(raw, cfg.Enabled)
	case "egress_iface":
		cfg.EgressIface = raw
	case "sample_hz":
		cfg.SampleHz = parseFloat(raw, cfg.SampleHz)
	case "max_cpu_pct":
		cfg.MaxCPUPct = parseFloat(raw, cfg.MaxCPUPct)
	case "log_level":
		cfg.LogLevel = parseInt(raw, cfg.LogLevel)
	case "dummy_metrics":
		cfg.DummyMetrics = parseBool(raw, cfg.DummyMetrics)
	case "baseline_samples":
		cfg.BaselineSamples = parseInt(raw, cfg.BaselineSamples)
	case "action_cooldown_s":
		cfg.ActionCooldownS = parseFloat(raw, cfg.ActionCooldownS)
	case "action_rate_limit":
		cfg.ActionRateLimit = parseFloat(raw, cfg.ActionRateLimit)
	case "bandwidth_kbit":
		cfg.BandwidthKbit = parseInt(raw, cfg.BandwidthKbit)
	case "bandwidth_step_kbit":
		cfg.BandwidthStepKbit = parseInt(raw, cfg.BandwidthStepKbit)
	case "min_bandwidth_kbit":
		cfg.MinBandwidthKbit = parseInt(raw, cfg.MinBandwidthKbit)
	case "max_bandwidth_kbit":
		cfg.MaxBandwidthKbit = parseInt(raw, cfg.MaxBandwidthKbit)
	case "no_tc":
		cfg.NoTC = parseBool(raw, cfg.NoTC)
	case "metric_file":
		cfg.MetricFile = raw
	case "probe_host":
		cfg.ProbeHost = raw
	case "force_act_fail":
		cfg.ForceActFail = parseBool(raw, cfg.ForceActFail)
	case "ebpf_enabled":
		cfg.EBPFEnabled = parseBool(raw, cfg.EBPFEnabled)
	case "ebpf_obj":
		cfg.EBPFObj = raw
	case "ebpf_attach":
		cfg.EBPFAttach = parseBool(raw, cfg.EBPFAttach)
	case "ebpf_tc_dir":
		cfg.EBPFTCDir = raw
	case "ewma_alpha":
		cfg.EWMAAlpha = parseFloat(raw, cfg.EWMAAlpha)
	case "baseline_decay":
		cfg.BaselineDecay = parseFloat(raw, cfg.BaselineDecay)
	case "baseline_update_interval":
		cfg.BaselineUpdateInterval = parseInt(raw, cfg.BaselineUpdateInterval)
	case "rtt_margin_factor":
		cfg.RTTMarginFactor = parseFloat(raw, cfg.RTTMarginFactor)
	case "ingress_enabled":
		cfg.IngressEnabled = parseBool(raw, cfg.IngressEnabled)
	case "ingress_iface":
		cfg.IngressIface = raw
	case "ingress_bandwidth_kbit":
		cfg.IngressBandwidthKbit = parseInt(raw, cfg.IngressBandwidthKbit)
	}
}

func parseBool(s string, fallback bool) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return v
}

func parseInt(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
