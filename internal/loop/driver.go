// Package loop wires the Sense/Infer/Decide/Act pipeline into the
// per-tick driver: a single goroutine advanced by a time.Ticker, honouring
// context cancellation and a configuration-reload channel, enforcing
// action pacing, and publishing the state snapshot each cycle.
package loop

import (
	"context"
	"time"

	"github.com/mycoflow/mycoflow/internal/actuator"
	"github.com/mycoflow/mycoflow/internal/baseline"
	"github.com/mycoflow/mycoflow/internal/config"
	"github.com/mycoflow/mycoflow/internal/controller"
	"github.com/mycoflow/mycoflow/internal/ewma"
	"github.com/mycoflow/mycoflow/internal/flow"
	"github.com/mycoflow/mycoflow/internal/logging"
	"github.com/mycoflow/mycoflow/internal/model"
	"github.com/mycoflow/mycoflow/internal/persona"
	"github.com/mycoflow/mycoflow/internal/sense"
	"github.com/mycoflow/mycoflow/internal/snapshot"
)

// ConntrackPath is the default kernel connection-tracking table read each
// tick to populate the flow table.
const ConntrackPath = "/proc/net/nf_conntrack"

// Driver owns every piece of per-tick state exclusively; only the
// Store and the persona override inside Persona are shared with the IPC
// goroutine, behind their own locking.
type Driver struct {
	Cfg config.Config
	Log *logging.Logger

	Sampler  *sense.Sampler
	RTTEWMA  *ewma.Filter
	JitEWMA  *ewma.Filter
	Flows    *flow.Table
	Persona  *persona.State
	Baseline *baseline.Keeper
	Ctrl     *controller.State
	Act      *actuator.Actuator
	Store    *snapshot.Store
	Journal  *snapshot.Journal

	DumpPath      string
	ConntrackPath string

	Reload chan struct{}

	cycle          int
	lastAction     time.Time
	lastPersona    model.Persona
	haveLastAction bool
}

// New builds a Driver from an already-loaded configuration. Callers are
// responsible for closing the returned Driver's Sampler and Journal.
func New(cfg config.Config, log *logging.Logger) *Driver {
	samplerOpts := sense.Options{Logger: log.StdLogger()}
	sampler := sense.New(samplerOpts)
	if cfg.EBPFEnabled {
		sampler.AttachEBPF(cfg.EBPFObj, cfg.EgressIface, cfg.EBPFTCDir, cfg.EBPFAttach)
	}
	sampler.AttachQdisc()

	journal, err := snapshot.OpenJournal(cfg.MetricFile)
	if err != nil {
		log.Warnf("loop: metric journal unavailable: %v", err)
		journal, _ = snapshot.OpenJournal("")
	}

	d := &Driver{
		Cfg:      cfg,
		Log:      log,
		Sampler:  sampler,
		RTTEWMA:  ewma.New(cfg.EWMAAlpha),
		JitEWMA:  ewma.New(cfg.EWMAAlpha),
		Flows:    flow.New(),
		Persona:  persona.New(),
		Baseline: baseline.New(cfg.BaselineSamples),
		Ctrl:     controller.NewState(cfg.BandwidthKbit),
		Act: actuator.New(actuator.Options{
			NoTC:      cfg.NoTC,
			ForceFail: cfg.ForceActFail,
			Logger:    log.StdLogger(),
		}),
		Store:         snapshot.New(),
		Journal:       journal,
		DumpPath:      snapshot.DefaultDumpPath,
		ConntrackPath: ConntrackPath,
		Reload:        make(chan struct{}, 1),
		lastPersona:   model.PersonaUnknown,
	}
	if cfg.IngressEnabled {
		d.Ctrl.Current.IngressBwKbit = cfg.IngressBandwidthKbit
		d.Ctrl.LastStable.IngressBwKbit = cfg.IngressBandwidthKbit
	}
	return d
}

// Close releases the sampler and journal resources.
func (d *Driver) Close() {
	d.Sampler.Close()
	d.Journal.Close()
}

// RequestReload signals the driver to reload configuration on its next
// tick boundary, matching the SIGHUP-translated-to-channel-send design.
func (d *Driver) RequestReload() {
	select {
	case d.Reload <- struct{}{}:
	default:
	}
}

// Run drives ticks until ctx is cancelled. reloadFn is invoked whenever a
// reload is requested and returns the freshly overlaid configuration.
func (d *Driver) Run(ctx context.Context, reloadFn func() (config.Config, error)) error {
	if d.Cfg.IngressEnabled {
		if _, err := d.Act.SetupIngressIFB(ctx, d.Cfg.EgressIface, d.Cfg.IngressIface, d.Cfg.IngressBandwidthKbit); err != nil {
			d.Log.Warnf("loop: ingress IFB setup failed: %v", err)
		}
	}

	interval := time.Duration(float64(time.Second) / d.Cfg.SampleHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.Reload:
			d.doReload(reloadFn)
			interval = time.Duration(float64(time.Second) / d.Cfg.SampleHz)
			ticker.Reset(interval)
		case now := <-ticker.C:
			d.tick(ctx, now)
		}
	}
}

func (d *Driver) doReload(reloadFn func() (config.Config, error)) {
	if reloadFn == nil {
		return
	}
	cfg, err := reloadFn()
	if err != nil {
		d.Log.Warnf("loop: config reload failed, keeping previous config: %v", err)
		return
	}
	d.Cfg = cfg
	d.Log.SetLevel(cfg.LogLevel)
	d.RTTEWMA.Reset()
	d.JitEWMA.Reset()
	d.Baseline.Reset(cfg.BaselineSamples)
}

// tick runs one full Sense -> Infer -> Decide -> Act cycle.
func (d *Driver) tick(ctx context.Context, now time.Time) {
	if !d.Cfg.Enabled {
		return
	}
	d.cycle++
	interval := 1.0 / d.Cfg.SampleHz

	metrics := d.Sampler.Sample(d.Cfg.EgressIface, d.Cfg.ProbeHost, interval, d.Cfg.DummyMetrics)

	if err := d.Flows.PopulateFromConntrack(d.ConntrackPath, now); err != nil {
		d.Log.Warnf("loop: conntrack table unavailable: %v", err)
	}
	d.Flows.EvictStale(now, flow.DefaultMaxAge)
	sig := d.Flows.DeriveSignals()
	metrics.ActiveFlows = sig.ActiveFlows
	metrics.ElephantFlow = sig.ElephantFlow

	if !d.Baseline.Ready() {
		d.Baseline.Feed(metrics)
	}

	rawRTT, rawJitter := metrics.RTTMs, metrics.JitterMs
	metrics.RTTMs = d.RTTEWMA.Apply(rawRTT)
	metrics.JitterMs = d.JitEWMA.Apply(rawJitter)

	candidate := persona.Candidate(metrics)
	d.Persona.Update(candidate)
	effective := d.Persona.Effective()

	baselineVal := d.Baseline.Current()
	ctrlCfg := controller.Config{
		MaxCPUPct:         d.Cfg.MaxCPUPct,
		RTTMarginFactor:   d.Cfg.RTTMarginFactor,
		MinBandwidthKbit:  d.Cfg.MinBandwidthKbit,
		MaxBandwidthKbit:  d.Cfg.MaxBandwidthKbit,
		BandwidthStepKbit: d.Cfg.BandwidthStepKbit,
	}
	desired, reason, needsAction := d.Ctrl.Decide(ctrlCfg, metrics, baselineVal, effective, now)

	active, overrideVal := d.Persona.OverrideActive()
	d.Store.Update(model.Snapshot{
		Metrics:              metrics,
		Baseline:             baselineVal,
		Policy:               desired,
		Persona:              effective,
		Reason:               reason,
		PersonaOverride:      active,
		PersonaOverrideValue: overrideVal,
		SafeMode:             d.Ctrl.SafeMode,
	})
	if err := d.Store.DumpJSON(d.DumpPath); err != nil {
		d.Log.Warnf("loop: snapshot dump failed: %v", err)
	}
	if err := d.Journal.Write(model.JournalLine{
		Ts:       float64(now.UnixNano()) / 1e9,
		RTTMs:    metrics.RTTMs,
		JitterMs: metrics.JitterMs,
		TxBps:    metrics.TxBps,
		RxBps:    metrics.RxBps,
		CPUPct:   metrics.CPUPct,
		Persona:  effective.String(),
		Reason:   reason,
	}); err != nil {
		d.Log.Warnf("loop: metric journal write failed: %v", err)
	}

	if d.cycle%d.Cfg.BaselineUpdateInterval == 0 {
		d.Baseline.Drift(metrics, d.Cfg.BaselineDecay)
	}

	if d.Ctrl.SafeMode {
		d.lastPersona = effective
		return
	}

	if effective != d.lastPersona {
		if _, err := d.Act.ApplyPersonaTin(ctx, d.Cfg.EgressIface, effective, desired.BandwidthKbit); err != nil {
			d.Log.Warnf("loop: apply_persona_tin failed: %v", err)
		}
		d.lastPersona = effective
	}

	if !needsAction {
		return
	}

	minInterval := time.Duration(d.Cfg.ActionCooldownS * float64(time.Second))
	if rl := time.Duration(float64(time.Second) / d.Cfg.ActionRateLimit); rl > minInterval {
		minInterval = rl
	}
	if d.haveLastAction && now.Sub(d.lastAction) < minInterval {
		return
	}

	ok, err := d.Act.ApplyPolicy(ctx, d.Cfg.EgressIface, desired)
	if err != nil {
		d.Log.Warnf("loop: apply_policy failed: %v", err)
	}
	if ok && d.Cfg.IngressEnabled && desired.IngressBwKbit > 0 {
		if _, err := d.Act.ApplyIngressPolicy(ctx, d.Cfg.IngressIface, effective, desired.IngressBwKbit); err != nil {
			d.Log.Warnf("loop: apply_ingress_policy failed: %v", err)
		}
	}
	d.Ctrl.OnActionResult(ok)
	d.lastAction = now
	d.haveLastAction = true
}
