// Package ipc exposes the controller's status snapshot and policy/persona
// overrides as MCP tools over stdio, in place of the source's ubus object.
// A single mutex linearises IPC-issued policy changes against the loop
// driver's own tick, matching the design's "IPC thread holds the mutex
// across apply_policy" rule.
package ipc

import (
	"context"
	"sync"

	"github.com/mycoflow/mycoflow/internal/actuator"
	"github.com/mycoflow/mycoflow/internal/controller"
	"github.com/mycoflow/mycoflow/internal/logging"
	"github.com/mycoflow/mycoflow/internal/model"
	"github.com/mycoflow/mycoflow/internal/persona"
	"github.com/mycoflow/mycoflow/internal/snapshot"
)

// Deps wires the IPC surface to the live loop state. The loop driver and
// the IPC goroutine both hold a reference to the same Deps; Mu guards the
// fields the loop driver also mutates (Ctrl, Persona) for the short window
// an IPC handler needs to read-modify-actuate-write them.
type Deps struct {
	Mu sync.Mutex

	Store  *snapshot.Store
	Ctrl   *controller.State
	CtrlCfg controller.Config
	Act    *actuator.Actuator
	Persona *persona.State
	Log    *logging.Logger

	EgressIface    string
	IngressEnabled bool
	IngressIface   string
}

// applyAndRecord actuates a new bandwidth value on the egress (and, if
// enabled, mirrored ingress) interface, updates controller state and the
// snapshot, and reports success. Callers must hold d.Mu.
func (d *Deps) applyAndRecord(ctx context.Context, bwKbit int, reason string) (bool, error) {
	policy := d.Ctrl.Current
	delta := bwKbit - policy.BandwidthKbit
	policy.BandwidthKbit = bwKbit
	if policy.IngressBwKbit > 0 || d.IngressEnabled {
		ingress := policy.IngressBwKbit + delta
		if ingress < 0 {
			ingress = 0
		}
		policy.IngressBwKbit = ingress
	}

	ok, err := d.Act.ApplyPolicy(ctx, d.EgressIface, policy)
	if err != nil || !ok {
		d.Ctrl.OnActionResult(false)
		return false, err
	}

	if d.IngressEnabled && policy.IngressBwKbit > 0 {
		effective := d.Persona.Effective()
		if _, err := d.Act.ApplyIngressPolicy(ctx, d.IngressIface, effective, policy.IngressBwKbit); err != nil {
			d.Log.Warnf("ipc: ingress policy apply failed: %v", err)
		}
	}

	d.Ctrl.Current = policy
	d.Ctrl.LastStable = policy
	d.Ctrl.StableCycles = 0
	d.Ctrl.OnActionResult(true)

	snap := d.Store.Get()
	snap.Policy = policy
	snap.Reason = reason
	snap.SafeMode = d.Ctrl.SafeMode
	d.Store.Update(snap)
	return true, nil
}

func clampBw(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func personaByName(name string) (model.Persona, bool) {
	switch name {
	case "interactive":
		return model.PersonaInteractive, true
	case "bulk":
		return model.PersonaBulk, true
	case "unknown":
		return model.PersonaUnknown, true
	default:
		return model.PersonaUnknown, false
	}
}
