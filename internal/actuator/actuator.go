// Package actuator translates a desired policy into qdisc commands: CAKE
// bandwidth/AQM-target changes on the egress interface, and optional
// ingress shaping via an intermediate-functional-block (IFB) device. All
// actuation is external-process driven (tc/ip) except IFB device lifecycle,
// which uses netlink directly; interface names are validated before any
// command is built.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"syscall"

	"github.com/mycoflow/mycoflow/internal/model"
	"github.com/mycoflow/mycoflow/internal/runner"
	"github.com/vishvananda/netlink"
)

// ErrInvalidInterface is returned when an interface name fails validation
// before any command would be built.
var ErrInvalidInterface = errors.New("actuator: invalid interface name")

// tinParams is the AQM target/interval pair programmed per persona.
type tinParams struct {
	targetMs   int
	intervalMs int
}

var personaTins = map[model.Persona]tinParams{
	model.PersonaInteractive: {targetMs: 5, intervalMs: 50},
	model.PersonaBulk:        {targetMs: 20, intervalMs: 200},
	model.PersonaUnknown:     {targetMs: 5, intervalMs: 100},
}

// Actuator programs the shaping qdisc via the hardened tc/ip runner.
type Actuator struct {
	run       *runner.Runner
	noTC      bool
	forceFail bool
	logger    *log.Logger
}

// Options configures an Actuator.
type Options struct {
	NoTC      bool // dry-run: validate and log, never invoke tc/ip
	ForceFail bool // test hook: every operation reports failure
	Logger    *log.Logger
}

// New returns an Actuator using the default allowlisted tc/ip runner.
func New(opts Options) *Actuator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Actuator{run: runner.New(), noTC: opts.NoTC, forceFail: opts.ForceFail, logger: logger}
}

// ApplyPolicy programs iface's egress qdisc to policy's bandwidth. It
// attempts an in-place "change" first (preserving queue state) and falls
// back to "replace" on failure.
func (a *Actuator) ApplyPolicy(ctx context.Context, iface string, policy model.Policy) (bool, error) {
	if !runner.ValidInterfaceName(iface) {
		return false, fmt.Errorf("%w: %q", ErrInvalidInterface, iface)
	}
	if a.forceFail {
		return false, nil
	}
	if a.noTC {
		a.logger.Printf("[actuator] (dry-run) apply_policy iface=%s bandwidth_kbit=%d", iface, policy.BandwidthKbit)
		return true, nil
	}

	args := []string{"qdisc", "change", "dev", iface, "root", "cake", "bandwidth", fmt.Sprintf("%dkbit", policy.BandwidthKbit)}
	if _, err := a.run.Run(ctx, "tc", args); err == nil {
		return true, nil
	}

	args[1] = "replace"
	if _, err := a.run.Run(ctx, "tc", args); err != nil {
		return false, fmt.Errorf("apply_policy replace %s: %w", iface, err)
	}
	return true, nil
}

// ApplyPersonaTin programs AQM target/interval for the committed persona on
// iface at the given bandwidth. Called only when the committed persona
// changes; not rate-limited.
func (a *Actuator) ApplyPersonaTin(ctx context.Context, iface string, persona model.Persona, bwKbit int) (bool, error) {
	if !runner.ValidInterfaceName(iface) {
		return false, fmt.Errorf("%w: %q", ErrInvalidInterface, iface)
	}
	if a.forceFail {
		return false, nil
	}

	tin := personaTins[persona]
	if a.noTC {
		a.logger.Printf("[actuator] (dry-run) apply_persona_tin iface=%s persona=%s target=%dms interval=%dms",
			iface, persona, tin.targetMs, tin.intervalMs)
		return true, nil
	}

	args := []string{
		"qdisc", "change", "dev", iface, "root", "cake",
		"bandwidth", fmt.Sprintf("%dkbit", bwKbit),
		"diffserv4", "target", fmt.Sprintf("%dms", tin.targetMs), "interval", fmt.Sprintf("%dms", tin.intervalMs),
	}
	if _, err := a.run.Run(ctx, "tc", args); err == nil {
		return true, nil
	}

	args[1] = "replace"
	if _, err := a.run.Run(ctx, "tc", args); err != nil {
		return false, fmt.Errorf("apply_persona_tin replace %s: %w", iface, err)
	}
	return true, nil
}

// ApplyIngressPolicy applies the same persona tin parameters to the IFB
// device backing ingress shaping.
func (a *Actuator) ApplyIngressPolicy(ctx context.Context, ifb string, persona model.Persona, bwKbit int) (bool, error) {
	return a.ApplyPersonaTin(ctx, ifb, persona, bwKbit)
}

// SetupIngressIFB creates the IFB device if absent, brings it up, attaches
// an ingress qdisc on wan, redirects ingress traffic to ifb, and installs
// the shaping qdisc on ifb. EEXIST from prior state is tolerated.
func (a *Actuator) SetupIngressIFB(ctx context.Context, wan, ifb string, bwKbit int) (bool, error) {
	if !runner.ValidInterfaceName(wan) {
		return false, fmt.Errorf("%w: %q", ErrInvalidInterface, wan)
	}
	if !runner.ValidInterfaceName(ifb) {
		return false, fmt.Errorf("%w: %q", ErrInvalidInterface, ifb)
	}
	if a.forceFail {
		return false, nil
	}
	if a.noTC {
		a.logger.Printf("[actuator] (dry-run) setup_ingress_ifb wan=%s ifb=%s bandwidth_kbit=%d", wan, ifb, bwKbit)
		return true, nil
	}

	if err := ensureIFBLink(ifb); err != nil {
		return false, fmt.Errorf("setup_ingress_ifb link %s: %w", ifb, err)
	}

	steps := [][]string{
		{"qdisc", "add", "dev", wan, "handle", "ffff:", "ingress"},
		{"filter", "add", "dev", wan, "parent", "ffff:", "protocol", "all", "u32",
			"match", "u32", "0", "0", "action", "mirred", "egress", "redirect", "dev", ifb},
		{"qdisc", "add", "dev", ifb, "root", "cake", "bandwidth", fmt.Sprintf("%dkbit", bwKbit)},
	}
	for _, args := range steps {
		if _, err := a.run.Run(ctx, "tc", args); err != nil {
			a.logger.Printf("[actuator] setup_ingress_ifb step %v failed (tolerated if already present): %v", args, err)
		}
	}
	return true, nil
}

// TeardownIngressIFB removes the redirect filter, the ingress qdisc, and
// the IFB device.
func (a *Actuator) TeardownIngressIFB(ctx context.Context, wan, ifb string) (bool, error) {
	if !runner.ValidInterfaceName(wan) {
		return false, fmt.Errorf("%w: %q", ErrInvalidInterface, wan)
	}
	if !runner.ValidInterfaceName(ifb) {
		return false, fmt.Errorf("%w: %q", ErrInvalidInterface, ifb)
	}
	if a.forceFail {
		return false, nil
	}
	if a.noTC {
		a.logger.Printf("[actuator] (dry-run) teardown_ingress_ifb wan=%s ifb=%s", wan, ifb)
		return true, nil
	}

	_, _ = a.run.Run(ctx, "tc", []string{"filter", "del", "dev", wan, "parent", "ffff:"})
	_, _ = a.run.Run(ctx, "tc", []string{"qdisc", "del", "dev", wan, "handle", "ffff:", "ingress"})

	if link, err := netlink.LinkByName(ifb); err == nil {
		if err := netlink.LinkDel(link); err != nil {
			return false, fmt.Errorf("teardown_ingress_ifb link del %s: %w", ifb, err)
		}
	}
	return true, nil
}

// ensureIFBLink creates and brings up the IFB device via netlink, treating
// an already-existing link as success.
func ensureIFBLink(name string) error {
	if _, err := netlink.LinkByName(name); err == nil {
		return netlink.LinkSetUp(&netlink.Ifb{LinkAttrs: netlink.LinkAttrs{Name: name}})
	}

	link := &netlink.Ifb{LinkAttrs: netlink.LinkAttrs{Name: name}}
	if err := netlink.LinkAdd(link); err != nil {
		if !errors.Is(err, syscall.EEXIST) {
			return fmt.Errorf("link add %s: %w", name, err)
		}
	}
	return netlink.LinkSetUp(link)
}
