package ipc

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mycoflow/mycoflow/internal/actuator"
	"github.com/mycoflow/mycoflow/internal/controller"
	"github.com/mycoflow/mycoflow/internal/logging"
	"github.com/mycoflow/mycoflow/internal/model"
	"github.com/mycoflow/mycoflow/internal/persona"
	"github.com/mycoflow/mycoflow/internal/snapshot"
)

func testDeps() *Deps {
	store := snapshot.New()
	store.Update(model.Snapshot{
		Metrics: model.Metrics{RTTMs: 10},
		Policy:  model.Policy{BandwidthKbit: 20000},
		Persona: model.PersonaInteractive,
		Reason:  "no-change",
	})

	return &Deps{
		Store: store,
		Ctrl:  controller.NewState(20000),
		CtrlCfg: controller.Config{
			MaxCPUPct:         40,
			RTTMarginFactor:   1.0,
			MinBandwidthKbit:  2000,
			MaxBandwidthKbit:  100000,
			BandwidthStepKbit: 2000,
		},
		Act:     actuator.New(actuator.Options{NoTC: true}),
		Persona: persona.New(),
		Log:     logging.New(logging.LevelError),

		EgressIface: "eth0",
	}
}

func req(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", res.Content[0])
	}
	return tc.Text
}

func TestHandleStatusReturnsSnapshot(t *testing.T) {
	d := testDeps()
	res, err := d.handleStatus(context.Background(), req(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatal("expected success")
	}
	var snap model.Snapshot
	if err := json.Unmarshal([]byte(textOf(t, res)), &snap); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if snap.Policy.BandwidthKbit != 20000 {
		t.Errorf("BandwidthKbit = %d, want 20000", snap.Policy.BandwidthKbit)
	}
}

func TestHandlePolicyGetReturnsPolicyOnly(t *testing.T) {
	d := testDeps()
	res, err := d.handlePolicyGet(context.Background(), req(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var policy model.Policy
	if err := json.Unmarshal([]byte(textOf(t, res)), &policy); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if policy.BandwidthKbit != 20000 {
		t.Errorf("BandwidthKbit = %d, want 20000", policy.BandwidthKbit)
	}
}

func TestHandlePolicySetClampsAndActuates(t *testing.T) {
	d := testDeps()
	res, err := d.handlePolicySet(context.Background(), req(map[string]interface{}{
		"bandwidth_kbit": float64(500000),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success, got error: %s", textOf(t, res))
	}
	if d.Ctrl.Current.BandwidthKbit != 100000 {
		t.Errorf("Current.BandwidthKbit = %d, want clamped to 100000", d.Ctrl.Current.BandwidthKbit)
	}
	snap := d.Store.Get()
	if snap.Policy.BandwidthKbit != 100000 {
		t.Errorf("snapshot BandwidthKbit = %d, want 100000", snap.Policy.BandwidthKbit)
	}
	if snap.Reason != "ubus-set" {
		t.Errorf("Reason = %q, want ubus-set", snap.Reason)
	}
}

func TestHandlePolicySetMissingArgument(t *testing.T) {
	d := testDeps()
	res, err := d.handlePolicySet(context.Background(), req(map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError for missing bandwidth_kbit")
	}
}

func TestHandlePolicyBoostUsesDefaultStep(t *testing.T) {
	d := testDeps()
	res, err := d.handlePolicyBoost(context.Background(), req(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success, got: %s", textOf(t, res))
	}
	if d.Ctrl.Current.BandwidthKbit != 22000 {
		t.Errorf("BandwidthKbit = %d, want 22000", d.Ctrl.Current.BandwidthKbit)
	}
	snap := d.Store.Get()
	if snap.Reason != "ubus-boost" {
		t.Errorf("Reason = %q, want ubus-boost", snap.Reason)
	}
}

func TestHandlePolicyThrottleWithExplicitStep(t *testing.T) {
	d := testDeps()
	res, err := d.handlePolicyThrottle(context.Background(), req(map[string]interface{}{
		"step": float64(5000),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success, got: %s", textOf(t, res))
	}
	if d.Ctrl.Current.BandwidthKbit != 15000 {
		t.Errorf("BandwidthKbit = %d, want 15000", d.Ctrl.Current.BandwidthKbit)
	}
}

func TestHandlePersonaListReflectsOverride(t *testing.T) {
	d := testDeps()
	res, err := d.handlePersonaList(context.Background(), req(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct {
		Personas        []string `json:"personas"`
		OverrideActive  bool     `json:"override_active"`
		OverridePersona string   `json:"override_persona"`
	}
	if err := json.Unmarshal([]byte(textOf(t, res)), &out); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if out.OverrideActive {
		t.Error("expected no override active initially")
	}
	if len(out.Personas) != 3 {
		t.Errorf("expected 3 persona names, got %d", len(out.Personas))
	}
}

func TestHandlePersonaAddSetsOverride(t *testing.T) {
	d := testDeps()
	res, err := d.handlePersonaAdd(context.Background(), req(map[string]interface{}{
		"name": "bulk",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success, got: %s", textOf(t, res))
	}
	active, val := d.Persona.OverrideActive()
	if !active || val != model.PersonaBulk {
		t.Errorf("expected override active=bulk, got active=%v val=%v", active, val)
	}
	snap := d.Store.Get()
	if !snap.PersonaOverride || snap.PersonaOverrideValue != model.PersonaBulk {
		t.Error("expected snapshot to reflect persona override")
	}
}

func TestHandlePersonaAddRejectsUnknownName(t *testing.T) {
	d := testDeps()
	res, err := d.handlePersonaAdd(context.Background(), req(map[string]interface{}{
		"name": "chaotic-neutral",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError for unknown persona name")
	}
}

func TestHandlePersonaDeleteClearsOverride(t *testing.T) {
	d := testDeps()
	d.Persona.SetOverride(model.PersonaBulk)

	res, err := d.handlePersonaDelete(context.Background(), req(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success, got: %s", textOf(t, res))
	}
	active, _ := d.Persona.OverrideActive()
	if active {
		t.Error("expected override cleared")
	}
	snap := d.Store.Get()
	if snap.PersonaOverride {
		t.Error("expected snapshot PersonaOverride cleared")
	}
}

func TestNewServerCreatesMCPServer(t *testing.T) {
	d := testDeps()
	srv := NewServer("test", d)
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	if srv.mcpServer == nil {
		t.Fatal("mcpServer is nil")
	}
}

func TestGetArgsNilArguments(t *testing.T) {
	args := getArgs(mcp.CallToolRequest{})
	if len(args) != 0 {
		t.Fatalf("expected empty map, got %v", args)
	}
}

func TestNumberArgWrongType(t *testing.T) {
	args := map[string]interface{}{"bandwidth_kbit": "not a number"}
	if _, ok := numberArg(args, "bandwidth_kbit"); ok {
		t.Error("expected ok=false for wrong type")
	}
}

func TestPersonaByNameUnknownRejected(t *testing.T) {
	if _, ok := personaByName("nonsense"); ok {
		t.Error("expected ok=false for unrecognised persona name")
	}
}

func TestErrResultAndNewTextResult(t *testing.T) {
	r := errResult("boom")
	if !r.IsError || !strings.Contains(textOf(t, r), "boom") {
		t.Error("errResult should set IsError and carry the message")
	}
	ok := newTextResult("fine")
	if ok.IsError {
		t.Error("newTextResult should not set IsError")
	}
}
