package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

// handleStatus reads the full snapshot.
func (d *Deps) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := d.Store.Get()
	jsonData, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

// handlePolicyGet reads the policy subset of the snapshot.
func (d *Deps) handlePolicyGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := d.Store.Get()
	jsonData, err := json.MarshalIndent(snap.Policy, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

// handlePolicySet clamps and actuates an explicit bandwidth value.
func (d *Deps) handlePolicySet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	bwVal, ok := numberArg(args, "bandwidth_kbit")
	if !ok {
		return errResult("bandwidth_kbit is required"), nil
	}

	d.Mu.Lock()
	defer d.Mu.Unlock()

	bw := clampBw(int(bwVal), d.CtrlCfg.MinBandwidthKbit, d.CtrlCfg.MaxBandwidthKbit)
	if ok, err := d.applyAndRecord(ctx, bw, "ubus-set"); !ok {
		return errResult(fmt.Sprintf("policy_set failed: %v", err)), nil
	}
	return newTextResult(fmt.Sprintf(`{"bandwidth_kbit":%d}`, bw)), nil
}

// handlePolicyBoost raises bandwidth by step (default bandwidth_step_kbit).
func (d *Deps) handlePolicyBoost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return d.stepPolicy(ctx, request, 1, "ubus-boost")
}

// handlePolicyThrottle lowers bandwidth by step (default bandwidth_step_kbit).
func (d *Deps) handlePolicyThrottle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return d.stepPolicy(ctx, request, -1, "ubus-throttle")
}

func (d *Deps) stepPolicy(ctx context.Context, request mcp.CallToolRequest, sign int, reason string) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	step := d.CtrlCfg.BandwidthStepKbit
	if v, ok := numberArg(args, "step"); ok {
		step = int(v)
	}

	d.Mu.Lock()
	defer d.Mu.Unlock()

	bw := clampBw(d.Ctrl.Current.BandwidthKbit+sign*step, d.CtrlCfg.MinBandwidthKbit, d.CtrlCfg.MaxBandwidthKbit)
	if ok, err := d.applyAndRecord(ctx, bw, reason); !ok {
		return errResult(fmt.Sprintf("%s failed: %v", reason, err)), nil
	}
	return newTextResult(fmt.Sprintf(`{"bandwidth_kbit":%d}`, bw)), nil
}

// handlePersonaList lists persona names and override status.
func (d *Deps) handlePersonaList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d.Mu.Lock()
	active, value := d.Persona.OverrideActive()
	d.Mu.Unlock()

	names := []string{"interactive", "bulk", "unknown"}
	sort.Strings(names)

	out := map[string]interface{}{
		"personas":         names,
		"override_active":  active,
		"override_persona": value.String(),
	}
	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

// handlePersonaAdd sets the operator persona override.
func (d *Deps) handlePersonaAdd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	name := stringArg(args, "name", "")
	p, ok := personaByName(name)
	if !ok {
		return errResult(fmt.Sprintf("unknown persona %q; want interactive, bulk, or unknown", name)), nil
	}

	d.Mu.Lock()
	d.Persona.SetOverride(p)
	snap := d.Store.Get()
	snap.PersonaOverride = true
	snap.PersonaOverrideValue = p
	d.Store.Update(snap)
	d.Mu.Unlock()

	return newTextResult(fmt.Sprintf(`{"override_persona":%q}`, p.String())), nil
}

// handlePersonaDelete clears the operator persona override.
func (d *Deps) handlePersonaDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d.Mu.Lock()
	d.Persona.ClearOverride()
	snap := d.Store.Get()
	snap.PersonaOverride = false
	d.Store.Update(snap)
	d.Mu.Unlock()

	return newTextResult(`{"override_persona":null}`), nil
}

// getArgs safely extracts the arguments map from a CallToolRequest.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

// stringArg extracts a string argument with a default value.
func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

// numberArg extracts a numeric argument; MCP transports numbers as
// float64 regardless of the declared schema type.
func numberArg(args map[string]interface{}, key string) (float64, bool) {
	val, ok := args[key]
	if !ok || val == nil {
		return 0, false
	}
	f, ok := val.(float64)
	return f, ok
}

// newTextResult creates a successful MCP tool result with text content.
func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

// errResult creates an MCP tool error result (IsError=true).
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: msg,
			},
		},
	}
}
