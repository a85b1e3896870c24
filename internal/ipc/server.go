package ipc

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server instance.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server with the eight status/policy/persona
// tools registered, bound to dep.
func NewServer(version string, dep *Deps) *Server {
	s := server.NewMCPServer("mycoflow", version, server.WithLogging())

	registerTools(s, dep)

	return &Server{
		mcpServer: s,
	}
}

// Start runs the server in stdio mode (blocking).
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools adds all eight IPC operations to the server.
func registerTools(s *server.MCPServer, dep *Deps) {
	statusTool := mcp.NewTool("status",
		mcp.WithDescription("Read the full controller snapshot: metrics, baseline, policy, persona, reason, safe_mode, persona_override."),
	)
	s.AddTool(statusTool, dep.handleStatus)

	policyGetTool := mcp.NewTool("policy_get",
		mcp.WithDescription("Read the current policy only (bandwidth_kbit, ingress_bw_kbit, boosted) for cheap polling."),
	)
	s.AddTool(policyGetTool, dep.handlePolicyGet)

	policySetTool := mcp.NewTool("policy_set",
		mcp.WithDescription("Set the egress bandwidth to an explicit value, clamped to [min_bandwidth_kbit,max_bandwidth_kbit], and actuate immediately."),
		mcp.WithNumber("bandwidth_kbit",
			mcp.Required(),
			mcp.Description("Desired egress bandwidth in kbit/s."),
		),
	)
	s.AddTool(policySetTool, dep.handlePolicySet)

	policyBoostTool := mcp.NewTool("policy_boost",
		mcp.WithDescription("Increase egress bandwidth by step (default bandwidth_step_kbit), clamped, and actuate immediately."),
		mcp.WithNumber("step",
			mcp.Description("Bandwidth increase in kbit/s. Defaults to the configured bandwidth_step_kbit."),
		),
	)
	s.AddTool(policyBoostTool, dep.handlePolicyBoost)

	policyThrottleTool := mcp.NewTool("policy_throttle",
		mcp.WithDescription("Decrease egress bandwidth by step (default bandwidth_step_kbit), clamped, and actuate immediately."),
		mcp.WithNumber("step",
			mcp.Description("Bandwidth decrease in kbit/s. Defaults to the configured bandwidth_step_kbit."),
		),
	)
	s.AddTool(policyThrottleTool, dep.handlePolicyThrottle)

	personaListTool := mcp.NewTool("persona_list",
		mcp.WithDescription("List the available persona names and whether an operator override is currently active."),
	)
	s.AddTool(personaListTool, dep.handlePersonaList)

	personaAddTool := mcp.NewTool("persona_add",
		mcp.WithDescription("Set an operator persona override (interactive, bulk, or unknown), bypassing the hysteresis machine."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Persona name: interactive, bulk, or unknown."),
		),
	)
	s.AddTool(personaAddTool, dep.handlePersonaAdd)

	personaDeleteTool := mcp.NewTool("persona_delete",
		mcp.WithDescription("Clear the operator persona override, returning control to the hysteresis machine."),
	)
	s.AddTool(personaDeleteTool, dep.handlePersonaDelete)
}
