package tool

import (
	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToMCPTool mirrors a Def as an mcp.Tool descriptor. conduit does not speak
// the MCP wire protocol (out of scope per spec §1); this conversion exists
// only so a ToolDef can be advertised through an embedding application's
// own MCP server using the same descriptor shape, without a second
// hand-rolled schema representation.
func ToMCPTool(def Def) mcp.Tool {
	t := mcp.NewTool(def.Name, mcp.WithDescription(def.Description))
	if def.InputSchema != nil {
		t.InputSchema.Required = append(t.InputSchema.Required, def.InputSchema.Required...)
	}
	return t
}

// FromMCPTool converts an mcp.Tool descriptor into a Def, the inverse of
// ToMCPTool, for a conduit deployment that discovers tools via an embedded
// MCP client and wants to expose them through the same tool.Handler
// registry as its native tools.
func FromMCPTool(t mcp.Tool) Def {
	def := Def{
		Name:        t.Name,
		Description: t.Description,
	}
	if len(t.InputSchema.Required) > 0 {
		def.InputSchema = &jsonschema.Schema{Required: append([]string(nil), t.InputSchema.Required...)}
	}
	return def
}
