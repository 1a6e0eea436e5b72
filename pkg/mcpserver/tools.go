package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harun/studiobridge/pkg/toolcall"
)

// RunScriptInput is the MCP input for executing a Luau snippet.
type RunScriptInput struct {
	Code    string `json:"code" jsonschema:"Luau source to execute"`
	Context string `json:"context,omitempty" jsonschema:"execution context: Server, Client or Plugin"`
}

// InsertInstanceInput is the MCP input for creating an instance.
type InsertInstanceInput struct {
	ClassName  string         `json:"className" jsonschema:"Roblox class name to instantiate"`
	Parent     string         `json:"parent" jsonschema:"full path of the parent instance"`
	Name       string         `json:"name,omitempty" jsonschema:"name for the new instance"`
	Properties map[string]any `json:"properties,omitempty" jsonschema:"initial property values"`
}

// EditScriptInput is the MCP input for replacing a script's source.
type EditScriptInput struct {
	Path   string `json:"path" jsonschema:"full path of the script instance"`
	Source string `json:"source" jsonschema:"new script source"`
}

// GetScriptInput is the MCP input for reading a script's source.
type GetScriptInput struct {
	Path string `json:"path" jsonschema:"full path of the script instance"`
}

// SetPropertyInput is the MCP input for setting a property.
type SetPropertyInput struct {
	Path     string `json:"path" jsonschema:"full path of the target instance"`
	Property string `json:"property" jsonschema:"property name to set"`
	Value    any    `json:"value" jsonschema:"new property value as a JSON value"`
}

// ListChildrenInput is the MCP input for listing children.
type ListChildrenInput struct {
	Path string `json:"path,omitempty" jsonschema:"full path of the instance to inspect"`
}

// DeleteInstanceInput is the MCP input for destroying an instance.
type DeleteInstanceInput struct {
	Path string `json:"path" jsonschema:"full path of the instance to delete"`
}

// MoveInstanceInput is the MCP input for reparenting an instance.
type MoveInstanceInput struct {
	Path      string `json:"path" jsonschema:"full path of the instance to move"`
	NewParent string `json:"newParent" jsonschema:"full path of the new parent"`
}

// InsertFreeModelInput is the MCP input for inserting a marketplace model.
type InsertFreeModelInput struct {
	AssetID int64  `json:"assetId" jsonschema:"marketplace asset id"`
	Parent  string `json:"parent,omitempty" jsonschema:"full path of the parent instance"`
}

func runScriptTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "run_script",
		Description: "Execute a Luau snippet inside Roblox Studio and return its output",
	}
}

func insertInstanceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "insert_instance",
		Description: "Create a new Instance under a parent in the open place",
	}
}

func editScriptTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "edit_script",
		Description: "Replace the source of an existing script",
	}
}

func getScriptTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_script",
		Description: "Read the source of a script instance",
	}
}

func setPropertyTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_property",
		Description: "Set a single property on an instance",
	}
}

func listChildrenTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_children",
		Description: "List the children of an instance",
	}
}

func deleteInstanceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "delete_instance",
		Description: "Destroy an instance and its descendants",
	}
}

func moveInstanceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "move_instance",
		Description: "Reparent an instance",
	}
}

func insertFreeModelTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "insert_free_model",
		Description: "Insert a marketplace model by asset id",
	}
}

// relayCall forwards a tool invocation to the registry and renders the shaped
// result as text content. Optional arguments left at their zero value are
// omitted so registry defaults apply.
func relayCall(ctx context.Context, registry *toolcall.Registry, tool string, args map[string]interface{}) (*mcp.CallToolResult, any, error) {
	result, err := registry.Call(ctx, tool, args)
	if err != nil {
		return nil, nil, err
	}

	rendered, err := renderResult(result)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render %s result: %w", tool, err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: rendered}},
	}, nil, nil
}

// renderResult turns a shaped tool result into the text the agent sees. Plain
// strings pass through untouched; everything else is serialized as JSON.
func renderResult(result interface{}) (string, error) {
	if text, ok := result.(string); ok {
		return text, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RunScriptHandler executes a Luau snippet through the relay.
func RunScriptHandler(registry *toolcall.Registry) mcp.ToolHandlerFor[RunScriptInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RunScriptInput) (*mcp.CallToolResult, any, error) {
		args := map[string]interface{}{"code": input.Code}
		if input.Context != "" {
			args["context"] = input.Context
		}
		return relayCall(ctx, registry, "run_script", args)
	}
}

// InsertInstanceHandler creates an instance through the relay.
func InsertInstanceHandler(registry *toolcall.Registry) mcp.ToolHandlerFor[InsertInstanceInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input InsertInstanceInput) (*mcp.CallToolResult, any, error) {
		args := map[string]interface{}{
			"className": input.ClassName,
			"parent":    input.Parent,
		}
		if input.Name != "" {
			args["name"] = input.Name
		}
		if len(input.Properties) > 0 {
			args["properties"] = input.Properties
		}
		return relayCall(ctx, registry, "insert_instance", args)
	}
}

// EditScriptHandler replaces a script's source through the relay.
func EditScriptHandler(registry *toolcall.Registry) mcp.ToolHandlerFor[EditScriptInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EditScriptInput) (*mcp.CallToolResult, any, error) {
		return relayCall(ctx, registry, "edit_script", map[string]interface{}{
			"path":   input.Path,
			"source": input.Source,
		})
	}
}

// GetScriptHandler reads a script's source through the relay.
func GetScriptHandler(registry *toolcall.Registry) mcp.ToolHandlerFor[GetScriptInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetScriptInput) (*mcp.CallToolResult, any, error) {
		return relayCall(ctx, registry, "get_script", map[string]interface{}{
			"path": input.Path,
		})
	}
}

// SetPropertyHandler sets a property through the relay.
func SetPropertyHandler(registry *toolcall.Registry) mcp.ToolHandlerFor[SetPropertyInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetPropertyInput) (*mcp.CallToolResult, any, error) {
		return relayCall(ctx, registry, "set_property", map[string]interface{}{
			"path":     input.Path,
			"property": input.Property,
			"value":    input.Value,
		})
	}
}

// ListChildrenHandler lists an instance's children through the relay.
func ListChildrenHandler(registry *toolcall.Registry) mcp.ToolHandlerFor[ListChildrenInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListChildrenInput) (*mcp.CallToolResult, any, error) {
		args := map[string]interface{}{}
		if input.Path != "" {
			args["path"] = input.Path
		}
		return relayCall(ctx, registry, "list_children", args)
	}
}

// DeleteInstanceHandler destroys an instance through the relay.
func DeleteInstanceHandler(registry *toolcall.Registry) mcp.ToolHandlerFor[DeleteInstanceInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeleteInstanceInput) (*mcp.CallToolResult, any, error) {
		return relayCall(ctx, registry, "delete_instance", map[string]interface{}{
			"path": input.Path,
		})
	}
}

// MoveInstanceHandler reparents an instance through the relay.
func MoveInstanceHandler(registry *toolcall.Registry) mcp.ToolHandlerFor[MoveInstanceInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MoveInstanceInput) (*mcp.CallToolResult, any, error) {
		return relayCall(ctx, registry, "move_instance", map[string]interface{}{
			"path":      input.Path,
			"newParent": input.NewParent,
		})
	}
}

// InsertFreeModelHandler inserts a marketplace model through the relay.
func InsertFreeModelHandler(registry *toolcall.Registry) mcp.ToolHandlerFor[InsertFreeModelInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input InsertFreeModelInput) (*mcp.CallToolResult, any, error) {
		args := map[string]interface{}{"assetId": input.AssetID}
		if input.Parent != "" {
			args["parent"] = input.Parent
		}
		return relayCall(ctx, registry, "insert_free_model", args)
	}
}
