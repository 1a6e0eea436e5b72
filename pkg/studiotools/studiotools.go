package studiotools

import (
	"errors"
	"fmt"

	"github.com/harun/studiobridge/pkg/toolcall"
)

// ScriptNotFoundPlaceholder is returned by get_script when the plugin found
// no source at the requested path.
const ScriptNotFoundPlaceholder = "Script not found"

// Execution contexts run_script accepts.
const (
	ContextServer = "Server"
	ContextClient = "Client"
	ContextPlugin = "Plugin"
)

// RegisterStudioTools registers every Studio tool on the registry.
func RegisterStudioTools(registry *toolcall.Registry) error {
	if registry == nil {
		return errors.New("tool registry is required")
	}

	tools := []toolcall.Definition{
		runScriptTool(),
		insertInstanceTool(),
		editScriptTool(),
		getScriptTool(),
		setPropertyTool(),
		listChildrenTool(),
		deleteInstanceTool(),
		moveInstanceTool(),
		insertFreeModelTool(),
	}

	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

func runScriptTool() toolcall.Definition {
	return toolcall.Definition{
		Name:        "run_script",
		Description: "Execute a Luau snippet inside Roblox Studio and return its output.",
		Parameters: []toolcall.Parameter{
			{Name: "code", Type: "string", Description: "Luau source to execute", Required: true},
			{
				Name:        "context",
				Type:        "string",
				Description: "Execution context for the snippet",
				Enum:        []interface{}{ContextServer, ContextClient, ContextPlugin},
				Default:     ContextPlugin,
			},
		},
	}
}

func insertInstanceTool() toolcall.Definition {
	return toolcall.Definition{
		Name:        "insert_instance",
		Description: "Create a new Instance under a parent in the open place.",
		Parameters: []toolcall.Parameter{
			{Name: "className", Type: "string", Description: "Roblox class name to instantiate", Required: true},
			{Name: "parent", Type: "string", Description: "Full path of the parent instance", Required: true},
			{Name: "name", Type: "string", Description: "Name for the new instance"},
			{Name: "properties", Type: "object", Description: "Initial property values keyed by property name"},
		},
	}
}

func editScriptTool() toolcall.Definition {
	return toolcall.Definition{
		Name:        "edit_script",
		Description: "Replace the source of an existing script.",
		Parameters: []toolcall.Parameter{
			{Name: "path", Type: "string", Description: "Full path of the script instance", Required: true},
			{Name: "source", Type: "string", Description: "New script source", Required: true},
		},
	}
}

func getScriptTool() toolcall.Definition {
	return toolcall.Definition{
		Name:        "get_script",
		Description: "Read the source of a script instance.",
		Parameters: []toolcall.Parameter{
			{Name: "path", Type: "string", Description: "Full path of the script instance", Required: true},
		},
		Shape: func(result map[string]interface{}) (interface{}, error) {
			if source, ok := result["source"].(string); ok {
				return source, nil
			}
			return ScriptNotFoundPlaceholder, nil
		},
	}
}

func setPropertyTool() toolcall.Definition {
	return toolcall.Definition{
		Name:        "set_property",
		Description: "Set a single property on an instance.",
		Parameters: []toolcall.Parameter{
			{Name: "path", Type: "string", Description: "Full path of the target instance", Required: true},
			{Name: "property", Type: "string", Description: "Property name to set", Required: true},
			{Name: "value", Type: "any", Description: "New property value as a JSON value", Required: true},
		},
	}
}

func listChildrenTool() toolcall.Definition {
	return toolcall.Definition{
		Name:        "list_children",
		Description: "List the children of an instance as {name, className} descriptors.",
		Parameters: []toolcall.Parameter{
			{Name: "path", Type: "string", Description: "Full path of the instance to inspect", Default: "game"},
		},
	}
}

func deleteInstanceTool() toolcall.Definition {
	return toolcall.Definition{
		Name:        "delete_instance",
		Description: "Destroy an instance and its descendants.",
		Parameters: []toolcall.Parameter{
			{Name: "path", Type: "string", Description: "Full path of the instance to delete", Required: true},
		},
	}
}

func moveInstanceTool() toolcall.Definition {
	return toolcall.Definition{
		Name:        "move_instance",
		Description: "Reparent an instance.",
		Parameters: []toolcall.Parameter{
			{Name: "path", Type: "string", Description: "Full path of the instance to move", Required: true},
			{Name: "newParent", Type: "string", Description: "Full path of the new parent", Required: true},
		},
	}
}

func insertFreeModelTool() toolcall.Definition {
	return toolcall.Definition{
		Name:        "insert_free_model",
		Description: "Insert a marketplace model by asset id.",
		Parameters: []toolcall.Parameter{
			{Name: "assetId", Type: "integer", Description: "Marketplace asset id", Required: true},
			{Name: "parent", Type: "string", Description: "Full path of the parent instance", Default: "game.Workspace"},
		},
	}
}
