// Package tools holds the built-in tool providers registered on the gateway.
// Real search and extraction capabilities are supplied by external
// collaborators; the providers here either perform genuinely local work
// (filesystem) or produce deterministic simulated output.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/synapse-agents/synapse/internal/gateway"
	"github.com/synapse-agents/synapse/internal/progress"
)

// SaveFileProvider writes content to a path inside the allowed roots,
// creating parent directories as needed. The gateway gates the path
// parameter before the handler runs.
func SaveFileProvider() gateway.Provider {
	return gateway.Provider{
		Name:        "save_file",
		Description: "Save content to a file under one of the allowed root directories.",
		ParamSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "Destination file path"
				},
				"content": {
					"type": "string",
					"description": "Content to write"
				}
			},
			"required": ["path", "content"]
		}`),
		PathParams: []string{"path"},
		Handler: func(_ context.Context, params map[string]any, _ progress.Sink) (any, error) {
			path, _ := params["path"].(string)
			content, _ := params["content"].(string)

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create parent directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return nil, fmt.Errorf("write %s: %w", path, err)
			}
			return map[string]any{
				"path":          path,
				"bytes_written": len(content),
			}, nil
		},
	}
}

// ReadFileProvider reads a file from inside the allowed roots.
func ReadFileProvider() gateway.Provider {
	return gateway.Provider{
		Name:        "read_file",
		Description: "Read the contents of a file under one of the allowed root directories.",
		ParamSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "The file path to read"
				}
			},
			"required": ["path"]
		}`),
		PathParams: []string{"path"},
		Handler: func(_ context.Context, params map[string]any, _ progress.Sink) (any, error) {
			path, _ := params["path"].(string)

			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", path, err)
			}
			if !info.Mode().IsRegular() {
				return nil, fmt.Errorf("not a file: %s", path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			return map[string]any{
				"path":    path,
				"content": string(data),
			}, nil
		},
	}
}
