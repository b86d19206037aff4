package models

import "github.com/vit0-9/domain_mcp/pkg/tools"

// ToolListResponse lists every callable tool with its input schema.
type ToolListResponse struct {
	Tools []tools.Definition `json:"tools"`
}

// ToolCallResponse wraps a successful tool result.
type ToolCallResponse struct {
	CallID     string `json:"call_id"`
	Tool       string `json:"tool"`
	Result     any    `json:"result"`
	DurationMS int64  `json:"duration_ms"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Tools   int    `json:"tools"`
}
