package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vit0-9/domain_mcp/models"
	"github.com/vit0-9/domain_mcp/pkg/tools"
	"github.com/vit0-9/domain_mcp/pkg/utils/domain"
)

// ToolHandlers exposes the tool dispatcher over HTTP.
type ToolHandlers struct {
	dispatcher *tools.Dispatcher
	defs       []tools.Definition
}

func NewToolHandlers(dispatcher *tools.Dispatcher) *ToolHandlers {
	return &ToolHandlers{dispatcher: dispatcher, defs: tools.Definitions()}
}

// StatusForKind maps an error kind onto an HTTP status.
func StatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindUnsupported:
		return http.StatusNotImplemented
	case domain.KindParse:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// ListToolsHandler godoc
// @Summary      List tools
// @Description  Lists every domain tool with its JSON input schema.
// @Tags         Tools
// @Produce      json
// @Success      200 {object} models.ToolListResponse
// @Router       /tools [get]
func (h *ToolHandlers) ListToolsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.ToolListResponse{Tools: h.defs})
}

// CallToolHandler godoc
// @Summary      Call a tool
// @Description  Runs one tool. The JSON body holds the tool arguments, e.g. {"domain": "example.com"}.
// @Tags         Tools
// @Accept       json
// @Produce      json
// @Param        name path string true "Tool name, e.g. whois_lookup"
// @Success      200 {object} models.ToolCallResponse
// @Failure      400 {object} models.APIErrorResponse "Invalid arguments"
// @Failure      404 {object} models.APIErrorResponse "Unknown tool or no record"
// @Failure      502 {object} models.APIErrorResponse "Upstream unreachable"
// @Failure      504 {object} models.APIErrorResponse "Upstream timed out"
// @Router       /tools/{name} [post]
func (h *ToolHandlers) CallToolHandler(c *gin.Context) {
	name := c.Param("name")

	var args map[string]any
	if err := c.ShouldBindJSON(&args); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, models.APIErrorResponse{
			StatusCode: http.StatusBadRequest,
			ErrorCode:  string(domain.KindValidation),
			Message:    "request body must be a JSON object: " + err.Error(),
			Tool:       name,
		})
		return
	}

	out, err := h.dispatcher.Call(c.Request.Context(), name, args)
	if err != nil {
		c.JSON(http.StatusNotFound, models.APIErrorResponse{
			StatusCode: http.StatusNotFound,
			ErrorCode:  "UnknownTool",
			Message:    err.Error(),
			Tool:       name,
		})
		return
	}

	if out.Err != nil {
		status := StatusForKind(out.Err.Kind)
		c.JSON(status, models.APIErrorResponse{
			StatusCode: status,
			ErrorCode:  string(out.Err.Kind),
			Message:    out.Err.Message,
			Tool:       string(out.Tool),
			CallID:     out.CallID,
			FailedAt:   string(out.FailedAt),
		})
		return
	}

	c.JSON(http.StatusOK, models.ToolCallResponse{
		CallID:     out.CallID,
		Tool:       string(out.Tool),
		Result:     out.Payload,
		DurationMS: out.Duration.Milliseconds(),
	})
}
