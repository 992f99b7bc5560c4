package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storyrag/internal/contextutil"
	"storyrag/internal/corpus"
	"storyrag/internal/query"
)

// Tool names exposed through the tool-call adapter.
const (
	ToolSearchStoryKnowledge = "search_story_knowledge"
	ToolSearchCharacterInfo  = "search_character_info"
	ToolSearchPlotThreads    = "search_plot_threads"
)

// defaultTopK applies when a tool call omits top_k.
const defaultTopK = 5

// ToolsHandler dispatches tool calls to the query engine.
type ToolsHandler struct {
	engine query.Engine
}

// NewToolsHandler creates a new ToolsHandler.
func NewToolsHandler(engine query.Engine) *ToolsHandler {
	return &ToolsHandler{engine: engine}
}

// ToolRequest represents a tool call payload.
//
// swagger:model ToolRequest
type ToolRequest struct {
	ToolName  string        `json:"tool_name"`
	Arguments ToolArguments `json:"arguments"`
}

// ToolArguments carries the per-tool parameters. Which field is required
// depends on the tool; top_k is optional everywhere.
//
// swagger:model ToolArguments
type ToolArguments struct {
	Query         string `json:"query,omitempty"`
	CharacterName string `json:"character_name,omitempty"`
	ThreadKeyword string `json:"thread_keyword,omitempty"`
	TopK          int    `json:"top_k,omitempty"`
	FilterType    string `json:"filter_type,omitempty"`
}

// ToolResult is one retrieved chunk in a tool response.
//
// swagger:model ToolResult
type ToolResult struct {
	Content    string  `json:"content"`
	SourcePath string  `json:"source_path"`
	Category   string  `json:"category"`
	Heading    string  `json:"heading,omitempty"`
	Score      float32 `json:"score"`
}

// ToolResponse is the envelope returned for every tool call.
//
// swagger:model ToolResponse
type ToolResponse struct {
	Success    bool         `json:"success"`
	Results    []ToolResult `json:"results"`
	TotalFound int          `json:"total_found"`
	Error      string       `json:"error,omitempty"`
}

// ServeHTTP handles tool call requests.
//
// swagger:route POST /api/tools dispatchTool
//
// # Dispatch a retrieval tool call
//
// Accepts a tool name with arguments and returns retrieved chunks.
// Supported tools: search_story_knowledge, search_character_info,
// search_plot_threads.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Tool executed successfully
//	  schema:
//	    "$ref": "#/definitions/ToolResponse"
//	'400':
//	  description: Unknown tool or invalid arguments
//	  schema:
//	    "$ref": "#/definitions/ToolResponse"
//	'502':
//	  description: Embedding service or vector store unavailable
//	  schema:
//	    "$ref": "#/definitions/ToolResponse"
func (h *ToolsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	topK := req.Arguments.TopK
	if topK == 0 {
		topK = defaultTopK
	}

	var (
		results []query.Result
		err     error
	)

	switch req.ToolName {
	case ToolSearchStoryKnowledge:
		category, ok := parseFilterType(req.Arguments.FilterType)
		if !ok {
			logger.WarnContext(ctx, "invalid filter type", "filter_type", req.Arguments.FilterType)
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid filter_type: %s", req.Arguments.FilterType))
			return
		}
		results, err = h.engine.Search(ctx, req.Arguments.Query, topK, category)
	case ToolSearchCharacterInfo:
		results, err = h.engine.SearchCharacter(ctx, req.Arguments.CharacterName, topK)
	case ToolSearchPlotThreads:
		results, err = h.engine.SearchPlotThread(ctx, req.Arguments.ThreadKeyword, topK)
	default:
		logger.WarnContext(ctx, "unknown tool", "tool_name", req.ToolName)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown tool: %s", req.ToolName))
		return
	}

	if err != nil {
		h.handleEngineError(w, r, err)
		return
	}

	toolResults := make([]ToolResult, len(results))
	for i, res := range results {
		toolResults[i] = ToolResult{
			Content:    res.Content,
			SourcePath: res.SourcePath,
			Category:   res.Category,
			Heading:    res.Heading,
			Score:      res.Score,
		}
	}

	resp := ToolResponse{
		Success:    true,
		Results:    toolResults,
		TotalFound: len(toolResults),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// parseFilterType maps the filter_type argument to a category. Empty
// means no filter. The second return is false for unrecognized values.
func parseFilterType(filterType string) (corpus.Category, bool) {
	if strings.TrimSpace(filterType) == "" {
		return corpus.CategoryUnknown, true
	}
	cat := corpus.ParseCategory(filterType)
	if cat == corpus.CategoryUnknown {
		return corpus.CategoryUnknown, false
	}
	return cat, true
}

// handleEngineError maps query engine errors to HTTP status codes.
func (h *ToolsHandler) handleEngineError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "query engine error", "error", err)

	switch {
	case errors.Is(err, query.ErrInvalidQuery), errors.Is(err, query.ErrInvalidArgument):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, query.ErrUnavailable):
		h.writeError(w, http.StatusBadGateway, "External service error")
	default:
		h.writeError(w, http.StatusInternalServerError, "Failed to process tool call")
	}
}

// writeError writes an error envelope with success set to false.
func (h *ToolsHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ToolResponse{
		Success: false,
		Results: []ToolResult{},
		Error:   message,
	})
}
