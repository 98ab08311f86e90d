package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

const (
	serverName    = "legal-rag-assistant"
	serverVersion = "0.1.0"

	toolSearch = "legal_search"
	toolAnswer = "legal_answer"

	snippetRunes = 600
)

// Tools exposes the retrieval round and the answer chain as MCP tools.
type Tools struct {
	retriever ports.ProvisionRetriever
	answerer  ports.LegalQueryService
}

func NewTools(retriever ports.ProvisionRetriever, answerer ports.LegalQueryService) *Tools {
	return &Tools{retriever: retriever, answerer: answerer}
}

func actNames() []string {
	names := []string{string(domain.ActAll)}
	for _, src := range domain.ActSources() {
		names = append(names, string(src.ActAbbrev))
	}
	return names
}

func (t *Tools) NewServer() *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(toolSearch,
		mcp.WithDescription("Search Indian statutes and constitutional articles. Returns fused provisions with citations."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Legal question or provision reference, e.g. 'Section 304A IPC'.")),
		mcp.WithString("act", mcp.Description("Optional act abbreviation to scope the search."), mcp.Enum(actNames()...)),
		mcp.WithArray("sub_queries",
			mcp.Description("Optional pre-split sub-queries; the question is decomposed when omitted."),
			mcp.Items(map[string]any{"type": "string"}),
		),
	), t.handleSearch)

	s.AddTool(mcp.NewTool(toolAnswer,
		mcp.WithDescription("Answer a legal question grounded in retrieved provisions, with cited sections."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The legal question.")),
		mcp.WithString("act", mcp.Description("Optional act abbreviation to scope retrieval."), mcp.Enum(actNames()...)),
	), t.handleAnswer)

	return s
}

type searchHit struct {
	Citation  string `json:"citation"`
	Act       string `json:"act,omitempty"`
	Type      string `json:"source_type,omitempty"`
	Retriever string `json:"retriever,omitempty"`
	Text      string `json:"text"`
}

func (t *Tools) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	act := request.GetString("act", "")

	result, err := t.retriever.Retrieve(ctx, stringSlice(request.GetArguments()["sub_queries"]), question, act)
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", toolSearch, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	hits := make([]searchHit, 0, len(result.Documents))
	for _, doc := range result.Documents {
		hits = append(hits, searchHit{
			Citation:  doc.Metadata.Citation(),
			Act:       doc.Metadata.ActAbbrev,
			Type:      string(doc.Metadata.SourceType),
			Retriever: doc.Metadata.Retriever,
			Text:      truncate(doc.Text, snippetRunes),
		})
	}
	return jsonResult(map[string]any{
		"act":             result.Intent.Act,
		"sub_queries":     result.SubQueries,
		"strategy_counts": result.StrategyCounts,
		"provisions":      hits,
	})
}

func (t *Tools) handleAnswer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := t.answerer.Answer(ctx, question, request.GetString("act", ""))
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", toolAnswer, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"answer":         answer.Text,
		"cited_sections": answer.CitedSections,
		"act":            answer.Act,
		"sub_queries":    answer.SubQueries,
	})
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
