// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes content tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/strand/internal/api"
	"github.com/starford/strand/internal/contentservice"
	"github.com/starford/strand/internal/index"
)

const (
	contentModelURI    = "strand://content-model"
	defaultSearchLimit = 20
)

// Server wraps the MCP server with content tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *contentservice.Service
	index index.NodeIndex
}

// New creates a new MCP server with all content tools registered.
func New(svc *contentservice.Service, ix index.NodeIndex) *Server {
	s := &Server{svc: svc, index: ix}

	s.mcp = server.NewMCPServer(
		"Strand",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_nodes",
		mcp.WithDescription("List every node file in the content tree."),
	), s.listNodes)

	s.mcp.AddTool(mcp.NewTool("read_node",
		mcp.WithDescription("Read one node by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id (e.g. on-listening)")),
	), s.readNode)

	s.mcp.AddTool(mcp.NewTool("read_essay",
		mcp.WithDescription("Read the Markdown body of an essay file."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Essay file name (e.g. on-listening.md)")),
	), s.readEssay)

	s.mcp.AddTool(mcp.NewTool("create_node",
		mcp.WithDescription("Create a node and its type-specific content. "+
			"Read the content model first via the get_content_model tool or the "+
			contentModelURI+" resource."),
		mcp.WithObject("node", mcp.Required(), mcp.Description("Node fields: id, title, type, threads, ...")),
		mcp.WithString("essayContent", mcp.Description("Markdown body, essay nodes only")),
		mcp.WithObject("curiosityData", mcp.Description("{central, connected}, curiosity nodes only")),
		mcp.WithObject("durationalData", mcp.Description("{subtype, description, media, commentary}, durational nodes only")),
	), s.createNode)

	s.mcp.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Back up and delete a node and its side files."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), s.deleteNode)

	s.mcp.AddTool(mcp.NewTool("regenerate_manifest",
		mcp.WithDescription("Rebuild the landing page manifest from the node files."),
	), s.regenerateManifest)

	s.mcp.AddTool(mcp.NewTool("list_phrases",
		mcp.WithDescription("List the landing page phrases."),
	), s.listPhrases)

	s.mcp.AddTool(mcp.NewTool("list_connections",
		mcp.WithDescription("List the connections drawn between nodes."),
	), s.listConnections)

	s.mcp.AddTool(mcp.NewTool("search_nodes",
		mcp.WithDescription("Full-text search through node titles, descriptions and essay bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNodes)

	s.mcp.AddTool(mcp.NewTool("get_references",
		mcp.WithDescription("Find the essays that reference the specified node."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), s.getReferences)

	s.mcp.AddTool(mcp.NewTool("get_content_model",
		mcp.WithDescription("Returns the node content model. "+
			"Call this before creating nodes to ensure correct structure."),
	), s.getContentModel)

	s.mcp.AddResource(
		mcp.NewResource(contentModelURI, "Content Model",
			mcp.WithResourceDescription("Fields, vocabularies and side records every node must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContentModelResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ok wraps data in a success envelope.
func ok(data any, message string) *mcp.CallToolResult {
	out, err := json.Marshal(api.Envelope{Success: true, Data: data, Message: message})
	if err != nil {
		return fail(err)
	}
	return mcp.NewToolResultText(string(out))
}

// fail reports err as a failed envelope.
func fail(err error) *mcp.CallToolResult {
	out, _ := json.Marshal(api.Envelope{Success: false, Error: err.Error()})
	return mcp.NewToolResultError(string(out))
}

func (s *Server) listNodes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, err := s.svc.ListNodes(ctx)
	if err != nil {
		return fail(err), nil
	}
	return ok(nodes, ""), nil
}

func (s *Server) readNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return fail(err), nil
	}
	n, err := s.svc.GetNode(ctx, id)
	if err != nil {
		return fail(err), nil
	}
	return ok(n, ""), nil
}

func (s *Server) readEssay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return fail(err), nil
	}
	body, err := s.svc.GetEssay(ctx, file)
	if err != nil {
		return fail(err), nil
	}
	return ok(body, ""), nil
}

func (s *Server) createNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Arguments share the HTTP body shape, so they decode straight into the input.
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return fail(err), nil
	}
	var in contentservice.CreateNodeInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return fail(err), nil
	}
	res, err := s.svc.CreateNode(ctx, in)
	if err != nil {
		return fail(err), nil
	}
	return ok(res, res.Message), nil
}

func (s *Server) deleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return fail(err), nil
	}
	res, err := s.svc.DeleteNode(ctx, id)
	if err != nil {
		return fail(err), nil
	}
	return ok(res, res.Message), nil
}

func (s *Server) regenerateManifest(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, err := s.svc.RegenerateManifest(ctx)
	if err != nil {
		return fail(err), nil
	}
	return ok(nodes, ""), nil
}

func (s *Server) listPhrases(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListPhrases(ctx)
	if err != nil {
		return fail(err), nil
	}
	return ok(items, ""), nil
}

func (s *Server) listConnections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListThreads(ctx)
	if err != nil {
		return fail(err), nil
	}
	return ok(items, ""), nil
}

func (s *Server) searchNodes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return fail(err), nil
	}
	limit := req.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	results, err := s.index.Search(query, limit)
	if err != nil {
		return fail(err), nil
	}
	return ok(results, ""), nil
}

func (s *Server) getReferences(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return fail(err), nil
	}
	refs, err := s.index.References(id)
	if err != nil {
		return fail(err), nil
	}
	return ok(refs, ""), nil
}

func (s *Server) getContentModel(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ContentModelContract), nil
}

func (s *Server) readContentModelResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contentModelURI,
			MIMEType: "text/markdown",
			Text:     ContentModelContract,
		},
	}, nil
}
