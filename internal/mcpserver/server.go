// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes taskboard tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/taskboard/internal/boardservice"
	"github.com/starford/taskboard/internal/index"
	"github.com/starford/taskboard/internal/models"
)

const formatURI = "taskboard://kanban-format"

// Server wraps the MCP server with taskboard tools.
type Server struct {
	mcp *server.MCPServer
	svc *boardservice.Service
}

// New creates a new MCP server with all taskboard tools registered.
func New(svc *boardservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Taskboard",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_board",
		mcp.WithDescription("Return the active board: columns with their tasks, the board configuration and any parse problems."),
	), s.getBoard)

	s.mcp.AddTool(mcp.NewTool("read_task",
		mcp.WithDescription("Read one task from the board or the archive, including its Markdown."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id, e.g. TASK-001")),
	), s.readTask)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks from the index with optional filters."),
		mcp.WithString("location", mcp.Description("active or archive"), mcp.Enum("active", "archive")),
		mcp.WithString("section", mcp.Description("Section name or column slug")),
		mcp.WithString("assignee", mcp.Description("Assignee handle, e.g. @alice")),
		mcp.WithString("tag", mcp.Description("Tag, e.g. #bug")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 100)")),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("search_tasks",
		mcp.WithDescription("Full-text search through task titles, bodies and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchTasks)

	s.mcp.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task with the next free id. Created defaults to today. "+
			"Body text must follow the format contract (see get_kanban_contract)."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("section", mcp.Description("Section name or column slug (default: first column)")),
		mcp.WithNumber("position", mcp.Description("Position inside the section (default: append)")),
		mcp.WithObject("attributes", mcp.Description(`Metadata such as {"Priority": "High", "Assigned": "@alice"}`)),
		mcp.WithString("body", mcp.Description("Free text description")),
		mcp.WithArray("subtasks", mcp.Description("Checklist items"), mcp.WithStringItems()),
	), s.createTask)

	s.mcp.AddTool(mcp.NewTool("move_task",
		mcp.WithDescription("Move an active task to another section. Does not change any dates."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("section", mcp.Required(), mcp.Description("Destination section name or column slug")),
		mcp.WithNumber("position", mcp.Description("Position inside the section (default: append)")),
	), s.moveTask)

	s.mcp.AddTool(mcp.NewTool("start_task",
		mcp.WithDescription("Set the Started date of a task. It can only be set once."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD, default today")),
	), s.startTask)

	s.mcp.AddTool(mcp.NewTool("finish_task",
		mcp.WithDescription("Set the Finished date of a task. It can only be set once."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD, default today")),
	), s.finishTask)

	s.mcp.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Edit an active task. All edits apply or none do."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("body", mcp.Description("New free text description")),
		mcp.WithObject("attributes", mcp.Description(`Metadata to set, e.g. {"Priority": "Low"}`)),
		mcp.WithArray("add_subtasks", mcp.Description("Checklist items to append"), mcp.WithStringItems()),
		mcp.WithArray("check", mcp.Description("Zero-based subtask indexes to mark done"), mcp.WithNumberItems()),
		mcp.WithArray("uncheck", mcp.Description("Zero-based subtask indexes to mark open"), mcp.WithNumberItems()),
		mcp.WithObject("notes", mcp.Description(`Notes to set by label, e.g. {"Result": "Shipped"}`)),
	), s.updateTask)

	s.mcp.AddTool(mcp.NewTool("archive_task",
		mcp.WithDescription("Move a finished task to the archive. Only call this when the user asks for it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
	), s.archiveTask)

	s.mcp.AddTool(mcp.NewTool("validate_board",
		mcp.WithDescription("Check both board files and list every problem found."),
	), s.validateBoard)

	s.mcp.AddTool(mcp.NewTool("get_kanban_contract",
		mcp.WithDescription("Returns the kanban file format contract. "+
			"Call this before writing task bodies or reading the files directly."),
	), s.getKanbanContract)

	// Resource: kanban format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Kanban Format Contract",
			mcp.WithResourceDescription("Markdown format of the active board and the archive."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getBoard(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := s.svc.Board(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(b)
}

func (s *Server) readTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := s.svc.GetTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s (%s, %s)\n\n%s", task.ID, task.Location, task.Section, task.Markdown)), nil
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, total, err := s.svc.ListTasks(ctx, index.Filter{
		Location: req.GetString("location", ""),
		Section:  req.GetString("section", ""),
		Assignee: req.GetString("assignee", ""),
		Tag:      req.GetString("tag", ""),
		Limit:    req.GetInt("limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"tasks": rows, "total": total})
}

func (s *Server) searchTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) createTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.CreateTask(ctx, boardservice.CreateInput{
		Section:    req.GetString("section", ""),
		Position:   req.GetInt("position", -1),
		Title:      title,
		Attributes: attributesArg(req, "attributes"),
		Body:       req.GetString("body", ""),
		Subtasks:   req.GetStringSlice("subtasks", nil),
	}, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("created: " + res.ID), nil
}

func (s *Server) moveTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	section, err := req.RequireString("section")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.MoveTask(ctx, id, section, req.GetInt("position", -1), ""); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved: %s -> %s", id, section)), nil
}

func (s *Server) startTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.StartTask(ctx, id, req.GetString("date", ""), ""); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("started: " + id), nil
}

func (s *Server) finishTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.FinishTask(ctx, id, req.GetString("date", ""), ""); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("finished: " + id), nil
}

func (s *Server) updateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	var p boardservice.Patch
	if _, ok := args["title"]; ok {
		title := req.GetString("title", "")
		p.Title = &title
	}
	if _, ok := args["body"]; ok {
		body := req.GetString("body", "")
		p.Body = &body
	}
	p.Attributes = attributesArg(req, "attributes")
	p.AddSubtasks = req.GetStringSlice("add_subtasks", nil)
	for _, i := range req.GetIntSlice("check", nil) {
		p.Toggle = append(p.Toggle, boardservice.Toggle{Index: i, Done: true})
	}
	for _, i := range req.GetIntSlice("uncheck", nil) {
		p.Toggle = append(p.Toggle, boardservice.Toggle{Index: i, Done: false})
	}
	for _, a := range attributesArg(req, "notes") {
		p.Notes = append(p.Notes, models.Note{Label: a.Key, Text: a.Value})
	}

	if _, err := s.svc.UpdateTask(ctx, id, p, ""); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("updated: " + id), nil
}

func (s *Server) archiveTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.ArchiveTask(ctx, id, ""); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("archived: " + id), nil
}

func (s *Server) validateBoard(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.Validate(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if report.Valid {
		return mcp.NewToolResultText("board is valid"), nil
	}
	return jsonResult(report)
}

func (s *Server) getKanbanContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(KanbanFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     KanbanFormatContract,
		},
	}, nil
}

// attributesArg reads an object argument of string values as attributes,
// sorted by key.
func attributesArg(req mcp.CallToolRequest, name string) []models.Attribute {
	obj, ok := req.GetArguments()[name].(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]models.Attribute, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.Attribute{Key: k, Value: fmt.Sprint(obj[k])})
	}
	return out
}
