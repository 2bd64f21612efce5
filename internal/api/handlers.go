package api

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/starford/taskboard/internal/boardservice"
	"github.com/starford/taskboard/internal/index"
)

// Handler holds API route handlers.
type Handler struct {
	svc *boardservice.Service
	md  goldmark.Markdown
}

// NewHandler creates a new Handler.
func NewHandler(svc *boardservice.Service) *Handler {
	return &Handler{
		svc: svc,
		md:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// GetBoard handles GET /api/board.
//
//	@Summary		Get the active board grouped by section
//	@Tags			board
//	@Produce		json
//	@Success		200	{object}	boardservice.Board
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/board [get]
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Board(r.Context())
	if err != nil {
		writeError(w, "get board", err)
		return
	}
	setETag(w, b.Checksum)
	writeJSON(w, http.StatusOK, b)
}

// ListTasks handles GET /api/tasks.
//
//	@Summary		List indexed tasks with optional filters
//	@Tags			tasks
//	@Produce		json
//	@Param			location	query		string	false	"active or archive"
//	@Param			section		query		string	false	"Section name"
//	@Param			assignee	query		string	false	"Assignee handle"
//	@Param			tag			query		string	false	"Tag"
//	@Param			priority	query		string	false	"Priority"
//	@Param			category	query		string	false	"Category"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	TaskListResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	rows, total, err := h.svc.ListTasks(r.Context(), index.Filter{
		Location: q.Get("location"),
		Section:  q.Get("section"),
		Assignee: q.Get("assignee"),
		Tag:      q.Get("tag"),
		Priority: q.Get("priority"),
		Category: q.Get("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, "list tasks", err)
		return
	}
	if rows == nil {
		rows = []index.TaskRow{}
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: rows, Total: total})
}

// GetTask handles GET /api/tasks/{id}.
//
//	@Summary		Get a task from the board or the archive
//	@Tags			tasks
//	@Produce		json
//	@Param			id	path		string	true	"Task id"
//	@Success		200	{object}	boardservice.TaskDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [get]
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get task", err)
		return
	}
	setETag(w, task.Checksum)
	writeJSON(w, http.StatusOK, task)
}

// GetTaskHTML handles GET /api/tasks/{id}/html.
//
//	@Summary		Render a task as HTML
//	@Tags			tasks
//	@Produce		html
//	@Param			id	path	string	true	"Task id"
//	@Success		200	{string}	string
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id}/html [get]
func (h *Handler) GetTaskHTML(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get task html", err)
		return
	}
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(task.Markdown), &buf); err != nil {
		writeError(w, "render task html", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("write html failed", slog.String("error", err.Error()))
	}
}

// CreateTask handles POST /api/tasks.
//
//	@Summary		Create a task with the next id
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			If-Match	header		string				false	"Board checksum for optimistic concurrency"
//	@Param			body		body		CreateTaskRequest	true	"Task to create"
//	@Success		201			{object}	boardservice.Result
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.CreateTask(r.Context(), req.input(), ifMatch(r))
	if err != nil {
		writeError(w, "create task", err)
		return
	}
	setETag(w, res.Checksum)
	writeJSON(w, http.StatusCreated, res)
}

// UpdateTask handles PATCH /api/tasks/{id}.
//
//	@Summary		Edit a task; all edits apply or none do
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Task id"
//	@Param			If-Match	header		string				false	"Board checksum for optimistic concurrency"
//	@Param			body		body		UpdateTaskRequest	true	"Edits"
//	@Success		200			{object}	boardservice.Result
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [patch]
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	id := chi.URLParam(r, "id")
	h.mutation(w, r, "update task", func(ctx context.Context) (*boardservice.Result, error) {
		return h.svc.UpdateTask(ctx, id, req.patch(), ifMatch(r))
	})
}

// MoveTask handles POST /api/tasks/{id}/move.
//
//	@Summary		Move a task to another section
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string			true	"Task id"
//	@Param			If-Match	header		string			false	"Board checksum for optimistic concurrency"
//	@Param			body		body		MoveTaskRequest	true	"Destination"
//	@Success		200			{object}	boardservice.Result
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id}/move [post]
func (h *Handler) MoveTask(w http.ResponseWriter, r *http.Request) {
	var req MoveTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	id := chi.URLParam(r, "id")
	h.mutation(w, r, "move task", func(ctx context.Context) (*boardservice.Result, error) {
		return h.svc.MoveTask(ctx, id, req.Section, req.position(), ifMatch(r))
	})
}

// StartTask handles POST /api/tasks/{id}/start.
//
//	@Summary		Set the Started date once
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string		true	"Task id"
//	@Param			If-Match	header		string		false	"Board checksum for optimistic concurrency"
//	@Param			body		body		DateRequest	false	"Date, today when omitted"
//	@Success		200			{object}	boardservice.Result
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id}/start [post]
func (h *Handler) StartTask(w http.ResponseWriter, r *http.Request) {
	var req DateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	id := chi.URLParam(r, "id")
	h.mutation(w, r, "start task", func(ctx context.Context) (*boardservice.Result, error) {
		return h.svc.StartTask(ctx, id, req.Date, ifMatch(r))
	})
}

// FinishTask handles POST /api/tasks/{id}/finish.
//
//	@Summary		Set the Finished date once
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string		true	"Task id"
//	@Param			If-Match	header		string		false	"Board checksum for optimistic concurrency"
//	@Param			body		body		DateRequest	false	"Date, today when omitted"
//	@Success		200			{object}	boardservice.Result
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id}/finish [post]
func (h *Handler) FinishTask(w http.ResponseWriter, r *http.Request) {
	var req DateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	id := chi.URLParam(r, "id")
	h.mutation(w, r, "finish task", func(ctx context.Context) (*boardservice.Result, error) {
		return h.svc.FinishTask(ctx, id, req.Date, ifMatch(r))
	})
}

// ArchiveTask handles POST /api/tasks/{id}/archive.
//
//	@Summary		Move a finished task into the archive
//	@Tags			tasks
//	@Produce		json
//	@Param			id			path		string	true	"Task id"
//	@Param			If-Match	header		string	false	"Board checksum for optimistic concurrency"
//	@Success		200			{object}	boardservice.Result
//	@Failure		404			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id}/archive [post]
func (h *Handler) ArchiveTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutation(w, r, "archive task", func(ctx context.Context) (*boardservice.Result, error) {
		return h.svc.ArchiveTask(ctx, id, ifMatch(r))
	})
}

func (h *Handler) mutation(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context) (*boardservice.Result, error)) {
	res, err := fn(r.Context())
	if err != nil {
		writeError(w, op, err)
		return
	}
	setETag(w, res.Checksum)
	writeJSON(w, http.StatusOK, res)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across active and archived tasks
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Validate handles GET /api/validate.
//
//	@Summary		Check both ledger files for problems
//	@Tags			board
//	@Produce		json
//	@Success		200	{object}	boardservice.Report
//	@Security		BearerAuth
//	@Router			/validate [get]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Validate(r.Context())
	if err != nil {
		writeError(w, "validate", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
