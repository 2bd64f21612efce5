package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/taskboard/internal/boardservice"
	"github.com/starford/taskboard/internal/index"
	"github.com/starford/taskboard/internal/models"
)

// AttributeDTO is one "**Key**: value" metadata pair.
type AttributeDTO struct {
	Key   string `json:"key" example:"Priority" validate:"required"`
	Value string `json:"value" example:"High"`
}

// Validate validates the attribute.
func (a AttributeDTO) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Key, validation.Required, validation.Length(1, 64)),
		validation.Field(&a.Value, validation.Length(0, 500)),
	)
}

// NoteDTO is one labeled note.
type NoteDTO struct {
	Label string `json:"label" example:"Result"`
	Text  string `json:"text" example:"Shipped in 1.4"`
}

// Validate validates the note.
func (n NoteDTO) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Label, validation.Length(0, 64)),
		validation.Field(&n.Text, validation.Required),
	)
}

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest struct {
	Section    string         `json:"section" example:"todo"`
	Position   *int           `json:"position,omitempty" example:"0"`
	Title      string         `json:"title" example:"Fix login bug" validate:"required"`
	Attributes []AttributeDTO `json:"attributes,omitempty"`
	Body       string         `json:"body,omitempty"`
	Subtasks   []string       `json:"subtasks,omitempty"`
	Notes      []NoteDTO      `json:"notes,omitempty"`
}

// Validate validates the request.
func (r *CreateTaskRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Position, validation.Min(0)),
		validation.Field(&r.Attributes),
		validation.Field(&r.Subtasks, validation.Each(validation.Required)),
		validation.Field(&r.Notes),
	)
}

func (r *CreateTaskRequest) input() boardservice.CreateInput {
	pos := -1
	if r.Position != nil {
		pos = *r.Position
	}
	return boardservice.CreateInput{
		Section:    r.Section,
		Position:   pos,
		Title:      r.Title,
		Attributes: attributes(r.Attributes),
		Body:       r.Body,
		Subtasks:   r.Subtasks,
		Notes:      notes(r.Notes),
	}
}

// UpdateTaskRequest is the request body for editing a task. Omitted fields
// are left unchanged.
type UpdateTaskRequest struct {
	Title       *string               `json:"title,omitempty"`
	Body        *string               `json:"body,omitempty"`
	Attributes  []AttributeDTO        `json:"attributes,omitempty"`
	AddSubtasks []string              `json:"add_subtasks,omitempty"`
	Toggle      []boardservice.Toggle `json:"toggle,omitempty"`
	Notes       []NoteDTO             `json:"notes,omitempty"`
}

// Validate validates the request.
func (r *UpdateTaskRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Attributes),
		validation.Field(&r.AddSubtasks, validation.Each(validation.Required)),
		validation.Field(&r.Notes),
	)
}

func (r *UpdateTaskRequest) patch() boardservice.Patch {
	return boardservice.Patch{
		Title:       r.Title,
		Body:        r.Body,
		Attributes:  attributes(r.Attributes),
		AddSubtasks: r.AddSubtasks,
		Toggle:      r.Toggle,
		Notes:       notes(r.Notes),
	}
}

// MoveTaskRequest is the request body for moving a task between sections.
type MoveTaskRequest struct {
	Section  string `json:"section" example:"in-progress" validate:"required"`
	Position *int   `json:"position,omitempty" example:"0"`
}

// Validate validates the request.
func (r *MoveTaskRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Section, validation.Required),
		validation.Field(&r.Position, validation.Min(0)),
	)
}

func (r *MoveTaskRequest) position() int {
	if r.Position == nil {
		return -1
	}
	return *r.Position
}

// DateRequest is the optional body of start and finish. An empty date means today.
type DateRequest struct {
	Date string `json:"date,omitempty" example:"2025-01-20"`
}

// Validate validates the request.
func (r *DateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Date, validation.By(func(v any) error {
			s, _ := v.(string)
			if s == "" {
				return nil
			}
			if _, err := models.ParseDate(s); err != nil {
				return errors.New("must be a date like 2006-01-02")
			}
			return nil
		})),
	)
}

// TaskListResponse wraps paginated task listings.
type TaskListResponse struct {
	Tasks []index.TaskRow `json:"tasks" validate:"required"`
	Total int             `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

func attributes(in []AttributeDTO) []models.Attribute {
	out := make([]models.Attribute, 0, len(in))
	for _, a := range in {
		out = append(out, models.Attribute{Key: a.Key, Value: a.Value})
	}
	return out
}

func notes(in []NoteDTO) []models.Note {
	out := make([]models.Note, 0, len(in))
	for _, n := range in {
		out = append(out, models.Note{Label: n.Label, Text: n.Text})
	}
	return out
}
