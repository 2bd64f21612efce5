package render_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/models"
	"github.com/starford/taskboard/internal/parser"
	"github.com/starford/taskboard/internal/render"
)

const board = `<!-- Config: Last Task ID: 2 -->

# Kanban Board

## ⚙️ Configuration

**Columns**: 📝 To Do (todo) | ✅ Done (done)

---

## 📝 To Do

### TASK-001 | Fix login bug

**Priority**: High | **Assigned**: @alice, @bob
**Created**: 2025-01-20
**Tags**: #bug

Users cannot log in.

` + "```go\n## comment\n---\n```" + `

**Subtasks**:
- [x] Reproduce
- [ ] Fix

**Notes**:

Loose remark first.

**Technical decisions**:
Refresh lazily.

**Result**: **Shipped**: yes

---

## ✅ Done

### TASK-002 | Set up CI

**Created**: 2025-01-18 | **Finished**: 2025-01-19

---
`

var ignoreSource = cmpopts.IgnoreFields(models.Record{}, "Line", "Raw", "Trailer")

func TestDocument_ByteIdentical(t *testing.T) {
	inputs := map[string]string{
		"board":            board,
		"no final newline": "<!-- Config: Last Task ID: 1 -->\n\n## To Do\n\n### TASK-001 | A\n\n---",
		"crlf":             "<!-- Config: Last Task ID: 1 -->\r\n\r\n## To Do\r\n\r\n### TASK-001 | A\r\n\r\n**Created**: 2025-01-20\r\n\r\n---\r\n",
		"odd spacing":      "<!--   Config: Last Task ID:   7   -->\n## To Do\n###   TASK-007   |   Spaced   \n**Created**:2025-01-20\n---\n\n\n\n## Done\n",
		"fragments":        "<!-- Config: Last Task ID: 1 -->\n\n## To Do\n\n### broken heading\n\ntext\n\n---\n\n### TASK-001 | ok\n\n---\n",
		"trailing junk":    "<!-- Config: Last Task ID: 1 -->\n\n## To Do\n\n### TASK-001 | A\n\n---\n\nstray text after the record\n",
		"empty":            "",
		"preamble only":    "# Just a title\n\nSome text.\n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			res, err := parser.Parse([]byte(in))
			require.NoError(t, err)
			out, err := render.Document(res.Doc)
			require.NoError(t, err)
			require.Equal(t, in, string(out))
		})
	}
}

func TestDocument_CanonicalRoundTrip(t *testing.T) {
	res, err := parser.Parse([]byte(board))
	require.NoError(t, err)
	require.NoError(t, res.Err())
	want := res.Doc.Records()

	for _, r := range res.Doc.Records() {
		r.Touch()
	}
	out, err := render.Document(res.Doc)
	require.NoError(t, err)

	again, err := parser.Parse(out)
	require.NoError(t, err)
	require.NoError(t, again.Err())
	if diff := cmp.Diff(want, again.Doc.Records(), ignoreSource); diff != "" {
		t.Fatalf("records changed after canonical render (-want +got):\n%s", diff)
	}

	second, err := render.Document(again.Doc)
	require.NoError(t, err)
	require.Equal(t, string(out), string(second))
}

func TestDocument_TouchOnlyChangesThatRecord(t *testing.T) {
	res, err := parser.Parse([]byte(board))
	require.NoError(t, err)

	sec := res.Doc.Section("Done")
	r := sec.Records()[0]
	r.Attributes[0].Value = "2025-01-17"
	r.Touch()

	out, err := render.Document(res.Doc)
	require.NoError(t, err)

	want := strings.Replace(board, "**Created**: 2025-01-18", "**Created**: 2025-01-17", 1)
	require.Equal(t, want, string(out))
}

func TestDocument_CounterInconsistency(t *testing.T) {
	res, err := parser.Parse([]byte("<!-- Config: Last Task ID: 1 -->\n\n## To Do\n\n### TASK-005 | A\n\n---\n"))
	require.NoError(t, err)
	_, err = render.Document(res.Doc)
	require.ErrorIs(t, err, apperr.ErrCounterInconsistency)
}

func TestDocument_CounterRewritten(t *testing.T) {
	res, err := parser.Parse([]byte("<!--Config: Last Task ID: 4-->\n"))
	require.NoError(t, err)
	res.Doc.LastID = 12
	out, err := render.Document(res.Doc)
	require.NoError(t, err)
	require.Equal(t, "<!--Config: Last Task ID: 12-->\n", string(out))
}

func TestRecord_Canonical(t *testing.T) {
	r := &models.Record{
		ID:    "TASK-010",
		Title: "New thing",
		Attributes: []models.Attribute{
			{Key: "Priority", Value: "High"},
			{Key: "Created", Value: "2025-01-20", Line: 1},
		},
		Body:      "Line one\nLine two",
		Checklist: []models.ChecklistItem{{Text: "a"}, {Done: true, Text: "b"}},
		Notes: []models.Note{
			{Label: "Plan", Text: "Do it"},
			{Label: "Result", Text: "**Outcome**: ok"},
		},
	}
	require.Equal(t, []string{
		"### TASK-010 | New thing",
		"",
		"**Priority**: High",
		"**Created**: 2025-01-20",
		"",
		"Line one",
		"Line two",
		"",
		"**Subtasks**:",
		"- [ ] a",
		"- [x] b",
		"",
		"**Notes**:",
		"",
		"**Plan**:",
		"Do it",
		"",
		"**Result**: **Outcome**: ok",
		"",
		"---",
		"",
	}, render.Record(r))
}

func TestRecord_Minimal(t *testing.T) {
	r := &models.Record{ID: "TASK-001", Title: "Bare"}
	require.Equal(t, []string{"### TASK-001 | Bare", "", "---", ""}, render.Record(r))
}

func TestHeader(t *testing.T) {
	require.Equal(t, "<!-- Config: Last Task ID: 0 -->", render.Header(0))
}
