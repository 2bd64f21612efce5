package mcpserver

// KanbanFormatContract describes the ledger Markdown format that LLM
// consumers should follow when they read the board files directly.
const KanbanFormatContract = `# Taskboard Kanban Format Contract

The board is two Markdown files: ` + "`kanban.md`" + ` holds active tasks and
` + "`archive.md`" + ` holds finished tasks grouped by month. Prefer the task
tools over editing the files; they keep ids and dates consistent.

## Active board

` + "```" + `markdown
<!-- Config: Last Task ID: 2 -->

# Kanban Board

## ⚙️ Configuration

**Columns**: 📝 To Do (todo) | 🚀 In Progress (in-progress) | ✅ Done (done)

---

## 📝 To Do

### TASK-001 | Fix login bug

**Priority**: High | **Category**: Backend | **Assigned**: @alice
**Created**: 2025-01-20 | **Due**: 2025-02-01
**Tags**: #bug

Free text describing the task.

**Subtasks**:
- [x] Reproduce
- [ ] Fix

**Notes**:

**Result**:
What was done.

---
` + "```" + `

## Rules

1. **The counter** ` + "`<!-- Config: Last Task ID: N -->`" + ` is never lower than the
   highest id in either file. New ids are N+1; ids are never reused.
2. **Sections** are level-2 headings. Leading emoji are ignored when matching, and
   the Configuration columns may be referred to by their slug.
3. **Records** start with ` + "`### ID | Title`" + ` and end with a line that is exactly ` + "`---`" + `.
4. **Metadata** lines are ` + "`**Label**: value`" + ` pairs joined by ` + "` | `" + `.
   Dates use ` + "`YYYY-MM-DD`" + `. Created is set once; Started and Finished are set once.
5. **Body text** must not contain level-2 or level-3 headings or a bare ` + "`---`" + ` line
   outside fenced code blocks.
6. **Archiving** needs a Finished date and is only done on request. Archived tasks
   are read-only.
7. **Encoding** is UTF-8.

## Archive

` + "```" + `markdown
# Archive

## ✅ January 2025

### TASK-000 | Bootstrap repo

**Created**: 2025-01-02 | **Finished**: 2025-01-03

---
` + "```" + `
`
