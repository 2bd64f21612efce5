// Package parser turns ledger Markdown (kanban.md, archive.md) into the
// document model, keeping enough of the source to re-emit it byte for byte.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/models"
)

var (
	counterRe   = regexp.MustCompile(`^(\s*<!--.*?Last Task ID:\s*)(\d+)(.*)$`)
	headingRe   = regexp.MustCompile(`^###\s+(.*?)\s*\|\s*(.*?)\s*$`)
	idRe        = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*-[0-9]+$`)
	labelRe     = regexp.MustCompile(`^\*\*([^*]+?)\*\*:\s*(.*?)\s*$`)
	checkItemRe = regexp.MustCompile(`^\s*[-*]\s+\[([ xX])\]\s?(.*?)\s*$`)
)

// ErrNotUTF8 is returned when the input cannot be ledger Markdown at all.
var ErrNotUTF8 = errors.New("parser: input is not valid UTF-8")

const (
	subtasksLabel = "Subtasks"
	notesLabel    = "Notes"
)

// Result holds a best-effort document and every problem found while parsing.
type Result struct {
	Doc      *models.Document
	Problems []error
}

// Err aggregates all problems into one error, nil when the text is clean.
func (r *Result) Err() error {
	var merr *multierror.Error
	for _, p := range r.Problems {
		merr = multierror.Append(merr, p)
	}
	return merr.ErrorOrNil()
}

// Parse parses an active ledger document. A missing "Last Task ID" header is
// reported as a problem; malformed records are kept verbatim and reported
// without aborting the rest of the document.
func Parse(data []byte) (*Result, error) {
	res, err := parse(data)
	if err != nil {
		return nil, err
	}
	if !res.Doc.HasCounter() {
		res.Problems = append(res.Problems, &apperr.ParseError{Line: 1, Offset: 0, Rule: `missing "Last Task ID" header comment`})
	}
	return res, nil
}

// ParseArchive parses an archive document. The counter header is optional but
// every record must carry a Finished (or Completed) date.
func ParseArchive(data []byte) (*Result, error) {
	res, err := parse(data)
	if err != nil {
		return nil, err
	}
	for _, r := range res.Doc.Records() {
		if _, ok := r.FinishedDate(); !ok {
			r.Invalid = true
			res.Problems = append(res.Problems, &apperr.ValidationError{
				RecordID: r.ID,
				Field:    models.AttrFinished,
				Line:     r.Line,
				Msg:      "archived record has no finished date",
				Err:      apperr.ErrNotFinished,
			})
		}
	}
	return res, nil
}

type scanner struct {
	lines   []string
	offsets []int
	fenced  []bool
	res     *Result
}

func parse(data []byte) (*Result, error) {
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}
	doc := models.NewDocument()
	doc.FinalNewline = false
	res := &Result{Doc: doc}
	if len(data) == 0 {
		return res, nil
	}

	text := string(data)
	if strings.HasSuffix(text, "\n") {
		doc.FinalNewline = true
		text = text[:len(text)-1]
	}
	p := &scanner{lines: strings.Split(text, "\n"), res: res}
	p.index()
	p.document(doc)
	return res, nil
}

// index computes byte offsets and marks lines belonging to fenced code blocks.
func (p *scanner) index() {
	p.offsets = make([]int, len(p.lines))
	p.fenced = make([]bool, len(p.lines))
	off := 0
	var fence string
	for i, l := range p.lines {
		p.offsets[i] = off
		off += len(l) + 1
		trimmed := strings.TrimLeft(clean(l), " ")
		if fence != "" {
			p.fenced[i] = true
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
			continue
		}
		for _, f := range []string{"```", "~~~"} {
			if strings.HasPrefix(trimmed, f) {
				fence = f
				p.fenced[i] = true
			}
		}
	}
}

func clean(l string) string { return strings.TrimRight(l, "\r") }

func (p *scanner) isSection(i int) bool {
	return !p.fenced[i] && strings.HasPrefix(clean(p.lines[i]), "## ")
}

func (p *scanner) isRecordHeading(i int) bool {
	return !p.fenced[i] && strings.HasPrefix(clean(p.lines[i]), "### ")
}

func (p *scanner) isHeading(i int) bool { return p.isSection(i) || p.isRecordHeading(i) }

func (p *scanner) isTerminator(i int) bool {
	return !p.fenced[i] && strings.TrimSpace(p.lines[i]) == "---"
}

func (p *scanner) problem(line int, id, rule string) {
	p.res.Problems = append(p.res.Problems, &apperr.ParseError{
		Line:     line + 1,
		Offset:   p.offsets[line],
		RecordID: id,
		Rule:     rule,
	})
}

func (p *scanner) document(doc *models.Document) {
	n := len(p.lines)
	i := 0
	for i < n && !p.isSection(i) {
		i++
	}
	doc.Preamble = p.lines[:i]
	for j, l := range doc.Preamble {
		if m := counterRe.FindStringSubmatch(clean(l)); m != nil {
			v, err := strconv.Atoi(m[2])
			if err != nil {
				p.problem(j, "", "Last Task ID is not a number")
				break
			}
			doc.CounterLine = j
			doc.CounterPrefix = m[1]
			doc.CounterSuffix = m[3] + l[len(clean(l)):]
			doc.LastID = v
			break
		}
	}

	seen := make(map[string]int)
	for i < n {
		sec := &models.Section{
			HeadingRaw: p.lines[i],
			Heading:    strings.TrimSpace(strings.TrimPrefix(clean(p.lines[i]), "## ")),
			Line:       i + 1,
		}
		sec.Name = models.SectionName(sec.Heading)
		key := strings.ToLower(sec.Name)
		if prev, dup := seen[key]; dup {
			p.problem(i, "", fmt.Sprintf("duplicate section %q (first at line %d)", sec.Name, prev))
		} else {
			seen[key] = i + 1
		}
		i++

		start := i
		for i < n && !p.isHeading(i) {
			i++
		}
		sec.Lead = p.lines[start:i]
		if sec.IsConfiguration() {
			doc.Config = parseConfig(sec.Lead)
		}

		for i < n && p.isRecordHeading(i) {
			end := p.recordEnd(i)
			sec.Blocks = append(sec.Blocks, p.record(i, end))
			i = end
		}
		doc.Sections = append(doc.Sections, sec)
	}

	ids := make(map[string]int)
	for _, r := range doc.Records() {
		key := strings.ToUpper(r.ID)
		if first, dup := ids[key]; dup {
			p.res.Problems = append(p.res.Problems, &apperr.ValidationError{
				RecordID: r.ID,
				Line:     r.Line,
				Msg:      fmt.Sprintf("id already used at line %d", first),
				Err:      apperr.ErrDuplicateID,
			})
			continue
		}
		ids[key] = r.Line
	}
}

// recordEnd returns the exclusive end of the record starting at line start.
// A heading inside an open record belongs to its body when a "---"
// terminator follows before the next heading.
func (p *scanner) recordEnd(start int) int {
	n := len(p.lines)
	terminated := false
	j := start + 1
	for ; j < n; j++ {
		if p.isHeading(j) {
			if terminated || p.validHeading(j) || !p.terminatorAhead(j) {
				break
			}
			continue
		}
		if p.isTerminator(j) {
			terminated = true
		}
	}
	return j
}

func (p *scanner) validHeading(i int) bool {
	if !p.isRecordHeading(i) {
		return false
	}
	m := headingRe.FindStringSubmatch(clean(p.lines[i]))
	return m != nil && idRe.MatchString(m[1])
}

func (p *scanner) terminatorAhead(i int) bool {
	for k := i + 1; k < len(p.lines); k++ {
		if p.isHeading(k) {
			return false
		}
		if p.isTerminator(k) {
			return true
		}
	}
	return false
}

func (p *scanner) record(start, end int) models.Block {
	chunk := p.lines[start:end]
	fragment := models.Block{Fragment: chunk}

	m := headingRe.FindStringSubmatch(clean(chunk[0]))
	if m == nil {
		p.problem(start, "", `record heading must be "### ID | Title"`)
		return fragment
	}
	id, title := m[1], m[2]
	if !idRe.MatchString(id) {
		p.problem(start, "", fmt.Sprintf("invalid record id %q, want PREFIX-NNN", id))
		return fragment
	}
	if title == "" {
		p.problem(start, id, "record title is empty")
		return fragment
	}

	r := &models.Record{ID: id, Title: title, Line: start + 1, Raw: chunk}

	term := -1
	for k := start + 1; k < end; k++ {
		if p.isTerminator(k) {
			term = k
			break
		}
	}
	contentEnd := end
	if term >= 0 {
		contentEnd = term
		r.Terminated = true
		r.Trailer = p.lines[term+1 : end]
	}

	for k := start + 1; k < contentEnd; k++ {
		if p.isSection(k) {
			p.problem(k, id, "record body contains a disallowed second-level heading")
			return fragment
		}
		if p.isRecordHeading(k) {
			p.problem(k, id, "record body contains a disallowed third-level heading")
			return fragment
		}
	}

	if !p.fields(r, start+1, contentEnd) {
		return fragment
	}
	for _, verr := range r.Validate() {
		r.Invalid = true
		p.res.Problems = append(p.res.Problems, verr)
	}
	return models.Block{Record: r}
}

// fields fills metadata, body, checklist and notes from lines [from, to).
func (p *scanner) fields(r *models.Record, from, to int) bool {
	k := from
	for k < to && strings.TrimSpace(p.lines[k]) == "" {
		k++
	}

	metaLine := 0
	for k < to && !p.fenced[k] {
		l := clean(p.lines[k])
		if !labelRe.MatchString(l) || blockLabel(l) != "" {
			break
		}
		r.Attributes = append(r.Attributes, metadata(l, metaLine)...)
		metaLine++
		k++
	}

	bodyStart := k
	for k < to && (p.fenced[k] || blockLabel(p.lines[k]) == "") {
		k++
	}
	r.Body = joinTrimmed(p.lines[bodyStart:k])

	if k < to && blockLabel(p.lines[k]) == subtasksLabel {
		r.HasSubtasks = true
		k++
		for ; k < to; k++ {
			l := clean(p.lines[k])
			if strings.TrimSpace(l) == "" {
				continue
			}
			if blockLabel(l) == notesLabel {
				break
			}
			m := checkItemRe.FindStringSubmatch(l)
			if m == nil {
				p.problem(k, r.ID, "subtasks block line is not a \"- [ ] item\" checkbox")
				return false
			}
			r.Checklist = append(r.Checklist, models.ChecklistItem{Done: m[1] != " ", Text: m[2]})
		}
	}

	if k < to && blockLabel(p.lines[k]) == notesLabel {
		r.HasNotes = true
		r.Notes = notes(p.lines[k+1:to], p.fenced[k+1:to])
		k = to
	}

	if k < to {
		p.problem(k, r.ID, "unexpected content after record notes")
		return false
	}
	return true
}

// blockLabel returns "Subtasks" or "Notes" when l opens one of those blocks.
func blockLabel(l string) string {
	m := labelRe.FindStringSubmatch(clean(l))
	if m == nil || m[2] != "" {
		return ""
	}
	switch {
	case strings.EqualFold(m[1], subtasksLabel):
		return subtasksLabel
	case strings.EqualFold(m[1], notesLabel):
		return notesLabel
	}
	return ""
}

// metadata splits "**A**: x | **B**: y" into attributes. Segments without a
// label continue the previous value.
func metadata(l string, line int) []models.Attribute {
	var out []models.Attribute
	for _, seg := range strings.Split(l, " | ") {
		if m := labelRe.FindStringSubmatch(strings.TrimSpace(seg)); m != nil {
			out = append(out, models.Attribute{Key: strings.TrimSpace(m[1]), Value: m[2], Line: line})
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].Value += " | " + strings.TrimSpace(seg)
		}
	}
	return out
}

func notes(lines []string, fenced []bool) []models.Note {
	var out []models.Note
	var cur *models.Note
	var buf []string
	flush := func() {
		if cur != nil {
			cur.Text = joinTrimmed(buf)
			out = append(out, *cur)
		}
		buf = nil
	}
	for i, l := range lines {
		if !fenced[i] {
			if m := labelRe.FindStringSubmatch(clean(l)); m != nil {
				flush()
				cur = &models.Note{Label: strings.TrimSpace(m[1])}
				if m[2] != "" {
					buf = append(buf, m[2])
				}
				continue
			}
		}
		if cur == nil {
			if strings.TrimSpace(l) == "" {
				continue
			}
			cur = &models.Note{}
		}
		buf = append(buf, clean(l))
	}
	flush()
	return out
}

func joinTrimmed(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	out := make([]string, 0, end-start)
	for _, l := range lines[start:end] {
		out = append(out, clean(l))
	}
	return strings.Join(out, "\n")
}
