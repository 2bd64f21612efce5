// Package models defines the domain types for taskboard.
package models

import (
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Well-known attribute labels.
const (
	AttrPriority  = "Priority"
	AttrCategory  = "Category"
	AttrAssigned  = "Assigned"
	AttrCreated   = "Created"
	AttrStarted   = "Started"
	AttrDue       = "Due"
	AttrFinished  = "Finished"
	AttrCompleted = "Completed"
	AttrTags      = "Tags"
)

// ConfigurationSection is the name of the section that carries board settings.
const ConfigurationSection = "Configuration"

// Attribute is one "**Label**: value" pair from a record's metadata lines.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	// Line is the zero-based metadata line the pair is rendered on.
	Line int `json:"-"`
}

// ChecklistItem is one "- [ ] text" entry of a record's Subtasks block.
type ChecklistItem struct {
	Done bool   `json:"done"`
	Text string `json:"text"`
}

// Note is a bold-labeled block inside a record's Notes section.
type Note struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Record is a single task entry.
type Record struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Attributes  []Attribute     `json:"attributes"`
	Body        string          `json:"body,omitempty"`
	Checklist   []ChecklistItem `json:"checklist,omitempty"`
	Notes       []Note          `json:"notes,omitempty"`
	HasSubtasks bool            `json:"-"`
	HasNotes    bool            `json:"-"`
	Invalid     bool            `json:"invalid,omitempty"`

	// Line is the 1-based heading line in the source text, 0 for new records.
	Line int `json:"line,omitempty"`
	// Raw holds the exact source lines (heading through trailer). It is
	// cleared by Touch so the record is rendered from its fields instead.
	Raw []string `json:"-"`
	// Trailer holds the lines after the "---" terminator.
	Trailer    []string `json:"-"`
	Terminated bool     `json:"-"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.Attributes = slices.Clone(r.Attributes)
	c.Checklist = slices.Clone(r.Checklist)
	c.Notes = slices.Clone(r.Notes)
	c.Raw = slices.Clone(r.Raw)
	c.Trailer = slices.Clone(r.Trailer)
	return &c
}

// Touch marks the record as modified so it is rendered canonically.
func (r *Record) Touch() {
	r.Raw = nil
	r.Terminated = true
}

// Attr returns the value of the attribute with the given label (case-insensitive).
func (r *Record) Attr(key string) (string, bool) {
	for _, a := range r.Attributes {
		if strings.EqualFold(a.Key, key) {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr updates the attribute in place or appends it on the metadata line
// used by its group (general, dates, tags).
func (r *Record) SetAttr(key, value string) {
	for i, a := range r.Attributes {
		if strings.EqualFold(a.Key, key) {
			r.Attributes[i].Value = value
			return
		}
	}
	group := attrGroup(key)
	line := -1
	maxLine := -1
	for _, a := range r.Attributes {
		if a.Line > maxLine {
			maxLine = a.Line
		}
		if line < 0 && attrGroup(a.Key) == group {
			line = a.Line
		}
	}
	if line < 0 {
		line = maxLine + 1
	}
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value, Line: line})
}

// FinishedDate returns the Finished attribute, falling back to Completed.
func (r *Record) FinishedDate() (string, bool) {
	if v, ok := r.Attr(AttrFinished); ok && strings.TrimSpace(v) != "" {
		return v, true
	}
	if v, ok := r.Attr(AttrCompleted); ok && strings.TrimSpace(v) != "" {
		return v, true
	}
	return "", false
}

// ListAttr splits a list-valued attribute ("@a, @b" or "#x #y").
func (r *Record) ListAttr(key string) []string {
	v, ok := r.Attr(key)
	if !ok {
		return nil
	}
	return SplitList(v)
}

// SplitList splits a comma- or space-separated attribute value.
func SplitList(v string) []string {
	sep := func(c rune) bool { return c == ',' }
	if !strings.Contains(v, ",") {
		sep = unicode.IsSpace
	}
	var out []string
	for _, f := range strings.FieldsFunc(v, sep) {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func attrGroup(key string) int {
	switch strings.ToLower(key) {
	case "created", "started", "due", "finished", "completed":
		return 1
	case "tags":
		return 2
	default:
		return 0
	}
}

// IDNumber returns the numeric part of a PREFIX-NNN identifier.
func IDNumber(id string) (int, bool) {
	i := strings.LastIndexByte(id, '-')
	if i < 0 || i == len(id)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Block is one entry of a section: a parsed record or an unparsed fragment
// kept verbatim because it violated a structural rule.
type Block struct {
	Record   *Record  `json:"record,omitempty"`
	Fragment []string `json:"-"`
}

// Section is a level-2 heading with its records.
type Section struct {
	Name       string   `json:"name"`
	Heading    string   `json:"heading"`
	HeadingRaw string   `json:"-"`
	Lead       []string `json:"-"`
	Blocks     []Block  `json:"-"`
	Line       int      `json:"line,omitempty"`
}

// NewSection returns an empty section rendered as "## heading".
func NewSection(heading string) *Section {
	return &Section{
		Name:       SectionName(heading),
		Heading:    heading,
		HeadingRaw: "## " + heading,
		Lead:       []string{""},
	}
}

// Records returns the parsed records of the section in order.
func (s *Section) Records() []*Record {
	out := make([]*Record, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		if b.Record != nil {
			out = append(out, b.Record)
		}
	}
	return out
}

// IndexOf returns the block index of the record with the given id, or -1.
func (s *Section) IndexOf(id string) int {
	for i, b := range s.Blocks {
		if b.Record != nil && strings.EqualFold(b.Record.ID, id) {
			return i
		}
	}
	return -1
}

// Insert places r at record position pos (append when pos is out of range).
func (s *Section) Insert(pos int, r *Record) {
	at := len(s.Blocks)
	if pos >= 0 {
		n := 0
		for i, b := range s.Blocks {
			if b.Record == nil {
				continue
			}
			if n == pos {
				at = i
				break
			}
			n++
		}
	}
	s.padBefore(at)
	s.Blocks = slices.Insert(s.Blocks, at, Block{Record: r})
}

// padBefore makes sure the line rendered just before block index at is blank.
func (s *Section) padBefore(at int) {
	if at == 0 {
		if len(s.Lead) == 0 || !blank(s.Lead[len(s.Lead)-1]) {
			s.Lead = append(slices.Clone(s.Lead), "")
		}
		return
	}
	prev := s.Blocks[at-1]
	if prev.Record == nil {
		if len(prev.Fragment) > 0 && !blank(prev.Fragment[len(prev.Fragment)-1]) {
			s.Blocks[at-1] = Block{Fragment: append(slices.Clone(prev.Fragment), "")}
		}
		return
	}
	if r := prev.Record; !r.endsBlank() {
		c := r.Clone()
		c.Trailer = append(c.Trailer, "")
		if c.Raw != nil {
			c.Raw = append(c.Raw, "")
		}
		s.Blocks[at-1] = Block{Record: c}
	}
}

// endsBlank reports whether the last rendered line of r is blank.
func (r *Record) endsBlank() bool {
	switch {
	case r.Raw != nil:
		return len(r.Raw) > 0 && blank(r.Raw[len(r.Raw)-1])
	case r.Trailer != nil:
		return len(r.Trailer) > 0 && blank(r.Trailer[len(r.Trailer)-1])
	default:
		return true
	}
}

// lastLineBlank reports whether the section renders a blank last line.
func (s *Section) lastLineBlank() bool {
	if n := len(s.Blocks); n > 0 {
		b := s.Blocks[n-1]
		if b.Record != nil {
			return b.Record.endsBlank()
		}
		return len(b.Fragment) > 0 && blank(b.Fragment[len(b.Fragment)-1])
	}
	if n := len(s.Lead); n > 0 {
		return blank(s.Lead[n-1])
	}
	return false
}

func blank(l string) bool { return strings.TrimSpace(l) == "" }

// IsConfiguration reports whether s is the board settings section.
func (s *Section) IsConfiguration() bool {
	return strings.EqualFold(s.Name, ConfigurationSection)
}

func (s *Section) clone() *Section {
	c := *s
	c.Blocks = slices.Clone(s.Blocks)
	return &c
}

// SectionName strips leading emoji and punctuation from a heading.
func SectionName(heading string) string {
	return strings.TrimSpace(strings.TrimLeftFunc(heading, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}

// Column is a configured workflow column.
type Column struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// BoardConfig holds the settings parsed from the Configuration section.
type BoardConfig struct {
	Columns    []Column `json:"columns,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Users      []string `json:"users,omitempty"`
	Priorities []string `json:"priorities,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Column returns the configured column matching name or slug.
func (c *BoardConfig) Column(name string) (Column, bool) {
	if c == nil {
		return Column{}, false
	}
	want := SectionName(name)
	for _, col := range c.Columns {
		if strings.EqualFold(SectionName(col.Name), want) || (col.Slug != "" && strings.EqualFold(col.Slug, name)) {
			return col, true
		}
	}
	return Column{}, false
}

// Document is one ledger file: preamble, counter and sections.
type Document struct {
	// Preamble holds the lines before the first section.
	Preamble []string
	// CounterLine indexes the "Last Task ID" comment in Preamble, -1 if absent.
	CounterLine   int
	CounterPrefix string
	CounterSuffix string
	LastID        int
	Sections      []*Section
	Config        *BoardConfig
	FinalNewline  bool
}

// NewDocument returns an empty document without a counter header.
func NewDocument() *Document {
	return &Document{CounterLine: -1, FinalNewline: true}
}

// HasCounter reports whether the document carries a "Last Task ID" header.
func (d *Document) HasCounter() bool {
	return d.CounterLine >= 0 && d.CounterLine < len(d.Preamble)
}

// Clone returns a copy whose section and block slices can be mutated
// without affecting d. Records are shared and must be cloned before change.
func (d *Document) Clone() *Document {
	c := *d
	c.Preamble = slices.Clone(d.Preamble)
	c.Sections = make([]*Section, len(d.Sections))
	for i, s := range d.Sections {
		c.Sections[i] = s.clone()
	}
	return &c
}

// InsertSection places sec at index at (append when out of range), padding the
// preceding content with a blank line when needed.
func (d *Document) InsertSection(at int, sec *Section) {
	if at < 0 || at > len(d.Sections) {
		at = len(d.Sections)
	}
	if at == 0 {
		if n := len(d.Preamble); n > 0 && !blank(d.Preamble[n-1]) {
			d.Preamble = append(slices.Clone(d.Preamble), "")
		}
	} else if prev := d.Sections[at-1]; !prev.lastLineBlank() {
		if n := len(prev.Blocks); n > 0 {
			prev.padBefore(n)
		} else {
			prev.Lead = append(slices.Clone(prev.Lead), "")
		}
	}
	d.Sections = slices.Insert(d.Sections, at, sec)
}

// Section finds a section by name, ignoring leading emoji and case.
func (d *Document) Section(name string) *Section {
	want := SectionName(name)
	for _, s := range d.Sections {
		if strings.EqualFold(s.Name, want) || s.Heading == name {
			return s
		}
	}
	return nil
}

// WorkflowSections returns every section except Configuration.
func (d *Document) WorkflowSections() []*Section {
	var out []*Section
	for _, s := range d.Sections {
		if !s.IsConfiguration() {
			out = append(out, s)
		}
	}
	return out
}

// Find locates a record by id.
func (d *Document) Find(id string) (*Section, int) {
	for _, s := range d.Sections {
		if i := s.IndexOf(id); i >= 0 {
			return s, i
		}
	}
	return nil, -1
}

// Records returns every parsed record in document order.
func (d *Document) Records() []*Record {
	var out []*Record
	for _, s := range d.Sections {
		out = append(out, s.Records()...)
	}
	return out
}

// MaxID returns the highest id number present, 0 when empty.
func (d *Document) MaxID() int {
	maxID := 0
	for _, r := range d.Records() {
		if n, ok := IDNumber(r.ID); ok && n > maxID {
			maxID = n
		}
	}
	return maxID
}
