package apt

import (
	"strings"
)

// EntryKind classifies one line of a sources.list file.
type EntryKind int

// Entry kinds.  Disabled kinds are well-formed entries that are commented out.
const (
	KindBlank EntryKind = iota
	KindComment
	KindInvalid
	KindDeb
	KindDebSrc
	KindDisabledDeb
	KindDisabledDebSrc
)

var kindNames = map[EntryKind]string{
	KindBlank:          "blank",
	KindComment:        "comment",
	KindInvalid:        "invalid",
	KindDeb:            "deb",
	KindDebSrc:         "deb-src",
	KindDisabledDeb:    "disabled-deb",
	KindDisabledDebSrc: "disabled-deb-src",
}

func (k EntryKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// typeWord returns the leading keyword written for deb-like kinds.
func (k EntryKind) typeWord() string {
	switch k {
	case KindDeb, KindDisabledDeb:
		return "deb"
	case KindDebSrc, KindDisabledDebSrc:
		return "deb-src"
	}
	return ""
}

// Entry is one line of a sources.list file.
//
// Raw keeps the original text so that untouched lines are written back
// byte for byte.  Entries are values; the transforms in this package
// return new entries instead of modifying their input.
type Entry struct {
	Kind       EntryKind
	Options    []string
	URI        string
	Suite      string
	Components []string
	Comment    string
	Raw        string

	// rewritten is set when the structured fields, not Raw, describe the line.
	rewritten bool
}

// ParseEntry parses a single sources.list line.
//
// Lines that do not follow the one-line format are kept as KindInvalid
// (or KindComment when commented out); they are never rejected.
func ParseEntry(line string) Entry {
	e := Entry{Raw: line}

	body := strings.TrimSpace(line)
	if body == "" {
		e.Kind = KindBlank
		return e
	}

	disabled := false
	if strings.HasPrefix(body, "#") {
		disabled = true
		body = strings.TrimSpace(strings.TrimLeft(body, "#"))
	}

	if !e.parseFields(body) {
		if disabled {
			return Entry{Kind: KindComment, Raw: line}
		}
		return Entry{Kind: KindInvalid, Raw: line}
	}

	if disabled {
		if e.Kind == KindDeb {
			e.Kind = KindDisabledDeb
		} else {
			e.Kind = KindDisabledDebSrc
		}
	}
	return e
}

func (e *Entry) parseFields(body string) bool {
	if i := strings.Index(body, "#"); i >= 0 {
		e.Comment = strings.TrimSpace(body[i:])
		body = body[:i]
	}

	fields := strings.Fields(body)
	if len(fields) < 3 {
		return false
	}
	switch fields[0] {
	case "deb":
		e.Kind = KindDeb
	case "deb-src":
		e.Kind = KindDebSrc
	default:
		return false
	}
	fields = fields[1:]

	// options may span several tokens: [ arch=amd64 signed-by=/k.gpg ]
	if strings.HasPrefix(fields[0], "[") {
		closed := false
		for len(fields) > 0 {
			tok := fields[0]
			fields = fields[1:]
			e.Options = append(e.Options, tok)
			if strings.HasSuffix(tok, "]") {
				closed = true
				break
			}
		}
		if !closed {
			return false
		}
	}

	if len(fields) < 2 {
		return false
	}
	e.URI = fields[0]
	e.Suite = fields[1]

	seen := make(map[string]bool)
	for _, comp := range fields[2:] {
		if seen[comp] {
			continue
		}
		seen[comp] = true
		e.Components = append(e.Components, comp)
	}

	// only flat repositories ("./", "stable/") may omit components
	if len(e.Components) == 0 && !strings.HasSuffix(e.Suite, "/") {
		return false
	}
	return true
}

// ParseEntries parses the lines of a sources.list document.
// A single trailing newline does not produce an extra blank entry.
func ParseEntries(text string) []Entry {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")

	lines := strings.Split(text, "\n")
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, ParseEntry(strings.TrimSuffix(line, "\r")))
	}
	return entries
}

// Enabled returns true for active deb and deb-src lines.
func (e Entry) Enabled() bool {
	return e.Kind == KindDeb || e.Kind == KindDebSrc
}

// Disabled returns true for well-formed entries that are commented out.
func (e Entry) Disabled() bool {
	return e.Kind == KindDisabledDeb || e.Kind == KindDisabledDebSrc
}

// HasOptions returns true if the entry carries a bracketed option list.
func (e Entry) HasOptions() bool {
	return len(e.Options) > 0
}

func (e Entry) clone() Entry {
	c := e
	c.Options = append([]string(nil), e.Options...)
	c.Components = append([]string(nil), e.Components...)
	return c
}

// Disable returns a commented-out copy of an enabled entry.
//
// Option-bearing entries are commented over their raw text since they
// are never rewritten field by field.
func (e Entry) Disable() Entry {
	if !e.Enabled() {
		return e
	}

	d := e.clone()
	if e.Kind == KindDeb {
		d.Kind = KindDisabledDeb
	} else {
		d.Kind = KindDisabledDebSrc
	}

	if e.HasOptions() {
		d.Raw = "# " + strings.TrimSpace(e.Raw)
		d.rewritten = false
		return d
	}
	d.rewritten = true
	d.Raw = d.format()
	return d
}

// WithComponents returns a copy of the entry listing only comps.
func (e Entry) WithComponents(comps []string) Entry {
	c := e.clone()
	c.Components = append([]string(nil), comps...)
	c.rewritten = true
	c.Raw = c.format()
	return c
}

func (e Entry) format() string {
	var b strings.Builder
	if e.Disabled() {
		b.WriteString("# ")
	}
	b.WriteString(e.Kind.typeWord())
	for _, opt := range e.Options {
		b.WriteString(" ")
		b.WriteString(opt)
	}
	b.WriteString(" ")
	b.WriteString(e.URI)
	b.WriteString(" ")
	b.WriteString(e.Suite)
	for _, comp := range e.Components {
		b.WriteString(" ")
		b.WriteString(comp)
	}
	if e.Comment != "" {
		b.WriteString(" ")
		b.WriteString(e.Comment)
	}
	return b.String()
}

// String renders the entry as a sources.list line.
func (e Entry) String() string {
	if e.rewritten {
		return e.format()
	}
	return e.Raw
}

// EntriesString renders entries as a sources.list document with a
// newline after every line.
func EntriesString(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
