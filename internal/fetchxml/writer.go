package fetchxml

import (
	"encoding/xml"
	"strings"
)

// attr is one XML attribute. Attributes are written in slice order because
// the downstream engine and the golden files depend on a fixed order.
type attr struct {
	name  string
	value string
}

// writer builds an XML document with explicit start, end and self-closing
// elements. With an empty indent the output is a single line; otherwise
// every element is written on its own line.
type writer struct {
	sb     strings.Builder
	indent string
	depth  int
}

func newWriter(indent string) *writer {
	return &writer{indent: indent}
}

func (w *writer) open(name string, attrs ...attr) {
	w.start(name, attrs)
	w.sb.WriteString(">")
	w.newline()
	w.depth++
}

func (w *writer) empty(name string, attrs ...attr) {
	w.start(name, attrs)
	w.sb.WriteString("/>")
	w.newline()
}

func (w *writer) close(name string) {
	w.depth--
	w.pad()
	w.sb.WriteString("</")
	w.sb.WriteString(name)
	w.sb.WriteString(">")
	w.newline()
}

func (w *writer) start(name string, attrs []attr) {
	w.pad()
	w.sb.WriteString("<")
	w.sb.WriteString(name)
	for _, a := range attrs {
		w.sb.WriteString(" ")
		w.sb.WriteString(a.name)
		w.sb.WriteString(`="`)
		// EscapeText only fails when the underlying writer does.
		_ = xml.EscapeText(&w.sb, []byte(a.value))
		w.sb.WriteString(`"`)
	}
}

func (w *writer) pad() {
	if w.indent == "" {
		return
	}
	for i := 0; i < w.depth; i++ {
		w.sb.WriteString(w.indent)
	}
}

func (w *writer) newline() {
	if w.indent != "" {
		w.sb.WriteString("\n")
	}
}

func (w *writer) String() string {
	return w.sb.String()
}
