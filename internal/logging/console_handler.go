package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes a one-line header per record followed by indented
// fields. Records below info list every field as key=value; info and above
// show labelled highlights.
type consoleHandler struct {
	out       *syncWriter
	level     slog.Leveler
	preset    []pair
	prefix    string
	addSource bool
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(p)
	return err
}

type pair struct {
	key string
	val slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{out: &syncWriter{w: w}, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	set := fieldSet{index: make(map[string]int, len(h.preset)+record.NumAttrs())}
	for _, p := range h.preset {
		set.put(p)
	}
	record.Attrs(func(attr slog.Attr) bool {
		collectAttr(set.put, h.prefix, attr)
		return true
	})

	line := consoleLine{
		when:    record.Time,
		level:   record.Level,
		message: strings.TrimSpace(record.Message),
	}
	if line.when.IsZero() {
		line.when = time.Now()
	}
	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			line.source = fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line)
		}
	}
	for _, p := range set.list {
		switch p.key {
		case FieldComponent:
			line.component = attrString(p.val)
		case FieldUnit:
			line.unit = strings.TrimSpace(attrString(p.val))
		default:
			line.fields = append(line.fields, p)
		}
	}

	return h.out.write(line.render())
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.preset = append([]pair(nil), h.preset...)
	for _, attr := range attrs {
		collectAttr(func(p pair) { next.preset = append(next.preset, p) }, h.prefix, attr)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// fieldSet keeps the first position of each key and its latest value.
type fieldSet struct {
	index map[string]int
	list  []pair
}

func (s *fieldSet) put(p pair) {
	if i, ok := s.index[p.key]; ok {
		s.list[i].val = p.val
		return
	}
	s.index[p.key] = len(s.list)
	s.list = append(s.list, p)
}

// collectAttr flattens groups into dotted keys.
func collectAttr(emit func(pair), prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		inner := prefix
		if attr.Key != "" {
			inner = prefix + attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			collectAttr(emit, inner, member)
		}
		return
	}
	if attr.Key == "" {
		return
	}
	emit(pair{key: prefix + attr.Key, val: attr.Value})
}

type consoleLine struct {
	when      time.Time
	level     slog.Level
	component string
	unit      string
	message   string
	source    string
	fields    []pair
}

// scope renders as component/unit, either part optional.
func (l consoleLine) scope() string {
	switch {
	case l.component != "" && l.unit != "":
		return l.component + "/" + l.unit
	case l.component != "":
		return l.component
	default:
		return l.unit
	}
}

func (l consoleLine) render() []byte {
	var b strings.Builder
	b.Grow(128 + 32*len(l.fields))

	b.WriteString(formatTimestamp(l.when))
	b.WriteByte(' ')
	b.WriteString(levelLabel(l.level))
	if scope := l.scope(); scope != "" {
		b.WriteString(" [")
		b.WriteString(scope)
		b.WriteByte(']')
	}
	b.WriteByte(' ')
	if l.message == "" {
		b.WriteString("(no message)")
	} else {
		b.WriteString(l.message)
	}
	if l.source != "" {
		b.WriteString(" (")
		b.WriteString(l.source)
		b.WriteByte(')')
	}
	b.WriteByte('\n')

	if l.level < slog.LevelInfo {
		for _, p := range l.fields {
			fmt.Fprintf(&b, "    %s=%s\n", p.key, formatValue(p.val))
		}
		return []byte(b.String())
	}

	shown, hidden := selectInfoFields(l.fields, infoAttrLimit)
	for _, f := range shown {
		fmt.Fprintf(&b, "    - %s: %s\n", f.label, f.value)
	}
	switch {
	case hidden == 1:
		b.WriteString("    + 1 more field hidden\n")
	case hidden > 1:
		fmt.Fprintf(&b, "    + %d more fields hidden\n", hidden)
	}
	return []byte(b.String())
}

func levelLabel(level slog.Level) string {
	for _, threshold := range []slog.Level{slog.LevelError, slog.LevelWarn, slog.LevelInfo} {
		if level >= threshold {
			return threshold.String()
		}
	}
	return slog.LevelDebug.String()
}
