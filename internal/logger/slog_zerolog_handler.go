package logger

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

type field struct {
	key string
	val slog.Value
}

// zlHandler writes slog records through a zerolog logger. Keys opened
// with WithGroup are joined with ".". When the same key arrives from the
// context, a With call and the record, the last one wins.
type zlHandler struct {
	zl     *zerolog.Logger
	attrs  []field
	prefix string
}

func NewSlog(zl *zerolog.Logger) *slog.Logger {
	if zl == nil {
		nop := zerolog.Nop()
		zl = &nop
	}
	return slog.New(&zlHandler{zl: zl})
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l < slog.LevelInfo:
		return zerolog.DebugLevel
	case l < slog.LevelWarn:
		return zerolog.InfoLevel
	case l < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (h *zlHandler) Enabled(_ context.Context, l slog.Level) bool {
	lvl := zerologLevel(l)
	return lvl >= zerolog.GlobalLevel() && lvl >= h.zl.GetLevel()
}

func (h *zlHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := make([]field, 0, len(ctxFields)+len(h.attrs)+r.NumAttrs())
	fields = appendContext(fields, ctx)
	fields = append(fields, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, a)
		return true
	})

	ev := h.zl.WithLevel(zerologLevel(r.Level))
	for i, f := range fields {
		if shadowed(fields[i+1:], f.key) {
			continue
		}
		ev = addField(ev, f)
	}
	ev.Msg(r.Message)
	return nil
}

func (h *zlHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = make([]field, len(h.attrs), len(h.attrs)+len(attrs))
	copy(cp.attrs, h.attrs)
	for _, a := range attrs {
		cp.attrs = appendAttr(cp.attrs, h.prefix, a)
	}
	return &cp
}

func (h *zlHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix = h.prefix + name + "."
	return &cp
}

func appendContext(dst []field, ctx context.Context) []field {
	if ctx == nil {
		return dst
	}
	for _, k := range ctxFields {
		if s, ok := ctx.Value(k).(string); ok && s != "" {
			dst = append(dst, field{key: string(k), val: slog.StringValue(s)})
		}
	}
	return dst
}

// appendAttr flattens group values into dotted keys.
func appendAttr(dst []field, prefix string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		sub := prefix
		if a.Key != "" {
			sub = prefix + a.Key + "."
		}
		for _, g := range a.Value.Group() {
			dst = appendAttr(dst, sub, g)
		}
		return dst
	}
	if a.Key == "" {
		return dst
	}
	return append(dst, field{key: prefix + a.Key, val: a.Value})
}

func shadowed(rest []field, key string) bool {
	for _, f := range rest {
		if f.key == key {
			return true
		}
	}
	return false
}

func addField(ev *zerolog.Event, f field) *zerolog.Event {
	switch f.val.Kind() {
	case slog.KindString:
		return ev.Str(f.key, f.val.String())
	case slog.KindInt64:
		return ev.Int64(f.key, f.val.Int64())
	case slog.KindUint64:
		return ev.Uint64(f.key, f.val.Uint64())
	case slog.KindFloat64:
		return ev.Float64(f.key, f.val.Float64())
	case slog.KindBool:
		return ev.Bool(f.key, f.val.Bool())
	case slog.KindDuration:
		return ev.Dur(f.key, f.val.Duration())
	case slog.KindTime:
		return ev.Time(f.key, f.val.Time())
	default:
		return ev.Interface(f.key, f.val.Any())
	}
}
