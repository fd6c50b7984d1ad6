// Package output persists compiled scene objects and reads them back.
package output

import (
	"strings"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/profile"
)

// Layout names every persisted object from the layer prefix and the cell
// key alone, so re-runs find earlier content.
type Layout struct {
	Prefix string
}

func NewLayout(prefix string) Layout {
	p := sanitize(strings.TrimSpace(prefix))
	if p == "" {
		p = "layer"
	}
	return Layout{Prefix: p}
}

func (l Layout) ContentPath(k profile.Key) string { return l.Prefix + "_" + k.String() + ".json" }
func (l Layout) IndexPath(k profile.Key) string   { return l.Prefix + "_" + k.String() + ".idx.json" }
func (l Layout) RootPath() string                 { return l.Prefix + ".json" }

// sanitize keeps letters, digits, '_' and '-' and folds runs of anything
// else into a single '-'.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := r
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-':
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
