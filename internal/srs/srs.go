// Package srs describes spatial reference systems and the coordinate
// transforms the pipeline needs between them.
package srs

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

type Kind int

const (
	KindProjected Kind = iota
	KindGeographic
	KindLocal
)

func (k Kind) String() string {
	switch k {
	case KindGeographic:
		return "geographic"
	case KindLocal:
		return "local"
	default:
		return "projected"
	}
}

var (
	ErrUnknownSRS  = errors.New("unknown spatial reference")
	ErrNoTransform = errors.New("no transform between spatial references")
)

// SRS is immutable once registered; compare by pointer or Code.
type SRS struct {
	Code  string
	Kind  Kind
	Units string
}

func (s *SRS) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.Code
}

func (s *SRS) IsGeographic() bool { return s != nil && s.Kind == KindGeographic }

var (
	WGS84        = &SRS{Code: "EPSG:4326", Kind: KindGeographic, Units: "degree"}
	WebMercator  = &SRS{Code: "EPSG:3857", Kind: KindProjected, Units: "metre"}
	Local        = &SRS{Code: "LOCAL", Kind: KindLocal, Units: "metre"}
	geographicGR = &SRS{Code: "EPSG:4269", Kind: KindGeographic, Units: "degree"}
)

// Registry resolves SRS codes. It is built once at start-up and
// read-only afterwards.
type Registry struct {
	byCode map[string]*SRS
}

func NewRegistry() *Registry {
	r := &Registry{byCode: map[string]*SRS{}}
	for _, s := range []*SRS{WGS84, WebMercator, Local, geographicGR} {
		r.byCode[normCode(s.Code)] = s
	}
	r.byCode["WGS84"] = WGS84
	r.byCode["EPSG:900913"] = WebMercator
	return r
}

func (r *Registry) Register(s *SRS) error {
	if s == nil || strings.TrimSpace(s.Code) == "" {
		return errors.New("srs: code is required")
	}
	k := normCode(s.Code)
	if _, ok := r.byCode[k]; ok {
		return fmt.Errorf("srs: %q already registered", s.Code)
	}
	r.byCode[k] = s
	return nil
}

func (r *Registry) Resolve(code string) (*SRS, error) {
	if s, ok := r.byCode[normCode(code)]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSRS, code)
}

func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.byCode))
	for k := range r.byCode {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normCode(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

// Policy decides when two references are close enough to skip
// reprojection. With GeographicEquivalence every pair of geographic
// systems counts as equivalent, which ignores datum differences.
type Policy struct {
	GeographicEquivalence bool
}

func DefaultPolicy() Policy { return Policy{GeographicEquivalence: true} }

func (p Policy) Equivalent(a, b *SRS) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b || normCode(a.Code) == normCode(b.Code) {
		return true
	}
	return p.GeographicEquivalence && a.IsGeographic() && b.IsGeographic()
}

// Func maps one coordinate between two references.
type Func func(x, y, z float64) (float64, float64, float64)

func Identity(x, y, z float64) (float64, float64, float64) { return x, y, z }

const earthRadius = 6378137.0

// Transformer returns the coordinate mapping from -> to. A nil endpoint
// means "same as the other side".
func (p Policy) Transformer(from, to *SRS) (Func, error) {
	if from == nil || to == nil || p.Equivalent(from, to) {
		return Identity, nil
	}
	switch {
	case from.IsGeographic() && normCode(to.Code) == normCode(WebMercator.Code):
		return geoToMercator, nil
	case normCode(from.Code) == normCode(WebMercator.Code) && to.IsGeographic():
		return mercatorToGeo, nil
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrNoTransform, from, to)
}

func geoToMercator(lon, lat, z float64) (float64, float64, float64) {
	const maxLat = 85.05112878
	lat = math.Max(-maxLat, math.Min(maxLat, lat))
	x := earthRadius * lon * math.Pi / 180
	y := earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y, z
}

func mercatorToGeo(x, y, z float64) (float64, float64, float64) {
	lon := x / earthRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat, z
}
