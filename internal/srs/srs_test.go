package srs

import (
	"errors"
	"math"
	"testing"
)

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()

	s, err := r.Resolve(" epsg:4326 ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s != WGS84 {
		t.Fatalf("got %v want WGS84", s)
	}

	if _, err := r.Resolve("EPSG:99999"); !errors.Is(err, ErrUnknownSRS) {
		t.Fatalf("want ErrUnknownSRS, got %v", err)
	}

	if err := r.Register(&SRS{Code: "EPSG:3857"}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestPolicy_GeographicEquivalence(t *testing.T) {
	nad := &SRS{Code: "EPSG:4269", Kind: KindGeographic}

	on := Policy{GeographicEquivalence: true}
	if !on.Equivalent(WGS84, nad) {
		t.Fatalf("geographic systems should be equivalent with the policy on")
	}
	off := Policy{GeographicEquivalence: false}
	if off.Equivalent(WGS84, nad) {
		t.Fatalf("geographic systems should differ with the policy off")
	}
	if on.Equivalent(WGS84, WebMercator) {
		t.Fatalf("geographic and projected must not be equivalent")
	}
}

func TestTransformer_RoundTrip(t *testing.T) {
	p := DefaultPolicy()
	fwd, err := p.Transformer(WGS84, WebMercator)
	if err != nil {
		t.Fatalf("fwd: %v", err)
	}
	inv, err := p.Transformer(WebMercator, WGS84)
	if err != nil {
		t.Fatalf("inv: %v", err)
	}

	x, y, _ := fwd(10, 45, 0)
	lon, lat, _ := inv(x, y, 0)
	if math.Abs(lon-10) > 1e-9 || math.Abs(lat-45) > 1e-9 {
		t.Fatalf("round trip got (%v,%v)", lon, lat)
	}

	if _, err := p.Transformer(Local, WGS84); !errors.Is(err, ErrNoTransform) {
		t.Fatalf("want ErrNoTransform, got %v", err)
	}
}
