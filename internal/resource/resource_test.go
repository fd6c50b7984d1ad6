package resource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCache_DefineAndMark(t *testing.T) {
	c := NewCache()
	brick := Resource{Name: "brick", Kind: KindTexture, URI: "brick.png"}
	if err := c.Define(brick); err != nil {
		t.Fatal(err)
	}
	if err := c.Define(brick); err != nil {
		t.Fatalf("identical redefinition should be accepted: %v", err)
	}
	if err := c.Define(Resource{Name: "brick", Kind: KindTexture, URI: "other.png"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}

	if _, err := c.MarkUsed("glass"); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("want ErrUnknownResource, got %v", err)
	}
	if _, err := c.MarkUsed("brick"); err != nil {
		t.Fatal(err)
	}
	if got := c.Used(); len(got) != 1 || got[0] != brick {
		t.Fatalf("Used=%v", got)
	}
}

func TestPackager_CopiesOnceUnderHashedName(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	uri := filepath.Join(src, "Brick.PNG")
	if err := os.WriteFile(uri, []byte("pixels"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := Resource{Name: "brick", Kind: KindTexture, URI: uri}

	p := NewPackager(out, nil)
	got, err := p.Package(context.Background(), []Resource{r})
	if err != nil {
		t.Fatal(err)
	}
	want := PackagedName(r, []byte("pixels"))
	if len(got) != 1 || got[0] != want {
		t.Fatalf("got %v want %s", got, want)
	}
	if filepath.Ext(want) != ".png" {
		t.Fatalf("extension not normalised: %s", want)
	}

	// A second call must not touch the source again.
	if err := os.Remove(uri); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Package(context.Background(), []Resource{r}); err != nil {
		t.Fatalf("second package re-read the source: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(want))); err != nil {
		t.Fatalf("packaged file missing: %v", err)
	}
}

func TestPackager_MissingSourceIsReported(t *testing.T) {
	p := NewPackager(t.TempDir(), nil)
	ok := filepath.Join(t.TempDir(), "ok.jpg")
	if err := os.WriteFile(ok, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := p.Package(context.Background(), []Resource{
		{Name: "missing", URI: "/does/not/exist.png"},
		{Name: "ok", URI: ok},
	})
	if err == nil {
		t.Fatalf("expected error for missing source")
	}
	if len(got) != 1 {
		t.Fatalf("successful resource should still be packaged, got %v", got)
	}
}
