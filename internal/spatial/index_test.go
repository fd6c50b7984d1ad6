package spatial

import (
	"sort"
	"testing"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
)

func TestIndex_Search(t *testing.T) {
	ix := NewIndex[string]()
	ix.Insert(model.NewExtent(0, 0, 10, 10, nil), "a")
	ix.Insert(model.NewExtent(20, 20, 30, 30, nil), "b")
	ix.Insert(model.NewExtent(5, 5, 5, 5, nil), "point")
	ix.Insert(model.NewExtent(2e7, 2e7, 2e7, 2e7, nil), "far point")
	ix.Insert(model.EmptyExtent(nil), "ignored")

	if ix.Len() != 4 {
		t.Fatalf("Len=%d", ix.Len())
	}

	cases := []struct {
		q    model.Extent
		want []string
	}{
		{model.NewExtent(1, 1, 6, 6, nil), []string{"a", "point"}},
		{model.NewExtent(10, 10, 20, 20, nil), []string{"a", "b"}}, // touches both corners
		{model.NewExtent(11, 11, 19, 19, nil), nil},
		{model.NewExtent(2e7, 2e7, 2e7, 2e7, nil), []string{"far point"}},
		{model.InfiniteExtent(nil), []string{"a", "b", "far point", "point"}},
	}
	for _, c := range cases {
		got := ix.Search(c.q)
		sort.Strings(got)
		if len(got) != len(c.want) {
			t.Fatalf("Search(%v)=%v want %v", c.q, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("Search(%v)=%v want %v", c.q, got, c.want)
			}
		}
	}
}
