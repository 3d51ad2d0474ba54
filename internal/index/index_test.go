package index

import (
	"reflect"
	"testing"
)

func TestRegisterAndSearch(t *testing.T) {
	idx := New()
	idx.Register(1, []string{"a.txt", "b.txt"})
	idx.Register(2, []string{"b.txt"})

	got := idx.Search("b.txt")
	want := []uint64{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Search(b.txt) = %v, want %v", got, want)
	}

	if got := idx.Search("missing.txt"); len(got) != 0 {
		t.Fatalf("Search(missing.txt) = %v, want empty", got)
	}
}

func TestForget(t *testing.T) {
	idx := New()
	idx.Register(1, []string{"a.txt"})
	idx.Forget(1)
	if got := idx.Search("a.txt"); len(got) != 0 {
		t.Fatalf("Search after Forget = %v, want empty", got)
	}
}

func TestAll(t *testing.T) {
	idx := New()
	idx.Register(1, []string{"b.txt", "a.txt"})
	idx.Register(2, nil)

	got := idx.All()
	want := map[uint64][]string{
		1: {"a.txt", "b.txt"},
		2: {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("All() = %v, want %v", got, want)
	}
}

func TestReset(t *testing.T) {
	idx := New()
	idx.Register(1, []string{"a.txt"})
	idx.Reset()
	if got := idx.All(); len(got) != 0 {
		t.Fatalf("All() after Reset = %v, want empty", got)
	}
}
