package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"

	"pgregory.net/rapid"

	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/semverx"
)

func rec(id string) Record {
	return Record{PackageID: id, Version: semverx.New(1, 0, 0)}
}

func TestInsertAndSearch(t *testing.T) {
	t.Parallel()
	ix := New()
	for _, id := range []string{"m", "c", "x", "a", "e"} {
		if err := ix.Insert(rec(id)); err != nil {
			t.Fatalf("Insert(%q): %v", id, err)
		}
	}
	if ix.Len() != 5 {
		t.Errorf("Len() = %d, want 5", ix.Len())
	}
	got, ok := ix.Search("e")
	if !ok || got.PackageID != "e" {
		t.Errorf("Search(e) = %+v, %v", got, ok)
	}
	if _, ok := ix.Search("zz"); ok {
		t.Error("Search(zz) should miss")
	}
}

func TestInsertDuplicate(t *testing.T) {
	t.Parallel()
	ix := New()
	if err := ix.Insert(rec("a")); err != nil {
		t.Fatal(err)
	}
	dup := rec("a")
	dup.Version = semverx.New(9, 9, 9)
	if err := ix.Insert(dup); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
	got, _ := ix.Search("a")
	if got.Version != semverx.New(1, 0, 0) {
		t.Errorf("duplicate insert overwrote version: %s", got.Version)
	}
	if ix.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ix.Len())
	}
}

func TestRotations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		order []string
		root  string
	}{
		{"LL", []string{"c", "b", "a"}, "b"},
		{"RR", []string{"a", "b", "c"}, "b"},
		{"LR", []string{"c", "a", "b"}, "b"},
		{"RL", []string{"a", "c", "b"}, "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ix := New()
			for _, id := range tt.order {
				if err := ix.Insert(rec(id)); err != nil {
					t.Fatal(err)
				}
			}
			if ix.root.rec.PackageID != tt.root {
				t.Errorf("root = %s, want %s", ix.root.rec.PackageID, tt.root)
			}
			if ix.Height() != 2 {
				t.Errorf("Height() = %d, want 2", ix.Height())
			}
			if !ix.Valid() {
				t.Error("tree invalid")
			}
		})
	}
}

func TestSequentialInsertStaysLogarithmic(t *testing.T) {
	t.Parallel()
	ix := New()
	const n = 1000
	for i := range n {
		if err := ix.Insert(rec(fmt.Sprintf("pkg-%05d", i))); err != nil {
			t.Fatal(err)
		}
	}
	// AVL height bound: 1.44 log2(n+2).
	limit := int(1.45 * math.Log2(n+2))
	if h := ix.Height(); h > limit {
		t.Errorf("Height() = %d, want <= %d", h, limit)
	}
}

func TestAVLInvariantProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		ids := rapid.SliceOf(rapid.StringMatching(`[a-z]{1,4}`)).Draw(rt, "ids")
		ix := New()
		seen := make(map[string]bool)
		for _, id := range ids {
			err := ix.Insert(rec(id))
			if seen[id] {
				if !errors.Is(err, ErrDuplicateKey) {
					rt.Fatalf("Insert(%q) duplicate err = %v", id, err)
				}
			} else if err != nil {
				rt.Fatalf("Insert(%q): %v", id, err)
			}
			seen[id] = true
			if !ix.Valid() {
				rt.Fatalf("invariant broken after inserting %q", id)
			}
		}

		want := make([]string, 0, len(seen))
		for id := range seen {
			want = append(want, id)
			if _, ok := ix.Search(id); !ok {
				rt.Fatalf("Search(%q) missed an inserted key", id)
			}
		}
		sort.Strings(want)
		got := ix.Keys()
		if fmt.Sprint(got) != fmt.Sprint(want) {
			rt.Fatalf("Keys() = %v, want %v", got, want)
		}
		probe := rapid.StringMatching(`[a-z]{1,4}`).Draw(rt, "probe")
		if _, ok := ix.Search(probe); ok != seen[probe] {
			rt.Fatalf("Search(%q) = %v, want %v", probe, ok, seen[probe])
		}
	})
}

func TestUpdate(t *testing.T) {
	t.Parallel()
	ix := New()
	if err := ix.Insert(rec("a")); err != nil {
		t.Fatal(err)
	}

	got, err := ix.Update("a", func(r *Record) error {
		r.Fault = fault.MediumDanger
		r.UpdateCount++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Fault != fault.MediumDanger || got.UpdateCount != 1 {
		t.Errorf("Update result = %+v", got)
	}

	boom := errors.New("boom")
	if _, err := ix.Update("a", func(r *Record) error {
		r.Fault = fault.SystemPanic
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	stored, _ := ix.Search("a")
	if stored.Fault != fault.MediumDanger {
		t.Errorf("failed Update leaked change: %s", stored.Fault)
	}

	if _, err := ix.Update("a", func(r *Record) error { r.PackageID = "b"; return nil }); !errors.Is(err, ErrKeyChanged) {
		t.Errorf("err = %v, want ErrKeyChanged", err)
	}
	if _, err := ix.Update("zz", func(*Record) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSearchReturnsCopy(t *testing.T) {
	t.Parallel()
	ix := New()
	r := rec("a")
	r.Dependents = map[string]bool{"x": true}
	if err := ix.Insert(r); err != nil {
		t.Fatal(err)
	}
	got, _ := ix.Search("a")
	got.Dependents["y"] = true
	again, _ := ix.Search("a")
	if len(again.Dependents) != 1 {
		t.Errorf("Dependents = %v, caller mutation leaked", again.DependentIDs())
	}
}

func TestConcurrentInsertAndSearch(t *testing.T) {
	t.Parallel()
	ix := New()
	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				id := fmt.Sprintf("w%d-%03d", w, i)
				if err := ix.Insert(rec(id)); err != nil {
					t.Errorf("Insert(%s): %v", id, err)
				}
				ix.Search(id)
			}
		}()
	}
	wg.Wait()
	if ix.Len() != 400 || !ix.Valid() {
		t.Errorf("Len() = %d, Valid() = %v", ix.Len(), ix.Valid())
	}
}

func TestRememberStable(t *testing.T) {
	t.Parallel()
	r := rec("a")
	r.RememberStable()
	if r.LastStable == nil || r.LastStable.Version != semverx.New(1, 0, 0) {
		t.Fatalf("LastStable = %+v", r.LastStable)
	}
	r.Version = semverx.MustParse("2.experimental.0.stable.0.stable")
	r.RememberStable()
	if r.LastStable.Version != semverx.New(1, 0, 0) {
		t.Errorf("experimental version replaced stable snapshot: %s", r.LastStable.Version)
	}
}
