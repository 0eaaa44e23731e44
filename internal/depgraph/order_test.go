package depgraph

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestInstallOrder(t *testing.T) {
	t.Parallel()

	//   app → web → core
	//   app → cli → core
	//   other → core (outside app's closure)
	g := buildGraph(t, [][2]string{
		{"app", "web"}, {"app", "cli"}, {"web", "core"}, {"cli", "core"}, {"other", "core"},
	})
	got, err := g.Snapshot().InstallOrder("app")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"core", "cli", "web", "app"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("InstallOrder(app) = %v, want %v", got, want)
	}
}

func TestInstallOrderCycle(t *testing.T) {
	t.Parallel()
	g := buildGraph(t, [][2]string{{"a", "b"}, {"b", "a"}})
	if _, err := g.Snapshot().InstallOrder("a"); !errors.Is(err, ErrCycle) {
		t.Errorf("err = %v, want ErrCycle", err)
	}
	if _, err := g.Snapshot().InstallOrder("nope"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("err = %v, want ErrNodeNotFound", err)
	}
}

func TestTransitive(t *testing.T) {
	t.Parallel()
	g := buildGraph(t, [][2]string{{"a", "b"}, {"b", "c"}, {"d", "c"}})
	s := g.Snapshot()

	deps, _ := s.TransitiveDeps("a")
	if !reflect.DeepEqual(deps, []string{"b", "c"}) {
		t.Errorf("TransitiveDeps(a) = %v", deps)
	}
	up, _ := s.TransitiveDependents("c")
	if !reflect.DeepEqual(up, []string{"a", "b", "d"}) {
		t.Errorf("TransitiveDependents(c) = %v", up)
	}
}

func TestCycles(t *testing.T) {
	t.Parallel()
	g := buildGraph(t, [][2]string{
		{"a", "b"}, {"b", "c"}, {"c", "a"},
		{"c", "d"},
		{"x", "y"}, {"y", "x"},
	})
	got := g.Snapshot().Cycles()
	want := [][]string{{"a", "b", "c"}, {"x", "y"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cycles() = %v, want %v", got, want)
	}
	if c := buildGraph(t, [][2]string{{"a", "b"}}).Snapshot().Cycles(); len(c) != 0 {
		t.Errorf("acyclic Cycles() = %v", c)
	}
}

func TestCriticality(t *testing.T) {
	t.Parallel()

	// Everything funnels through core.
	g := buildGraph(t, [][2]string{
		{"a", "mid"}, {"b", "mid"}, {"c", "mid"}, {"mid", "core"},
	})
	ranked := g.Snapshot().Criticality(DefaultRankOptions())
	if len(ranked) != 5 {
		t.Fatalf("len = %d, want 5", len(ranked))
	}
	if ranked[0].ID != "core" && ranked[0].ID != "mid" {
		t.Errorf("top = %s, want core or mid", ranked[0].ID)
	}
	var midBC float64
	for _, r := range ranked {
		if r.ID == "mid" {
			midBC = r.Betweenness
			if r.Dependents != 3 {
				t.Errorf("mid Dependents = %d, want 3", r.Dependents)
			}
		}
	}
	if midBC <= 0 {
		t.Errorf("mid betweenness = %f, want > 0", midBC)
	}
}

func TestPageRankSumsToOne(t *testing.T) {
	t.Parallel()
	g := buildGraph(t, [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}}, "d")
	sum := 0.0
	for _, v := range g.Snapshot().PageRank(DefaultRankOptions()) {
		sum += v
	}
	if math.Abs(sum-1) > 1e-3 {
		t.Errorf("PageRank sum = %f, want ~1", sum)
	}
}
