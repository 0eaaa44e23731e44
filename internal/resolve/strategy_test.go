package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/semverx/internal/depgraph"
	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/semverx"
)

func snapshotOf(t *testing.T, edges [][2]string, isolated ...string) *depgraph.Snapshot {
	t.Helper()
	g := depgraph.New()
	for _, e := range edges {
		g.AddNode(e[0])
		g.AddNode(e[1])
	}
	for _, id := range isolated {
		g.AddNode(id)
	}
	for _, e := range edges {
		_, err := g.AddEdge(e[0], e[1])
		require.NoError(t, err)
	}
	return g.Snapshot()
}

func TestEulerianCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		edges     [][2]string
		isolated  []string
		wantLevel fault.Level
		wantErr   bool
	}{
		{
			name:      "cycle is Eulerian",
			edges:     [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}},
			wantLevel: fault.Clean,
		},
		{
			name:      "isolated node beside a cycle is disconnected",
			edges:     [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}},
			isolated:  []string{"Z"},
			wantLevel: fault.SystemPanic,
			wantErr:   true,
		},
		{
			name:      "chain is semi-Eulerian",
			edges:     [][2]string{{"A", "B"}, {"B", "C"}},
			wantLevel: fault.MediumWarning,
		},
		{
			name:      "two components",
			edges:     [][2]string{{"A", "B"}, {"B", "A"}, {"X", "Y"}, {"Y", "X"}},
			wantLevel: fault.SystemPanic,
			wantErr:   true,
		},
		{
			name:      "star is irregular",
			edges:     [][2]string{{"A", "B"}, {"A", "C"}, {"A", "D"}},
			wantLevel: fault.SystemPanic,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := snapshotOf(t, tt.edges, tt.isolated...)
			out, err := EulerianCheck{}.Resolve(context.Background(), g, "", "")
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNotEulerian)
				level, ok := LevelOf(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantLevel, level)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, out.Level)
			assert.Empty(t, out.Path.Nodes)
		})
	}
}

func TestEulerianVerdicts(t *testing.T) {
	t.Parallel()
	level, verdict := EulerianCheck{}.Check(snapshotOf(t, [][2]string{{"A", "B"}}))
	assert.Equal(t, fault.MediumWarning, level)
	assert.Equal(t, VerdictSemiEulerian, verdict)

	level, verdict = EulerianCheck{}.Check(snapshotOf(t, [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}}, "Z"))
	assert.Equal(t, fault.SystemPanic, level)
	assert.Equal(t, VerdictDisconnected, verdict)
}

func TestHamiltonianSearch(t *testing.T) {
	t.Parallel()

	t.Run("chain", func(t *testing.T) {
		t.Parallel()
		g := snapshotOf(t, [][2]string{{"A", "B"}, {"B", "C"}})
		out, err := HamiltonianSearch{Timeout: time.Second}.Resolve(context.Background(), g, "A", "C")
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, out.Path.Nodes)
		assert.Equal(t, uint64(2), out.Path.Cost)
	})

	t.Run("isolated node", func(t *testing.T) {
		t.Parallel()
		g := snapshotOf(t, [][2]string{{"A", "B"}, {"B", "C"}}, "D")
		_, err := HamiltonianSearch{Timeout: time.Second}.Resolve(context.Background(), g, "A", "C")
		require.ErrorIs(t, err, ErrNoHamiltonianPath)
		level, _ := LevelOf(err)
		assert.Equal(t, fault.HighPanic, level)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		g := snapshotOf(t, [][2]string{{"A", "B"}, {"B", "C"}})
		base := time.Unix(0, 0)
		calls := 0
		h := HamiltonianSearch{Timeout: time.Millisecond, now: func() time.Time {
			calls++
			// The first call fixes the deadline; every later poll is past it.
			if calls == 1 {
				return base
			}
			return base.Add(time.Hour)
		}}
		_, err := h.Resolve(context.Background(), g, "A", "C")
		require.ErrorIs(t, err, ErrSearchTimeout)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		g := snapshotOf(t, [][2]string{{"A", "B"}})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := HamiltonianSearch{}.Resolve(ctx, g, "A", "B")
		require.ErrorIs(t, err, context.Canceled)
		_, hasFault := LevelOf(err)
		assert.False(t, hasFault)
	})

	t.Run("unknown node", func(t *testing.T) {
		t.Parallel()
		g := snapshotOf(t, [][2]string{{"A", "B"}})
		_, err := HamiltonianSearch{}.Resolve(context.Background(), g, "A", "nope")
		require.ErrorIs(t, err, ErrNodeNotFound)
	})
}

func TestAStarDiamond(t *testing.T) {
	t.Parallel()
	g := snapshotOf(t, [][2]string{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}})
	out, err := AStarSearch{}.Resolve(context.Background(), g, "A", "D")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), out.Path.Cost)
	assert.Len(t, out.Path.Nodes, 3)
	assert.Equal(t, "A", out.Path.Nodes[0])
	assert.Equal(t, "D", out.Path.Nodes[2])
}

func TestAStarPrefersCheaperVersions(t *testing.T) {
	t.Parallel()

	g := depgraph.New()
	for id, v := range map[string]string{
		"app":   "1.0.0",
		"near":  "1.1.0",
		"far":   "4.0.0",
		"final": "1.2.0",
	} {
		g.SetVersion(id, semverx.MustParse(v))
	}
	for _, e := range [][2]string{{"app", "far"}, {"far", "final"}, {"app", "near"}, {"near", "final"}} {
		_, err := g.AddEdge(e[0], e[1])
		require.NoError(t, err)
	}

	out, err := AStarSearch{}.Resolve(context.Background(), g.Snapshot(), "app", "final")
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "near", "final"}, out.Path.Nodes)
	assert.Equal(t, uint64(20), out.Path.Cost)
}

func TestAStarNoPath(t *testing.T) {
	t.Parallel()
	g := snapshotOf(t, [][2]string{{"A", "B"}}, "C")
	_, err := AStarSearch{}.Resolve(context.Background(), g, "A", "C")
	require.ErrorIs(t, err, ErrNoPathFound)
	level, ok := LevelOf(err)
	require.True(t, ok)
	assert.Equal(t, fault.MediumDanger, level)
}

func TestAStarStartIsGoal(t *testing.T) {
	t.Parallel()
	g := snapshotOf(t, [][2]string{{"A", "B"}})
	out, err := AStarSearch{}.Resolve(context.Background(), g, "A", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, out.Path.Nodes)
	assert.Zero(t, out.Path.Cost)
}

func TestHybrid(t *testing.T) {
	t.Parallel()

	t.Run("A* succeeds", func(t *testing.T) {
		t.Parallel()
		g := snapshotOf(t, [][2]string{{"A", "B"}, {"B", "C"}})
		out, err := HybridResolver{}.Resolve(context.Background(), g, "A", "C")
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, out.Path.Nodes)
		assert.Equal(t, fault.Clean, out.Level)
		assert.Equal(t, []Stage{Requested, EulerianChecked, AStarAttempted, Resolved}, out.Stages)
	})

	t.Run("Hamiltonian fallback", func(t *testing.T) {
		t.Parallel()
		// A* cannot go A → C against the edges, but C → B → A visits all.
		g := snapshotOf(t, [][2]string{{"C", "B"}, {"B", "A"}})
		out, err := HybridResolver{}.Resolve(context.Background(), g, "A", "C")
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "B", "A"}, out.Path.Nodes)
		assert.Equal(t, uint64(len(out.Path.Nodes)-1), out.Path.Cost)
		assert.Equal(t, fault.MediumWarning, out.Level)
		assert.Equal(t, VerdictHamiltonianFallback, out.Verdict)
		assert.Equal(t, HamiltonianAttempted, out.Stages[len(out.Stages)-2])
	})

	t.Run("all strategies fail", func(t *testing.T) {
		t.Parallel()
		g := snapshotOf(t, [][2]string{{"A", "B"}}, "C")
		_, err := HybridResolver{FallbackTimeout: 50 * time.Millisecond}.Resolve(context.Background(), g, "A", "C")
		var re *ResolutionError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, Hybrid, re.Strategy)
		assert.Equal(t, fault.HighPanic, re.Level)
		assert.Equal(t, Failed, re.Stages[len(re.Stages)-1])
		assert.ErrorIs(t, err, ErrNoPathFound)
	})
}

func TestParseKind(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Kind{"hybrid": Hybrid, "A*": AStar, " Eulerian ": Eulerian, "astar": AStar} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("dijkstra")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
