package semverx

// Component weights used by Distance.
const (
	MajorWeight = 100
	MinorWeight = 10
	PatchWeight = 1
)

// Distance estimates the cost of moving from a to b:
//
//	100*|Δmajor| + 10*|Δminor| + |Δpatch| + transition cost
//
// The transition cost adds b's state cost for every component whose state
// differs between a and b. Distance(a, a) is zero and the triangle
// inequality holds, so it is a consistent A* heuristic.
func Distance(a, b Version) uint64 {
	d := MajorWeight*absDiff(a.Major, b.Major) +
		MinorWeight*absDiff(a.Minor, b.Minor) +
		PatchWeight*absDiff(a.Patch, b.Patch)

	as, bs := a.States(), b.States()
	for i := range as {
		if as[i] != bs[i] {
			d += bs[i].Cost()
		}
	}
	return d
}

func absDiff(a, b uint32) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}
