package sync

// mergeWindowSecs is the clock-drift window. Two sides that modified the
// same path within this window are considered near-simultaneous edits and
// go to merge instead of letting the "newer" clock win. The comparison is
// strictly less-than.
const mergeWindowSecs = 60

// ClassifiedPaths is the outcome of diffing two manifests against the
// tombstone set. Each path is classified independently; there is no
// cross-path ordering guarantee.
type ClassifiedPaths struct {
	ToPush         []string
	ToPull         []string
	ToMerge        []string
	ToDeleteRemote []string
}

// Classify decides the direction for every path in one pass over both
// manifests. Hash equality is the sole truth for "in sync"; mtimes only
// break ties between differing hashes.
func Classify(local, remote Manifest, tombstones map[string]*Tombstone) *ClassifiedPaths {
	cp := &ClassifiedPaths{}

	for path, lrec := range local {
		rrec, ok := remote[path]
		if !ok {
			cp.ToPush = append(cp.ToPush, path)
			continue
		}

		if lrec.Hash == rrec.Hash {
			continue
		}

		delta := lrec.Modified - rrec.Modified
		if delta < 0 {
			delta = -delta
		}
		switch {
		case delta < mergeWindowSecs:
			cp.ToMerge = append(cp.ToMerge, path)
		case lrec.Modified > rrec.Modified:
			cp.ToPush = append(cp.ToPush, path)
		default:
			cp.ToPull = append(cp.ToPull, path)
		}
	}

	for path := range remote {
		if _, ok := local[path]; ok {
			continue
		}
		if _, dead := tombstones[path]; dead {
			cp.ToDeleteRemote = append(cp.ToDeleteRemote, path)
		} else {
			cp.ToPull = append(cp.ToPull, path)
		}
	}

	return cp
}
