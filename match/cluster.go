// Package match groups a set of hashed files into similarity clusters.
//
// The reference ssdeep tool's clustering mode was never finished: its
// Filedata class carries a std::set<Filedata*>* back-pointer to a cluster
// that handle_match() never actually populates. Rather than port an
// unfinished raw-pointer design, clusters here are built with union-find
// over a stable file index, which sidesteps the ownership questions a
// pointer-to-a-set-of-pointers design raises (who allocates the set, who
// frees it, what happens when two clusters merge) entirely.
package match

import "github.com/ctphash/ctph"

// Filedata is one file known to an Index: its path, the hash it was
// matched or hashed from, and (if it came from a signature file) the
// name of that file.
type Filedata struct {
	Filename  string
	Signature string
	MatchFile string
}

// HasMatchFile reports whether this entry was loaded from a signature
// file rather than hashed directly.
func (f Filedata) HasMatchFile() bool {
	return f.MatchFile != ""
}

// Index is an insertion-ordered collection of Filedata, along with a
// union-find forest that tracks which entries have been joined into the
// same similarity cluster.
type Index struct {
	entries []Filedata
	parent  []int
	rank    []int
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{}
}

// Add appends f to the index and returns its index, a singleton cluster
// of its own until Join merges it with another.
func (idx *Index) Add(f Filedata) int {
	i := len(idx.entries)
	idx.entries = append(idx.entries, f)
	idx.parent = append(idx.parent, i)
	idx.rank = append(idx.rank, 0)
	return i
}

// Len returns the number of entries in the index.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// At returns the entry at index i.
func (idx *Index) At(i int) Filedata {
	return idx.entries[i]
}

// Find returns the representative index of the cluster containing i,
// path-compressing as it walks up the forest.
func (idx *Index) Find(i int) int {
	for idx.parent[i] != i {
		idx.parent[i] = idx.parent[idx.parent[i]]
		i = idx.parent[i]
	}
	return i
}

// Join merges the clusters containing a and b.
func (idx *Index) Join(a, b int) {
	ra, rb := idx.Find(a), idx.Find(b)
	if ra == rb {
		return
	}
	if idx.rank[ra] < idx.rank[rb] {
		ra, rb = rb, ra
	}
	idx.parent[rb] = ra
	if idx.rank[ra] == idx.rank[rb] {
		idx.rank[ra]++
	}
}

// JoinIfSimilar compares the signatures at a and b and, if their score
// meets or exceeds threshold, joins their clusters. It returns the score.
func (idx *Index) JoinIfSimilar(a, b int, threshold int) int {
	score := ctph.Compare(idx.entries[a].Signature, idx.entries[b].Signature)
	if score >= threshold {
		idx.Join(a, b)
	}
	return score
}

// BuildClusters compares every pair of entries in the index and joins
// any pair scoring at or above threshold, then returns the resulting
// clusters as slices of entry indices, in order of first appearance.
// This is O(n^2) comparisons, matching the reference tool's own
// pairwise matching mode.
func (idx *Index) BuildClusters(threshold int) [][]int {
	for i := 0; i < idx.Len(); i++ {
		for j := i + 1; j < idx.Len(); j++ {
			idx.JoinIfSimilar(i, j, threshold)
		}
	}
	return idx.Clusters()
}

// Clusters groups every entry's index by its cluster representative,
// preserving first-appearance order both within and across clusters.
func (idx *Index) Clusters() [][]int {
	order := make([]int, 0, idx.Len())
	groups := make(map[int][]int)
	for i := 0; i < idx.Len(); i++ {
		root := idx.Find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], i)
	}

	out := make([][]int, 0, len(order))
	for _, root := range order {
		out = append(out, groups[root])
	}
	return out
}
