package match

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctphash/ctph"
)

func TestBuildClustersGroupsSimilarFiles(t *testing.T) {
	a, err := ctph.Bytes([]byte("The quick brown fox jumps over the lazy dog"))
	require.NoError(t, err)
	b, err := ctph.Bytes([]byte("The quick brown fox jumps over the lazy dog!"))
	require.NoError(t, err)
	c, err := ctph.Bytes([]byte("A completely different string that should have no similarity"))
	require.NoError(t, err)

	idx := NewIndex()
	ia := idx.Add(Filedata{Filename: "a.txt", Signature: a})
	ib := idx.Add(Filedata{Filename: "b.txt", Signature: b})
	ic := idx.Add(Filedata{Filename: "c.txt", Signature: c})

	// Both short inputs hash at block size 3, where Compare caps the score
	// at the shorter half's length (10 for a and b), so the threshold has
	// to sit at or below that cap.
	clusters := idx.BuildClusters(10)

	require.Equal(t, idx.Find(ia), idx.Find(ib), "near-identical files should share a cluster")
	require.NotEqual(t, idx.Find(ia), idx.Find(ic), "unrelated files should not share a cluster")

	total := 0
	for _, cl := range clusters {
		total += len(cl)
	}
	require.Equal(t, idx.Len(), total, "every entry must appear in exactly one cluster")
}

func TestJoinIsIdempotentAndSymmetric(t *testing.T) {
	idx := NewIndex()
	a := idx.Add(Filedata{Filename: "a", Signature: "3:abc:def"})
	b := idx.Add(Filedata{Filename: "b", Signature: "3:abc:def"})

	idx.Join(a, b)
	root := idx.Find(a)
	idx.Join(b, a)
	require.Equal(t, root, idx.Find(a))
	require.Equal(t, idx.Find(a), idx.Find(b))
}

func TestSingletonClustersWhenNothingMatches(t *testing.T) {
	idx := NewIndex()
	idx.Add(Filedata{Filename: "a", Signature: "3:AXA:B"})
	idx.Add(Filedata{Filename: "b", Signature: "3:FJKKIUKact:FHIGi"})

	clusters := idx.BuildClusters(100)
	require.Len(t, clusters, 2)
}
