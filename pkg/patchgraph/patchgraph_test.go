package patchgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/nexus/models"
)

func activePatch(src, dst string, bidi bool) models.NetPatch {
	return models.NetPatch{
		ID:               src + "->" + dst,
		SourceNetID:      src,
		DestinationNetID: dst,
		IsBidirectional:  bidi,
		Status:           models.PatchStatusActive,
	}
}

func TestWouldCreateLoop_SelfLoop(t *testing.T) {
	for _, net := range []string{"net-A", "net-command", "x"} {
		res := WouldCreateLoop(nil, net, net, false)
		assert.True(t, res.Loop, net)
		assert.Equal(t, ReasonSelfLoop, res.Reason)
	}
}

func TestWouldCreateLoop_BidirectionalAlwaysRejected(t *testing.T) {
	res := WouldCreateLoop(nil, "net-A", "net-B", true)
	assert.True(t, res.Loop)
	assert.Equal(t, ReasonBidirectional, res.Reason)
}

func TestWouldCreateLoop_ReverseOfActivePatch(t *testing.T) {
	existing := []models.NetPatch{activePatch("net-A", "net-B", false)}

	res := WouldCreateLoop(existing, "net-B", "net-A", false)
	assert.True(t, res.Loop)
	assert.Equal(t, ReasonReverse, res.Reason)
	assert.Equal(t, []string{"net-A", "net-B"}, res.Path)
}

func TestWouldCreateLoop_SameDirectionAgainstBidirectional(t *testing.T) {
	existing := []models.NetPatch{activePatch("net-A", "net-B", true)}

	res := WouldCreateLoop(existing, "net-A", "net-B", false)
	assert.True(t, res.Loop, "existing bidirectional patch already carries B->A")
}

func TestWouldCreateLoop_ThreeNodeCycle(t *testing.T) {
	existing := []models.NetPatch{
		activePatch("net-A", "net-B", false),
		activePatch("net-B", "net-C", false),
	}

	res := WouldCreateLoop(existing, "net-C", "net-A", false)
	require.True(t, res.Loop)
	assert.Equal(t, ReasonCycle, res.Reason)
	assert.Equal(t, []string{"net-A", "net-B", "net-C"}, res.Path)
	assert.Equal(t, "cycle: net-A -> net-B -> net-C", res.Detail())
}

func TestWouldCreateLoop_IgnoresTerminatedPatches(t *testing.T) {
	terminated := activePatch("net-A", "net-B", false)
	terminated.Status = models.PatchStatusTerminated

	res := WouldCreateLoop([]models.NetPatch{terminated}, "net-B", "net-A", false)
	assert.False(t, res.Loop)
	assert.Empty(t, res.Detail())
}

func TestWouldCreateLoop_ChainWithoutCycleIsSafe(t *testing.T) {
	existing := []models.NetPatch{
		activePatch("net-A", "net-B", false),
		activePatch("net-B", "net-C", false),
	}

	res := WouldCreateLoop(existing, "net-A", "net-C", false)
	assert.False(t, res.Loop)
}

func TestGraph_Path(t *testing.T) {
	g := New(nil)
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("a", "c")

	path, ok := g.Path("a", "c")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "c"}, path)

	_, ok = g.Path("c", "a")
	assert.False(t, ok)
}
