package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/civicmaps/civicroute/internal/errors"
	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/graphstore"
	"github.com/civicmaps/civicroute/internal/models"
	"github.com/sirupsen/logrus"
)

// fakeFetcher returns canned road data or a fixed error.
type fakeFetcher struct {
	data *RoadData
	err  error
}

func (f *fakeFetcher) FetchRoads(context.Context, geo.Bounds) (*RoadData, error) {
	return f.data, f.err
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func validBounds() geo.Bounds {
	return geo.Bounds{MinLat: 40.0, MaxLat: 40.01, MinLng: -74.01, MaxLng: -74.0}
}

func twoWayData() *RoadData {
	// Two ways sharing node 2:  1-2-3  and  2-4.
	return &RoadData{
		Ways: []Way{
			{ID: 100, NodeIDs: []int64{1, 2, 3}, Tags: map[string]string{"highway": "residential"}},
			{ID: 101, NodeIDs: []int64{2, 4}, Tags: map[string]string{"highway": "tertiary"}},
		},
		Nodes: map[int64]models.Coordinate{
			1: {Lat: 40.001, Lng: -74.001},
			2: {Lat: 40.002, Lng: -74.002},
			3: {Lat: 40.003, Lng: -74.003},
			4: {Lat: 40.002, Lng: -74.004},
		},
	}
}

func TestImportBuildsGraph(t *testing.T) {
	g := graphstore.NewMemoryGraph()
	b := NewBuilder(&fakeFetcher{data: twoWayData()}, g, testLogger())

	result, err := b.Import(context.Background(), validBounds())
	require.NoError(t, err)

	assert.Equal(t, 2, result.WaysFetched)
	assert.Equal(t, 4, result.NodesCreated, "node 2 must be deduplicated across ways")
	assert.Equal(t, 6, result.EdgesCreated, "two directed edges per consecutive pair")
	assert.Positive(t, result.Duration)

	nodes, edges, err := g.LoadGraph(context.Background())
	require.NoError(t, err)
	assert.Len(t, nodes, 4)
	assert.Len(t, edges, 6)

	for _, e := range edges {
		assert.Equal(t, 1.0, e.Penalty, "fresh segments start at the neutral multiplier")
		assert.Equal(t, e.Distance, e.BaseCost)
		assert.Positive(t, e.Distance)
		assert.NotEmpty(t, e.ID)
	}
}

func TestImportEdgeDistances(t *testing.T) {
	data := twoWayData()
	g := graphstore.NewMemoryGraph()
	b := NewBuilder(&fakeFetcher{data: data}, g, testLogger())

	_, err := b.Import(context.Background(), validBounds())
	require.NoError(t, err)

	want := geo.Haversine(
		data.Nodes[1].Lat, data.Nodes[1].Lng,
		data.Nodes[2].Lat, data.Nodes[2].Lng)

	_, edges, err := g.LoadGraph(context.Background())
	require.NoError(t, err)

	found := 0
	for _, e := range edges {
		if e.Distance == want {
			found++
		}
	}
	assert.Equal(t, 2, found, "both traversal directions carry the segment distance")
}

func TestImportIdempotent(t *testing.T) {
	g := graphstore.NewMemoryGraph()
	b := NewBuilder(&fakeFetcher{data: twoWayData()}, g, testLogger())

	_, err := b.Import(context.Background(), validBounds())
	require.NoError(t, err)

	result, err := b.Import(context.Background(), validBounds())
	require.NoError(t, err)

	assert.Zero(t, result.NodesCreated, "re-import must not duplicate nodes")

	nodes, _, err := g.LoadGraph(context.Background())
	require.NoError(t, err)
	assert.Len(t, nodes, 4)
}

func TestImportSkipsUnresolvableNodes(t *testing.T) {
	data := twoWayData()
	delete(data.Nodes, 3) // way references a node with no coordinate

	g := graphstore.NewMemoryGraph()
	b := NewBuilder(&fakeFetcher{data: data}, g, testLogger())

	result, err := b.Import(context.Background(), validBounds())
	require.NoError(t, err)

	assert.Equal(t, 3, result.NodesCreated)
	assert.Equal(t, 4, result.EdgesCreated, "pairs touching the missing node are dropped")
}

func TestImportInvalidBounds(t *testing.T) {
	b := NewBuilder(&fakeFetcher{data: twoWayData()}, graphstore.NewMemoryGraph(), testLogger())

	_, err := b.Import(context.Background(), geo.Bounds{MinLat: 41, MaxLat: 40, MinLng: -74, MaxLng: -73})
	assert.ErrorIs(t, err, apperrors.ErrInvalidBounds)
}

func TestImportAbortsOnFetchFailure(t *testing.T) {
	fetchErr := errors.New("gateway timeout")
	g := graphstore.NewMemoryGraph()
	b := NewBuilder(&fakeFetcher{err: fetchErr}, g, testLogger())

	_, err := b.Import(context.Background(), validBounds())
	assert.ErrorIs(t, err, apperrors.ErrIngestionFailed)
	assert.ErrorIs(t, err, fetchErr, "the root cause must stay unwrappable")

	nodes, _, _ := g.LoadGraph(context.Background())
	assert.Empty(t, nodes, "a failed import writes nothing")
}

// failingWriter errors on the first bulk write.
type failingWriter struct {
	*graphstore.MemoryGraph
}

func (f *failingWriter) BulkCreateNodes(context.Context, []models.GraphNode) (int, error) {
	return 0, errors.New("store unavailable")
}

func TestImportAbortsOnWriteFailure(t *testing.T) {
	w := &failingWriter{MemoryGraph: graphstore.NewMemoryGraph()}
	b := NewBuilder(&fakeFetcher{data: twoWayData()}, w, testLogger())

	_, err := b.Import(context.Background(), validBounds())
	assert.ErrorIs(t, err, apperrors.ErrIngestionFailed)
}
