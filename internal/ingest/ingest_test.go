package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghkdsigm/figma-auto/internal/figma"
)

// fakeSource serves subtrees from a fixed table and records every request.
type fakeSource struct {
	mu       sync.Mutex
	subtrees map[string]string // id -> raw JSON
	file     string
	fail     map[string]bool // first id of a chunk that should fail
	calls    [][]string
}

func (f *fakeSource) GetNodes(ctx context.Context, fileKey string, ids []string, depth int) (map[string]*figma.RawNode, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), ids...))
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ids) > 0 && f.fail[ids[0]] {
		return nil, errors.New("upstream exploded")
	}
	out := make(map[string]*figma.RawNode)
	for _, id := range ids {
		data, ok := f.subtrees[id]
		if !ok {
			continue
		}
		var n figma.RawNode
		if err := json.Unmarshal([]byte(data), &n); err != nil {
			return nil, err
		}
		out[id] = &n
	}
	return out, nil
}

func (f *fakeSource) GetFile(ctx context.Context, fileKey string, depth int) (*figma.RawNode, error) {
	var n figma.RawNode
	if err := json.Unmarshal([]byte(f.file), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func parse(t *testing.T, data string) *figma.RawNode {
	t.Helper()
	var n figma.RawNode
	require.NoError(t, json.Unmarshal([]byte(data), &n))
	return &n
}

const truncatedDoc = `{"id":"0:1","type":"FRAME","name":"Screen","children":[
  {"id":"1:1","type":"FRAME","name":"Form","children":[]},
  {"id":"1:2","type":"TEXT","name":"Title","characters":"Hello"},
  {"id":"1:3","type":"VECTOR","name":"Icon"}
]}`

func TestReconstructExpandsTruncatedContainers(t *testing.T) {
	src := &fakeSource{subtrees: map[string]string{
		"1:1": `{"id":"other","type":"FRAME","name":"Form","children":[{"id":"2:1","type":"TEXT","characters":"Email"}]}`,
	}}
	root := parse(t, truncatedDoc)

	got, stats, err := NewReconstructor(src, nil).Reconstruct(context.Background(), "KEY", root, 6)
	require.NoError(t, err)

	require.Len(t, got.Children, 3)
	form := got.Children[0]
	assert.Equal(t, "1:1", form.ID, "replacement keeps the original id")
	require.Len(t, form.Children, 1)
	assert.Equal(t, "Email", form.Children[0].Characters)
	assert.Equal(t, Stats{Rounds: 1, Requested: 1, Expanded: 1}, stats)

	// Input is untouched.
	assert.Empty(t, root.Children[0].Children)
	assert.NotNil(t, root.Children[0].Children)
}

func TestReconstructLeavesCompleteTreesAlone(t *testing.T) {
	src := &fakeSource{}
	root := parse(t, `{"id":"0:1","type":"FRAME","children":[{"id":"1:1","type":"RECTANGLE"}]}`)

	got, stats, err := NewReconstructor(src, nil).Reconstruct(context.Background(), "KEY", root, 6)
	require.NoError(t, err)
	assert.Same(t, root, got)
	assert.Empty(t, src.calls)
	assert.Zero(t, stats.Requested)
}

func TestReconstructIsIdempotent(t *testing.T) {
	src := &fakeSource{subtrees: map[string]string{
		"1:1": `{"id":"1:1","type":"FRAME","children":[{"id":"2:1","type":"TEXT"}]}`,
	}}
	rc := NewReconstructor(src, nil)
	once, _, err := rc.Reconstruct(context.Background(), "KEY", parse(t, truncatedDoc), 6)
	require.NoError(t, err)
	calls := len(src.calls)

	twice, stats, err := rc.Reconstruct(context.Background(), "KEY", once, 6)
	require.NoError(t, err)
	assert.Equal(t, calls, len(src.calls), "second pass must not fetch")
	assert.Zero(t, stats.Requested)
	assert.Same(t, once, twice)
}

func TestReconstructRoundsAndVisited(t *testing.T) {
	// Each fetch reveals another truncated level.
	src := &fakeSource{subtrees: map[string]string{
		"1:1": `{"id":"1:1","type":"FRAME","children":[{"id":"2:1","type":"GROUP","children":[]}]}`,
		"2:1": `{"id":"2:1","type":"GROUP","children":[{"id":"3:1","type":"INSTANCE","children":[]}]}`,
		"3:1": `{"id":"3:1","type":"INSTANCE","children":[{"id":"4:1","type":"TEXT"}]}`,
	}}
	rc := NewReconstructor(src, nil)
	got, stats, err := rc.Reconstruct(context.Background(), "KEY", parse(t, truncatedDoc), 6)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Rounds)
	assert.Equal(t, [][]string{{"1:1"}, {"2:1"}}, src.calls)
	deep := got.Children[0].Children[0].Children[0]
	assert.Equal(t, "3:1", deep.ID)
	assert.True(t, deep.IsTruncated(), "third level stays truncated after two rounds")
}

func TestReconstructBatchingAndCap(t *testing.T) {
	children := ""
	subtrees := map[string]string{}
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("1:%d", i)
		if i > 0 {
			children += ","
		}
		children += fmt.Sprintf(`{"id":%q,"type":"FRAME","children":[]}`, id)
		subtrees[id] = fmt.Sprintf(`{"id":%q,"type":"FRAME","children":[{"id":"x%d","type":"TEXT"}]}`, id, i)
	}
	doc := `{"id":"0:1","type":"FRAME","children":[` + children + `]}`

	t.Run("chunks of batch size", func(t *testing.T) {
		src := &fakeSource{subtrees: subtrees}
		rc := NewReconstructor(src, nil)
		rc.BatchSize = 3
		_, stats, err := rc.Reconstruct(context.Background(), "KEY", parse(t, doc), 6)
		require.NoError(t, err)
		require.Len(t, src.calls, 3)
		assert.Len(t, src.calls[0], 3)
		assert.Len(t, src.calls[2], 1)
		assert.Equal(t, 7, stats.Expanded)
	})

	t.Run("max nodes", func(t *testing.T) {
		src := &fakeSource{subtrees: subtrees}
		rc := NewReconstructor(src, nil)
		rc.BatchSize = 3
		rc.MaxNodes = 4
		got, stats, err := rc.Reconstruct(context.Background(), "KEY", parse(t, doc), 6)
		require.NoError(t, err)
		assert.Equal(t, 4, stats.Expanded)
		assert.Len(t, src.calls, 2)
		assert.NotEmpty(t, got.Children[3].Children)
		assert.True(t, got.Children[4].IsTruncated())
	})
}

func TestReconstructSkipsFailedChunks(t *testing.T) {
	src := &fakeSource{
		subtrees: map[string]string{
			"1:1": `{"id":"1:1","type":"FRAME","children":[{"id":"2:1","type":"TEXT"}]}`,
			"1:5": `{"id":"1:5","type":"FRAME","children":[{"id":"2:5","type":"TEXT"}]}`,
		},
		fail: map[string]bool{"1:1": true},
	}
	root := parse(t, `{"id":"0:1","type":"FRAME","children":[
	  {"id":"1:1","type":"FRAME","children":[]},
	  {"id":"1:5","type":"FRAME","children":[]}]}`)
	rc := NewReconstructor(src, nil)
	rc.BatchSize = 1

	got, stats, err := rc.Reconstruct(context.Background(), "KEY", root, 6)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FailedChunks)
	assert.True(t, got.Children[0].IsTruncated())
	assert.Len(t, got.Children[1].Children, 1)
	assert.Len(t, src.calls, 2, "failed ids are visited and not retried")
}

func TestReconstructRootReplacement(t *testing.T) {
	src := &fakeSource{subtrees: map[string]string{
		"9:9": `{"id":"9:9","type":"INSTANCE","children":[{"id":"I9:9;1:1","type":"TEXT"}]}`,
	}}
	got, _, err := NewReconstructor(src, nil).Reconstruct(context.Background(), "KEY",
		parse(t, `{"id":"9:9","type":"INSTANCE","children":[]}`), 6)
	require.NoError(t, err)
	assert.Len(t, got.Children, 1)
}

func TestReconstructCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{subtrees: map[string]string{}}
	_, _, err := NewReconstructor(src, nil).Reconstruct(ctx, "KEY", parse(t, truncatedDoc), 6)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeDepth(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 6}, {-3, 6}, {1, 1}, {4, 4}, {6, 6}, {12, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDepth(tt.in), "depth %d", tt.in)
	}
}

func TestImportNodes(t *testing.T) {
	src := &fakeSource{subtrees: map[string]string{
		"1:1": `{"id":"1:1","type":"FRAME","name":"A","children":[]}`,
		"1:2": `{"id":"1:2","type":"TEXT","name":"B"}`,
	}}
	im := NewImporter(src, nil, nil)

	t.Run("single", func(t *testing.T) {
		doc, _, err := im.ImportNodes(context.Background(), "KEY", []string{"1:2"}, 3)
		require.NoError(t, err)
		assert.Equal(t, "1:2", doc.ID)
	})

	t.Run("several are wrapped", func(t *testing.T) {
		doc, _, err := im.ImportNodes(context.Background(), "KEY", []string{"1:2", "missing", "1:1"}, 3)
		require.NoError(t, err)
		assert.Equal(t, SelectionRootID, doc.ID)
		assert.Equal(t, SelectionRootName, doc.Name)
		assert.Equal(t, figma.TypeFrame, doc.Type)
		require.Len(t, doc.Children, 2)
		assert.Equal(t, "1:2", doc.Children[0].ID)
		assert.Equal(t, "1:1", doc.Children[1].ID)
	})

	t.Run("nothing found", func(t *testing.T) {
		_, _, err := im.ImportNodes(context.Background(), "KEY", []string{"nope", "nada"}, 3)
		assert.ErrorIs(t, err, ErrNothingImported)
	})
}

func TestImportFile(t *testing.T) {
	src := &fakeSource{
		file: truncatedDoc,
		subtrees: map[string]string{
			"1:1": `{"id":"1:1","type":"FRAME","children":[{"id":"2:1","type":"TEXT"}]}`,
		},
	}
	doc, stats, err := NewImporter(src, nil, nil).ImportFile(context.Background(), "KEY", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Expanded)
	assert.Len(t, doc.Children[0].Children, 1)
}
