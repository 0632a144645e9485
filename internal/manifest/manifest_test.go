package manifest

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/storage"
)

func newStore(t *testing.T) *storage.FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir+"/content", dir+"/backups")
	require.NoError(t, err)
	return fs
}

func put(t *testing.T, fs *storage.FS, file, body string) {
	t.Helper()
	require.NoError(t, fs.Write(storage.KindNodes, file, []byte(body)))
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func nodeIDs(nodes []models.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func onDisk(t *testing.T, fs *storage.FS) []map[string]any {
	t.Helper()
	raw, err := fs.ReadManifest()
	require.NoError(t, err)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestAutoPosition(t *testing.T) {
	assert.Equal(t, 612, Hash("alpha-1"))
	x, y := AutoPosition("alpha-1")
	assert.Equal(t, 49.0, x)
	assert.Equal(t, 56.0, y)

	for _, id := range []string{"a", "zz-top", "field-notes-2024", ""} {
		x, y := AutoPosition(id)
		assert.GreaterOrEqual(t, x, 15.0)
		assert.Less(t, x, 85.0)
		assert.GreaterOrEqual(t, y, 20.0)
		assert.Less(t, y, 80.0)
	}
}

func TestRebuild_SortAndDefaults(t *testing.T) {
	fs := newStore(t)
	put(t, fs, "c", `{"id":"c-node","title":"C","type":"music","threads":["music"]}`)
	put(t, fs, "a", `{"id":"b-node","title":"A","type":"music","threads":["music"],"created":"2024-01-01","x":10,"y":20}`)
	put(t, fs, "b", `{"id":"a-node","title":"B","type":"bio","threads":["questions"],"created":"2024-06-01","visible_on_landing":false}`)

	nodes, err := NewBuilder(fs, slog.Default()).Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a-node", "b-node", "c-node"}, ids(nodes))

	assert.Equal(t, 10.0, *nodes[1].X)
	assert.Equal(t, 20.0, *nodes[1].Y)
	assert.False(t, *nodes[0].VisibleOnLanding)
	assert.True(t, *nodes[2].VisibleOnLanding)

	x, y := AutoPosition("c-node")
	assert.Equal(t, x, *nodes[2].X)
	assert.Equal(t, y, *nodes[2].Y)

	raw, err := fs.ReadManifest()
	require.NoError(t, err)
	var written []models.Node
	require.NoError(t, json.Unmarshal(raw, &written))
	want := make([]models.Node, len(nodes))
	for i, e := range nodes {
		want[i] = e.Node
	}
	assert.Equal(t, want, written)
	assert.Equal(t, byte('\n'), raw[len(raw)-1])
}

func TestRebuild_Idempotent(t *testing.T) {
	fs := newStore(t)
	put(t, fs, "one", `{"id":"one","title":"One","type":"music","threads":["music"],"created":"2023-03-03"}`)
	put(t, fs, "two", `{"id":"two","title":"Two","type":"movement","threads":["movement"]}`)

	b := NewBuilder(fs, nil)
	_, err := b.Rebuild(context.Background())
	require.NoError(t, err)
	first, err := fs.ReadManifest()
	require.NoError(t, err)

	_, err = b.Rebuild(context.Background())
	require.NoError(t, err)
	second, err := fs.ReadManifest()
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestRebuild_SkipsBadFiles(t *testing.T) {
	fs := newStore(t)
	put(t, fs, "good", `{"id":"good","title":"Good","type":"music","threads":["music"]}`)
	put(t, fs, "corrupt", `{"id": "corrupt",`)
	put(t, fs, "noid", `{"title":"No id","type":"music"}`)
	put(t, fs, "notype", `{"id":"notype","title":"No type"}`)
	put(t, fs, "zz-dupe", `{"id":"good","title":"Dupe","type":"bio","threads":["music"]}`)

	nodes, err := NewBuilder(fs, nil).Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"good"}, ids(nodes))
	assert.Equal(t, "Good", nodes[0].Title)
}

func TestRebuild_LooselyTypedFields(t *testing.T) {
	fs := newStore(t)
	put(t, fs, "a", `{"id":"a-node","title":"A","type":"music","threads":["music"],"x":10,"y":20,"visible_on_landing":"yes"}`)
	put(t, fs, "b", `{"id":"b-node","title":"B","type":"music","threads":["music"],"x":"40","y":"40","visible_on_landing":false}`)
	put(t, fs, "c", `{"id":"c-node","title":"C","type":"bio","x":30,"y":null}`)

	entries, err := NewBuilder(fs, nil).Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a-node", "b-node", "c-node"}, ids(entries))

	written := onDisk(t, fs)
	require.Len(t, written, 3)

	// non-boolean visibility defaults to true, position kept
	assert.Equal(t, true, written[0]["visible_on_landing"])
	assert.Equal(t, 10.0, written[0]["x"])
	assert.Equal(t, 20.0, written[0]["y"])

	// string coordinates are replaced by the auto position
	bx, by := AutoPosition("b-node")
	assert.Equal(t, bx, written[1]["x"])
	assert.Equal(t, by, written[1]["y"])
	assert.Equal(t, false, written[1]["visible_on_landing"])
	assert.Equal(t, bx, *entries[1].X)

	// one numeric coordinate is not enough
	cx, cy := AutoPosition("c-node")
	assert.Equal(t, cx, written[2]["x"])
	assert.Equal(t, cy, written[2]["y"])
}

func TestRebuild_KeepsUnknownFields(t *testing.T) {
	fs := newStore(t)
	put(t, fs, "c", `{"id":"c-node","title":"C","type":"music","threads":["music"],"x":5,"y":6,"extra":"keep-me","links":[{"to":"a"}]}`)
	put(t, fs, "bare", `{"id":"bare","type":"bio"}`)

	_, err := NewBuilder(fs, nil).Rebuild(context.Background())
	require.NoError(t, err)

	written := onDisk(t, fs)
	require.Len(t, written, 2)
	assert.Equal(t, "bare", written[0]["id"])
	assert.NotContains(t, written[0], "threads")
	assert.NotContains(t, written[0], "title")

	assert.Equal(t, "keep-me", written[1]["extra"])
	assert.Equal(t, []any{map[string]any{"to": "a"}}, written[1]["links"])
}

func TestRebuild_SkipsNonObjects(t *testing.T) {
	fs := newStore(t)
	put(t, fs, "good", `{"id":"good","type":"music"}`)
	put(t, fs, "array", `[{"id":"array","type":"music"}]`)
	put(t, fs, "null", `null`)
	put(t, fs, "numeric-id", `{"id":7,"type":"music"}`)

	entries, err := NewBuilder(fs, nil).Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, ids(entries))
}

func TestRebuild_Empty(t *testing.T) {
	fs := newStore(t)
	nodes, err := NewBuilder(fs, nil).Rebuild(context.Background())
	require.NoError(t, err)
	assert.Empty(t, nodes)

	raw, err := fs.ReadManifest()
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))
}

func TestRebuild_Cancelled(t *testing.T) {
	fs := newStore(t)
	put(t, fs, "one", `{"id":"one","title":"One","type":"music","threads":["music"]}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(fs, nil).Rebuild(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSort_InvalidDateIsUndated(t *testing.T) {
	nodes := []models.Node{
		{ID: "b", Created: "someday"},
		{ID: "a"},
		{ID: "c", Created: "2020-01-01"},
		{ID: "d", Created: "2020-01-01"},
	}
	Sort(nodes)
	assert.Equal(t, []string{"c", "d", "a", "b"}, nodeIDs(nodes))
}
