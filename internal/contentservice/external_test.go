package contentservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/strand/internal/storage"
	"github.com/starford/strand/internal/watch"
)

func TestReconcile_ExternalNodeEdit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.Write(storage.KindNodes, "hand-made",
		[]byte(`{"id":"hand-made","title":"Hand Made","type":"bio","threads":["music"]}`)))

	e.svc.Reconcile(ctx, []watch.Change{{Scope: "nodes", ID: "hand-made"}})

	raw, err := e.store.ReadManifest()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"hand-made"`)
	cs, err := e.db.GetChecksum("hand-made")
	require.NoError(t, err)
	assert.NotEmpty(t, cs)
	assert.Equal(t, []string{"node.updated:hand-made", "manifest"}, e.events.events)

	_, err = e.store.Delete(storage.KindNodes, "hand-made")
	require.NoError(t, err)
	e.svc.Reconcile(ctx, []watch.Change{{Scope: "nodes", ID: "hand-made", Removed: true}})
	cs, err = e.db.GetChecksum("hand-made")
	require.NoError(t, err)
	assert.Empty(t, cs)
	assert.Contains(t, e.events.events, "node.deleted:hand-made")
}

func TestReconcile_Connections(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.WriteCollection(storage.CollectionConnections, []byte(`[]`)))
	e.svc.Reconcile(context.Background(), []watch.Change{{Scope: watch.ScopeCollection, ID: "connections"}})
	assert.Equal(t, []string{"connections", "manifest"}, e.events.events)

	e.events.events = nil
	e.svc.Reconcile(context.Background(), nil)
	assert.Empty(t, e.events.events)
}
