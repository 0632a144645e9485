package contentservice

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/strand/internal/apperr"
	"github.com/starford/strand/internal/index"
	"github.com/starford/strand/internal/manifest"
	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/storage"
	"github.com/starford/strand/internal/testutil"
	"github.com/starford/strand/internal/vcs"
)

type fakeRecorder struct {
	mu      sync.Mutex
	changes []vcs.Change
}

func (f *fakeRecorder) Record(_ context.Context, c vcs.Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, c)
}

func (f *fakeRecorder) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.changes))
	for i, c := range f.changes {
		out[i] = vcs.Message(c)
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) PublishNodeEvent(kind, id string) { f.add("node." + kind + ":" + id) }
func (f *fakePublisher) PublishManifest(int)              { f.add("manifest") }
func (f *fakePublisher) PublishCollection(name string, _ int) {
	f.add(name)
}

func (f *fakePublisher) add(e string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

type env struct {
	svc    *Service
	store  *storage.FS
	rec    *fakeRecorder
	events *fakePublisher
	db     *index.DB
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:  testutil.TestContent(t),
		rec:    &fakeRecorder{},
		events: &fakePublisher{},
		db:     testutil.TestDB(t),
	}
	e.svc = New(e.store,
		WithRecorder(e.rec),
		WithPublisher(e.events),
		WithIndex(e.db),
		WithLogger(testutil.Logger()),
	)
	return e
}

func manifestIDs(entries []manifest.Entry) []string {
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

func TestCreateNode_RoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.svc.CreateNode(ctx, CreateNodeInput{Node: testutil.MusicNode("field-notes", "Field Notes")})
	require.NoError(t, err)
	assert.Equal(t, `Node "Field Notes" created successfully`, res.Message)
	assert.Equal(t, []string{"field-notes"}, manifestIDs(res.Manifest))

	got, err := e.svc.GetNode(ctx, "field-notes")
	require.NoError(t, err)
	assert.Equal(t, res.Node, *got)
	assert.Equal(t, 50.0, *got.X)
	assert.Equal(t, 50.0, *got.Y)
	assert.True(t, *got.VisibleOnLanding)

	raw, err := e.store.ReadManifest()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id": "field-notes"`)

	assert.Equal(t, []string{"Add music: Field Notes"}, e.rec.messages())
	assert.Contains(t, e.events.events, "node.created:field-notes")

	hits, err := e.db.Search("Field", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestCreateNode_ValidationRejectsBeforeWrite(t *testing.T) {
	e := newEnv(t)
	p := models.NodePatch{
		ID:   models.Ptr("bad-essay"),
		Type: models.Ptr(models.NodeEssay),
		X:    models.Ptr(150.0),
	}

	_, err := e.svc.CreateNode(context.Background(), CreateNodeInput{Node: p})
	require.ErrorIs(t, err, apperr.ErrValidationFailed)

	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.GreaterOrEqual(t, len(ve.Rules), 3)
	assert.Contains(t, ve.Rules, "Title is required")
	assert.Contains(t, ve.Rules, "X coordinate must be between 0 and 100")
	assert.Contains(t, ve.Rules, "Essay nodes require essayFile")

	ids, err := e.store.List(storage.KindNodes)
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, err = e.store.ReadManifest()
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, e.rec.messages())
}

func TestCreateNode_Duplicate(t *testing.T) {
	e := newEnv(t)
	in := CreateNodeInput{Node: testutil.MusicNode("dup", "Dup")}
	_, err := e.svc.CreateNode(context.Background(), in)
	require.NoError(t, err)
	_, err = e.svc.CreateNode(context.Background(), in)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

func TestCreateNode_EssayWritesBody(t *testing.T) {
	e := newEnv(t)
	body := "# On Listening\nSee [[field-notes]]."
	_, err := e.svc.CreateNode(context.Background(), CreateNodeInput{
		Node:         testutil.EssayNode("on-listening", "On Listening"),
		EssayContent: &body,
	})
	require.NoError(t, err)

	got, err := e.svc.GetEssay(context.Background(), "on-listening.md")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	refs, err := e.db.References("field-notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"on-listening"}, refs)
}

func TestCreateNode_CuriosityMirrorsNode(t *testing.T) {
	e := newEnv(t)
	p := testutil.MusicNode("tide-tables", "Tide Tables")
	p.Type = models.Ptr(models.NodeCuriosity)
	p.VisibleOnLanding = models.Ptr(false)

	_, err := e.svc.CreateNode(context.Background(), CreateNodeInput{
		Node:      p,
		Curiosity: &models.CuriosityPayload{Central: "water", Connected: []models.ConnectedItem{{Label: "moon"}}},
	})
	require.NoError(t, err)

	d, err := e.svc.GetCuriosity(context.Background(), "tide-tables")
	require.NoError(t, err)
	assert.Equal(t, "Tide Tables", d.Title)
	assert.Equal(t, []models.ThreadTag{models.ThreadMusic}, d.Threads)
	require.NotNil(t, d.VisibleOnLanding)
	assert.False(t, *d.VisibleOnLanding)
}

func TestCreateNode_InvalidSideDataWritesNothing(t *testing.T) {
	e := newEnv(t)
	p := testutil.MusicNode("night-set", "Night Set")
	p.Type = models.Ptr(models.NodeDurational)

	_, err := e.svc.CreateNode(context.Background(), CreateNodeInput{
		Node:       p,
		Durational: &models.DurationalPayload{Subtype: models.SubtypeDJMix},
	})
	require.ErrorIs(t, err, apperr.ErrValidationFailed)
	assert.Contains(t, err.Error(), "Media information is required")

	_, err = e.svc.GetNode(context.Background(), "night-set")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateNode_DurationalCommitLabel(t *testing.T) {
	e := newEnv(t)
	p := testutil.MusicNode("night-set", "Night Set")
	p.Type = models.Ptr(models.NodeDurational)
	p.Subtype = models.Ptr("dj-mix")

	_, err := e.svc.CreateNode(context.Background(), CreateNodeInput{
		Node: p,
		Durational: &models.DurationalPayload{
			Subtype: models.SubtypeDJMix,
			Media:   &models.DurationalMedia{Source: models.SourceMixcloud, URL: "https://mixcloud.com/x/night-set"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Add mix: Night Set"}, e.rec.messages())

	d, err := e.svc.GetDurational(context.Background(), "night-set")
	require.NoError(t, err)
	assert.Equal(t, models.NodeDurational, d.Type)
}

func TestUpdateNode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.svc.CreateNode(ctx, CreateNodeInput{Node: testutil.EssayNode("on-listening", "On Listening")})
	require.NoError(t, err)

	res, err := e.svc.UpdateNode(ctx, "on-listening", UpdateNodeInput{Node: models.NodePatch{
		ID:        models.Ptr("hijacked"),
		Title:     models.Ptr("On Listening Again"),
		EssayFile: models.Ptr("other.md"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "on-listening", res.Node.ID)
	assert.Equal(t, "on-listening.md", res.Node.EssayFile)
	assert.Equal(t, "On Listening Again", res.Node.Title)
	assert.Equal(t, []models.ThreadTag{models.ThreadQuestions}, res.Node.Threads)

	_, err = e.svc.GetNode(ctx, "hijacked")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.svc.UpdateNode(ctx, "missing", UpdateNodeInput{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.svc.UpdateNode(ctx, "on-listening", UpdateNodeInput{Node: models.NodePatch{Threads: []models.ThreadTag{}}})
	assert.ErrorIs(t, err, apperr.ErrValidationFailed)
}

func TestDeleteNode_BacksUpNodeAndSideFile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	body := "text"
	_, err := e.svc.CreateNode(ctx, CreateNodeInput{Node: testutil.EssayNode("on-listening", "On Listening"), EssayContent: &body})
	require.NoError(t, err)
	_, err = e.svc.CreateNode(ctx, CreateNodeInput{Node: testutil.MusicNode("keep", "Keep")})
	require.NoError(t, err)

	res, err := e.svc.DeleteNode(ctx, "on-listening")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, `Node "On Listening" deleted successfully (2 backup(s) created)`, res.Message)
	assert.Equal(t, []string{"keep"}, manifestIDs(res.Manifest))
	for _, p := range res.Backups {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	_, err = e.svc.GetEssay(ctx, "on-listening.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = e.svc.DeleteNode(ctx, "on-listening")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, "Delete essay: On Listening", e.rec.messages()[2])
}

func TestDeleteNode_MissingSideFileIsNotFatal(t *testing.T) {
	e := newEnv(t)
	p := testutil.MusicNode("lonely-curiosity", "Lonely")
	p.Type = models.Ptr(models.NodeCuriosity)
	_, err := e.svc.CreateNode(context.Background(), CreateNodeInput{Node: p})
	require.NoError(t, err)

	res, err := e.svc.DeleteNode(context.Background(), "lonely-curiosity")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestRegenerateManifest(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.Write(storage.KindNodes, "hand-made", []byte(`{"id":"hand-made","title":"H","type":"bio","threads":["music"]}`)))

	nodes, err := e.svc.RegenerateManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"hand-made"}, manifestIDs(nodes))
	assert.Contains(t, e.events.events, "manifest")
}

func TestListNodes_SkipsCorrupt(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.CreateNode(context.Background(), CreateNodeInput{Node: testutil.MusicNode("good", "Good")})
	require.NoError(t, err)
	require.NoError(t, e.store.Write(storage.KindNodes, "broken", []byte("{")))

	nodes, err := e.svc.ListNodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, nodeIDs(nodes))
}

func TestPathEscape(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.GetNode(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, apperr.ErrInvalidPath)
	_, err = e.svc.GetEssay(ctx, "../secrets.md")
	assert.ErrorIs(t, err, apperr.ErrInvalidPath)
	err = e.svc.UpdateEssay(ctx, "../../escape.md", "x")
	assert.ErrorIs(t, err, apperr.ErrInvalidPath)
	_, err = e.svc.DeleteNode(ctx, "..")
	assert.ErrorIs(t, err, apperr.ErrInvalidPath)
}

func TestUpdateEssay_RecordsOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.svc.CreateNode(ctx, CreateNodeInput{Node: testutil.EssayNode("on-listening", "On Listening")})
	require.NoError(t, err)

	require.NoError(t, e.svc.UpdateEssay(ctx, "on-listening.md", "fresh words about uniqueterm"))
	got, err := e.svc.GetEssay(ctx, "on-listening.md")
	require.NoError(t, err)
	assert.Equal(t, "fresh words about uniqueterm", got)
	assert.Equal(t, "Update essay: On Listening", e.rec.messages()[1])

	hits, err := e.db.Search("uniqueterm", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestPhrases(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	list, err := e.svc.ListPhrases(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	long := strings.Repeat("a", 60)
	_, err = e.svc.AddPhrase(ctx, models.Phrase{Text: "listen harder"})
	require.NoError(t, err)
	list, err = e.svc.AddPhrase(ctx, models.Phrase{Text: long})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Add phrase: "+strings.Repeat("a", 50)+"...", e.rec.messages()[1])

	_, err = e.svc.AddPhrase(ctx, models.Phrase{Text: " "})
	assert.ErrorIs(t, err, apperr.ErrValidationFailed)

	_, err = e.svc.DeletePhrase(ctx, 5, "")
	assert.ErrorIs(t, err, apperr.ErrIndexOutOfRange)
	_, err = e.svc.DeletePhrase(ctx, -1, "")
	assert.ErrorIs(t, err, apperr.ErrIndexOutOfRange)
	after, err := e.svc.ListPhrases(ctx)
	require.NoError(t, err)
	assert.Equal(t, list, after)

	_, err = e.svc.DeletePhrase(ctx, 0, list[1].Key())
	assert.ErrorIs(t, err, apperr.ErrConflict)

	list, err = e.svc.DeletePhrase(ctx, 0, list[0].Key())
	require.NoError(t, err)
	assert.Equal(t, []models.Phrase{{Text: long}}, list)
	assert.Contains(t, e.events.events, "phrases")
}

func TestReplacePhrases(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.svc.AddPhrase(ctx, models.Phrase{Text: "old"})
	require.NoError(t, err)

	_, err = e.svc.ReplacePhrases(ctx, []models.Phrase{{Text: "ok"}, {Text: ""}})
	require.Error(t, err)
	assert.Equal(t, "Phrase 2 validation failed: Phrase text is required", err.Error())

	by := "anon"
	list, err := e.svc.ReplacePhrases(ctx, []models.Phrase{{Text: "new", By: &by}})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "Update phrases: 1 phrases", e.rec.messages()[1])

	entries, err := os.ReadDir(e.store.BackupRoot())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "-collection-phrases.json"))
}

func TestThreads(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.svc.CreateNode(ctx, CreateNodeInput{Node: testutil.MusicNode("a", "A")})
	require.NoError(t, err)
	_, err = e.svc.CreateNode(ctx, CreateNodeInput{Node: testutil.MusicNode("b", "B")})
	require.NoError(t, err)

	_, err = e.svc.AddThread(ctx, models.Thread{From: "a", To: "a", Threads: []models.ThreadTag{models.ThreadMusic}})
	assert.ErrorIs(t, err, apperr.ErrValidationFailed)

	list, err := e.svc.AddThread(ctx, models.Thread{From: "a", To: "b", Threads: []models.ThreadTag{models.ThreadMusic}})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, links, err := e.db.Graph()
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, index.EdgeConnection, links[0].Kind)

	list, err = e.svc.ReplaceThreads(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, links, err = e.db.Graph()
	require.NoError(t, err)
	assert.Empty(t, links)

	_, err = e.svc.DeleteThread(ctx, 0, "")
	assert.ErrorIs(t, err, apperr.ErrIndexOutOfRange)
}

func TestServiceWithoutCollaborators(t *testing.T) {
	svc := New(testutil.TestContent(t))
	_, err := svc.CreateNode(context.Background(), CreateNodeInput{Node: testutil.MusicNode("plain", "Plain")})
	require.NoError(t, err)
	_, err = svc.AddPhrase(context.Background(), models.Phrase{Text: "hi"})
	require.NoError(t, err)
	_, err = svc.DeleteNode(context.Background(), "plain")
	require.NoError(t, err)
}
