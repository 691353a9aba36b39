package cli

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingo-quiz/internal/config"
	"lingo-quiz/internal/infra/memory"
)

type recordingWriter struct {
	docs map[string]string
}

func (w *recordingWriter) Put(_ context.Context, path string, data []byte) error {
	w.docs[path] = string(data)
	return nil
}

func TestImportDocumentsStoresJSONByPath(t *testing.T) {
	fsys := fstest.MapFS{
		"data/metadata.json":                  {Data: []byte(`{"themes":[]}`)},
		"data/themes/theme-1/quiz_1_1.json":   {Data: []byte(`{"id":1,"questions":[]}`)},
		"data/themes/theme-1/README.md":       {Data: []byte("notes")},
		"data/themes/theme-1/audio/hello.mp3": {Data: []byte{0xff}},
	}
	w := &recordingWriter{docs: map[string]string{}}

	n, err := importDocuments(context.Background(), w, fsys)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, `{"themes":[]}`, w.docs["data/metadata.json"])
	assert.Contains(t, w.docs, "data/themes/theme-1/quiz_1_1.json")
}

func TestImportDocumentsRejectsInvalidJSON(t *testing.T) {
	fsys := fstest.MapFS{
		"metadata.json": {Data: []byte(`{"themes":`)},
	}
	w := &recordingWriter{docs: map[string]string{}}

	_, err := importDocuments(context.Background(), w, fsys)
	require.Error(t, err)
	assert.Empty(t, w.docs)
}

func TestSampleContentLoads(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	d, err := buildDeps(ctx, cfg)
	require.NoError(t, err)
	defer d.Close()

	themes, err := d.provider.LoadMetadata(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, themes)
	for _, theme := range themes {
		for _, summary := range theme.Quizzes {
			quiz, err := d.provider.GetQuiz(ctx, theme.ID, summary.ID)
			require.NoError(t, err, "theme %d quiz %d", theme.ID, summary.ID)
			assert.Equal(t, summary.Name, quiz.Name)
			assert.NotEmpty(t, quiz.Questions)
		}
	}

	prefs, err := d.repo.GetPreferences(ctx)
	require.NoError(t, err)
	assert.True(t, prefs.TimerEnabled)
}

func TestMemoryBackendHonoursTimerDefault(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	off := false
	cfg.Quiz.TimerEnabled = &off

	d, err := buildDeps(ctx, cfg)
	require.NoError(t, err)
	defer d.Close()

	prefs, err := d.repo.GetPreferences(ctx)
	require.NoError(t, err)
	assert.False(t, prefs.TimerEnabled)
}

func TestNewKVSelectsBackend(t *testing.T) {
	cfg := config.Default()
	kv, err := newKV(cfg, &deps{})
	require.NoError(t, err)
	assert.IsType(t, &memory.KV{}, kv)

	cfg.Storage.Backend = config.BackendRedis
	_, err = newKV(cfg, &deps{})
	assert.Error(t, err)

	cfg.Storage.Backend = config.BackendPostgres
	_, err = newKV(cfg, &deps{})
	assert.Error(t, err)
}
