package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmill/recognition-worker/internal/engine"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.png")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestKeyForDeterministic(t *testing.T) {
	doc := writeDoc(t, "image bytes")
	opts := engine.Options{Languages: []string{"eng", "deu"}, MinConfidence: 0.8}

	k1, err := KeyFor(doc, opts)
	require.NoError(t, err)
	k2, err := KeyFor(doc, opts)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, string(k1), 64, "hex-encoded sha256")
}

func TestKeyForNormalizesLanguageOrder(t *testing.T) {
	doc := writeDoc(t, "image bytes")

	k1, err := KeyFor(doc, engine.Options{Languages: []string{"eng", "deu"}})
	require.NoError(t, err)
	k2, err := KeyFor(doc, engine.Options{Languages: []string{"deu", "eng"}})
	require.NoError(t, err)

	assert.Equal(t, k1, k2, "equivalent requests share a key")
}

func TestKeyForSeparatesContentAndOptions(t *testing.T) {
	docA := writeDoc(t, "first scan")
	docB := writeDoc(t, "second scan")
	base := engine.Options{Languages: []string{"eng"}}

	kA, err := KeyFor(docA, base)
	require.NoError(t, err)
	kB, err := KeyFor(docB, base)
	require.NoError(t, err)
	assert.NotEqual(t, kA, kB, "different content, different key")

	highDPI := base
	highDPI.HighDPI = true
	kC, err := KeyFor(docA, highDPI)
	require.NoError(t, err)
	assert.NotEqual(t, kA, kC, "different options, different key")
}

func TestKeyForSameContentDifferentPath(t *testing.T) {
	docA := writeDoc(t, "identical bytes")
	docB := writeDoc(t, "identical bytes")

	kA, err := KeyFor(docA, engine.Options{})
	require.NoError(t, err)
	kB, err := KeyFor(docB, engine.Options{})
	require.NoError(t, err)

	assert.Equal(t, kA, kB, "keys are content-addressed, not path-addressed")
}

func TestKeyForMissingFile(t *testing.T) {
	_, err := KeyFor(filepath.Join(t.TempDir(), "nope.png"), engine.Options{})
	assert.Error(t, err)
}
