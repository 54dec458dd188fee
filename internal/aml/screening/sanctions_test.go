package screening_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aegisfin/txmonitor/internal/aml/screening"
)

func TestExactMatchOnly(t *testing.T) {
	set := screening.NewSanctionsSet([]string{"JOHN SMITH", "ACME HOLDINGS LTD"}, zap.NewNop().Sugar())
	ctx := context.Background()

	hit, err := set.IsSanctioned(ctx, "JOHN SMITH")
	require.NoError(t, err)
	assert.True(t, hit)

	// similar, but not exact, names do not match
	for _, name := range []string{"John Smith", "JON SMITH", "JOHN  SMITH", ""} {
		hit, err := set.IsSanctioned(ctx, name)
		require.NoError(t, err)
		assert.False(t, hit, "unexpected match for %q", name)
	}
}

func TestSurroundingWhitespaceIgnored(t *testing.T) {
	set := screening.NewSanctionsSet([]string{"  JOHN SMITH  "}, zap.NewNop().Sugar())

	hit, err := set.IsSanctioned(context.Background(), " JOHN SMITH ")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, set.Size())
}

func TestReplaceSwapsAtomically(t *testing.T) {
	set := screening.NewSanctionsSet([]string{"OLD NAME"}, zap.NewNop().Sugar())
	ctx := context.Background()

	set.Replace([]string{"NEW NAME", "", "   "})

	hit, err := set.IsSanctioned(ctx, "OLD NAME")
	require.NoError(t, err)
	assert.False(t, hit)

	hit, err = set.IsSanctioned(ctx, "NEW NAME")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, set.Size())
	assert.False(t, set.LastUpdated().IsZero())
}

func TestFileLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sanctions.txt")
	content := "# consolidated watch list\nJOHN SMITH\n\nACME HOLDINGS LTD\n  PADDED NAME  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	set := screening.NewSanctionsSet(nil, zap.NewNop().Sugar())
	loader := screening.NewFileLoader(path, time.Hour, set, zap.NewNop().Sugar())
	require.NoError(t, loader.Load())

	assert.Equal(t, 3, set.Size())
	for _, name := range []string{"JOHN SMITH", "ACME HOLDINGS LTD", "PADDED NAME"} {
		hit, err := set.IsSanctioned(context.Background(), name)
		require.NoError(t, err)
		assert.True(t, hit, "expected %q on the list", name)
	}

	hit, err := set.IsSanctioned(context.Background(), "# consolidated watch list")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestFileLoaderMissingFile(t *testing.T) {
	set := screening.NewSanctionsSet([]string{"KEPT"}, zap.NewNop().Sugar())
	loader := screening.NewFileLoader("/nonexistent/sanctions.txt", time.Hour, set, zap.NewNop().Sugar())

	require.Error(t, loader.Load())

	// failed reload keeps the previous entries
	hit, err := set.IsSanctioned(context.Background(), "KEPT")
	require.NoError(t, err)
	assert.True(t, hit)
}
