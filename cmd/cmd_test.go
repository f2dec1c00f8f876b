package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloudan-catalogue/models"
)

const itemsYAML = `items:
  - modelNumber: 3
    sizes: [Adult]
    weightAdult: 12
  - modelNumber: 1
    sizes: [Adult, Kids]
    weightAdult: 10
    weightKids: 6.5
  - modelNumber: 2
    sizes: [kids]
    weightKids: 5
`

func setupRenderEnv(t *testing.T) (itemsPath, outDir string) {
	t.Helper()
	t.Setenv("ENV", "production")
	t.Setenv("LOG_OUTPUT", "stderr")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PROXY_CACHE_DIR", t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("S3_BUCKET", "")

	dir := t.TempDir()
	itemsPath = filepath.Join(dir, "items.yaml")
	require.NoError(t, os.WriteFile(itemsPath, []byte(itemsYAML), 0o644))
	return itemsPath, t.TempDir()
}

func execute(t *testing.T, args ...string) (stdout *bytes.Buffer, err error) {
	t.Helper()
	root := NewRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	return stdout, root.ExecuteContext(context.Background())
}

func TestRender_SavesFile(t *testing.T) {
	itemsPath, outDir := setupRenderEnv(t)

	_, err := execute(t, "render", "--items", itemsPath, "--filter", "Both", "--out", outDir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, models.CatalogueFileName()))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestRender_ExistingFileNeedsForce(t *testing.T) {
	itemsPath, outDir := setupRenderEnv(t)
	target := filepath.Join(outDir, "kids.pdf")
	require.NoError(t, os.WriteFile(target, []byte("keep me"), 0o644))

	_, err := execute(t, "render", "--items", itemsPath, "--filter", "Kids", "--out", target)
	require.ErrorIs(t, err, models.ErrDeliveryUnsupported)
	assert.ErrorIs(t, err, models.ErrSaveCancelled)
	data, _ := os.ReadFile(target)
	assert.Equal(t, "keep me", string(data))

	_, err = execute(t, "render", "--items", itemsPath, "--filter", "Kids", "--out", target, "--force")
	require.NoError(t, err)
	data, _ = os.ReadFile(target)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestRender_FallsThroughToStdout(t *testing.T) {
	itemsPath, outDir := setupRenderEnv(t)
	target := filepath.Join(outDir, "taken.pdf")
	require.NoError(t, os.WriteFile(target, []byte("keep me"), 0o644))

	stdout, err := execute(t, "render", "--items", itemsPath, "--filter", "Adult", "--out", target, "--stdout")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(stdout.Bytes(), []byte("%PDF-")))
}

func TestRender_Validation(t *testing.T) {
	itemsPath, _ := setupRenderEnv(t)

	_, err := execute(t, "render", "--items", itemsPath, "--filter", "Teens")
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	_, err = execute(t, "render", "--items", itemsPath, "--filter", "Both", "--order", "sideways")
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	_, err = execute(t, "render", "--filter", "Both")
	assert.ErrorIs(t, err, models.ErrValidationFailed)
}

func TestWarm_SkipsItemsWithoutImages(t *testing.T) {
	itemsPath, _ := setupRenderEnv(t)

	stdout, err := execute(t, "warm", "--items", itemsPath)
	require.NoError(t, err)
	assert.Equal(t, "0 fetched, 3 skipped, 0 failed of 3 items\n", stdout.String())
}
