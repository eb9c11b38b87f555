package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env here
	for _, k := range []string{"CACHE_BACKEND", "OPENSEARCH_URL", "PIPELINE_TIMEOUT_SECONDS", "GOOGLE_API_KEY", "GOOGLE_MAPS_API_KEY", "DEFAULT_MODEL"} {
		t.Setenv(k, "")
	}

	c := Load()
	assert.Equal(t, "redis", c.CacheBackend)
	assert.Equal(t, []string{"http://localhost:9200"}, c.OpenSearchURLs)
	assert.Equal(t, 30*time.Second, c.PipelineTimeout)
	assert.Equal(t, 35*time.Second, c.HTTPTimeout)
	assert.Equal(t, 86400, c.GeocodeEmptyTTL)
	assert.Equal(t, "gemini-2.5-flash", c.DefaultModel)
	assert.Empty(t, c.GeocodeKey)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CACHE_BACKEND", "Badger")
	t.Setenv("OPENSEARCH_URL", "http://os-1:9200, http://os-2:9200,")
	t.Setenv("PIPELINE_TIMEOUT_SECONDS", "12")
	t.Setenv("GOOGLE_API_KEY", "gemini-key")
	t.Setenv("GOOGLE_MAPS_API_KEY", "")
	t.Setenv("WARM_WORKERS", "not-a-number")

	c := Load()
	assert.Equal(t, "badger", c.CacheBackend)
	assert.Equal(t, []string{"http://os-1:9200", "http://os-2:9200"}, c.OpenSearchURLs)
	assert.Equal(t, 12*time.Second, c.PipelineTimeout)
	assert.Equal(t, "gemini-key", c.GeocodeKey, "maps key falls back to the Gemini key")
	assert.Equal(t, 8, c.WarmWorkers)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DEFAULT_MODEL=qwen3-8b\nREDIS_ADDR=cache:6379\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("REDIS_ADDR", "localhost:6390")
	t.Setenv("DEFAULT_MODEL", "")
	// godotenv only fills unset variables
	require.NoError(t, os.Unsetenv("DEFAULT_MODEL"))

	c := Load()
	assert.Equal(t, "qwen3-8b", c.DefaultModel)
	assert.Equal(t, "localhost:6390", c.RedisAddr)
}
