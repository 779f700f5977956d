package config

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/pagestore/pkg/store"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "./data/pagestore.db", config.Store.Path)
	assert.True(t, config.Store.Checksum)
	assert.Equal(t, store.DefaultPageSize, config.Store.PageSize)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Bind)
	assert.Equal(t, "auto", config.Security.SystemAPIKey)
	assert.Equal(t, "auto", config.Security.ClientAPIKey)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestGenerateSecureKey(t *testing.T) {
	t.Run("generate 32 byte key", func(t *testing.T) {
		key, err := GenerateSecureKey(32)
		require.NoError(t, err)
		assert.Len(t, key, 64) // 32 bytes = 64 hex characters

		_, err = hex.DecodeString(key)
		assert.NoError(t, err)
	})

	t.Run("generate different keys", func(t *testing.T) {
		key1, err := GenerateSecureKey(16)
		require.NoError(t, err)
		key2, err := GenerateSecureKey(16)
		require.NoError(t, err)

		assert.NotEqual(t, key1, key2)
	})

	t.Run("zero length", func(t *testing.T) {
		key, err := GenerateSecureKey(0)
		require.NoError(t, err)
		assert.Empty(t, key)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("load existing config", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		expectedConfig := &Config{
			Store: Store{
				Path:             "/custom/data/store.db",
				UseMmap:          true,
				Checksum:         true,
				PageSize:         64 << 10,
				ConcurrencyShift: 2,
			},
			Server: Server{
				Port:          9000,
				Bind:          "0.0.0.0",
				MaxRecordSize: 1 << 20,
			},
			Security: Security{
				SystemAPIKey: "test-system-api-key",
				ClientAPIKey: "test-client-api-key",
			},
			Logging: Logging{
				Level:  "debug",
				Format: "json",
			},
		}

		err := SaveConfig(expectedConfig, configPath)
		require.NoError(t, err)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expectedConfig, loadedConfig)
	})

	t.Run("missing sections keep defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "partial.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 9100\n"), 0600))

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, 9100, loadedConfig.Server.Port)
		assert.Equal(t, "127.0.0.1", loadedConfig.Server.Bind)
		assert.Equal(t, store.DefaultPageSize, loadedConfig.Store.PageSize)
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("load invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.yaml")
		err := os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	config := DefaultConfig()

	err := SaveConfig(config, configPath)
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// overwriting keeps a single complete file
	config.Server.Port = 9300
	require.NoError(t, SaveConfig(config, configPath))

	entries, err := os.ReadDir(filepath.Dir(configPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestBootstrapConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	storePath := "/custom/data/dir/store.db"

	config, err := BootstrapConfig(configPath, storePath)
	require.NoError(t, err)

	assert.Equal(t, storePath, config.Store.Path)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "info", config.Logging.Level)

	assert.NotEqual(t, "auto", config.Security.SystemAPIKey)
	assert.NotEqual(t, "auto", config.Security.ClientAPIKey)
	assert.NotEqual(t, config.Security.SystemAPIKey, config.Security.ClientAPIKey)

	_, err = hex.DecodeString(config.Security.SystemAPIKey)
	assert.NoError(t, err)
	_, err = hex.DecodeString(config.Security.ClientAPIKey)
	assert.NoError(t, err)

	assert.True(t, ConfigExists(configPath))

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestToStoreConfig(t *testing.T) {
	config := DefaultConfig()
	config.Store.Path = filepath.Join(t.TempDir(), "store.db")
	config.Store.PageSize = 64 << 10
	config.Store.ConcurrencyShift = 1
	config.Store.CompactOnClose = true

	cfg := config.ToStoreConfig()
	assert.Equal(t, config.Store.Path, cfg.Path)
	assert.False(t, cfg.InMemory)
	assert.Equal(t, 64<<10, cfg.PageSize)
	assert.Equal(t, uint(1), cfg.ConcurrencyShift)
	assert.True(t, cfg.CompactOnClose)
	assert.True(t, cfg.Checksum)

	e, err := store.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, e.Close())
}

func TestLogging_NewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := Logging{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = Logging{Level: "loud"}.NewLogger(&buf)
	assert.Error(t, err)
	_, err = Logging{Format: "xml"}.NewLogger(&buf)
	assert.Error(t, err)
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "pagestore")
}

func TestConfigExists(t *testing.T) {
	tmpDir := t.TempDir()

	existingPath := filepath.Join(tmpDir, "exists.yaml")
	nonExistentPath := filepath.Join(tmpDir, "does-not-exist.yaml")

	err := os.WriteFile(existingPath, []byte("test"), 0644)
	require.NoError(t, err)

	assert.True(t, ConfigExists(existingPath))
	assert.False(t, ConfigExists(nonExistentPath))
}

func TestConfigYAMLMarshalling(t *testing.T) {
	config := DefaultConfig()
	config.Store.InMemory = true
	config.Logging.Level = "warn"

	data, err := yaml.Marshal(config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "concurrency_shift: 3")

	var unmarshalled Config
	err = yaml.Unmarshal(data, &unmarshalled)
	require.NoError(t, err)

	assert.Equal(t, config, &unmarshalled)
}

func TestSaveConfigErrorHandling(t *testing.T) {
	config := DefaultConfig()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	err := SaveConfig(config, filepath.Join(blocker, "sub", "config.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create config directory")
}
