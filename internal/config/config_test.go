package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfig 验证YAML配置能否被成功加载
func TestLoadConfig(t *testing.T) {
	yamlContent := `
server:
  address: ":9090"
mysql:
  host: "127.0.0.1"
  port: 3306
  username: "root"
  database: "jobgenius"
  max_open_conns: 20
minio:
  endpoint: "localhost:9000"
  bucketName: "jobgenius-resumes"
gemini:
  model: "gemini-2.0-flash"
  timeout_seconds: 30
auth:
  api_keys:
    test-key-1: "user-ext-1"
    test-key-2: "user-ext-2"
upload:
  max_file_size_bytes: 1048576
`
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err, "无法创建临时目录")
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err, "无法写入临时配置文件")

	cfg, err := LoadConfig(configPath)

	require.NoError(t, err, "加载配置不应返回错误")
	require.NotNil(t, cfg, "配置对象不应为 nil")

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "127.0.0.1", cfg.MySQL.Host)
	assert.Equal(t, 20, cfg.MySQL.MaxOpenConns)
	assert.Equal(t, "jobgenius-resumes", cfg.MinIO.BucketName)
	assert.Equal(t, int64(1048576), cfg.Upload.MaxFileSizeBytes)

	// 验证 api_keys map
	expectedKeys := map[string]string{
		"test-key-1": "user-ext-1",
		"test-key-2": "user-ext-2",
	}
	assert.Equal(t, expectedKeys, cfg.Auth.APIKeys, "Auth.APIKeys 的值与预期不符")
}

// TestLoadConfigDefaults 验证未配置项会被填充默认值
func TestLoadConfigDefaults(t *testing.T) {
	yamlContent := `
mysql:
  host: "127.0.0.1"
`
	tmpDir, err := os.MkdirTemp("", "config-test-defaults")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address, "服务器地址应使用默认值")
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model, "Gemini模型应使用默认值")
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "resume.events", cfg.RabbitMQ.ResumeEventsExchange)
}

// TestLoadConfigEnvOverride 验证环境变量覆盖敏感配置
func TestLoadConfigEnvOverride(t *testing.T) {
	yamlContent := `
gemini:
  api_key: "from-file"
`
	tmpDir, err := os.MkdirTemp("", "config-test-env")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Gemini.APIKey, "环境变量应覆盖配置文件中的API密钥")
}
