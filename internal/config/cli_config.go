package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultRpcURL = "http://127.0.0.1:8899"

// CliConfig Solana CLI 配置文件（~/.config/solana/cli/config.yml）中用到的字段
type CliConfig struct {
	JsonRpcURL  string `yaml:"json_rpc_url"`
	KeypairPath string `yaml:"keypair_path"`
	Commitment  string `yaml:"commitment"`
}

func DefaultCliConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "solana", "cli", "config.yml")
}

// LoadCliConfig 读取 Solana CLI 配置；文件不存在时返回默认值
func LoadCliConfig(path string) (*CliConfig, error) {
	cfg := &CliConfig{JsonRpcURL: defaultRpcURL}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.KeypairPath = filepath.Join(home, ".config", "solana", "id.json")
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cli config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse cli config %s: %w", path, err)
	}
	cfg.KeypairPath = ExpandHome(cfg.KeypairPath)
	return cfg, nil
}

func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
