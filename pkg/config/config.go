package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for a zero-config deployment: a fresh node serves the smallest
// stock model from a local Ollama on an OS-assigned port.
const (
	DefaultOllamaURL  = "http://127.0.0.1:11434"
	DefaultModel      = "qwen:0.5b"
	DefaultHTTPAddr   = "127.0.0.1:3000"
	DefaultKeyFile    = "./swarm.key"
	DefaultConfigPath = "./config.yaml"
)

type Config struct {
	Node struct {
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"node"`

	P2P struct {
		ListenPort     int           `mapstructure:"listen_port"`
		KeyFile        string        `mapstructure:"key_file"`
		Bootstrap      []string      `mapstructure:"bootstrap_nodes"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
	} `mapstructure:"p2p"`

	Ollama struct {
		URL   string `mapstructure:"url"`
		Model string `mapstructure:"model"`
	} `mapstructure:"ollama"`

	HTTP struct {
		ListenAddr string        `mapstructure:"listen_addr"`
		AskTimeout time.Duration `mapstructure:"ask_timeout"`
	} `mapstructure:"http"`
}

// Load reads the YAML config at path and applies AXON_* environment
// overrides on top (AXON_OLLAMA_MODEL overrides ollama.model, and so on).
// OLLAMA_LOCALHOST is honored as an alias for ollama.url. When mustExist is
// false a missing file is fine and defaults apply; a file that exists but
// fails to parse is always an error.
func Load(path string, mustExist bool) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("AXON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("ollama.url", "AXON_OLLAMA_URL", "OLLAMA_LOCALHOST"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if mustExist || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.log_level", "info")
	v.SetDefault("p2p.listen_port", 0)
	v.SetDefault("p2p.key_file", DefaultKeyFile)
	v.SetDefault("p2p.request_timeout", "120s")
	v.SetDefault("ollama.url", DefaultOllamaURL)
	v.SetDefault("ollama.model", DefaultModel)
	v.SetDefault("http.listen_addr", DefaultHTTPAddr)
	v.SetDefault("http.ask_timeout", "120s")
}
