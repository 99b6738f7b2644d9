// Package config loads the aichat configuration from layered sources:
// global config, project config, an explicit file override, and
// environment variables, later sources winning.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the aichat session and CLI configuration.
type Config struct {
	// Endpoint is the streaming chat API URL.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// ChatID pins the conversation id. Generated when empty.
	ChatID string `json:"chatId,omitempty" yaml:"chatId,omitempty"`

	// Protocol selects the stream decoding mode: "data" or "text".
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty"`

	// Headers are sent with every chat request.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body holds extra top-level fields merged into every request body.
	Body map[string]any `json:"body,omitempty" yaml:"body,omitempty"`

	// SendExtraMessageFields sends the full message shape on the wire.
	SendExtraMessageFields bool `json:"sendExtraMessageFields,omitempty" yaml:"sendExtraMessageFields,omitempty"`

	// MaxToolRoundtrips bounds automatic tool continuation.
	MaxToolRoundtrips int `json:"maxToolRoundtrips,omitempty" yaml:"maxToolRoundtrips,omitempty"`

	// Tools enables or disables built-in tools by id.
	Tools map[string]bool `json:"tools,omitempty" yaml:"tools,omitempty"`

	// WorkDir is the root for filesystem tools. Defaults to the current
	// directory.
	WorkDir string `json:"workDir,omitempty" yaml:"workDir,omitempty"`

	// PersistHistory saves conversations to the history directory so a
	// chat id can be resumed across runs.
	PersistHistory bool `json:"persistHistory,omitempty" yaml:"persistHistory,omitempty"`

	// MCP configures external MCP tool servers by name.
	MCP map[string]MCPServerConfig `json:"mcp,omitempty" yaml:"mcp,omitempty"`

	// Log configures the structured logger.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`
}

// MCPServerConfig describes one stdio MCP server.
type MCPServerConfig struct {
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	Env     []string `json:"env,omitempty" yaml:"env,omitempty"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Pretty bool   `json:"pretty,omitempty" yaml:"pretty,omitempty"`
}

// configNames are the file basenames probed in each config directory,
// first hit per extension family wins via the dedup in Load.
var configNames = []string{"aichat.json", "aichat.jsonc", "aichat.yaml", "aichat.yml"}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/aichat/)
// 2. Project config (directory and directory/.aichat/)
// 3. AICHAT_CONFIG file
// 4. Environment variables
func Load(directory string) (*Config, error) {
	config := &Config{}

	loaded := make(map[string]bool)
	loadOnce := func(path, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	globalDir := GetPaths().Config
	for _, name := range configNames {
		loadOnce(filepath.Join(globalDir, name), globalDir)
	}

	if directory != "" {
		projectDir := filepath.Join(directory, ".aichat")
		for _, name := range configNames {
			loadOnce(filepath.Join(directory, name), directory)
			loadOnce(filepath.Join(projectDir, name), projectDir)
		}
	}

	if path := os.Getenv("AICHAT_CONFIG"); path != "" {
		loadOnce(path, filepath.Dir(path))
	}

	applyEnvOverrides(config)

	if config.Protocol != "" && config.Protocol != "data" && config.Protocol != "text" {
		return nil, fmt.Errorf("config: invalid protocol %q", config.Protocol)
	}
	return config, nil
}

// loadConfigFile loads one config file with interpolation support. The
// format follows the extension; .json is parsed as JSONC too.
func loadConfigFile(path string, config *Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = interpolate(data, baseDir)

	var fileConfig Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &fileConfig); err != nil {
			return err
		}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		path := filePattern.FindStringSubmatch(match)[1]
		if strings.HasPrefix(path, "~/") {
			path = filepath.Join(os.Getenv("HOME"), path[2:])
		} else if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return match
		}

		escaped := strings.ReplaceAll(strings.TrimSpace(string(content)), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")
		return escaped
	})

	return []byte(str)
}

// mergeConfig merges source into target, source winning on scalars and
// map entries.
func mergeConfig(target, source *Config) {
	if source.Endpoint != "" {
		target.Endpoint = source.Endpoint
	}
	if source.ChatID != "" {
		target.ChatID = source.ChatID
	}
	if source.Protocol != "" {
		target.Protocol = source.Protocol
	}
	if source.SendExtraMessageFields {
		target.SendExtraMessageFields = true
	}
	if source.MaxToolRoundtrips != 0 {
		target.MaxToolRoundtrips = source.MaxToolRoundtrips
	}
	if source.WorkDir != "" {
		target.WorkDir = source.WorkDir
	}
	if source.PersistHistory {
		target.PersistHistory = true
	}
	if source.Log.Level != "" {
		target.Log.Level = source.Log.Level
	}
	if source.Log.Pretty {
		target.Log.Pretty = true
	}

	if source.Headers != nil {
		if target.Headers == nil {
			target.Headers = make(map[string]string)
		}
		for k, v := range source.Headers {
			target.Headers[k] = v
		}
	}
	if source.Body != nil {
		if target.Body == nil {
			target.Body = make(map[string]any)
		}
		for k, v := range source.Body {
			target.Body[k] = v
		}
	}
	if source.Tools != nil {
		if target.Tools == nil {
			target.Tools = make(map[string]bool)
		}
		for k, v := range source.Tools {
			target.Tools[k] = v
		}
	}
	if source.MCP != nil {
		if target.MCP == nil {
			target.MCP = make(map[string]MCPServerConfig)
		}
		for k, v := range source.MCP {
			target.MCP[k] = v
		}
	}
}

// applyEnvOverrides applies environment variable overrides, the highest
// priority source.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("AICHAT_ENDPOINT"); v != "" {
		config.Endpoint = v
	}
	if v := os.Getenv("AICHAT_CHAT_ID"); v != "" {
		config.ChatID = v
	}
	if v := os.Getenv("AICHAT_PROTOCOL"); v != "" {
		config.Protocol = v
	}
	if v := os.Getenv("AICHAT_LOG"); v != "" {
		config.Log.Level = v
	}
	if v := os.Getenv("AICHAT_MAX_TOOL_ROUNDTRIPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.MaxToolRoundtrips = n
		}
	}
}

// Save writes the configuration to a file as indented JSON.
func Save(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
