package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/barabonda/linkbrain/internal/types"
)

// EnvPrefix prefixes the environment variable of every configuration key,
// e.g. LINKBRAIN_AGENT_TURN_LIMIT for agent.turn_limit.
const EnvPrefix = "LINKBRAIN"

// ConfigLoader handles loading configuration from files.
type ConfigLoader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperConfigLoader implements ConfigLoader using Viper.
type viperConfigLoader struct {
	validator ConfigValidator
	envFiles  []string
}

// LoaderOption configures a ConfigLoader.
type LoaderOption func(*viperConfigLoader)

// WithEnvFiles sets the dotenv files read before the environment is
// consulted. Missing files are skipped. Default: ".env".
func WithEnvFiles(files ...string) LoaderOption {
	return func(l *viperConfigLoader) {
		l.envFiles = files
	}
}

// NewConfigLoader creates a new ConfigLoader instance.
func NewConfigLoader(validator ConfigValidator, opts ...LoaderOption) ConfigLoader {
	l := &viperConfigLoader{
		validator: validator,
		envFiles:  []string{".env"},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the YAML file at path, overlays the environment and validates
// the result. The file must exist.
func (l *viperConfigLoader) Load(path string) (*Config, error) {
	return l.load(path, true)
}

// LoadWithDefaults is Load, except that a missing file leaves defaults and
// the environment as the only sources.
func (l *viperConfigLoader) LoadWithDefaults(path string) (*Config, error) {
	return l.load(path, false)
}

func (l *viperConfigLoader) load(path string, required bool) (*Config, error) {
	if err := l.loadEnvFiles(); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaultSettings(DefaultConfig()) {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		if err := v.BindEnv(key, envName(key), alias); err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to bind environment", err)
		}
	}

	var remoteTools []RemoteToolConfig
	if path != "" {
		file, err := readConfigFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !required:
		case err != nil:
			return nil, err
		default:
			if err := v.MergeConfigMap(file.settings); err != nil {
				return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to merge config file", err)
			}
			remoteTools = file.remoteTools
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to unmarshal config", err)
	}
	cfg.RemoteTools = remoteTools
	resolveProviderKey(&cfg)

	if err := l.validator.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFiles reads dotenv files without overriding variables that are
// already set.
func (l *viperConfigLoader) loadEnvFiles() error {
	for _, file := range l.envFiles {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return types.WrapError(types.CONFIG_LOAD_FAILED, fmt.Sprintf("failed to load env file %s", file), err)
		}
	}
	return nil
}

// configFile is a parsed config file. remote_tools is decoded apart from
// viper, which lowercases map keys and would mangle env variable names.
type configFile struct {
	settings    map[string]any
	remoteTools []RemoteToolConfig
}

// readConfigFile parses the YAML file at path and interpolates ${VAR}
// references in its string values. A missing file is reported with an
// error wrapping fs.ErrNotExist.
func readConfigFile(path string) (*configFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, fmt.Sprintf("failed to read config file %s", path), err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, fmt.Sprintf("failed to parse config file %s", path), err)
	}
	var remote struct {
		RemoteTools []RemoteToolConfig `yaml:"remote_tools"`
	}
	if err := yaml.Unmarshal(data, &remote); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, fmt.Sprintf("failed to parse remote_tools in %s", path), err)
	}

	delete(raw, "remote_tools")
	file := &configFile{settings: map[string]any{}, remoteTools: remote.RemoteTools}
	if raw != nil {
		file.settings = interpolateEnvVars(raw).(map[string]any)
	}
	for i := range file.remoteTools {
		interpolateRemoteTool(&file.remoteTools[i])
	}
	return file, nil
}

func interpolateRemoteTool(rt *RemoteToolConfig) {
	rt.Command = interpolateString(rt.Command)
	rt.URL = interpolateString(rt.URL)
	for i, arg := range rt.Args {
		rt.Args[i] = interpolateString(arg)
	}
	for key, value := range rt.Env {
		rt.Env[key] = interpolateString(value)
	}
}

// resolveProviderKey falls back to the provider's conventional API key
// variable when llm.api_key is empty.
func resolveProviderKey(cfg *Config) {
	if cfg.LLM.APIKey != "" {
		return
	}
	if name, ok := providerKeyEnv[cfg.LLM.Type]; ok {
		cfg.LLM.APIKey = os.Getenv(name)
	}
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// interpolateEnvVars recursively interpolates environment variables in the config map.
// Supports ${VAR_NAME} syntax.
func interpolateEnvVars(data any) any {
	switch v := data.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			result[key] = interpolateEnvVars(value)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, value := range v {
			result[i] = interpolateEnvVars(value)
		}
		return result
	case string:
		return interpolateString(v)
	default:
		return v
	}
}

var envRefPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateString replaces ${VAR_NAME} with environment variable values.
// Unset variables are left as written.
func interpolateString(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if envValue := os.Getenv(varName); envValue != "" {
			return envValue
		}
		return match
	})
}

// durationHook decodes durations from Go duration strings ("30s") or from
// plain numbers, which count seconds. Environment variables arrive as
// strings, so "30" is accepted too.
func durationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			s := strings.TrimSpace(v)
			if secs, err := strconv.ParseFloat(s, 64); err == nil {
				return seconds(secs), nil
			}
			return time.ParseDuration(s)
		case int:
			return seconds(float64(v)), nil
		case int64:
			return seconds(float64(v)), nil
		case float64:
			return seconds(v), nil
		default:
			return data, nil
		}
	}
}

func seconds(n float64) time.Duration {
	return time.Duration(n * float64(time.Second))
}
