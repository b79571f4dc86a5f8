package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/audiolibrelab/singalong/internal/audio"
)

// EnvPrefix prefixes environment overrides, e.g. SINGALONG_SERVER_PORT
const EnvPrefix = "SINGALONG"

type ServerConfig struct {
	Port               string   `mapstructure:"port" yaml:"port"`
	DataDir            string   `mapstructure:"data_dir" yaml:"data_dir"`
	AllowOrigins       []string `mapstructure:"allow_origins" yaml:"allow_origins"`
	ModulePath         string   `mapstructure:"module_path" yaml:"module_path"`
	DisablePitchModule bool     `mapstructure:"disable_pitch_module" yaml:"disable_pitch_module"`
	Seed               bool     `mapstructure:"seed" yaml:"seed"`
}

type APIConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

type AudioConfig struct {
	Backend         string `mapstructure:"backend" yaml:"backend"` // "oto", "headless", "auto"
	SampleRate      int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	BufferMs        int    `mapstructure:"buffer_ms" yaml:"buffer_ms"`
	ResampleQuality int    `mapstructure:"resample_quality" yaml:"resample_quality"`
}

type PlayerConfig struct {
	FrameIntervalMs int    `mapstructure:"frame_interval_ms" yaml:"frame_interval_ms"`
	DefaultMix      *int   `mapstructure:"default_mix,omitempty" yaml:"default_mix,omitempty"` // nil means unset, 0 is a valid mix
	PitchModuleURL  string `mapstructure:"pitch_module_url" yaml:"pitch_module_url"`
	DisablePitch    bool   `mapstructure:"disable_pitch" yaml:"disable_pitch"`
	LogFile         string `mapstructure:"log_file" yaml:"log_file"`
}

// RootConfig is the layout of the config file
type RootConfig struct {
	ActiveConfig string                    `mapstructure:"active_config" yaml:"active_config"`
	Server       *ServerConfig             `mapstructure:"server,omitempty" yaml:"server,omitempty"`
	API          *APIConfig                `mapstructure:"api,omitempty" yaml:"api,omitempty"`
	Audio        *AudioConfig              `mapstructure:"audio,omitempty" yaml:"audio,omitempty"`
	Player       *PlayerConfig             `mapstructure:"player,omitempty" yaml:"player,omitempty"`
	Configs      map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
}

type ConfigProfile struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	API    APIConfig    `mapstructure:"api" yaml:"api"`
	Audio  AudioConfig  `mapstructure:"audio" yaml:"audio"`
	Player PlayerConfig `mapstructure:"player" yaml:"player"`
}

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	API    APIConfig    `mapstructure:"api" yaml:"api"`
	Audio  AudioConfig  `mapstructure:"audio" yaml:"audio"`
	Player PlayerConfig `mapstructure:"player" yaml:"player"`

	// Profile is the name of the resolved profile, empty for built-in defaults
	Profile string `mapstructure:"-" yaml:"-"`

	// Source of each setting for the config show command
	Inheritance map[string]string `mapstructure:"-" yaml:"-"`
}

const (
	SourceDefault  = "default"
	SourceFile     = "file"
	SourceInherit  = "inherited"
	SourceProfile  = "profile-specific"
	SourceEnv      = "environment"
	defaultProfile = "default"
)

var defaultMix = 50

var defaultConfig = Config{
	Server: ServerConfig{
		Port:         "8000",
		DataDir:      filepath.Join(os.Getenv("HOME"), "Music", "Singalong"),
		AllowOrigins: []string{"*"},
		ModulePath:   "/worklets/pitch-processor.json",
	},
	API: APIConfig{
		BaseURL:        "http://localhost:8000",
		TimeoutSeconds: 30,
	},
	Audio: AudioConfig{
		Backend:         "auto",
		SampleRate:      audio.DefaultSampleRate,
		BufferMs:        int(audio.DefaultBufferSize / time.Millisecond),
		ResampleQuality: audio.DefaultResampleQuality,
	},
	Player: PlayerConfig{
		FrameIntervalMs: 16,
		DefaultMix:      &defaultMix,
		PitchModuleURL:  "/worklets/pitch-processor.json",
	},
}

// Default returns the built-in configuration
func Default() *Config {
	c := copyConfig(&defaultConfig)
	c.Inheritance = make(map[string]string)
	for _, k := range settingKeys {
		c.Inheritance[k] = SourceDefault
	}
	c.Server.DataDir = expandPath(c.Server.DataDir)
	return c
}

// DefaultPath is where the config file is looked up when --config is not given
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/singalong.yaml")
}

// LoadWithProfile reads configFile and resolves a profile: the selected
// profile merged over the default profile, the file's top level sections and
// the built-in defaults, then environment overrides.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = defaultProfile
	}

	result := Default()

	// Top level sections sit between the built-in defaults and the profiles
	base := &Config{}
	if rootConfig.Server != nil {
		base.Server = *rootConfig.Server
	}
	if rootConfig.API != nil {
		base.API = *rootConfig.API
	}
	if rootConfig.Audio != nil {
		base.Audio = *rootConfig.Audio
	}
	if rootConfig.Player != nil {
		base.Player = *rootConfig.Player
	}
	result = mergeConfigs(result, base, SourceFile)

	selected, exists := rootConfig.Configs[configName]
	if !exists && (profile != "" || configName != defaultProfile) {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	if configName != defaultProfile {
		if def, ok := rootConfig.Configs[defaultProfile]; ok {
			result = mergeConfigs(result, profileToConfig(def), SourceInherit)
		}
	}
	if selected != nil {
		result = mergeConfigs(result, profileToConfig(selected), SourceProfile)
		result.Profile = configName
	}

	applyEnv(result)

	result.Server.DataDir = expandPath(result.Server.DataDir)
	result.Player.LogFile = expandPath(result.Player.LogFile)

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return result, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_config", newActiveConfig)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}
	return nil
}

// ValidateConfigurationFormat reads the file and checks every profile it names
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for name, p := range rootConfig.Configs {
		if p == nil {
			return nil, fmt.Errorf("invalid config '%s': profile is empty", name)
		}
		if err := validatePartial(profileToConfig(p)); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", name, err)
		}
	}
	return &rootConfig, nil
}

func profileToConfig(p *ConfigProfile) *Config {
	return &Config{Server: p.Server, API: p.API, Audio: p.Audio, Player: p.Player}
}

// mergeConfigs overlays every set field of profile onto base and records
// source as the origin of each overridden setting
func mergeConfigs(base, profile *Config, source string) *Config {
	result := copyConfig(base)
	if result.Inheritance == nil {
		result.Inheritance = make(map[string]string)
	}
	if profile == nil {
		return result
	}
	set := func(key string) { result.Inheritance[key] = source }

	if profile.Server.Port != "" {
		result.Server.Port = profile.Server.Port
		set("server.port")
	}
	if profile.Server.DataDir != "" {
		result.Server.DataDir = profile.Server.DataDir
		set("server.data_dir")
	}
	if len(profile.Server.AllowOrigins) > 0 {
		result.Server.AllowOrigins = append([]string(nil), profile.Server.AllowOrigins...)
		set("server.allow_origins")
	}
	if profile.Server.ModulePath != "" {
		result.Server.ModulePath = profile.Server.ModulePath
		set("server.module_path")
	}
	if profile.Server.DisablePitchModule {
		result.Server.DisablePitchModule = true
		set("server.disable_pitch_module")
	}
	if profile.Server.Seed {
		result.Server.Seed = true
		set("server.seed")
	}

	if profile.API.BaseURL != "" {
		result.API.BaseURL = profile.API.BaseURL
		set("api.base_url")
	}
	if profile.API.TimeoutSeconds != 0 {
		result.API.TimeoutSeconds = profile.API.TimeoutSeconds
		set("api.timeout_seconds")
	}

	if profile.Audio.Backend != "" {
		result.Audio.Backend = profile.Audio.Backend
		set("audio.backend")
	}
	if profile.Audio.SampleRate != 0 {
		result.Audio.SampleRate = profile.Audio.SampleRate
		set("audio.sample_rate")
	}
	if profile.Audio.BufferMs != 0 {
		result.Audio.BufferMs = profile.Audio.BufferMs
		set("audio.buffer_ms")
	}
	if profile.Audio.ResampleQuality != 0 {
		result.Audio.ResampleQuality = profile.Audio.ResampleQuality
		set("audio.resample_quality")
	}

	if profile.Player.FrameIntervalMs != 0 {
		result.Player.FrameIntervalMs = profile.Player.FrameIntervalMs
		set("player.frame_interval_ms")
	}
	if profile.Player.DefaultMix != nil {
		mix := *profile.Player.DefaultMix
		result.Player.DefaultMix = &mix
		set("player.default_mix")
	}
	if profile.Player.PitchModuleURL != "" {
		result.Player.PitchModuleURL = profile.Player.PitchModuleURL
		set("player.pitch_module_url")
	}
	if profile.Player.DisablePitch {
		result.Player.DisablePitch = true
		set("player.disable_pitch")
	}
	if profile.Player.LogFile != "" {
		result.Player.LogFile = profile.Player.LogFile
		set("player.log_file")
	}
	return result
}

func copyConfig(c *Config) *Config {
	out := *c
	out.Server.AllowOrigins = append([]string(nil), c.Server.AllowOrigins...)
	if c.Player.DefaultMix != nil {
		mix := *c.Player.DefaultMix
		out.Player.DefaultMix = &mix
	}
	out.Inheritance = make(map[string]string, len(c.Inheritance))
	for k, v := range c.Inheritance {
		out.Inheritance[k] = v
	}
	return &out
}

// settingKeys lists every overridable setting in display order
var settingKeys = []string{
	"server.port", "server.data_dir", "server.allow_origins", "server.module_path",
	"server.disable_pitch_module", "server.seed",
	"api.base_url", "api.timeout_seconds",
	"audio.backend", "audio.sample_rate", "audio.buffer_ms", "audio.resample_quality",
	"player.frame_interval_ms", "player.default_mix", "player.pitch_module_url",
	"player.disable_pitch", "player.log_file",
}

// SettingKeys returns the dotted names of all settings
func SettingKeys() []string {
	return append([]string(nil), settingKeys...)
}

// applyEnv reads SINGALONG_<SECTION>_<KEY> overrides
func applyEnv(c *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	env := func(key string) (string, bool) {
		if !v.IsSet(key) {
			return "", false
		}
		c.Inheritance[key] = SourceEnv
		return v.GetString(key), true
	}
	envInt := func(key string, dst *int) {
		if s, ok := env(key); ok {
			if n, err := strconv.Atoi(s); err == nil {
				*dst = n
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if s, ok := env(key); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				*dst = b
			}
		}
	}

	if s, ok := env("server.port"); ok {
		c.Server.Port = s
	}
	if s, ok := env("server.data_dir"); ok {
		c.Server.DataDir = s
	}
	if s, ok := env("server.allow_origins"); ok {
		c.Server.AllowOrigins = strings.Split(s, ",")
	}
	if s, ok := env("server.module_path"); ok {
		c.Server.ModulePath = s
	}
	envBool("server.disable_pitch_module", &c.Server.DisablePitchModule)
	envBool("server.seed", &c.Server.Seed)
	if s, ok := env("api.base_url"); ok {
		c.API.BaseURL = s
	}
	envInt("api.timeout_seconds", &c.API.TimeoutSeconds)
	if s, ok := env("audio.backend"); ok {
		c.Audio.Backend = s
	}
	envInt("audio.sample_rate", &c.Audio.SampleRate)
	envInt("audio.buffer_ms", &c.Audio.BufferMs)
	envInt("audio.resample_quality", &c.Audio.ResampleQuality)
	envInt("player.frame_interval_ms", &c.Player.FrameIntervalMs)
	if s, ok := env("player.default_mix"); ok {
		if n, err := strconv.Atoi(s); err == nil {
			c.Player.DefaultMix = &n
		}
	}
	if s, ok := env("player.pitch_module_url"); ok {
		c.Player.PitchModuleURL = s
	}
	envBool("player.disable_pitch", &c.Player.DisablePitch)
	if s, ok := env("player.log_file"); ok {
		c.Player.LogFile = s
	}
}

// Validate checks a fully resolved configuration
func (c *Config) Validate() error {
	if err := validatePartial(c); err != nil {
		return err
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.DataDir == "" {
		return fmt.Errorf("server.data_dir is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Player.DefaultMix == nil {
		return fmt.Errorf("player.default_mix is required")
	}
	return nil
}

// validatePartial checks only the fields that are set, so it applies to
// profiles as well as resolved configs
func validatePartial(c *Config) error {
	if c.Server.Port != "" {
		port, err := strconv.Atoi(c.Server.Port)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("server.port must be a number between 1 and 65535, got: %s", c.Server.Port)
		}
	}
	if c.Server.ModulePath != "" && !strings.HasPrefix(c.Server.ModulePath, "/") {
		return fmt.Errorf("server.module_path must start with '/', got: %s", c.Server.ModulePath)
	}
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("api.base_url must be an absolute http(s) URL, got: %s", c.API.BaseURL)
		}
	}
	if c.API.TimeoutSeconds < 0 {
		return fmt.Errorf("api.timeout_seconds must be >= 0, got: %d", c.API.TimeoutSeconds)
	}
	if c.Audio.Backend != "" {
		if _, err := audio.ParseBackend(c.Audio.Backend); err != nil {
			return fmt.Errorf("audio.backend: %w", err)
		}
	}
	if c.Audio.SampleRate != 0 && (c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000) {
		return fmt.Errorf("audio.sample_rate must be between 8000 and 192000, got: %d", c.Audio.SampleRate)
	}
	if c.Audio.BufferMs < 0 || c.Audio.BufferMs > 1000 {
		return fmt.Errorf("audio.buffer_ms must be between 1 and 1000, got: %d", c.Audio.BufferMs)
	}
	if c.Audio.ResampleQuality < 0 || c.Audio.ResampleQuality > 64 {
		return fmt.Errorf("audio.resample_quality must be between 1 and 64, got: %d", c.Audio.ResampleQuality)
	}
	if c.Player.FrameIntervalMs < 0 || c.Player.FrameIntervalMs > 1000 {
		return fmt.Errorf("player.frame_interval_ms must be between 1 and 1000, got: %d", c.Player.FrameIntervalMs)
	}
	if c.Player.DefaultMix != nil && (*c.Player.DefaultMix < 0 || *c.Player.DefaultMix > 100) {
		return fmt.Errorf("player.default_mix must be between 0 and 100, got: %d", *c.Player.DefaultMix)
	}
	return nil
}

// Timeout is the API request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// BufferSize is the audio device buffer duration
func (c *Config) BufferSize() time.Duration {
	return time.Duration(c.Audio.BufferMs) * time.Millisecond
}

// FrameInterval is the player clock tick
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Player.FrameIntervalMs) * time.Millisecond
}

// VocalMix is the starting vocal mix percentage
func (c *Config) VocalMix() int {
	if c.Player.DefaultMix == nil {
		return defaultMix
	}
	return *c.Player.DefaultMix
}

// PitchModuleURL is the module to load, empty when pitch shifting is off
func (c *Config) PitchModuleURL() string {
	if c.Player.DisablePitch {
		return ""
	}
	return c.Player.PitchModuleURL
}

// AudioOptions converts the audio section to graph options
func (c *Config) AudioOptions() (audio.Options, error) {
	backend, err := audio.ParseBackend(c.Audio.Backend)
	if err != nil {
		return audio.Options{}, err
	}
	return audio.Options{
		SampleRate:      c.Audio.SampleRate,
		Backend:         backend,
		BufferSize:      c.BufferSize(),
		ResampleQuality: c.Audio.ResampleQuality,
	}, nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
