package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is shared by the host, the viewer and the replay tool; each binary
// reads the sections it needs.
type Config struct {
	Log    LogConfig    `yaml:"log" toml:"log"`
	Viewer ViewerConfig `yaml:"viewer" toml:"viewer"`
	Host   HostConfig   `yaml:"host" toml:"host"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

type ViewportConfig struct {
	Width       float32 `yaml:"width" toml:"width"`
	Height      float32 `yaml:"height" toml:"height"`
	ScaleFactor float32 `yaml:"scale_factor" toml:"scale_factor"`
}

type AtlasConfig struct {
	TextureWidth  int32 `yaml:"texture_width" toml:"texture_width"`
	TextureHeight int32 `yaml:"texture_height" toml:"texture_height"`
}

type InputConfig struct {
	MultiClickMs     int     `yaml:"multi_click_ms" toml:"multi_click_ms"`
	MultiClickRadius float32 `yaml:"multi_click_radius" toml:"multi_click_radius"`
	LineHeight       float32 `yaml:"line_height" toml:"line_height"`
	PageHeight       float32 `yaml:"page_height" toml:"page_height"`
}

// UploadConfig mirrors closed recording files to an S3-compatible bucket.
// Credentials come from SCENECAST_S3_ACCESS_KEY_ID and
// SCENECAST_S3_SECRET_ACCESS_KEY.
type UploadConfig struct {
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	Bucket   string `yaml:"bucket" toml:"bucket"`
	Region   string `yaml:"region" toml:"region"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
	Workers  int    `yaml:"workers" toml:"workers"`
	Queue    int    `yaml:"queue" toml:"queue"`
}

// Enabled reports whether an endpoint and bucket are configured.
func (u UploadConfig) Enabled() bool {
	return strings.TrimSpace(u.Endpoint) != "" && strings.TrimSpace(u.Bucket) != ""
}

type ViewerConfig struct {
	URL              string         `yaml:"url" toml:"url"`
	ReconnectDelayMs int            `yaml:"reconnect_delay_ms" toml:"reconnect_delay_ms"`
	MaxMessageBytes  int            `yaml:"max_message_bytes" toml:"max_message_bytes"`
	InputQueue       int            `yaml:"input_queue" toml:"input_queue"`
	Viewport         ViewportConfig `yaml:"viewport" toml:"viewport"`
	Atlas            AtlasConfig    `yaml:"atlas" toml:"atlas"`
	Input            InputConfig    `yaml:"input" toml:"input"`
	RecordDir        string         `yaml:"record_dir" toml:"record_dir"`
	Upload           UploadConfig   `yaml:"upload" toml:"upload"`
	IndexPath        string         `yaml:"index_path" toml:"index_path"`
	MetricsAddr      string         `yaml:"metrics_addr" toml:"metrics_addr"`
}

type HostConfig struct {
	Addr            string         `yaml:"addr" toml:"addr"`
	Path            string         `yaml:"path" toml:"path"`
	FPS             int            `yaml:"fps" toml:"fps"`
	MaxMessageBytes int            `yaml:"max_message_bytes" toml:"max_message_bytes"`
	ClientQueue     int            `yaml:"client_queue" toml:"client_queue"`
	MaxClients      int            `yaml:"max_clients" toml:"max_clients"`
	InputRate       float64        `yaml:"input_rate" toml:"input_rate"`
	InputBurst      int            `yaml:"input_burst" toml:"input_burst"`
	Viewport        ViewportConfig `yaml:"viewport" toml:"viewport"`
	Fixture         string         `yaml:"fixture" toml:"fixture"`
}

// Load reads path as YAML, or TOML when the extension is .toml. An empty
// path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(b), &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", name, err)
		}
	} else if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}

func Defaults() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Viewer: ViewerConfig{
			URL:              "ws://127.0.0.1:8090/scene",
			ReconnectDelayMs: 2000,
			MaxMessageBytes:  16 << 20,
			InputQueue:       256,
			Viewport:         ViewportConfig{Width: 1280, Height: 800, ScaleFactor: 1},
			Atlas:            AtlasConfig{TextureWidth: 1024, TextureHeight: 1024},
			Input:            InputConfig{MultiClickMs: 500, MultiClickRadius: 4, LineHeight: 20, PageHeight: 800},
			Upload:           UploadConfig{Workers: 2, Queue: 64},
		},
		Host: HostConfig{
			Addr:            ":8090",
			Path:            "/scene",
			FPS:             30,
			MaxMessageBytes: 16 << 20,
			ClientQueue:     64,
			MaxClients:      32,
			InputRate:       240,
			InputBurst:      64,
			Viewport:        ViewportConfig{Width: 1280, Height: 800, ScaleFactor: 1},
		},
	}
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	def := Defaults()
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = def.Log.Level
	}
	if strings.TrimSpace(c.Log.Format) == "" {
		c.Log.Format = def.Log.Format
	}

	v := &c.Viewer
	if v.ReconnectDelayMs <= 0 {
		v.ReconnectDelayMs = def.Viewer.ReconnectDelayMs
	}
	if v.MaxMessageBytes <= 0 {
		v.MaxMessageBytes = def.Viewer.MaxMessageBytes
	}
	if v.InputQueue <= 0 {
		v.InputQueue = def.Viewer.InputQueue
	}
	normalizeViewport(&v.Viewport, def.Viewer.Viewport)
	if v.Atlas.TextureWidth <= 0 {
		v.Atlas.TextureWidth = def.Viewer.Atlas.TextureWidth
	}
	if v.Atlas.TextureHeight <= 0 {
		v.Atlas.TextureHeight = def.Viewer.Atlas.TextureHeight
	}
	if v.Input.MultiClickMs <= 0 {
		v.Input.MultiClickMs = def.Viewer.Input.MultiClickMs
	}
	if v.Input.MultiClickRadius <= 0 {
		v.Input.MultiClickRadius = def.Viewer.Input.MultiClickRadius
	}
	if v.Input.LineHeight <= 0 {
		v.Input.LineHeight = def.Viewer.Input.LineHeight
	}
	if v.Input.PageHeight <= 0 {
		v.Input.PageHeight = def.Viewer.Input.PageHeight
	}
	if v.Upload.Workers <= 0 {
		v.Upload.Workers = def.Viewer.Upload.Workers
	}
	if v.Upload.Queue <= 0 {
		v.Upload.Queue = def.Viewer.Upload.Queue
	}

	h := &c.Host
	if strings.TrimSpace(h.Addr) == "" {
		h.Addr = def.Host.Addr
	}
	if !strings.HasPrefix(h.Path, "/") {
		h.Path = "/" + h.Path
	}
	if h.Path == "/" {
		h.Path = def.Host.Path
	}
	if h.FPS <= 0 {
		h.FPS = def.Host.FPS
	}
	if h.MaxMessageBytes <= 0 {
		h.MaxMessageBytes = def.Host.MaxMessageBytes
	}
	if h.ClientQueue <= 0 {
		h.ClientQueue = def.Host.ClientQueue
	}
	if h.MaxClients <= 0 {
		h.MaxClients = def.Host.MaxClients
	}
	if h.InputRate <= 0 {
		h.InputRate = def.Host.InputRate
	}
	if h.InputBurst <= 0 {
		h.InputBurst = def.Host.InputBurst
	}
	normalizeViewport(&h.Viewport, def.Host.Viewport)
}

func normalizeViewport(v *ViewportConfig, def ViewportConfig) {
	if v.Width <= 0 {
		v.Width = def.Width
	}
	if v.Height <= 0 {
		v.Height = def.Height
	}
	if v.ScaleFactor <= 0 {
		v.ScaleFactor = def.ScaleFactor
	}
}

func (c Config) Validate() error {
	c.Normalize()
	u, err := url.Parse(c.Viewer.URL)
	if err != nil {
		return fmt.Errorf("viewer.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("viewer.url scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.Host.FPS > 240 {
		return fmt.Errorf("host.fps must be <= 240")
	}
	if c.Viewer.Atlas.TextureWidth > 16384 || c.Viewer.Atlas.TextureHeight > 16384 {
		return fmt.Errorf("viewer.atlas texture dimensions must be <= 16384")
	}
	if c.Viewer.Upload.Enabled() && strings.TrimSpace(c.Viewer.RecordDir) == "" {
		return fmt.Errorf("viewer.upload requires viewer.record_dir")
	}
	if c.Host.MaxMessageBytes < 1024 || c.Viewer.MaxMessageBytes < 1024 {
		return fmt.Errorf("max_message_bytes must be >= 1024")
	}
	return nil
}

func (v ViewerConfig) ReconnectDelay() time.Duration {
	return time.Duration(v.ReconnectDelayMs) * time.Millisecond
}

func (i InputConfig) MultiClickInterval() time.Duration {
	return time.Duration(i.MultiClickMs) * time.Millisecond
}

// FrameInterval is the publish period implied by FPS.
func (h HostConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(h.FPS)
}
