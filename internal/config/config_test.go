package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_RepoYAML(t *testing.T) {
	cfg, err := Load("../../configs/scenecast.yaml")
	if err != nil {
		t.Fatalf("load scenecast.yaml: %v", err)
	}
	if cfg.Viewer.ReconnectDelay() != 2*time.Second {
		t.Fatalf("reconnect delay=%v", cfg.Viewer.ReconnectDelay())
	}
	if cfg.Host.Path != "/scene" || cfg.Host.FPS != 30 {
		t.Fatalf("host=%+v", cfg.Host)
	}
	if cfg.Viewer.Atlas.TextureWidth != 1024 {
		t.Fatalf("atlas=%+v", cfg.Viewer.Atlas)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Viewer.Input.MultiClickInterval() != 500*time.Millisecond {
		t.Fatalf("multi click=%v", cfg.Viewer.Input.MultiClickInterval())
	}
	if cfg.Host.FrameInterval() != time.Second/30 {
		t.Fatalf("frame interval=%v", cfg.Host.FrameInterval())
	}
}

func TestLoad_TOMLPartialOverrides(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scenecast.toml")
	body := `
[log]
level = "debug"

[viewer]
url = "wss://example.test/scene"
reconnect_delay_ms = 750

[host]
fps = 60
path = "stream"
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Fatalf("log=%+v", cfg.Log)
	}
	if cfg.Viewer.URL != "wss://example.test/scene" || cfg.Viewer.ReconnectDelay() != 750*time.Millisecond {
		t.Fatalf("viewer=%+v", cfg.Viewer)
	}
	if cfg.Host.FPS != 60 || cfg.Host.Path != "/stream" || cfg.Host.ClientQueue != 64 {
		t.Fatalf("host=%+v", cfg.Host)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"bad_scheme.yaml": "viewer:\n  url: http://127.0.0.1/scene\n",
		"fast.yaml":       "host:\n  fps: 1000\n",
		"atlas.yaml":      "viewer:\n  atlas:\n    texture_width: 99999\n",
		"broken.yaml":     "viewer: [\n",
	}
	dir := t.TempDir()
	for name, body := range cases {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := Load(p)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !strings.HasPrefix(err.Error(), name+":") {
			t.Fatalf("%s: error not attributed to file: %v", name, err)
		}
	}
}

func TestValidate_UploadNeedsRecordDir(t *testing.T) {
	cfg := Defaults()
	cfg.Viewer.Upload.Endpoint = "https://s3.example.test"
	cfg.Viewer.Upload.Bucket = "frames"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "record_dir") {
		t.Fatalf("expected record_dir error, got %v", err)
	}
	cfg.Viewer.RecordDir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Viewer.Upload.Workers != 2 || cfg.Viewer.Upload.Queue != 64 {
		t.Fatalf("upload defaults=%+v", cfg.Viewer.Upload)
	}
}
