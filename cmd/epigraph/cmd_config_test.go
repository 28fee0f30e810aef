package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/epigraph/internal/config"
)

func TestConfigCmd_SetGet(t *testing.T) {
	home := isolateHome(t)

	out := mustExecute(t, "config", "set", "population", "500")
	if out != "Set population = 500\n" {
		t.Errorf("set output = %q", out)
	}

	var got map[string]any
	decodeJSON(t, mustExecute(t, "config", "get", "population", "--json"), &got)
	if got["value"] != float64(500) {
		t.Errorf("get population = %v, want 500", got["value"])
	}

	cfg, err := config.LoadFromFile(filepath.Join(home, config.DirName, "config.yaml"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if cfg.Population != 500 {
		t.Errorf("saved population = %d, want 500", cfg.Population)
	}
}

func TestConfigCmd_SetDoesNotPersistEnv(t *testing.T) {
	home := isolateHome(t)
	t.Setenv("EPIGRAPH_POPULATION", "77")

	mustExecute(t, "config", "set", "isolation", "timely")

	cfg, err := config.LoadFromFile(filepath.Join(home, config.DirName, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Population != config.Default().Population {
		t.Errorf("environment override was persisted: population = %d", cfg.Population)
	}
	if cfg.Isolation != "timely" {
		t.Errorf("isolation = %q, want timely", cfg.Isolation)
	}
}

func TestConfigCmd_Errors(t *testing.T) {
	isolateHome(t)

	if _, err := execute(t, "config", "get", "llm.provider"); err == nil {
		t.Error("get unknown key: expected error")
	}
	if _, err := execute(t, "config", "set", "admission", "lottery"); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("set invalid value: error = %v, want config.ErrInvalid", err)
	}
	if _, err := execute(t, "config", "set", "nonexistent", "1"); err == nil {
		t.Error("set unknown key: expected error")
	}
}

func TestConfigCmd_List(t *testing.T) {
	isolateHome(t)

	out := mustExecute(t, "config", "list")
	for _, key := range config.Keys() {
		if !strings.Contains(out, key) {
			t.Errorf("list missing %s", key)
		}
	}
	if !strings.Contains(out, "EPIGRAPH_BED_RATE") {
		t.Error("list does not show environment variables")
	}

	var cfg config.Config
	if err := yaml.Unmarshal([]byte(mustExecute(t, "config", "list", "--yaml")), &cfg); err != nil {
		t.Fatalf("list --yaml is not YAML: %v", err)
	}
	if cfg != *config.Default() {
		t.Errorf("list --yaml = %+v, want defaults", cfg)
	}
}

func TestConfigCmd_Path(t *testing.T) {
	home := isolateHome(t)

	out := mustExecute(t, "config", "path")
	if want := filepath.Join(home, config.DirName, "config.yaml") + "\n"; out != want {
		t.Errorf("path = %q, want %q", out, want)
	}
}
