package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGraphCmd_DOT(t *testing.T) {
	isolateHome(t)

	out := mustExecute(t, "graph", "--population", "25", "--seed", "4")
	if !strings.HasPrefix(out, "graph epigraph {") {
		t.Fatalf("not a DOT graph:\n%s", out)
	}
	if !strings.Contains(out, "persons: 25, ") || !strings.Contains(out, "- day: 0") {
		t.Errorf("day-0 title missing:\n%s", out)
	}
}

func TestGraphCmd_JSONAfterDays(t *testing.T) {
	isolateHome(t)

	var got struct {
		Day       int `json:"day"`
		NodeCount int `json:"node_count"`
	}
	decodeJSON(t, mustExecute(t, "graph", "--population", "30", "--seed", "8", "--days", "3", "--format", "json"), &got)

	if got.Day != 3 {
		t.Errorf("day = %d, want 3", got.Day)
	}
	if got.NodeCount == 0 || got.NodeCount > 30 {
		t.Errorf("node_count = %d, want 1..30", got.NodeCount)
	}
}

func TestGraphCmd_OutputFile(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "day2.txt")

	out := mustExecute(t, "graph", "--population", "20", "--seed", "1", "--days", "2", "--format", "text", "-o", path)
	if out != "" {
		t.Errorf("stdout = %q, want nothing when -o is set", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "- day: 2\n") {
		t.Errorf("file = %q", data)
	}
}

func TestGraphCmd_Errors(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name string
		args []string
	}{
		{"negative days", []string{"--days", "-1"}},
		{"unknown format", []string{"--format", "svg"}},
		{"invalid scenario", []string{"--isolation", "bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, append([]string{"graph", "--population", "10"}, tt.args...)...); err == nil {
				t.Error("expected error")
			}
		})
	}
}
