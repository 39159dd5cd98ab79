package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/J-Derek/onyxandroid/internal/shared"
	mocks "github.com/J-Derek/onyxandroid/internal/testing"
)

func TestRunnerWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(RunnerOpts{Output: &buf})

	if err := r.writeJSON(map[string]string{"key": "value"}, false); err != nil {
		t.Fatalf("writeJSON() error = %v", err)
	}
	if got := buf.String(); got != "{\"key\":\"value\"}\n" {
		t.Errorf("writeJSON() output = %q", got)
	}

	buf.Reset()
	if err := r.writeJSON(map[string]string{"key": "value"}, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Errorf("pretty output should be indented: %q", buf.String())
	}
}

func TestRunnerWriteJSONFailure(t *testing.T) {
	r := NewRunner(RunnerOpts{Output: &mocks.FWriter{}})

	if err := r.writeJSON(map[string]string{"key": "value"}, false); err == nil {
		t.Error("writeJSON() to failing writer should error")
	}
}

func TestRunnerWritePlain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(RunnerOpts{Output: &buf})

	if err := r.writePlain("count=%d", 3); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "count=3" {
		t.Errorf("writePlain() output = %q", buf.String())
	}

	buf.Reset()
	if err := r.writePlainln("done"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "\ndone\n" {
		t.Errorf("writePlainln() output = %q", buf.String())
	}
}

func TestRunnerServerURL(t *testing.T) {
	tc := []struct {
		name     string
		host     string
		port     int
		override string
		want     string
	}{
		{"explicit override wins", "127.0.0.1", 8090, "http://example.com:9999", "http://example.com:9999"},
		{"config host and port", "192.168.1.5", 8100, "", "http://192.168.1.5:8100"},
		{"wildcard bind maps to localhost", "0.0.0.0", 8090, "", "http://localhost:8090"},
		{"defaults", "", 0, "", "http://localhost:8090"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			cfg := shared.DefaultConfig()
			cfg.Server.Host = tt.host
			cfg.Server.Port = tt.port
			r := NewRunner(RunnerOpts{Config: cfg})

			if got := r.serverURL(tt.override); got != tt.want {
				t.Errorf("serverURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunnerDefaultConfig(t *testing.T) {
	r := NewRunner(RunnerOpts{})
	if r.config == nil {
		t.Fatal("NewRunner() should fall back to the default config")
	}
	if r.config.Server.Port != 8090 {
		t.Errorf("default port = %d", r.config.Server.Port)
	}
}
