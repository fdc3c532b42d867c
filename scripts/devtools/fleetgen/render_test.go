package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readYAML(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var out map[string]interface{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return out
}

func TestRenderFleet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "compile.yaml"), "server:\n  addr: 0.0.0.0:8081\nsandbox:\n  helperPath: sandbox-init\n")
	writeFile(t, filepath.Join(dir, "oj.yaml"), "server:\n  addr: 0.0.0.0:8080\njudge:\n  timeoutFactor: 3\n")

	profile := &Profile{
		OutputDir:     "out",
		CompileServer: ServiceProfile{Base: "compile.yaml", Overrides: map[string]interface{}{"worker": map[string]interface{}{"maxConcurrent": 2}}},
		OJServer:      ServiceProfile{Base: "oj.yaml"},
		Fleet:         FleetProfile{Ports: []int{9001, 9002}},
	}
	written, err := render(profile, dir)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(written) != 4 {
		t.Fatalf("written = %v", written)
	}

	cs := readYAML(t, filepath.Join(dir, "out", "compile_server_9002.yaml"))
	server := cs["server"].(map[string]interface{})
	if server["addr"] != "0.0.0.0:9002" {
		t.Fatalf("addr = %v", server["addr"])
	}
	sandbox := cs["sandbox"].(map[string]interface{})
	if sandbox["helperPath"] != "sandbox-init" || !strings.HasSuffix(sandbox["tempDir"].(string), filepath.Join("temp", "9002")) {
		t.Fatalf("sandbox = %v", sandbox)
	}
	if cs["worker"].(map[string]interface{})["maxConcurrent"] != 2 {
		t.Fatalf("override lost: %v", cs["worker"])
	}

	machines, err := os.ReadFile(filepath.Join(dir, "out", machineConfName))
	if err != nil {
		t.Fatalf("read machine conf: %v", err)
	}
	if !strings.Contains(string(machines), "127.0.0.1:9001\n127.0.0.1:9002\n") {
		t.Fatalf("machine conf = %q", machines)
	}

	oj := readYAML(t, filepath.Join(dir, "out", ojConfigName))
	judge := oj["judge"].(map[string]interface{})
	if judge["machineConf"] != filepath.Join(dir, "out", machineConfName) || judge["timeoutFactor"] != 3 {
		t.Fatalf("judge = %v", judge)
	}
}

func TestRenderRejectsBadPort(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "compile.yaml"), "server: {}\n")
	profile := &Profile{
		OutputDir:     dir,
		CompileServer: ServiceProfile{Base: "compile.yaml"},
		Fleet:         FleetProfile{Ports: []int{70000}},
	}
	if _, err := render(profile, dir); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMergeMapDeep(t *testing.T) {
	base := map[string]interface{}{"a": map[string]interface{}{"x": 1, "y": 2}, "b": "keep"}
	merged, err := mergeMap(base, map[string]interface{}{"a": map[string]interface{}{"y": 3}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	m := merged.(map[string]interface{})
	a := m["a"].(map[string]interface{})
	if a["x"] != 1 || a["y"] != 3 || m["b"] != "keep" {
		t.Fatalf("merged = %v", m)
	}
}
