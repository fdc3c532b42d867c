package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultFleetHost = "127.0.0.1"
	machineConfName  = "service_machine.conf"
	ojConfigName     = "oj_server.yaml"
)

// render writes every fleet file and returns their paths in write order.
func render(profile *Profile, profileDir string) ([]string, error) {
	if profile.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	outDir := resolvePath(profileDir, profile.OutputDir)
	host := profile.Fleet.Host
	if host == "" {
		host = defaultFleetHost
	}

	var written []string
	addrs := make([]string, 0, len(profile.Fleet.Ports))
	for _, port := range profile.Fleet.Ports {
		if port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid port %d", port)
		}
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		addrs = append(addrs, addr)

		cfg, err := buildConfig(profile.CompileServer, profileDir)
		if err != nil {
			return nil, fmt.Errorf("compile server %s: %w", addr, err)
		}
		// Each instance listens on its own port with its own workspace.
		cfg, err = mergeMap(cfg, map[string]interface{}{
			"server":  map[string]interface{}{"addr": net.JoinHostPort("0.0.0.0", strconv.Itoa(port))},
			"sandbox": map[string]interface{}{"tempDir": filepath.Join(outDir, "temp", strconv.Itoa(port))},
		})
		if err != nil {
			return nil, err
		}
		path := filepath.Join(outDir, fmt.Sprintf("compile_server_%d.yaml", port))
		if err := writeYAML(path, cfg); err != nil {
			return nil, err
		}
		written = append(written, path)
	}

	machinePath := filepath.Join(outDir, machineConfName)
	if err := writeMachineConf(machinePath, addrs); err != nil {
		return nil, err
	}
	written = append(written, machinePath)

	if profile.OJServer.Base != "" {
		cfg, err := buildConfig(profile.OJServer, profileDir)
		if err != nil {
			return nil, fmt.Errorf("oj server: %w", err)
		}
		cfg, err = mergeMap(cfg, map[string]interface{}{
			"judge": map[string]interface{}{"machineConf": machinePath},
		})
		if err != nil {
			return nil, err
		}
		path := filepath.Join(outDir, ojConfigName)
		if err := writeYAML(path, cfg); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	return written, nil
}

func buildConfig(service ServiceProfile, profileDir string) (interface{}, error) {
	if service.Base == "" {
		return nil, errors.New("missing base config")
	}
	base, err := loadYAML(resolvePath(profileDir, service.Base))
	if err != nil {
		return nil, err
	}
	base = normalizeValue(base)
	if base == nil {
		base = map[string]interface{}{}
	}
	if len(service.Overrides) == 0 {
		return base, nil
	}
	return mergeMap(base, normalizeValue(service.Overrides))
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func writeMachineConf(path string, addrs []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir failed: %w", err)
	}
	body := "# generated by fleetgen\n" + strings.Join(addrs, "\n") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write machine conf failed: %w", err)
	}
	return nil
}

func loadYAML(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read yaml failed: %w", err)
	}
	var value interface{}
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("parse yaml failed: %w", err)
	}
	return value, nil
}

func writeYAML(path string, value interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir failed: %w", err)
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal yaml failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write yaml failed: %w", err)
	}
	return nil
}

// normalizeValue converts yaml's interface-keyed maps into string-keyed ones.
func normalizeValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[k] = normalizeValue(v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[fmt.Sprintf("%v", k)] = normalizeValue(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(typed))
		for _, item := range typed {
			out = append(out, normalizeValue(item))
		}
		return out
	default:
		return value
	}
}

// mergeMap deep-merges override into base; scalars and lists replace.
func mergeMap(base, override interface{}) (interface{}, error) {
	baseMap, ok := base.(map[string]interface{})
	if !ok {
		return nil, errors.New("base config is not a map")
	}
	overrideMap, ok := override.(map[string]interface{})
	if !ok {
		return nil, errors.New("override config is not a map")
	}
	merged := make(map[string]interface{}, len(baseMap))
	for k, v := range baseMap {
		merged[k] = v
	}
	for key, overrideValue := range overrideMap {
		baseChild, baseIsMap := merged[key].(map[string]interface{})
		overrideChild, overrideIsMap := overrideValue.(map[string]interface{})
		if baseIsMap && overrideIsMap {
			combined, err := mergeMap(baseChild, overrideChild)
			if err != nil {
				return nil, err
			}
			merged[key] = combined
			continue
		}
		merged[key] = overrideValue
	}
	return merged, nil
}
