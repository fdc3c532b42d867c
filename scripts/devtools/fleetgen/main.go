// Command fleetgen renders a local judge fleet from one profile: a
// compile-server config per port, the oj-server machine list and an
// oj-server config pointing at it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile describes the fleet to render.
type Profile struct {
	OutputDir     string         `yaml:"outputDir"`
	CompileServer ServiceProfile `yaml:"compileServer"`
	OJServer      ServiceProfile `yaml:"ojServer"`
	Fleet         FleetProfile   `yaml:"fleet"`
}

// ServiceProfile is a base config plus overrides merged on top of it.
type ServiceProfile struct {
	Base      string                 `yaml:"base"`
	Overrides map[string]interface{} `yaml:"overrides"`
}

// FleetProfile lists the compile servers to run.
type FleetProfile struct {
	Host  string `yaml:"host"`
	Ports []int  `yaml:"ports"`
}

func main() {
	profilePath := flag.String("profile", "configs/fleet-profile.yaml", "Path to fleet profile")
	outputDir := flag.String("output-dir", "", "Override output directory")
	flag.Parse()

	profilePathAbs, err := filepath.Abs(*profilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve profile path failed: %v\n", err)
		os.Exit(1)
	}
	profile, err := loadProfile(profilePathAbs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load profile failed: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		profile.OutputDir = *outputDir
	}

	written, err := render(profile, filepath.Dir(profilePathAbs))
	if err != nil {
		fmt.Fprintf(os.Stderr, "render fleet failed: %v\n", err)
		os.Exit(1)
	}
	for _, path := range written {
		fmt.Println(path)
	}
}

func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile failed: %w", err)
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile failed: %w", err)
	}
	if len(profile.Fleet.Ports) == 0 {
		return nil, errors.New("profile has no compile server ports")
	}
	return &profile, nil
}
