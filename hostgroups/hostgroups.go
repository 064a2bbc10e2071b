// Package hostgroups parses the optional YAML host-group file and expands
// group names given on the CLI into flat host lists with per-host
// overrides.
package hostgroups

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Group is one named entry in the groups file.
type Group struct {
	Hosts    []string `yaml:"hosts"`
	Manifest string   `yaml:"manifest"`
	Parallel *bool    `yaml:"parallel"`
}

// File is the parsed groups document: a map of group name to Group.
type File map[string]Group

// Load reads and parses a groups YAML file.
func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hostgroups: reading %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("hostgroups: parsing %s: %w", path, err)
	}
	return f, nil
}

// Target is one resolved host to configure, with its manifest and
// parallelism overrides already applied.
type Target struct {
	Host     string
	Manifest string // empty means "use the global default"
	Parallel bool
}

// Expand resolves args (a mix of group names and literal hostnames) against
// f into a flat target list. An arg not present in f is treated as a
// literal hostname, using defaultManifest and defaultParallel.
func Expand(f File, args []string, defaultManifest string, defaultParallel bool) []Target {
	var targets []Target

	for _, arg := range args {
		group, ok := f[arg]
		if !ok {
			targets = append(targets, Target{Host: arg, Manifest: defaultManifest, Parallel: defaultParallel})
			continue
		}

		manifest := defaultManifest
		if group.Manifest != "" {
			manifest = group.Manifest
		}
		parallel := defaultParallel
		if group.Parallel != nil {
			parallel = *group.Parallel
		}

		for _, host := range group.Hosts {
			targets = append(targets, Target{Host: host, Manifest: manifest, Parallel: parallel})
		}
	}

	return targets
}
