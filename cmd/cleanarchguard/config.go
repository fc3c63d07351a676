package main

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/roblaszczak/go-cleanarch/cleanarch"
	"gopkg.in/yaml.v3"
)

type config struct {
	Root              string   `yaml:"root"`
	IgnoreTests       bool     `yaml:"ignore_tests"`
	IgnorePackages    []string `yaml:"ignore_packages"`
	SharedModules     []string `yaml:"shared_modules"`
	AllowedViolations []string `yaml:"allow_violations"`
	Layers            struct {
		Domain         []string `yaml:"domain"`
		Application    []string `yaml:"application"`
		Interfaces     []string `yaml:"interfaces"`
		Infrastructure []string `yaml:"infrastructure"`
	} `yaml:"layers"`
}

// Directory names per layer, following modules/<name>/{domain,services,presentation,infrastructure}.
var (
	defaultDomainDirs         = []string{"domain"}
	defaultApplicationDirs    = []string{"services"}
	defaultInterfacesDirs     = []string{"presentation"}
	defaultInfrastructureDirs = []string{"infrastructure"}
)

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		cfg.Root = "modules"
	}
	return cfg, nil
}

func (c *config) resolveRoot() (string, error) {
	if strings.TrimSpace(c.Root) == "" {
		return "", errors.New("root must not be empty")
	}
	return filepath.Abs(c.Root)
}

func (c *config) layerAliases() map[string]cleanarch.Layer {
	aliases := map[string]cleanarch.Layer{}
	add := func(custom, defaults []string, layer cleanarch.Layer) {
		dirs := defaults
		if len(custom) > 0 {
			dirs = custom
		}
		for _, dir := range dirs {
			if dir = strings.TrimSpace(dir); dir != "" {
				aliases[dir] = layer
			}
		}
	}
	add(c.Layers.Domain, defaultDomainDirs, cleanarch.LayerDomain)
	add(c.Layers.Application, defaultApplicationDirs, cleanarch.LayerApplication)
	add(c.Layers.Interfaces, defaultInterfacesDirs, cleanarch.LayerInterfaces)
	add(c.Layers.Infrastructure, defaultInfrastructureDirs, cleanarch.LayerInfrastructure)
	return aliases
}

var crossModulePattern = regexp.MustCompile(`between ([\w-]+) and ([\w-]+) modules`)

// filter drops violations that involve a shared module or match an allowed
// pattern.
func (c *config) filter(errs []cleanarch.ValidationError) []cleanarch.ValidationError {
	shared := map[string]struct{}{}
	for _, m := range c.SharedModules {
		if m = strings.TrimSpace(m); m != "" {
			shared[m] = struct{}{}
		}
	}

	out := make([]cleanarch.ValidationError, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if involvesShared(msg, shared) || c.allowed(msg) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func involvesShared(msg string, shared map[string]struct{}) bool {
	m := crossModulePattern.FindStringSubmatch(msg)
	if len(m) != 3 {
		return false
	}
	_, first := shared[m[1]]
	_, second := shared[m[2]]
	return first || second
}

func (c *config) allowed(msg string) bool {
	for _, pattern := range c.AllowedViolations {
		if pattern != "" && strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
