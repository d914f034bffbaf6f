package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/klog/v2"

	"github.com/kubestellar/deploy-launcher/pkg/revision"
)

// ConfigFileName is looked up next to the launcher executable
const ConfigFileName = "deploy-launcher.yaml"

// Environment variables that override the config file
const (
	EnvExecutable     = "DEPLOY_LAUNCHER_EXECUTABLE"
	EnvPlaybook       = "DEPLOY_LAUNCHER_PLAYBOOK"
	EnvInventory      = "DEPLOY_LAUNCHER_INVENTORY"
	EnvRevisionVar    = "DEPLOY_LAUNCHER_REVISION_VAR"
	EnvRevisionSource = "DEPLOY_LAUNCHER_REVISION_SOURCE"
)

// Config controls what the launcher invokes
type Config struct {
	Executable     string `json:"executable,omitempty"`
	Playbook       string `json:"playbook,omitempty"`       // relative to the launcher directory unless absolute
	Inventory      string `json:"inventory,omitempty"`      // relative to the launcher directory unless absolute
	RevisionVar    string `json:"revisionVar,omitempty"`    // name bound to the revision in --extra-vars
	RevisionSource string `json:"revisionSource,omitempty"` // "git" or "go-git"
}

// DefaultConfig returns the stock ansible-playbook layout
func DefaultConfig() Config {
	return Config{
		Executable:     "ansible-playbook",
		Playbook:       filepath.Join("deploy", "site.yml"),
		Inventory:      filepath.Join("deploy", "hosts"),
		RevisionVar:    "gitsha",
		RevisionSource: revision.SourceGit,
	}
}

// LoadConfig starts from DefaultConfig, applies dir/deploy-launcher.yaml if
// present, then any non-empty environment overrides.
func LoadConfig(dir string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(dir, ConfigFileName)
	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		klog.V(2).InfoS("Reading launcher config", "path", path)
		if err := cfg.merge(file); err != nil {
			return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		klog.V(2).InfoS("No launcher config file, using defaults", "path", path)
	default:
		return Config{}, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if getenv != nil {
		cfg.applyEnv(getenv)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// merge decodes a YAML or JSON document from r over the current values
func (c *Config) merge(r io.Reader) error {
	decoder := yaml.NewYAMLOrJSONDecoder(r, 4096)

	var raw map[string]interface{}
	if err := decoder.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	if raw == nil {
		return nil
	}

	fields := map[string]*string{
		"executable":     &c.Executable,
		"playbook":       &c.Playbook,
		"inventory":      &c.Inventory,
		"revisionVar":    &c.RevisionVar,
		"revisionSource": &c.RevisionSource,
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		dst, ok := fields[key]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown field %q", key))
			continue
		}
		v, ok := raw[key].(string)
		if !ok {
			errs = append(errs, fmt.Errorf("field %q must be a string", key))
			continue
		}
		*dst = v
	}
	return utilerrors.NewAggregate(errs)
}

func (c *Config) applyEnv(getenv func(string) string) {
	overrides := []struct {
		env string
		dst *string
	}{
		{EnvExecutable, &c.Executable},
		{EnvPlaybook, &c.Playbook},
		{EnvInventory, &c.Inventory},
		{EnvRevisionVar, &c.RevisionVar},
		{EnvRevisionSource, &c.RevisionSource},
	}
	for _, o := range overrides {
		if v := getenv(o.env); v != "" {
			klog.V(2).InfoS("Config override from environment", "variable", o.env, "value", v)
			*o.dst = v
		}
	}
}

// Validate reports every invalid field at once
func (c Config) Validate() error {
	var errs []error
	if c.Executable == "" {
		errs = append(errs, fmt.Errorf("executable must not be empty"))
	}
	if c.Playbook == "" {
		errs = append(errs, fmt.Errorf("playbook must not be empty"))
	}
	if c.Inventory == "" {
		errs = append(errs, fmt.Errorf("inventory must not be empty"))
	}
	if c.RevisionVar == "" {
		errs = append(errs, fmt.Errorf("revisionVar must not be empty"))
	} else if strings.ContainsAny(c.RevisionVar, "= \t\n") {
		errs = append(errs, fmt.Errorf("revisionVar %q must not contain '=' or whitespace", c.RevisionVar))
	}
	if _, err := revision.New(c.RevisionSource); err != nil {
		errs = append(errs, err)
	}
	return utilerrors.NewAggregate(errs)
}
