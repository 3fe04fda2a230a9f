package backend

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

// aliasFile is the on-disk shape of a hand-edited YAML backend-alias
// document: a lighter-weight sibling to the JSON Config for operators who
// prefer to maintain model aliases by hand.
//
// Grounded on cmd/ai-loop-eval/task_spec.go's yaml.v3 struct tags plus
// ReadFile + Unmarshal loader style.
type aliasFile struct {
	Backends map[string]struct {
		ModelAliases map[string]string `yaml:"model_aliases"`
	} `yaml:"backends"`
}

// LoadAliasesYAML reads a YAML alias document at path and merges its
// model-alias maps into cfg's backends, in place. Backends named in the
// alias file that do not already exist in cfg are ignored — the alias
// file only augments backends declared in the JSON config.
func LoadAliasesYAML(cfg *Config, path string) error {
	if cfg == nil {
		return fmt.Errorf("backend aliases: nil config")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("backend aliases: read %s: %w", path, err)
	}

	var doc aliasFile
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("backend aliases: parse %s: %w", path, err)
	}

	for id, entry := range doc.Backends {
		spec, ok := cfg.Backends[id]
		if !ok {
			continue
		}
		if spec.ModelAliases == nil {
			spec.ModelAliases = make(map[string]string, len(entry.ModelAliases))
		}
		for alias, target := range entry.ModelAliases {
			spec.ModelAliases[alias] = target
		}
		cfg.Backends[id] = spec
	}
	return nil
}

// ApplyDefaults fills in SessionMode (none) and SystemPromptWhen (first)
// for backends whose JSON/YAML source left them unset. Input and Output
// are not defaulted; Validate still rejects a backend missing either.
// Call after LoadAliasesYAML and before Validate.
func (c *Config) ApplyDefaults() {
	for id, spec := range c.Backends {
		c.Backends[id] = applyBackendSpecDefaults(spec)
	}
}

// applyBackendSpecDefaults is invoked after both JSON and YAML sources are
// merged, filling in an unset SessionMode and SystemPromptWhen.
func applyBackendSpecDefaults(spec coretypes.BackendSpec) coretypes.BackendSpec {
	if spec.SessionMode == "" {
		spec.SessionMode = coretypes.SessionIdNone
	}
	if spec.SystemPromptWhen == "" {
		spec.SystemPromptWhen = coretypes.SystemPromptFirst
	}
	return spec
}
