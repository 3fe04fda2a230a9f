// Package backend resolves a named CLI backend to its declarative
// BackendSpec. It is the "C1" component of the subagent orchestration core:
// pure, side-effect-free lookup with case-insensitive model alias fallback.
//
// Grounded on internal/config/ai.go's provider/model registry
// (Validate + Effective* accessor style).
package backend

import (
	"fmt"
	"strings"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

// Config is the per-user document describing the available backends.
type Config struct {
	Backends map[string]coretypes.BackendSpec `json:"backends" yaml:"backends"`
}

// Validate checks structural invariants of the backend map. It does not
// require any backend to exist (an empty map is a legal, if useless,
// config) but every backend that is present must have a command and a
// declared session, output and input mode.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("nil backend config")
	}
	for id, spec := range c.Backends {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("backend id must not be empty")
		}
		if strings.TrimSpace(spec.Command) == "" {
			return fmt.Errorf("backend %q: missing command", id)
		}
		switch spec.SessionMode {
		case coretypes.SessionIdAlways, coretypes.SessionIdExisting, coretypes.SessionIdNone:
		default:
			return fmt.Errorf("backend %q: invalid sessionMode %q", id, spec.SessionMode)
		}
		switch spec.Output {
		case coretypes.OutputText, coretypes.OutputJSON, coretypes.OutputJSONL, coretypes.OutputStreamJSONL:
		default:
			return fmt.Errorf("backend %q: invalid output mode %q", id, spec.Output)
		}
		switch spec.Input {
		case coretypes.InputArg, coretypes.InputStdin:
		default:
			return fmt.Errorf("backend %q: invalid input mode %q", id, spec.Input)
		}
		if spec.SandboxMode != "" {
			switch spec.SandboxMode {
			case coretypes.SandboxOff, coretypes.SandboxInherit, coretypes.SandboxAlways:
			default:
				return fmt.Errorf("backend %q: invalid sandboxMode %q", id, spec.SandboxMode)
			}
		}
	}
	return nil
}

// Resolver looks up backends by provider id. It holds no mutable state and
// performs no I/O — the config it wraps is loaded and validated once at
// startup by the caller.
type Resolver struct {
	cfg Config
}

// NewResolver wraps an already-validated Config.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve returns the (backendId, BackendSpec) pair for provider, or
// UnknownBackendError. The lookup itself is exact on backendId; model
// normalization is a separate step via NormalizeModel.
func (r *Resolver) Resolve(provider string) (string, coretypes.BackendSpec, error) {
	id := strings.TrimSpace(provider)
	if id == "" {
		return "", coretypes.BackendSpec{}, &coretypes.UnknownBackendError{Provider: provider}
	}
	spec, ok := r.cfg.Backends[id]
	if !ok {
		return "", coretypes.BackendSpec{}, &coretypes.UnknownBackendError{Provider: provider}
	}
	return id, spec, nil
}

// NormalizeModel resolves modelID through spec.ModelAliases, falling back
// to a case-insensitive match, and finally returning modelID unchanged if
// no alias matches.
func NormalizeModel(spec coretypes.BackendSpec, modelID string) string {
	trimmed := strings.TrimSpace(modelID)
	if trimmed == "" {
		return trimmed
	}
	if len(spec.ModelAliases) == 0 {
		return trimmed
	}
	if v, ok := spec.ModelAliases[trimmed]; ok {
		return v
	}
	lower := strings.ToLower(trimmed)
	for k, v := range spec.ModelAliases {
		if strings.ToLower(k) == lower {
			return v
		}
	}
	return trimmed
}
