package branches

import "strings"

const (
	mainBranchNameConstant   = "main"
	masterBranchNameConstant = "master"
)

// PruneConfiguration captures configuration values for branch pruning.
type PruneConfiguration struct {
	ProtectedBranches []string `mapstructure:"protected_branches"`
}

// DefaultPruneConfiguration protects the conventional trunk branches.
func DefaultPruneConfiguration() PruneConfiguration {
	return PruneConfiguration{ProtectedBranches: DefaultProtectedBranches()}
}

// DefaultProtectedBranches lists the branch names pruning never deletes by default.
func DefaultProtectedBranches() []string {
	return []string{mainBranchNameConstant, masterBranchNameConstant}
}

// Sanitize trims protected branch names and drops blanks and duplicates. An
// empty result falls back to the defaults.
func (configuration PruneConfiguration) Sanitize() PruneConfiguration {
	sanitized := configuration
	sanitized.ProtectedBranches = sanitizeBranchNames(configuration.ProtectedBranches)
	if len(sanitized.ProtectedBranches) == 0 {
		sanitized.ProtectedBranches = DefaultProtectedBranches()
	}
	return sanitized
}

func sanitizeBranchNames(raw []string) []string {
	sanitized := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, candidate := range raw {
		trimmed := strings.TrimSpace(candidate)
		if len(trimmed) == 0 {
			continue
		}
		if _, duplicate := seen[trimmed]; duplicate {
			continue
		}
		seen[trimmed] = struct{}{}
		sanitized = append(sanitized, trimmed)
	}
	return sanitized
}
