package access

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/erpconsole/model"
)

type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// StaticPolicy maps role names to permission strings, loaded from a YAML
// file of the form:
//
//	roles:
//	  hr_manager: [employee:*, contract:view]
type StaticPolicy struct {
	path   string
	mu     sync.RWMutex
	policy policyFile
}

// NewStaticPolicy loads the policy at path.
func NewStaticPolicy(path string) (*StaticPolicy, error) {
	p := &StaticPolicy{path: path}
	if err := p.Sync(); err != nil {
		return nil, err
	}
	return p, nil
}

// Path returns the file the policy is loaded from.
func (p *StaticPolicy) Path() string { return p.path }

// Permissions returns the union of the permissions granted to roles.
// Unknown roles contribute nothing.
func (p *StaticPolicy) Permissions(roles []string) model.PermissionSet {
	p.mu.RLock()
	defer p.mu.RUnlock()

	perms := make(model.PermissionSet)
	for _, role := range roles {
		for _, perm := range p.policy.Roles[role] {
			perms[perm] = true
		}
	}
	return perms
}

// Roles returns the number of roles in the loaded policy.
func (p *StaticPolicy) Roles() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.policy.Roles)
}

// Sync reloads the policy file from disk. On error the previous policy is
// kept.
func (p *StaticPolicy) Sync() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("access: reading policy file %s: %w", p.path, err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("access: parsing policy file %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.policy = pf
	p.mu.Unlock()

	return nil
}
