package definition

import (
	"cmp"
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/pitabwire/erpconsole/model"
)

type snapshot struct {
	domains   []model.DomainDefinition
	resources map[string]model.ResourceDefinition
	ordered   []model.ResourceDefinition
	checksum  string
}

// Registry serves the loaded definitions. Reads are lock-free; Replace swaps
// the whole set at once.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a registry holding defs.
func NewRegistry(defs []model.DomainDefinition) *Registry {
	r := &Registry{}
	r.Replace(defs)
	return r
}

// Replace installs defs as the new contents.
func (r *Registry) Replace(defs []model.DomainDefinition) {
	domains := slices.Clone(defs)
	slices.SortStableFunc(domains, func(a, b model.DomainDefinition) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.Domain, b.Domain))
	})

	s := &snapshot{
		domains:   domains,
		resources: make(map[string]model.ResourceDefinition),
	}
	checksums := make([]string, 0, len(domains))
	for _, d := range domains {
		checksums = append(checksums, d.Checksum)

		res := slices.Clone(d.Resources)
		slices.SortStableFunc(res, func(a, b model.ResourceDefinition) int {
			return cmp.Or(cmp.Compare(a.Navigation.Order, b.Navigation.Order), cmp.Compare(a.Name, b.Name))
		})
		for _, rd := range res {
			rd.Domain = d.Domain
			s.resources[rd.Name] = rd
			s.ordered = append(s.ordered, rd)
		}
	}
	slices.Sort(checksums)
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(strings.Join(checksums, ":"))))

	r.snap.Store(s)
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// Resource returns the resource called name.
func (r *Registry) Resource(name string) (model.ResourceDefinition, bool) {
	rd, ok := r.current().resources[name]
	return rd, ok
}

// Resources returns every resource in navigation order: by domain order,
// then by each resource's navigation order.
func (r *Registry) Resources() []model.ResourceDefinition {
	return slices.Clone(r.current().ordered)
}

// Domains returns the domains ordered by their order field.
func (r *Registry) Domains() []model.DomainDefinition {
	return slices.Clone(r.current().domains)
}

// Count returns the number of resources.
func (r *Registry) Count() int {
	return len(r.current().resources)
}

// Checksum identifies the loaded set; it changes whenever any file does.
func (r *Registry) Checksum() string {
	return r.current().checksum
}
