// Package navigation builds the sidebar menu a signed-in user is allowed to
// see from the resource definitions.
package navigation

import (
	"github.com/pitabwire/erpconsole/internal/access"
	"github.com/pitabwire/erpconsole/internal/definition"
	"github.com/pitabwire/erpconsole/model"
)

// Menu is the sidebar tree.
type Menu struct {
	Items []Node `json:"items"`
}

// Node is a domain group or a resource entry.
type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Icon     string   `json:"icon,omitempty"`
	Route    string   `json:"route,omitempty"`
	Actions  *Actions `json:"actions,omitempty"`
	Children []Node   `json:"children,omitempty"`
}

// Actions tells the view which record operations to offer.
type Actions struct {
	Create bool `json:"create"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// Builder assembles menus from a definition registry.
type Builder struct {
	registry *definition.Registry
}

// NewBuilder creates a Builder.
func NewBuilder(registry *definition.Registry) *Builder {
	return &Builder{registry: registry}
}

// Build returns the menu for id. Resources whose list requirement id does
// not meet are left out, as are domains left without entries.
func (b *Builder) Build(id *model.Identity) Menu {
	byDomain := make(map[string][]Node)
	for _, rd := range b.registry.Resources() {
		if rd.Navigation.Hidden || !access.Allow(id, rd.Access.List) {
			continue
		}
		byDomain[rd.Domain] = append(byDomain[rd.Domain], resourceNode(id, rd))
	}

	menu := Menu{Items: []Node{}}
	for _, d := range b.registry.Domains() {
		children := byDomain[d.Domain]
		if len(children) == 0 {
			continue
		}
		label := d.Label
		if label == "" {
			label = d.Domain
		}
		menu.Items = append(menu.Items, Node{
			ID:       d.Domain,
			Label:    label,
			Icon:     d.Icon,
			Children: children,
		})
	}
	return menu
}

func resourceNode(id *model.Identity, rd model.ResourceDefinition) Node {
	label := rd.Navigation.Label
	if label == "" {
		label = rd.Label
	}
	return Node{
		ID:    rd.Name,
		Label: label,
		Icon:  rd.Navigation.Icon,
		Route: "/resources/" + rd.Name,
		Actions: &Actions{
			Create: !rd.ReadOnly && access.Allow(id, rd.Access.Create),
			Update: !rd.ReadOnly && access.Allow(id, rd.Access.Update),
			Delete: !rd.ReadOnly && access.Allow(id, rd.Access.Delete),
		},
	}
}
