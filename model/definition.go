package model

// DomainDefinition is one YAML file describing a business area and the
// backend resources it exposes in the console.
type DomainDefinition struct {
	Domain    string               `yaml:"domain" json:"domain"`
	Label     string               `yaml:"label" json:"label"`
	Icon      string               `yaml:"icon" json:"icon,omitempty"`
	Order     int                  `yaml:"order" json:"order"`
	Resources []ResourceDefinition `yaml:"resources" json:"resources"`

	Checksum   string `yaml:"-" json:"-"`
	SourceFile string `yaml:"-" json:"-"`
}

// ResourceDefinition describes one paginated CRUD collection of the backend.
type ResourceDefinition struct {
	Name       string               `yaml:"name" json:"name"`
	Label      string               `yaml:"label" json:"label"`
	Path       string               `yaml:"path" json:"-"`
	Schema     string               `yaml:"schema" json:"-"`
	IDField    string               `yaml:"id_field" json:"idField,omitempty"`
	ReadOnly   bool                 `yaml:"read_only" json:"readOnly,omitempty"`
	Pagination PaginationOverride   `yaml:"pagination" json:"-"`
	Access     ResourceAccess       `yaml:"access" json:"-"`
	Filters    []FilterDefinition   `yaml:"filters" json:"filters,omitempty"`
	Columns    []ColumnDefinition   `yaml:"columns" json:"columns,omitempty"`
	Fields     map[string]FieldRule `yaml:"fields" json:"fields,omitempty"`
	Navigation NavigationEntry      `yaml:"navigation" json:"-"`

	// Domain is filled in by the registry from the enclosing file.
	Domain string `yaml:"-" json:"domain"`
}

// KeyField returns the name of the field identifying a record.
func (r ResourceDefinition) KeyField() string {
	if r.IDField == "" {
		return "id"
	}
	return r.IDField
}

// PaginationOverride replaces the backend-wide page parameters for one
// resource. Zero values keep the defaults.
type PaginationOverride struct {
	PageParam string `yaml:"page_param"`
	SizeParam string `yaml:"size_param"`
	PageSize  int    `yaml:"page_size"`
}

// ResourceAccess holds the requirement for each operation on a resource.
type ResourceAccess struct {
	List   Requirement `yaml:"list"`
	View   Requirement `yaml:"view"`
	Create Requirement `yaml:"create"`
	Update Requirement `yaml:"update"`
	Delete Requirement `yaml:"delete"`
}

// For returns the requirement of op (list, view, create, update or delete).
// View falls back to List when unset.
func (a ResourceAccess) For(op string) Requirement {
	switch op {
	case "list":
		return a.List
	case "view":
		if a.View.IsZero() {
			return a.List
		}
		return a.View
	case "create":
		return a.Create
	case "update":
		return a.Update
	case "delete":
		return a.Delete
	}
	return Requirement{}
}

// FilterDefinition is a list filter offered to the user and forwarded to the
// backend as a query parameter of the same name.
type FilterDefinition struct {
	Name    string   `yaml:"name" json:"name"`
	Label   string   `yaml:"label" json:"label"`
	Type    string   `yaml:"type" json:"type,omitempty"`
	Options []string `yaml:"options" json:"options,omitempty"`
}

// ColumnDefinition is one table column.
type ColumnDefinition struct {
	Field string `yaml:"field" json:"field"`
	Label string `yaml:"label" json:"label"`
}

// FieldRule constrains one form field. Tag is a validator expression such as
// "email" or "min=3,max=64".
type FieldRule struct {
	Required bool   `yaml:"required" json:"required,omitempty"`
	Pattern  string `yaml:"pattern" json:"pattern,omitempty"`
	Tag      string `yaml:"tag" json:"tag,omitempty"`
	Message  string `yaml:"message" json:"message,omitempty"`
}

// NavigationEntry places a resource in the sidebar.
type NavigationEntry struct {
	Label  string `yaml:"label"`
	Icon   string `yaml:"icon"`
	Order  int    `yaml:"order"`
	Hidden bool   `yaml:"hidden"`
}
