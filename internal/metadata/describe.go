package metadata

// EntityDescriptor is the serialisable view of EntityMetadata served by
// the admin API and printed by the describe command.
type EntityDescriptor struct {
	ID          string                 `json:"id" yaml:"id"`
	DisplayName string                 `json:"display_name" yaml:"display_name"`
	PluralName  string                 `json:"plural_name" yaml:"plural_name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Group       string                 `json:"group,omitempty" yaml:"group,omitempty"`
	IsEditable  bool                   `json:"is_editable" yaml:"is_editable"`
	IsHidden    bool                   `json:"is_hidden" yaml:"is_hidden"`
	Properties  []PropertyDescriptor   `json:"properties" yaml:"properties"`
	Navigations []NavigationDescriptor `json:"navigations,omitempty" yaml:"navigations,omitempty"`
}

type PropertyDescriptor struct {
	Name          string     `json:"name" yaml:"name"`
	DisplayName   string     `json:"display_name" yaml:"display_name"`
	Description   string     `json:"description,omitempty" yaml:"description,omitempty"`
	Kind          string     `json:"kind" yaml:"kind"`
	Order         int        `json:"order" yaml:"order"`
	SearchType    SearchType `json:"search_type" yaml:"search_type"`
	DisplayFormat string     `json:"display_format,omitempty" yaml:"display_format,omitempty"`
	IsNullable    bool       `json:"is_nullable" yaml:"is_nullable"`
	IsPrimaryKey  bool       `json:"is_primary_key,omitempty" yaml:"is_primary_key,omitempty"`
	IsForeignKey  bool       `json:"is_foreign_key,omitempty" yaml:"is_foreign_key,omitempty"`
	IsEditable    bool       `json:"is_editable" yaml:"is_editable"`
	IsSearchable  bool       `json:"is_searchable" yaml:"is_searchable"`
	IsHidden      bool       `json:"is_hidden,omitempty" yaml:"is_hidden,omitempty"`
	IsUpload      bool       `json:"is_upload,omitempty" yaml:"is_upload,omitempty"`
}

type NavigationDescriptor struct {
	Name         string `json:"name" yaml:"name"`
	DisplayName  string `json:"display_name" yaml:"display_name"`
	Target       string `json:"target,omitempty" yaml:"target,omitempty"`
	IsCollection bool   `json:"is_collection" yaml:"is_collection"`
	IsIncluded   bool   `json:"is_included" yaml:"is_included"`
	ShowDetails  bool   `json:"show_details" yaml:"show_details"`
	EditDetails  bool   `json:"edit_details" yaml:"edit_details"`
}

// Describe returns the serialisable view of e.
func (e *EntityMetadata) Describe() EntityDescriptor {
	d := EntityDescriptor{
		ID:          e.ID,
		DisplayName: e.DisplayName,
		PluralName:  e.PluralName,
		Description: e.Description,
		Group:       e.Group,
		IsEditable:  e.IsEditable,
		IsHidden:    e.IsHidden,
		Properties:  make([]PropertyDescriptor, 0, len(e.Properties)),
	}
	for _, p := range e.Properties {
		d.Properties = append(d.Properties, PropertyDescriptor{
			Name:          p.Name,
			DisplayName:   p.DisplayName,
			Description:   p.Description,
			Kind:          p.Kind.Name(),
			Order:         p.Order,
			SearchType:    p.SearchType,
			DisplayFormat: p.DisplayFormat,
			IsNullable:    p.IsNullable,
			IsPrimaryKey:  p.IsPrimaryKey,
			IsForeignKey:  p.IsForeignKey,
			IsEditable:    p.IsEditable,
			IsSearchable:  p.IsSearchable,
			IsHidden:      p.IsHidden,
			IsUpload:      p.IsUpload,
		})
	}
	for _, n := range e.Navigations {
		d.Navigations = append(d.Navigations, NavigationDescriptor{
			Name:         n.Name,
			DisplayName:  n.DisplayName,
			Target:       n.TargetID,
			IsCollection: n.IsCollection,
			IsIncluded:   n.IsIncluded,
			ShowDetails:  n.ShowDetails,
			EditDetails:  n.EditDetails,
		})
	}
	return d
}
