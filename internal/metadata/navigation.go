package metadata

import "reflect"

// NavigationMetadata describes an included relation to another entity or a
// collection of them.
type NavigationMetadata struct {
	PropertyMetadata

	IsCollection bool
	// IsIncluded means the related data is fetched together with the owner.
	IsIncluded  bool
	ShowDetails bool
	EditDetails bool

	// TargetType is the related struct type; TargetID is its entity id when
	// that type is registered too.
	TargetType reflect.Type
	TargetID   string
	// ForeignKey is the column holding the reference. For single references
	// it lives on the owner, for collections on the target.
	ForeignKey string
}
