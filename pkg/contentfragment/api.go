// ABOUTME: Content fragment contract implemented by the in-memory mocks
// ABOUTME: Interfaces for fragments, elements, variations, templates and adapters

package contentfragment

import (
	"time"

	"github.com/nainya/cfmock/pkg/dam"
	"github.com/nainya/cfmock/pkg/resource"
	"github.com/nainya/cfmock/pkg/tagging"
)

// AdapterKind selects a view in AdaptTo
type AdapterKind int

const (
	AdapterResource AdapterKind = iota // *resource.Resource
	AdapterAsset                       // *dam.Asset
)

// Adaptable exposes alternate views of an object
type Adaptable interface {
	AdaptTo(kind AdapterKind) (any, bool)
}

// Adapt returns the T view of a, if a supports it.
// T must be *resource.Resource or *dam.Asset.
func Adapt[T any](a Adaptable) (T, bool) {
	var zero T
	if a == nil {
		return zero, false
	}

	var kind AdapterKind
	switch any(zero).(type) {
	case *resource.Resource:
		kind = AdapterResource
	case *dam.Asset:
		kind = AdapterAsset
	default:
		return zero, false
	}

	v, ok := a.AdaptTo(kind)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// TagResolver resolves stored tag ids
type TagResolver interface {
	Resolve(tagID string) *tagging.Tag
}

// ContentFragment is the top-level fragment contract
type ContentFragment interface {
	Adaptable

	Name() string
	Title() string
	Description() string
	MetaData() *resource.ValueMap
	SetTitle(title string) error
	SetDescription(description string) error
	SetMetaData(name string, value any) error

	Elements() *Iterator[ContentElement]
	Element(name string) ContentElement
	HasElement(name string) bool
	CreateElement(tmpl ElementTemplate) (ContentElement, error)

	CreateVariation(name, title, description string) (VariationTemplate, error)
	ListAllVariations() *Iterator[VariationDef]
	RemoveVariation(name string) error

	SetTags(tags []*tagging.Tag) error
	Tags() ([]*tagging.Tag, error)
	SetVariationTags(tags []*tagging.Tag, variationName string) error
	VariationTags(variationName string) ([]*tagging.Tag, error)

	Template() (FragmentTemplate, error)
	AssociatedContent() (*Iterator[*resource.Resource], error)
	AddAssociatedContent(content *resource.Resource) error
	RemoveAssociatedContent(content *resource.Resource) error
	LastModifiedDate() (time.Time, error)
	LastModifiedDeep() (time.Time, error)

	CreateVersion(label, comment string) (VersionDef, error)
	VersionedContent(version VersionDef) (VersionedContent, error)
	ListVersions() (*Iterator[VersionDef], error)
	Version(version VersionDef) (ContentFragment, error)
}

// ContentElement is one named field or text block of a fragment
type ContentElement interface {
	Adaptable

	Name() string
	Title() string
	Content() string
	ContentType() string
	SetContent(content, contentType string) error

	Variations() *Iterator[ContentVariation]
	Variation(name string) ContentVariation
	CreateVariation(tmpl VariationTemplate) (ContentVariation, error)
	RemoveVariation(variation ContentVariation) error
}

// ContentVariation is an alternate value of one element
type ContentVariation interface {
	Adaptable

	Name() string
	Title() string
	Description() string
	Content() string
	ContentType() string
	SetContent(content, contentType string) error
	Synchronize() error
}

// VariationDef is a fragment-level variation record
type VariationDef interface {
	Name() string
	Title() string
	Description() string
}

// VariationTemplate is the handle returned when a variation is defined
type VariationTemplate interface {
	VariationDef
	Adaptable
}

// FragmentTemplate describes the elements of a fragment type
type FragmentTemplate interface {
	Adaptable

	Title() string
	Description() string
	ThumbnailPath() string
	CreateFragment(parent *resource.Resource, name, title string) (ContentFragment, error)
	Elements() *Iterator[ElementTemplate]
	ForElement(element ContentElement) ElementTemplate
	Variations() *Iterator[VariationTemplate]
	ForVariation(variation ContentVariation) VariationTemplate
	InitialAssociatedContent() *Iterator[string]
	MetaDataDefinition() MetaDataDefinition
}

// ElementTemplate is one field definition of a template
type ElementTemplate interface {
	Adaptable

	Name() string
	Title() string
	DataType() DataType
	InitialContentType() string
	DefaultContent() string
	MetaData() map[string]any
}

// DataType describes the value type of an element template
type DataType interface {
	TypeString() string
	ValueType() string
	SemanticType() string
	IsMultiValue() bool
}

// MetaDataDefinition describes a template's metadata dialog
type MetaDataDefinition interface {
	Dialog() *resource.Resource
}

// VersionDef identifies a stored fragment version
type VersionDef interface {
	Name() string
	Label() string
	Comment() string
	Created() time.Time
}

// VersionedContent is the content of a fragment version
type VersionedContent interface {
	Version() VersionDef
	Content() string
	ContentType() string
}
