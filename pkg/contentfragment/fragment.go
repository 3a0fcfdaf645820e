// ABOUTME: Content fragment facade over an asset resource
// ABOUTME: Title/description/metadata, element lookup, variation definitions and tags

package contentfragment

import (
	"strings"
	"time"

	"github.com/nainya/cfmock/internal/logger"
	"github.com/nainya/cfmock/pkg/dam"
	"github.com/nainya/cfmock/pkg/resource"
	"github.com/nainya/cfmock/pkg/tagging"
)

// Child paths below jcr:content
const (
	STRUCTURED_DATA_PATH = "data/master"
	MODEL_ELEMENTS_PATH  = "model/elements"
	MODEL_VARIATIONS     = "model/variations"
	DATA_FOLDER          = "data"
	MASTER_VARIATION     = "master"
	MAIN_ELEMENT         = "main"
	PN_VARIATION_NAME    = "name"
)

// elementMode is fixed when the fragment is constructed
type elementMode int

const (
	modeNone elementMode = iota
	modeStructured
	modeText
)

func (m elementMode) String() string {
	switch m {
	case modeStructured:
		return "structured"
	case modeText:
		return "text"
	default:
		return "none"
	}
}

// Option configures fragments and templates
type Option func(*options)

type options struct {
	log  *logger.Logger
	tags TagResolver
}

// WithLogger sets the logger for fragment operations
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.log = l.Component("contentfragment")
	}
}

// WithTagResolver overrides the tag resolver used by Tags
func WithTagResolver(r TagResolver) Option {
	return func(o *options) {
		o.tags = r
	}
}

func buildOptions(opts []Option) options {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Fragment is the in-memory ContentFragment
type Fragment struct {
	asset         *resource.Resource
	content       *resource.Resource
	contentProps  *resource.ValueMap
	metadataProps *resource.ValueMap

	mode           elementMode
	structuredData *resource.ValueMap
	modelElements  *resource.Resource

	opts options
}

var _ ContentFragment = (*Fragment)(nil)

// New adapts an asset resource that has jcr:content and jcr:content/metadata
func New(asset *resource.Resource, opts ...Option) (*Fragment, error) {
	if asset == nil {
		return nil, structureError("", "asset")
	}
	content := asset.Child(dam.JCR_CONTENT)
	if content == nil {
		return nil, structureError(asset.Path(), dam.JCR_CONTENT)
	}
	metadata := content.Child(dam.METADATA_FOLDER)
	if metadata == nil {
		return nil, structureError(content.Path(), dam.METADATA_FOLDER)
	}

	cf := &Fragment{
		asset:         asset,
		content:       content,
		contentProps:  content.ValueMap(),
		metadataProps: metadata.ValueMap(),
		opts:          buildOptions(opts),
	}
	if cf.opts.tags == nil {
		cf.opts.tags = tagging.NewManager(asset.Repository())
	}

	// Detect representation once
	if data := content.Child(STRUCTURED_DATA_PATH); data != nil {
		cf.mode = modeStructured
		cf.structuredData = data.ValueMap()
	} else if elements := content.Child(MODEL_ELEMENTS_PATH); elements != nil {
		cf.mode = modeText
		cf.modelElements = elements
	}

	return cf, nil
}

// Name returns the asset node name
func (cf *Fragment) Name() string {
	return cf.asset.Name()
}

// Title returns jcr:title, defaulting to the node name
func (cf *Fragment) Title() string {
	return cf.contentProps.GetString(dam.PN_TITLE, cf.asset.Name())
}

// Description returns jcr:description, defaulting to ""
func (cf *Fragment) Description() string {
	return cf.contentProps.GetString(dam.PN_DESCRIPTION, "")
}

// MetaData returns the live metadata bag
func (cf *Fragment) MetaData() *resource.ValueMap {
	return cf.metadataProps
}

// SetTitle writes jcr:title
func (cf *Fragment) SetTitle(title string) error {
	cf.contentProps.Put(dam.PN_TITLE, title)
	return nil
}

// SetDescription writes jcr:description
func (cf *Fragment) SetDescription(description string) error {
	cf.contentProps.Put(dam.PN_DESCRIPTION, description)
	return nil
}

// SetMetaData sets one metadata property
func (cf *Fragment) SetMetaData(name string, value any) error {
	cf.metadataProps.Put(name, value)
	return nil
}

// AdaptTo supports AdapterResource and AdapterAsset
func (cf *Fragment) AdaptTo(kind AdapterKind) (any, bool) {
	switch kind {
	case AdapterResource:
		return cf.asset, true
	case AdapterAsset:
		asset, err := dam.NewAsset(cf.asset)
		if err != nil {
			return nil, false
		}
		return asset, true
	}
	return nil, false
}

// Elements lists elements in store order
func (cf *Fragment) Elements() *Iterator[ContentElement] {
	switch cf.mode {
	case modeStructured:
		return mapIterator(cf.structuredData.Keys(), func(key string) (ContentElement, bool) {
			if !cf.structuredData.Has(key) {
				return nil, false
			}
			return cf.newStructuredElement(key), true
		})
	case modeText:
		return mapIterator(cf.modelElements.Children(), func(res *resource.Resource) (ContentElement, bool) {
			return cf.newTextElement(res), true
		})
	}
	return emptyIterator[ContentElement]()
}

// Element looks up an element by name; nil if absent.
// For text fragments an empty name resolves to "main", then "master".
func (cf *Fragment) Element(name string) ContentElement {
	switch cf.mode {
	case modeStructured:
		if cf.structuredData.Has(name) {
			return cf.newStructuredElement(name)
		}
	case modeText:
		var res *resource.Resource
		if name == "" {
			res = cf.modelElements.Child(MAIN_ELEMENT)
			if res == nil {
				res = cf.modelElements.Child(MASTER_VARIATION)
			}
		} else {
			res = cf.modelElements.Child(name)
		}
		if res != nil {
			return cf.newTextElement(res)
		}
	}
	return nil
}

// HasElement reports whether an element with exactly this name exists.
// Unlike Element, an empty name does not fall back to "main".
func (cf *Fragment) HasElement(name string) bool {
	switch cf.mode {
	case modeStructured:
		return cf.structuredData.Has(name)
	case modeText:
		return cf.modelElements.Child(name) != nil
	}
	return false
}

// CreateVariation defines a fragment-level variation under model/variations
func (cf *Fragment) CreateVariation(name, title, description string) (VariationTemplate, error) {
	if strings.TrimSpace(name) == "" {
		return nil, newError(nil, "Variation name must not be empty.")
	}
	if strings.TrimSpace(title) == "" {
		title = name
	}

	repo := cf.content.Repository()
	variations, err := repo.GetOrCreate(cf.content.Path()+"/"+MODEL_VARIATIONS,
		resource.NT_UNSTRUCTURED, resource.NT_UNSTRUCTURED, nil)
	if err != nil {
		return nil, newError(err, "Unable to create variation: %s", name)
	}
	if variations.Child(name) != nil {
		return nil, newError(nil, "Variation %s already exists.", name)
	}

	child, err := repo.Create(variations, name, map[string]any{
		resource.PN_PRIMARY_TYPE: resource.NT_UNSTRUCTURED,
		PN_VARIATION_NAME:        name,
		dam.PN_TITLE:             title,
		dam.PN_DESCRIPTION:       description,
	})
	if err != nil {
		return nil, newError(err, "Unable to create variation: %s", name)
	}

	cf.opts.log.Debug("Variation defined").
		Str("fragment", cf.asset.Path()).
		Str("variation", name).
		Send()
	return &variationDef{res: child}, nil
}

// ListAllVariations lists the fragment-level variation definitions
func (cf *Fragment) ListAllVariations() *Iterator[VariationDef] {
	variations := cf.content.Child(MODEL_VARIATIONS)
	if variations == nil {
		return emptyIterator[VariationDef]()
	}
	return mapIterator(variations.Children(), func(res *resource.Resource) (VariationDef, bool) {
		return &variationDef{res: res}, true
	})
}

// variationDef returns the fragment-level definition named name, or nil
func (cf *Fragment) variationDef(name string) *variationDef {
	if name == "" || strings.Contains(name, "/") {
		return nil
	}
	res := cf.content.Child(MODEL_VARIATIONS + "/" + name)
	if res == nil {
		return nil
	}
	return &variationDef{res: res}
}

// SetTags stores the tag ids in metadata; nil clears them
func (cf *Fragment) SetTags(tags []*tagging.Tag) error {
	ids := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag != nil {
			ids = append(ids, tag.TagID)
		}
	}
	cf.metadataProps.Put(dam.PN_TAGS, ids)
	return nil
}

// Tags resolves the stored tag ids, dropping ids that no longer resolve
func (cf *Fragment) Tags() ([]*tagging.Tag, error) {
	tags := []*tagging.Tag{}
	for _, id := range cf.metadataProps.GetStrings(dam.PN_TAGS) {
		if tag := cf.opts.tags.Resolve(id); tag != nil {
			tags = append(tags, tag)
		} else {
			cf.opts.log.Debug("Dropping unresolvable tag").
				Str("fragment", cf.asset.Path()).
				Str("tag", id).
				Send()
		}
	}
	return tags, nil
}

// ========== Unsupported operations ==========

// Template is not supported by the mock
func (cf *Fragment) Template() (FragmentTemplate, error) {
	return nil, cf.unsupported("Template")
}

// CreateElement is not supported by the mock
func (cf *Fragment) CreateElement(tmpl ElementTemplate) (ContentElement, error) {
	return nil, cf.unsupported("CreateElement")
}

// AssociatedContent is not supported by the mock
func (cf *Fragment) AssociatedContent() (*Iterator[*resource.Resource], error) {
	return nil, cf.unsupported("AssociatedContent")
}

// AddAssociatedContent is not supported by the mock
func (cf *Fragment) AddAssociatedContent(content *resource.Resource) error {
	return cf.unsupported("AddAssociatedContent")
}

// RemoveAssociatedContent is not supported by the mock
func (cf *Fragment) RemoveAssociatedContent(content *resource.Resource) error {
	return cf.unsupported("RemoveAssociatedContent")
}

// RemoveVariation is not supported by the mock
func (cf *Fragment) RemoveVariation(name string) error {
	return cf.unsupported("RemoveVariation")
}

// LastModifiedDate is not supported by the mock
func (cf *Fragment) LastModifiedDate() (time.Time, error) {
	return time.Time{}, cf.unsupported("LastModifiedDate")
}

// LastModifiedDeep is not supported by the mock
func (cf *Fragment) LastModifiedDeep() (time.Time, error) {
	return time.Time{}, cf.unsupported("LastModifiedDeep")
}

// SetVariationTags is not supported by the mock
func (cf *Fragment) SetVariationTags(tags []*tagging.Tag, variationName string) error {
	return cf.unsupported("SetVariationTags")
}

// VariationTags is not supported by the mock
func (cf *Fragment) VariationTags(variationName string) ([]*tagging.Tag, error) {
	return nil, cf.unsupported("VariationTags")
}

// CreateVersion is not supported by the mock
func (cf *Fragment) CreateVersion(label, comment string) (VersionDef, error) {
	return nil, cf.unsupported("CreateVersion")
}

// VersionedContent is not supported by the mock
func (cf *Fragment) VersionedContent(version VersionDef) (VersionedContent, error) {
	return nil, cf.unsupported("VersionedContent")
}

// ListVersions is not supported by the mock
func (cf *Fragment) ListVersions() (*Iterator[VersionDef], error) {
	return nil, cf.unsupported("ListVersions")
}

// Version is not supported by the mock
func (cf *Fragment) Version(version VersionDef) (ContentFragment, error) {
	return nil, cf.unsupported("Version")
}

func (cf *Fragment) unsupported(op string) error {
	cf.opts.log.Debug("Unsupported operation called").
		Str("fragment", cf.asset.Path()).
		Str("operation", op).
		Send()
	return unsupported(op)
}

// Mode returns "structured", "text" or "none"
func (cf *Fragment) Mode() string {
	return cf.mode.String()
}
