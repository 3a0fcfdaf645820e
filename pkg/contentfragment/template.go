// ABOUTME: Fragment template parsed from a template node's dialog items
// ABOUTME: Element definitions and creation of new fragment node skeletons

package contentfragment

import (
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/multierr"

	"github.com/nainya/cfmock/pkg/dam"
	"github.com/nainya/cfmock/pkg/resource"
)

// Template node layout and fragment skeleton properties
const (
	MODEL_NODE          = "model"
	DIALOG_ITEMS_PATH   = "cq:dialog/content/items"
	THUMBNAIL_NODE      = "thumbnail.png"
	PN_MODEL            = "cq:model"
	PN_CONTENT_FRAGMENT = "contentFragment"
	NAME_REPLACEMENT    = "_"
	INVALID_NAME_CHARS  = "/:[]*|'\"\t\r\n"
)

// Template is the in-memory FragmentTemplate
type Template struct {
	res          *resource.Resource
	content      *resource.Resource
	contentProps *resource.ValueMap
	elements     []ElementTemplate
	opts         []Option
}

var _ FragmentTemplate = (*Template)(nil)

// NewTemplate parses a template node; element definitions are read once here
func NewTemplate(res *resource.Resource, opts ...Option) (*Template, error) {
	if res == nil {
		return nil, structureError("", "template")
	}
	content := res.Child(dam.JCR_CONTENT)
	if content == nil {
		return nil, structureError(res.Path(), dam.JCR_CONTENT)
	}
	model := content.Child(MODEL_NODE)
	if model == nil {
		return nil, structureError(content.Path(), MODEL_NODE)
	}
	items := model.Child(DIALOG_ITEMS_PATH)
	if items == nil {
		return nil, structureError(model.Path(), DIALOG_ITEMS_PATH)
	}

	t := &Template{
		res:          res,
		content:      content,
		contentProps: content.ValueMap(),
		opts:         opts,
	}
	for _, item := range items.Children() {
		t.elements = append(t.elements, newElementTemplate(item))
	}
	return t, nil
}

func (t *Template) AdaptTo(kind AdapterKind) (any, bool) {
	if kind == AdapterResource {
		return t.res, true
	}
	return nil, false
}

func (t *Template) Title() string {
	return t.contentProps.GetString(dam.PN_TITLE, "")
}

func (t *Template) Description() string {
	return t.contentProps.GetString(dam.PN_DESCRIPTION, "")
}

// ThumbnailPath returns the thumbnail node path, or "" if there is none
func (t *Template) ThumbnailPath() string {
	if thumb := t.res.Child(THUMBNAIL_NODE); thumb != nil {
		return thumb.Path()
	}
	return ""
}

// CreateFragment creates an empty structured fragment below parent.
// The node name is derived from title when name is blank and made unique
// among parent's children.
func (t *Template) CreateFragment(parent *resource.Resource, name, title string) (ContentFragment, error) {
	if parent == nil {
		return nil, newError(nil, "empty parent submitted")
	}
	if strings.TrimSpace(name) == "" && strings.TrimSpace(title) == "" {
		return nil, newError(nil, "either name or title must be specified.")
	}

	childName := name
	if strings.TrimSpace(childName) == "" {
		childName = createValidName(title)
	} else if !isValidName(childName) {
		return nil, newError(nil, "Illegal content fragment name %q.", childName)
	}

	repo := parent.Repository()
	childName, err := repo.UniqueChildName(parent, childName)
	if err != nil {
		return nil, newError(err, "Unable to get unique child name.")
	}

	fragmentRes, err := t.createSkeleton(repo, parent, childName, title)
	if err != nil {
		return nil, newError(err, "Creating content fragment at %s failed.", path.Join(parent.Path(), childName))
	}

	cf, err := New(fragmentRes, t.opts...)
	if err != nil {
		return nil, newError(err, "Unable to adapt created content fragment.")
	}
	return cf, nil
}

// createSkeleton writes asset -> jcr:content -> data -> metadata -> data/master.
// A partially written skeleton is removed again on failure.
func (t *Template) createSkeleton(repo *resource.Repository, parent *resource.Resource, name, title string) (*resource.Resource, error) {
	fragmentRes, err := repo.Create(parent, name, map[string]any{
		resource.PN_PRIMARY_TYPE: dam.NT_DAM_ASSET,
		dam.PN_UUID:              uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	if err := t.createContent(repo, fragmentRes, title); err != nil {
		return nil, multierr.Append(err, repo.Delete(fragmentRes))
	}
	return fragmentRes, nil
}

func (t *Template) createContent(repo *resource.Repository, fragmentRes *resource.Resource, title string) error {
	contentProps := map[string]any{
		resource.PN_PRIMARY_TYPE: dam.NT_DAM_ASSETCONTENT,
		PN_CONTENT_FRAGMENT:      true,
	}
	if title != "" {
		contentProps[dam.PN_TITLE] = title
	}
	contentRes, err := repo.Create(fragmentRes, dam.JCR_CONTENT, contentProps)
	if err != nil {
		return err
	}

	dataRes, err := repo.Create(contentRes, DATA_FOLDER, map[string]any{
		resource.PN_PRIMARY_TYPE: resource.NT_UNSTRUCTURED,
		PN_MODEL:                 t.res.Path(),
	})
	if err != nil {
		return err
	}

	if _, err := repo.Create(contentRes, dam.METADATA_FOLDER, nil); err != nil {
		return err
	}

	_, err = repo.Create(dataRes, MASTER_VARIATION, nil)
	return err
}

func (t *Template) Elements() *Iterator[ElementTemplate] {
	return mapIterator(t.elements, func(e ElementTemplate) (ElementTemplate, bool) {
		return e, true
	})
}

// ForElement returns the definition whose name equals the element's, or nil
func (t *Template) ForElement(element ContentElement) ElementTemplate {
	if element == nil {
		return nil
	}
	for _, e := range t.elements {
		if e.Name() == element.Name() {
			return e
		}
	}
	return nil
}

func (t *Template) Variations() *Iterator[VariationTemplate] {
	return emptyIterator[VariationTemplate]()
}

func (t *Template) ForVariation(variation ContentVariation) VariationTemplate {
	return nil
}

func (t *Template) InitialAssociatedContent() *Iterator[string] {
	return emptyIterator[string]()
}

func (t *Template) MetaDataDefinition() MetaDataDefinition {
	return nil
}

// createValidName turns a label into a node name, e.g. "My Fragment" -> "my-fragment"
func createValidName(label string) string {
	name := slug.Make(label)
	if name == "" {
		return NAME_REPLACEMENT
	}
	return name
}

func isValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, INVALID_NAME_CHARS)
}
