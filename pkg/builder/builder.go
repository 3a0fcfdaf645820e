// ABOUTME: Fixture builder for content fragments, tags and templates
// ABOUTME: Writes the node layouts the contentfragment package reads

package builder

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/nainya/cfmock/pkg/contentfragment"
	"github.com/nainya/cfmock/pkg/dam"
	"github.com/nainya/cfmock/pkg/resource"
	"github.com/nainya/cfmock/pkg/tagging"
)

const (
	CONTENT_ROOT = "/content"
	DAM_ROOT     = "/content/dam"
	NT_FOLDER    = "sling:Folder"
	NT_TEMPLATE  = "cq:Template"
)

// ErrOddArguments is returned when key/value pairs are incomplete
var ErrOddArguments = errors.New("key/value arguments must come in pairs")

// Builder creates fixture nodes in a repository
type Builder struct {
	repo *resource.Repository
	tags *tagging.Manager
	opts []contentfragment.Option
}

// New creates a builder writing into repo. Options are passed on to the
// fragments and templates it returns.
func New(repo *resource.Repository, opts ...contentfragment.Option) *Builder {
	return &Builder{
		repo: repo,
		tags: tagging.NewManager(repo),
		opts: opts,
	}
}

// Repository returns the repository the builder writes to
func (b *Builder) Repository() *resource.Repository {
	return b.repo
}

// UniqueRoot is a pair of per-test roots below /content and /content/dam
type UniqueRoot struct {
	b  *Builder
	id string
}

// UniqueRoot allocates a fresh root id. Nodes are created on first use.
func (b *Builder) UniqueRoot() *UniqueRoot {
	return &UniqueRoot{b: b, id: uuid.NewString()}
}

// ID returns the generated root name
func (u *UniqueRoot) ID() string {
	return u.id
}

// ContentPath returns /content/<id>
func (u *UniqueRoot) ContentPath() string {
	return CONTENT_ROOT + "/" + u.id
}

// DamPath returns /content/dam/<id>
func (u *UniqueRoot) DamPath() string {
	return DAM_ROOT + "/" + u.id
}

// Content returns the content root, creating it if necessary
func (u *UniqueRoot) Content() (*resource.Resource, error) {
	return u.b.repo.GetOrCreate(u.ContentPath(), NT_FOLDER, NT_FOLDER, nil)
}

// Dam returns the DAM root, creating it if necessary
func (u *UniqueRoot) Dam() (*resource.Resource, error) {
	return u.b.repo.GetOrCreate(u.DamPath(), NT_FOLDER, NT_FOLDER, nil)
}

// Cleanup deletes both roots if they were created
func (u *UniqueRoot) Cleanup() error {
	var errs []error
	for _, p := range []string{u.DamPath(), u.ContentPath()} {
		if res := u.b.repo.GetResource(p); res != nil {
			if err := u.b.repo.Delete(res); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ContentFragmentStructured creates a structured fragment whose master data
// holds the given key/value pairs in argument order
func (b *Builder) ContentFragmentStructured(p string, kv ...any) (*contentfragment.Fragment, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("structured fragment %s: %w", p, ErrOddArguments)
	}
	keys := make([]string, 0, len(kv)/2)
	values := make([]any, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("structured fragment %s: key at position %d is %T, not string", p, i, kv[i])
		}
		keys = append(keys, key)
		values = append(values, kv[i+1])
	}
	return b.structured(p, keys, values)
}

// ContentFragmentStructuredMap creates a structured fragment from data; keys
// are stored in sorted order
func (b *Builder) ContentFragmentStructuredMap(p string, data map[string]any) (*contentfragment.Fragment, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = data[k]
	}
	return b.structured(p, keys, values)
}

func (b *Builder) structured(p string, keys []string, values []any) (*contentfragment.Fragment, error) {
	asset, err := b.assetSkeleton(p)
	if err != nil {
		return nil, err
	}
	master, err := b.repo.GetOrCreate(path.Join(asset.Path(), dam.JCR_CONTENT, contentfragment.STRUCTURED_DATA_PATH),
		"", resource.NT_UNSTRUCTURED, nil)
	if err != nil {
		return nil, fmt.Errorf("structured fragment %s: %w", p, err)
	}
	data := master.ValueMap()
	for i, k := range keys {
		data.Put(k, values[i])
	}
	return contentfragment.New(asset, b.opts...)
}

// ContentFragmentText creates a text fragment with a single "main" element
func (b *Builder) ContentFragmentText(p, content, contentType string) (*contentfragment.Fragment, error) {
	asset, err := b.assetSkeleton(p)
	if err != nil {
		return nil, err
	}
	metadata := asset.Child(dam.JCR_CONTENT + "/" + dam.METADATA_FOLDER)
	metadata.ValueMap().Put(dam.DC_FORMAT, contentType)

	if _, err := b.repo.GetOrCreate(
		path.Join(asset.Path(), dam.JCR_CONTENT, contentfragment.MODEL_ELEMENTS_PATH, contentfragment.MAIN_ELEMENT),
		resource.NT_UNSTRUCTURED, resource.NT_UNSTRUCTURED,
		map[string]any{
			contentfragment.PN_VALUE:        content,
			contentfragment.PN_CONTENT_TYPE: contentType,
		}); err != nil {
		return nil, fmt.Errorf("text fragment %s: %w", p, err)
	}
	return contentfragment.New(asset, b.opts...)
}

// assetSkeleton creates asset -> jcr:content -> metadata at p
func (b *Builder) assetSkeleton(p string) (*resource.Resource, error) {
	if b.repo.GetResource(p) != nil {
		return nil, fmt.Errorf("asset %s: %w", p, resource.ErrAlreadyExists)
	}
	asset, err := b.repo.GetOrCreate(p, dam.NT_DAM_ASSET, NT_FOLDER, map[string]any{
		dam.PN_UUID: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", p, err)
	}
	content, err := b.repo.Create(asset, dam.JCR_CONTENT, map[string]any{
		resource.PN_PRIMARY_TYPE:            dam.NT_DAM_ASSETCONTENT,
		contentfragment.PN_CONTENT_FRAGMENT: true,
	})
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", p, err)
	}
	if _, err := b.repo.Create(content, dam.METADATA_FOLDER, nil); err != nil {
		return nil, fmt.Errorf("asset %s: %w", p, err)
	}
	return asset, nil
}

// Tag creates a tag, or returns the existing one
func (b *Builder) Tag(tagID string) (*tagging.Tag, error) {
	return b.tags.CreateTag(tagID, "", "")
}

// TagWithTitle creates a tag with title and description
func (b *Builder) TagWithTitle(tagID, title, description string) (*tagging.Tag, error) {
	return b.tags.CreateTag(tagID, title, description)
}

// Field is one dialog item of a fragment template
type Field struct {
	Name      string
	Label     string
	ValueType string
	MetaType  string
	Default   string
}

// FragmentTemplate creates a template node with one dialog item per field
func (b *Builder) FragmentTemplate(p, title string, fields ...Field) (*contentfragment.Template, error) {
	if b.repo.GetResource(p) != nil {
		return nil, fmt.Errorf("template %s: %w", p, resource.ErrAlreadyExists)
	}
	tmplRes, err := b.repo.GetOrCreate(p, NT_TEMPLATE, NT_FOLDER, nil)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", p, err)
	}

	contentProps := map[string]any{resource.PN_PRIMARY_TYPE: resource.NT_UNSTRUCTURED}
	if title != "" {
		contentProps[dam.PN_TITLE] = title
	}
	if _, err := b.repo.Create(tmplRes, dam.JCR_CONTENT, contentProps); err != nil {
		return nil, fmt.Errorf("template %s: %w", p, err)
	}

	items, err := b.repo.GetOrCreate(
		path.Join(p, dam.JCR_CONTENT, contentfragment.MODEL_NODE, contentfragment.DIALOG_ITEMS_PATH),
		resource.NT_UNSTRUCTURED, resource.NT_UNSTRUCTURED, nil)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", p, err)
	}

	for i, f := range fields {
		props := map[string]any{
			contentfragment.PN_ITEM_NAME:   f.Name,
			contentfragment.PN_FIELD_LABEL: f.Label,
			contentfragment.PN_VALUE_TYPE:  defaultString(f.ValueType, "string"),
		}
		if f.MetaType != "" {
			props[contentfragment.PN_META_TYPE] = f.MetaType
		}
		if f.Default != "" {
			props[contentfragment.PN_ITEM_VALUE] = f.Default
		}
		if _, err := b.repo.Create(items, "item"+strconv.Itoa(i), props); err != nil {
			return nil, fmt.Errorf("template %s field %s: %w", p, f.Name, err)
		}
	}

	return contentfragment.NewTemplate(tmplRes, b.opts...)
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
