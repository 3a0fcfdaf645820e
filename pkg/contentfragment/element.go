// ABOUTME: Structured and text element variants of a content fragment
// ABOUTME: Structured elements live in flat maps, text elements in child nodes

package contentfragment

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"

	"github.com/nainya/cfmock/pkg/dam"
	"github.com/nainya/cfmock/pkg/resource"
)

// Text element property names
const (
	PN_VALUE        = "value"
	PN_CONTENT_TYPE = "contentType"
	VARIATIONS_NODE = "variations"
)

var (
	_ ContentElement    = (*structuredElement)(nil)
	_ ContentElement    = (*textElement)(nil)
	_ ContentVariation  = (*structuredVariation)(nil)
	_ ContentVariation  = (*textVariation)(nil)
	_ VariationTemplate = (*variationDef)(nil)
)

// coerceContent converts a stored value to element text. Arrays of any
// element type are joined with newlines.
func coerceContent(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case []string:
		return strings.Join(t, "\n")
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = coerceContent(rv.Index(i).Interface())
		}
		return strings.Join(parts, "\n")
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// ========== Structured variant ==========

type structuredElement struct {
	cf   *Fragment
	name string
	data *resource.ValueMap
}

func (cf *Fragment) newStructuredElement(name string) *structuredElement {
	return &structuredElement{cf: cf, name: name, data: cf.structuredData}
}

func (e *structuredElement) Name() string  { return e.name }
func (e *structuredElement) Title() string { return e.name }

func (e *structuredElement) Content() string {
	v, _ := e.data.Get(e.name)
	return coerceContent(v)
}

// ContentType is not modeled for structured data
func (e *structuredElement) ContentType() string {
	return ""
}

// SetContent writes content to the master data map; contentType is ignored
func (e *structuredElement) SetContent(content, contentType string) error {
	e.data.Put(e.name, content)
	return nil
}

func (e *structuredElement) AdaptTo(kind AdapterKind) (any, bool) {
	return nil, false
}

// variationData returns the flat map of variation name, or nil
func (e *structuredElement) variationData(name string) *resource.ValueMap {
	if name == "" || name == MASTER_VARIATION || strings.Contains(name, "/") {
		return nil
	}
	res := e.cf.content.Child(DATA_FOLDER + "/" + name)
	if res == nil {
		return nil
	}
	return res.ValueMap()
}

func (e *structuredElement) Variations() *Iterator[ContentVariation] {
	data := e.cf.content.Child(DATA_FOLDER)
	if data == nil {
		return emptyIterator[ContentVariation]()
	}
	return mapIterator(data.Children(), func(res *resource.Resource) (ContentVariation, bool) {
		if res.Name() == MASTER_VARIATION || !res.ValueMap().Has(e.name) {
			return nil, false
		}
		return &structuredVariation{el: e, name: res.Name(), data: res.ValueMap(), res: res}, true
	})
}

func (e *structuredElement) Variation(name string) ContentVariation {
	data := e.variationData(name)
	if data == nil || !data.Has(e.name) {
		return nil
	}
	return &structuredVariation{el: e, name: name, data: data, res: e.cf.content.Child(DATA_FOLDER + "/" + name)}
}

func (e *structuredElement) CreateVariation(tmpl VariationTemplate) (ContentVariation, error) {
	if tmpl == nil {
		return nil, newError(nil, "Variation template must not be nil.")
	}
	name := tmpl.Name()
	if name == MASTER_VARIATION {
		return nil, newError(nil, "Variation name %s is reserved.", name)
	}
	if e.cf.variationDef(name) == nil {
		return nil, newError(nil, "Variation %s is not defined on fragment %s.", name, e.cf.Name())
	}

	res, err := e.cf.content.Repository().GetOrCreate(e.cf.content.Path()+"/"+DATA_FOLDER+"/"+name,
		"", resource.NT_UNSTRUCTURED, nil)
	if err != nil {
		return nil, newError(err, "Unable to create variation %s for element %s", name, e.name)
	}
	data := res.ValueMap()
	if data.Has(e.name) {
		return nil, newError(nil, "Variation %s already exists for element %s.", name, e.name)
	}
	data.Put(e.name, e.Content())

	return &structuredVariation{el: e, name: name, data: data, res: res}, nil
}

func (e *structuredElement) RemoveVariation(variation ContentVariation) error {
	if variation == nil {
		return newError(nil, "Variation must not be nil.")
	}
	data := e.variationData(variation.Name())
	if data == nil || !data.Remove(e.name) {
		return newError(nil, "Variation %s does not exist for element %s.", variation.Name(), e.name)
	}
	return nil
}

type structuredVariation struct {
	el   *structuredElement
	name string
	data *resource.ValueMap
	res  *resource.Resource
}

func (v *structuredVariation) Name() string { return v.name }

func (v *structuredVariation) Title() string {
	if def := v.el.cf.variationDef(v.name); def != nil {
		return def.Title()
	}
	return v.name
}

func (v *structuredVariation) Description() string {
	if def := v.el.cf.variationDef(v.name); def != nil {
		return def.Description()
	}
	return ""
}

func (v *structuredVariation) Content() string {
	val, _ := v.data.Get(v.el.name)
	return coerceContent(val)
}

func (v *structuredVariation) ContentType() string {
	return ""
}

func (v *structuredVariation) SetContent(content, contentType string) error {
	v.data.Put(v.el.name, content)
	return nil
}

func (v *structuredVariation) Synchronize() error {
	return unsupported("Synchronize")
}

func (v *structuredVariation) AdaptTo(kind AdapterKind) (any, bool) {
	if kind == AdapterResource && v.res != nil {
		return v.res, true
	}
	return nil, false
}

// ========== Text variant ==========

type textElement struct {
	cf  *Fragment
	res *resource.Resource
}

func (cf *Fragment) newTextElement(res *resource.Resource) *textElement {
	return &textElement{cf: cf, res: res}
}

func (e *textElement) Name() string { return e.res.Name() }

func (e *textElement) Title() string {
	return e.res.ValueMap().GetString(dam.PN_TITLE, e.res.Name())
}

func (e *textElement) Content() string {
	return e.res.ValueMap().GetString(PN_VALUE, "")
}

func (e *textElement) ContentType() string {
	return e.res.ValueMap().GetString(PN_CONTENT_TYPE, "")
}

// SetContent writes value and, when given, the content type
func (e *textElement) SetContent(content, contentType string) error {
	props := e.res.ValueMap()
	props.Put(PN_VALUE, content)
	if contentType != "" {
		props.Put(PN_CONTENT_TYPE, contentType)
	}
	return nil
}

func (e *textElement) AdaptTo(kind AdapterKind) (any, bool) {
	if kind == AdapterResource {
		return e.res, true
	}
	return nil, false
}

func (e *textElement) Variations() *Iterator[ContentVariation] {
	variations := e.res.Child(VARIATIONS_NODE)
	if variations == nil {
		return emptyIterator[ContentVariation]()
	}
	return mapIterator(variations.Children(), func(res *resource.Resource) (ContentVariation, bool) {
		return &textVariation{res: res}, true
	})
}

func (e *textElement) Variation(name string) ContentVariation {
	if name == "" || strings.Contains(name, "/") {
		return nil
	}
	res := e.res.Child(VARIATIONS_NODE + "/" + name)
	if res == nil {
		return nil
	}
	return &textVariation{res: res}
}

func (e *textElement) CreateVariation(tmpl VariationTemplate) (ContentVariation, error) {
	if tmpl == nil {
		return nil, newError(nil, "Variation template must not be nil.")
	}
	name := tmpl.Name()
	def := e.cf.variationDef(name)
	if def == nil {
		return nil, newError(nil, "Variation %s is not defined on fragment %s.", name, e.cf.Name())
	}

	repo := e.res.Repository()
	variations, err := repo.GetOrCreate(e.res.Path()+"/"+VARIATIONS_NODE,
		resource.NT_UNSTRUCTURED, resource.NT_UNSTRUCTURED, nil)
	if err != nil {
		return nil, newError(err, "Unable to create variation %s for element %s", name, e.Name())
	}
	if variations.Child(name) != nil {
		return nil, newError(nil, "Variation %s already exists for element %s.", name, e.Name())
	}

	child, err := repo.Create(variations, name, map[string]any{
		resource.PN_PRIMARY_TYPE: resource.NT_UNSTRUCTURED,
		PN_VARIATION_NAME:        name,
		dam.PN_TITLE:             def.Title(),
		dam.PN_DESCRIPTION:       def.Description(),
		PN_VALUE:                 e.Content(),
		PN_CONTENT_TYPE:          e.ContentType(),
	})
	if err != nil {
		return nil, newError(err, "Unable to create variation %s for element %s", name, e.Name())
	}
	return &textVariation{res: child}, nil
}

func (e *textElement) RemoveVariation(variation ContentVariation) error {
	if variation == nil {
		return newError(nil, "Variation must not be nil.")
	}
	name := variation.Name()
	if name == "" || strings.Contains(name, "/") {
		return newError(nil, "Variation %q does not exist for element %s.", name, e.Name())
	}
	res := e.res.Child(VARIATIONS_NODE + "/" + name)
	if res == nil {
		return newError(nil, "Variation %s does not exist for element %s.", name, e.Name())
	}
	if err := e.res.Repository().Delete(res); err != nil {
		return newError(err, "Unable to remove variation %s from element %s", name, e.Name())
	}
	return nil
}

type textVariation struct {
	res *resource.Resource
}

func (v *textVariation) Name() string {
	return v.res.ValueMap().GetString(PN_VARIATION_NAME, v.res.Name())
}

func (v *textVariation) Title() string {
	return v.res.ValueMap().GetString(dam.PN_TITLE, v.Name())
}

func (v *textVariation) Description() string {
	return v.res.ValueMap().GetString(dam.PN_DESCRIPTION, "")
}

func (v *textVariation) Content() string {
	return v.res.ValueMap().GetString(PN_VALUE, "")
}

func (v *textVariation) ContentType() string {
	return v.res.ValueMap().GetString(PN_CONTENT_TYPE, "")
}

func (v *textVariation) SetContent(content, contentType string) error {
	props := v.res.ValueMap()
	props.Put(PN_VALUE, content)
	if contentType != "" {
		props.Put(PN_CONTENT_TYPE, contentType)
	}
	return nil
}

func (v *textVariation) Synchronize() error {
	return unsupported("Synchronize")
}

func (v *textVariation) AdaptTo(kind AdapterKind) (any, bool) {
	if kind == AdapterResource {
		return v.res, true
	}
	return nil, false
}

// ========== Fragment-level variation definition ==========

type variationDef struct {
	res *resource.Resource
}

func (d *variationDef) Name() string {
	return d.res.ValueMap().GetString(PN_VARIATION_NAME, d.res.Name())
}

func (d *variationDef) Title() string {
	return d.res.ValueMap().GetString(dam.PN_TITLE, d.Name())
}

func (d *variationDef) Description() string {
	return d.res.ValueMap().GetString(dam.PN_DESCRIPTION, "")
}

func (d *variationDef) AdaptTo(kind AdapterKind) (any, bool) {
	if kind == AdapterResource {
		return d.res, true
	}
	return nil, false
}
