// ABOUTME: Element definitions read from template dialog items
// ABOUTME: Name, label, data type descriptor and default value per field

package contentfragment

import (
	"strings"

	"github.com/nainya/cfmock/pkg/resource"
)

// Dialog item property names
const (
	PN_ITEM_NAME   = "name"
	PN_FIELD_LABEL = "fieldLabel"
	PN_VALUE_TYPE  = "valueType"
	PN_META_TYPE   = "metaType"
	PN_ITEM_VALUE  = "value"
	MULTI_SUFFIX   = "[]"
)

// elementTemplate is a snapshot of one dialog item taken when the template
// is parsed; later edits to the item node are not seen
type elementTemplate struct {
	res        *resource.Resource
	name       string
	title      string
	dataType   dataType
	defaultVal string
}

func newElementTemplate(item *resource.Resource) *elementTemplate {
	props := item.ValueMap()
	return &elementTemplate{
		res:   item,
		name:  props.GetString(PN_ITEM_NAME, ""),
		title: props.GetString(PN_FIELD_LABEL, ""),
		dataType: dataType{
			valueType:    props.GetString(PN_VALUE_TYPE, ""),
			semanticType: props.GetString(PN_META_TYPE, ""),
		},
		defaultVal: props.GetString(PN_ITEM_VALUE, ""),
	}
}

var _ ElementTemplate = (*elementTemplate)(nil)

func (e *elementTemplate) AdaptTo(kind AdapterKind) (any, bool) {
	if kind == AdapterResource {
		return e.res, true
	}
	return nil, false
}

func (e *elementTemplate) Name() string {
	return e.name
}

func (e *elementTemplate) Title() string {
	return e.title
}

func (e *elementTemplate) DataType() DataType {
	return e.dataType
}

func (e *elementTemplate) InitialContentType() string {
	return ""
}

func (e *elementTemplate) DefaultContent() string {
	return e.defaultVal
}

func (e *elementTemplate) MetaData() map[string]any {
	return map[string]any{}
}

type dataType struct {
	valueType    string
	semanticType string
}

func (d dataType) TypeString() string {
	return d.valueType
}

func (d dataType) ValueType() string {
	return d.valueType
}

func (d dataType) SemanticType() string {
	return d.semanticType
}

// IsMultiValue reports a valueType ending in "[]", e.g. "string[]"
func (d dataType) IsMultiValue() bool {
	return strings.HasSuffix(d.ValueType(), MULTI_SUFFIX)
}
