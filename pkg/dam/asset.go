// ABOUTME: DAM asset conventions layered over repository resources
// ABOUTME: Node names, property names and the Asset view of an asset node

package dam

import (
	"errors"
	"fmt"

	"github.com/nainya/cfmock/pkg/resource"
)

// Node names, node types and property names used by DAM assets
const (
	JCR_CONTENT         = "jcr:content"
	METADATA_FOLDER     = "metadata"
	NT_DAM_ASSET        = "dam:Asset"
	NT_DAM_ASSETCONTENT = "dam:AssetContent"
	PN_TITLE            = "jcr:title"
	PN_DESCRIPTION      = "jcr:description"
	PN_UUID             = "jcr:uuid"
	DC_FORMAT           = "dc:format"
	PN_TAGS             = "cq:tags"
)

// ErrNotAsset is returned when a resource lacks the asset content node
var ErrNotAsset = errors.New("resource is not an asset")

// Asset is a read/write view of a dam:Asset resource
type Asset struct {
	res     *resource.Resource
	content *resource.Resource
}

// NewAsset wraps res, which must have a jcr:content child
func NewAsset(res *resource.Resource) (*Asset, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil resource", ErrNotAsset)
	}
	content := res.Child(JCR_CONTENT)
	if content == nil {
		return nil, fmt.Errorf("%w: missing %s/%s", ErrNotAsset, res.Path(), JCR_CONTENT)
	}
	return &Asset{res: res, content: content}, nil
}

// Name returns the asset node name
func (a *Asset) Name() string {
	return a.res.Name()
}

// Path returns the asset node path
func (a *Asset) Path() string {
	return a.res.Path()
}

// Resource returns the underlying asset resource
func (a *Asset) Resource() *resource.Resource {
	return a.res
}

// Metadata returns the live jcr:content/metadata bag, or nil if the node is missing
func (a *Asset) Metadata() *resource.ValueMap {
	md := a.content.Child(METADATA_FOLDER)
	if md == nil {
		return nil
	}
	return md.ValueMap()
}

// MimeType returns the dc:format metadata value
func (a *Asset) MimeType() string {
	md := a.Metadata()
	if md == nil {
		return ""
	}
	return md.GetString(DC_FORMAT, "")
}
