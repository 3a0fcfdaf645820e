// ABOUTME: Hierarchical resource data model for the in-memory repository
// ABOUTME: Defines Resource nodes, well-known property names and store errors

package resource

import (
	"errors"
	"path"
	"slices"
	"strings"
)

// Well-known property names and node types
const (
	PN_PRIMARY_TYPE  = "jcr:primaryType"
	NT_UNSTRUCTURED  = "nt:unstructured"
	MAX_UNIQUE_TRIES = 1000
)

// Store errors
var (
	ErrAlreadyExists       = errors.New("resource already exists")
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidName         = errors.New("invalid resource name")
	ErrUniqueNameExhausted = errors.New("unable to find a unique child name")
	ErrRootImmutable       = errors.New("root resource cannot be deleted")
)

// Resource is a named node with ordered children and a property bag
type Resource struct {
	repo     *Repository
	parent   *Resource
	name     string
	props    *ValueMap
	children []*Resource
	byName   map[string]*Resource
}

// Name returns the last path segment ("" for the root)
func (r *Resource) Name() string {
	return r.name
}

// Path returns the absolute path of the resource
func (r *Resource) Path() string {
	if r.parent == nil {
		return "/"
	}
	return path.Join(r.parent.Path(), r.name)
}

// Parent returns the parent resource, nil for the root
func (r *Resource) Parent() *Resource {
	return r.parent
}

// Repository returns the repository that owns the resource
func (r *Resource) Repository() *Repository {
	return r.repo
}

// ValueMap returns the live property bag
func (r *Resource) ValueMap() *ValueMap {
	return r.props
}

// ResourceType returns the primary node type, if set
func (r *Resource) ResourceType() string {
	return r.props.GetString(PN_PRIMARY_TYPE, "")
}

// Child resolves a relative path such as "model/elements/main".
// Returns nil if any segment is missing.
func (r *Resource) Child(relPath string) *Resource {
	if relPath == "" {
		return r.byName[""]
	}
	cur := r
	for _, seg := range strings.Split(relPath, "/") {
		if seg == "" {
			continue
		}
		next, ok := cur.byName[seg]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// Children returns a snapshot of the direct children in insertion order
func (r *Resource) Children() []*Resource {
	return slices.Clone(r.children)
}

// HasChildren reports whether the resource has any child
func (r *Resource) HasChildren() bool {
	return len(r.children) > 0
}

func (r *Resource) addChild(child *Resource) {
	if r.byName == nil {
		r.byName = make(map[string]*Resource)
	}
	r.children = append(r.children, child)
	r.byName[child.name] = child
}

func (r *Resource) removeChild(name string) {
	delete(r.byName, name)
	r.children = slices.DeleteFunc(r.children, func(c *Resource) bool { return c.name == name })
}

// size counts this resource and all descendants
func (r *Resource) size() int {
	n := 1
	for _, c := range r.children {
		n += c.size()
	}
	return n
}
