// ABOUTME: In-memory hierarchical repository with path lookup and node creation
// ABOUTME: Write operations are logged, measured and can be failed on demand

package resource

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/nainya/cfmock/internal/logger"
	"github.com/nainya/cfmock/internal/metrics"
)

// WriteHook is called before every write; a non-nil error aborts the write
type WriteHook func(parentPath, name string) error

// Repository is an in-memory tree of resources rooted at "/".
// It is not safe for concurrent use.
type Repository struct {
	root    *Resource
	log     *logger.Logger
	metrics *metrics.Metrics
	hook    WriteHook
}

// Option configures a Repository
type Option func(*Repository)

// WithLogger sets the logger used for write operations
func WithLogger(l *logger.Logger) Option {
	return func(r *Repository) {
		r.log = l.Component("repository")
	}
}

// WithMetrics records write operations in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) {
		r.metrics = m
	}
}

// WithWriteHook installs a hook that can fail writes
func WithWriteHook(h WriteHook) Option {
	return func(r *Repository) {
		r.hook = h
	}
}

// NewRepository creates an empty repository
func NewRepository(opts ...Option) *Repository {
	r := &Repository{log: logger.Nop()}
	r.root = &Resource{repo: r, props: &ValueMap{}}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics.SetRepoNodes(1)
	return r
}

// SetWriteHook replaces the write hook; nil removes it
func (r *Repository) SetWriteHook(h WriteHook) {
	r.hook = h
}

// Root returns the root resource
func (r *Repository) Root() *Resource {
	return r.root
}

// GetResource resolves an absolute path, returning nil if it does not exist
func (r *Repository) GetResource(p string) *Resource {
	if !strings.HasPrefix(p, "/") {
		return nil
	}
	p = path.Clean(p)
	if p == "/" {
		return r.root
	}
	return r.root.Child(strings.TrimPrefix(p, "/"))
}

// Create adds a child named name under parent with the given properties
func (r *Repository) Create(parent *Resource, name string, props map[string]any) (*Resource, error) {
	start := time.Now()
	if parent == nil {
		return nil, r.record("create", name, start, fmt.Errorf("create %q: %w: nil parent", name, ErrNotFound))
	}
	target := path.Join(parent.Path(), name)

	if !validNodeName(name) {
		return nil, r.record("create", target, start, fmt.Errorf("create %s: %w", target, ErrInvalidName))
	}
	if parent.repo != r {
		return nil, r.record("create", target, start, fmt.Errorf("create %s: parent belongs to another repository", target))
	}
	if parent.Child(name) != nil {
		return nil, r.record("create", target, start, fmt.Errorf("create %s: %w", target, ErrAlreadyExists))
	}
	if r.hook != nil {
		if err := r.hook(parent.Path(), name); err != nil {
			return nil, r.record("create", target, start, fmt.Errorf("create %s: %w", target, err))
		}
	}

	child := &Resource{
		repo:   r,
		parent: parent,
		name:   name,
		props:  NewValueMap(props),
	}
	parent.addChild(child)

	r.record("create", target, start, nil)
	r.metrics.SetRepoNodes(r.root.size())
	return child, nil
}

// GetOrCreate returns the resource at p, creating it and any missing ancestors.
// Missing ancestors get intermediateType as primary type; the leaf gets nodeType
// merged into props.
func (r *Repository) GetOrCreate(p, nodeType, intermediateType string, props map[string]any) (*Resource, error) {
	if !strings.HasPrefix(p, "/") {
		return nil, fmt.Errorf("get or create %q: %w: path must be absolute", p, ErrInvalidName)
	}
	if res := r.GetResource(p); res != nil {
		return res, nil
	}

	segments := strings.Split(strings.Trim(path.Clean(p), "/"), "/")
	cur := r.root
	for i, seg := range segments {
		next := cur.Child(seg)
		if next == nil {
			var childProps map[string]any
			if i == len(segments)-1 {
				childProps = make(map[string]any, len(props)+1)
				for k, v := range props {
					childProps[k] = v
				}
				if nodeType != "" {
					childProps[PN_PRIMARY_TYPE] = nodeType
				}
			} else if intermediateType != "" {
				childProps = map[string]any{PN_PRIMARY_TYPE: intermediateType}
			}

			created, err := r.Create(cur, seg, childProps)
			if err != nil {
				return nil, err
			}
			next = created
		}
		cur = next
	}
	return cur, nil
}

// Delete removes res and its subtree
func (r *Repository) Delete(res *Resource) error {
	start := time.Now()
	if res == nil {
		return r.record("delete", "", start, fmt.Errorf("delete: %w", ErrNotFound))
	}
	target := res.Path()
	if res == r.root {
		return r.record("delete", target, start, fmt.Errorf("delete %s: %w", target, ErrRootImmutable))
	}
	if res.parent == nil || res.parent.Child(res.name) != res {
		return r.record("delete", target, start, fmt.Errorf("delete %s: %w", target, ErrNotFound))
	}
	if r.hook != nil {
		if err := r.hook(res.parent.Path(), res.name); err != nil {
			return r.record("delete", target, start, fmt.Errorf("delete %s: %w", target, err))
		}
	}

	res.parent.removeChild(res.name)
	res.parent = nil

	r.record("delete", target, start, nil)
	r.metrics.SetRepoNodes(r.root.size())
	return nil
}

// UniqueChildName returns name if parent has no such child, otherwise the first
// free name of the form name0, name1, ...
func (r *Repository) UniqueChildName(parent *Resource, name string) (string, error) {
	if parent.Child(name) == nil {
		return name, nil
	}
	for i := 0; i < MAX_UNIQUE_TRIES; i++ {
		candidate := name + strconv.Itoa(i)
		if parent.Child(candidate) == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s/%s: %w", parent.Path(), name, ErrUniqueNameExhausted)
}

// Size returns the number of resources including the root
func (r *Repository) Size() int {
	return r.root.size()
}

func (r *Repository) record(op, target string, start time.Time, err error) error {
	duration := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordRepoOperation(op, status, duration)
	r.log.LogRepoOperation(op, target, duration, err)
	return err
}

func validNodeName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}
