// ABOUTME: Loads YAML or JSON fixture trees into a repository
// ABOUTME: Mappings become nodes, scalars and sequences become properties, in document order

package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/nainya/cfmock/internal/logger"
	"github.com/nainya/cfmock/internal/metrics"
	"github.com/nainya/cfmock/pkg/resource"
)

// ErrInvalidFixture is returned for documents that do not describe a node tree
var ErrInvalidFixture = errors.New("invalid fixture")

// Option configures a load
type Option func(*loader)

// WithLogger logs loaded fixtures
func WithLogger(l *logger.Logger) Option {
	return func(ld *loader) {
		ld.log = l.Component("loader")
	}
}

// WithMetrics counts loaded fixtures in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(ld *loader) {
		ld.metrics = m
	}
}

type loader struct {
	repo    *resource.Repository
	log     *logger.Logger
	metrics *metrics.Metrics
	source  string
	nodes   int
}

// Load reads one document from r and creates its nodes below parentPath.
// The parent is created if missing. Existing nodes are merged into. Errors
// for individual nodes do not stop the load; they are returned together.
func Load(repo *resource.Repository, parentPath string, r io.Reader, opts ...Option) (*resource.Resource, error) {
	ld := &loader{repo: repo, log: logger.Nop(), source: "<reader>"}
	for _, opt := range opts {
		opt(ld)
	}
	return ld.load(parentPath, r)
}

// LoadFile loads the fixture stored at filename
func LoadFile(repo *resource.Repository, parentPath, filename string, opts ...Option) (*resource.Resource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	ld := &loader{repo: repo, log: logger.Nop(), source: filename}
	for _, opt := range opts {
		opt(ld)
	}
	return ld.load(parentPath, f)
}

func (ld *loader) load(parentPath string, r io.Reader) (*resource.Resource, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: %w", ld.source, err)
	}

	parent, err := ld.repo.GetOrCreate(parentPath, resource.NT_UNSTRUCTURED, resource.NT_UNSTRUCTURED, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ld.source, err)
	}

	// Empty document
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return parent, nil
	}

	root := resolve(doc.Content[0])
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return parent, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s: top level must be a mapping (line %d)", ErrInvalidFixture, ld.source, root.Line)
	}

	errs := ld.fill(parent, root)

	ld.metrics.IncFixturesLoaded()
	ld.metrics.SetRepoNodes(ld.repo.Size())
	log := ld.log.WithFields(map[string]interface{}{
		"source": ld.source,
		"parent": parent.Path(),
	})
	if errs != nil {
		log.Warn("Fixture loaded with errors").
			Int("nodes", ld.nodes).
			Int("errors", len(multierr.Errors(errs))).
			Send()
	} else {
		log.Info("Fixture loaded").Int("nodes", ld.nodes).Send()
	}

	return parent, errs
}

// fill applies the entries of mapping m to res in document order
func (ld *loader) fill(res *resource.Resource, m *yaml.Node) error {
	var errs error
	props := res.ValueMap()

	for i := 0; i+1 < len(m.Content); i += 2 {
		keyNode, valNode := resolve(m.Content[i]), resolve(m.Content[i+1])
		if keyNode.Kind != yaml.ScalarNode {
			errs = multierr.Append(errs, ld.nodeError(res, keyNode, "key must be a scalar"))
			continue
		}
		key := keyNode.Value

		switch valNode.Kind {
		case yaml.MappingNode:
			var child *resource.Resource
			if !strings.Contains(key, "/") {
				child = res.Child(key)
			}
			if child == nil {
				var err error
				child, err = ld.repo.Create(res, key, nil)
				if err != nil {
					errs = multierr.Append(errs, fmt.Errorf("%s line %d: %w", ld.source, keyNode.Line, err))
					continue
				}
				ld.nodes++
			}
			errs = multierr.Append(errs, ld.fill(child, valNode))

		case yaml.SequenceNode:
			v, err := ld.sequence(res, key, valNode)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			props.Put(key, v)

		case yaml.ScalarNode:
			v, err := scalar(valNode)
			if err != nil {
				errs = multierr.Append(errs, ld.nodeError(res, valNode, "property %s: %v", key, err))
				continue
			}
			props.Put(key, v)

		default:
			errs = multierr.Append(errs, ld.nodeError(res, valNode, "property %s: unsupported node", key))
		}
	}
	return errs
}

// sequence converts a list of scalars; all-string lists become []string
func (ld *loader) sequence(res *resource.Resource, key string, n *yaml.Node) (any, error) {
	values := make([]any, 0, len(n.Content))
	allStrings := true
	for _, item := range n.Content {
		item = resolve(item)
		if item.Kind != yaml.ScalarNode {
			return nil, ld.nodeError(res, item, "property %s: list items must be scalars", key)
		}
		v, err := scalar(item)
		if err != nil {
			return nil, ld.nodeError(res, item, "property %s: %v", key, err)
		}
		if _, ok := v.(string); !ok {
			allStrings = false
		}
		values = append(values, v)
	}

	if !allStrings {
		return values, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.(string)
	}
	return out, nil
}

func (ld *loader) nodeError(res *resource.Resource, n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%w: %s line %d at %s: %s", ErrInvalidFixture, ld.source, n.Line, res.Path(), fmt.Sprintf(format, args...))
}

// scalar decodes a scalar with the YAML resolver (int, float64, bool, string, nil)
func scalar(n *yaml.Node) (any, error) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
