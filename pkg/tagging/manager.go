// ABOUTME: Tag storage under /content/cq:tags and tag id resolution
// ABOUTME: Tag ids take the form namespace:local/path; bare ids use "default"

package tagging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nainya/cfmock/pkg/dam"
	"github.com/nainya/cfmock/pkg/resource"
)

const (
	TAG_ROOT          = "/content/cq:tags"
	NT_TAG            = "cq:Tag"
	DEFAULT_NAMESPACE = "default"
)

// ErrInvalidTagID is returned for ids that cannot map to a tag path
var ErrInvalidTagID = errors.New("invalid tag id")

// Tag is a resolved tag record
type Tag struct {
	TagID       string
	Namespace   string
	Name        string
	Title       string
	Description string
	Path        string
}

// Manager creates and resolves tags stored in a repository
type Manager struct {
	repo *resource.Repository
}

// NewManager creates a tag manager over repo
func NewManager(repo *resource.Repository) *Manager {
	return &Manager{repo: repo}
}

// CreateTag creates the tag and any missing namespace/parent tags.
// An existing tag is returned unchanged.
func (m *Manager) CreateTag(tagID, title, description string) (*Tag, error) {
	ns, local, err := splitTagID(tagID)
	if err != nil {
		return nil, err
	}

	if existing := m.Resolve(tagID); existing != nil {
		return existing, nil
	}

	// Namespace and intermediate tags
	nsRes, err := m.repo.GetOrCreate(TAG_ROOT+"/"+ns, NT_TAG, "sling:Folder", nil)
	if err != nil {
		return nil, fmt.Errorf("create tag namespace %s: %w", ns, err)
	}

	cur := nsRes
	segments := strings.Split(local, "/")
	for i, seg := range segments {
		next := cur.Child(seg)
		if next == nil {
			props := map[string]any{resource.PN_PRIMARY_TYPE: NT_TAG}
			if i == len(segments)-1 {
				if title != "" {
					props[dam.PN_TITLE] = title
				}
				if description != "" {
					props[dam.PN_DESCRIPTION] = description
				}
			}
			next, err = m.repo.Create(cur, seg, props)
			if err != nil {
				return nil, fmt.Errorf("create tag %s: %w", tagID, err)
			}
		}
		cur = next
	}

	return toTag(ns, local, cur), nil
}

// Resolve looks up a tag by id or absolute tag path; nil if it does not exist
func (m *Manager) Resolve(tagID string) *Tag {
	if strings.HasPrefix(tagID, TAG_ROOT+"/") {
		rel := strings.TrimPrefix(tagID, TAG_ROOT+"/")
		ns, local, found := strings.Cut(rel, "/")
		if !found {
			return nil
		}
		tagID = ns + ":" + local
	}

	ns, local, err := splitTagID(tagID)
	if err != nil {
		return nil
	}
	res := m.repo.GetResource(TAG_ROOT + "/" + ns + "/" + local)
	if res == nil || res.ResourceType() != NT_TAG {
		return nil
	}
	return toTag(ns, local, res)
}

func toTag(ns, local string, res *resource.Resource) *Tag {
	props := res.ValueMap()
	return &Tag{
		TagID:       ns + ":" + local,
		Namespace:   ns,
		Name:        res.Name(),
		Title:       props.GetString(dam.PN_TITLE, res.Name()),
		Description: props.GetString(dam.PN_DESCRIPTION, ""),
		Path:        res.Path(),
	}
}

func splitTagID(tagID string) (string, string, error) {
	ns, local, found := strings.Cut(tagID, ":")
	if !found {
		ns, local = DEFAULT_NAMESPACE, tagID
	}
	local = strings.Trim(local, "/")
	if ns == "" || local == "" || strings.Contains(local, ":") || strings.Contains(local, "//") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTagID, tagID)
	}
	return ns, local, nil
}
