// ABOUTME: Tests for fragment templates and fragment creation
// ABOUTME: Covers dialog item parsing, name derivation and skeleton cleanup

package contentfragment

import (
	"errors"
	"strings"
	"testing"

	"github.com/nainya/cfmock/pkg/dam"
	"github.com/nainya/cfmock/pkg/resource"
)

const testTemplatePath = "/conf/test/settings/dam/cfm/models/article"

func setupTestTemplate(t *testing.T, repo *resource.Repository) *Template {
	tmplRes, err := repo.GetOrCreate(testTemplatePath, "cq:Template", "sling:Folder", nil)
	if err != nil {
		t.Fatalf("Failed to create template node: %v", err)
	}
	if _, err := repo.Create(tmplRes, dam.JCR_CONTENT, map[string]any{
		dam.PN_TITLE:       "Article",
		dam.PN_DESCRIPTION: "Article model",
	}); err != nil {
		t.Fatalf("Failed to create template content: %v", err)
	}

	items, err := repo.GetOrCreate(testTemplatePath+"/jcr:content/model/cq:dialog/content/items",
		resource.NT_UNSTRUCTURED, resource.NT_UNSTRUCTURED, nil)
	if err != nil {
		t.Fatalf("Failed to create dialog items: %v", err)
	}
	fields := []map[string]any{
		{PN_ITEM_NAME: "headline", PN_FIELD_LABEL: "Headline", PN_VALUE_TYPE: "string", PN_META_TYPE: "text-single", PN_ITEM_VALUE: "Untitled"},
		{PN_ITEM_NAME: "keywords", PN_FIELD_LABEL: "Keywords", PN_VALUE_TYPE: "string[]", PN_META_TYPE: "text-single"},
		{PN_ITEM_NAME: "body", PN_FIELD_LABEL: "Body", PN_VALUE_TYPE: "string", PN_META_TYPE: "text-multi"},
	}
	for i, props := range fields {
		if _, err := repo.Create(items, "item"+string(rune('0'+i)), props); err != nil {
			t.Fatalf("Failed to create dialog item: %v", err)
		}
	}

	tmpl, err := NewTemplate(repo.GetResource(testTemplatePath))
	if err != nil {
		t.Fatalf("Failed to parse template: %v", err)
	}
	return tmpl
}

func TestTemplateProperties(t *testing.T) {
	repo, _ := setupTestRepo(t)
	tmpl := setupTestTemplate(t, repo)

	if tmpl.Title() != "Article" {
		t.Errorf("Expected 'Article', got '%s'", tmpl.Title())
	}
	if tmpl.Description() != "Article model" {
		t.Errorf("Expected 'Article model', got '%s'", tmpl.Description())
	}
	if tmpl.ThumbnailPath() != "" {
		t.Errorf("Expected no thumbnail, got '%s'", tmpl.ThumbnailPath())
	}

	repo.Create(repo.GetResource(testTemplatePath), THUMBNAIL_NODE, nil)
	if tmpl.ThumbnailPath() != testTemplatePath+"/"+THUMBNAIL_NODE {
		t.Errorf("Unexpected thumbnail path '%s'", tmpl.ThumbnailPath())
	}

	if tmpl.Variations().Next() {
		t.Error("Expected no template variations")
	}
	if tmpl.InitialAssociatedContent().Next() {
		t.Error("Expected no initial associated content")
	}
	if tmpl.MetaDataDefinition() != nil || tmpl.ForVariation(nil) != nil {
		t.Error("Expected nil metadata definition and variation template")
	}
	res, ok := Adapt[*resource.Resource](tmpl)
	if !ok || res.Path() != testTemplatePath {
		t.Error("Expected template to adapt to its resource")
	}
}

func TestTemplateElements(t *testing.T) {
	repo, _ := setupTestRepo(t)
	tmpl := setupTestTemplate(t, repo)

	elements := tmpl.Elements().Collect()
	if len(elements) != 3 {
		t.Fatalf("Expected 3 element templates, got %d", len(elements))
	}

	headline := elements[0]
	if headline.Name() != "headline" || headline.Title() != "Headline" {
		t.Errorf("Unexpected element %s/%s", headline.Name(), headline.Title())
	}
	if headline.DefaultContent() != "Untitled" {
		t.Errorf("Expected 'Untitled', got '%s'", headline.DefaultContent())
	}
	if headline.InitialContentType() != "" || len(headline.MetaData()) != 0 {
		t.Error("Expected empty content type and metadata")
	}
	dt := headline.DataType()
	if dt.TypeString() != "string" || dt.ValueType() != "string" || dt.SemanticType() != "text-single" {
		t.Errorf("Unexpected data type %s/%s/%s", dt.TypeString(), dt.ValueType(), dt.SemanticType())
	}
	if dt.IsMultiValue() {
		t.Error("headline must be single valued")
	}
	if !elements[1].DataType().IsMultiValue() {
		t.Error("keywords must be multi valued")
	}
	if elements[2].DefaultContent() != "" {
		t.Errorf("Expected empty default, got '%s'", elements[2].DefaultContent())
	}
}

func TestElementTemplatesAreParsedOnce(t *testing.T) {
	repo, _ := setupTestRepo(t)
	tmpl := setupTestTemplate(t, repo)

	headline := tmpl.Elements().Collect()[0]
	v, ok := headline.AdaptTo(AdapterResource)
	if !ok {
		t.Fatal("Expected element template to adapt to its resource")
	}
	props := v.(*resource.Resource).ValueMap()
	props.Put(PN_ITEM_NAME, "renamed")
	props.Put(PN_FIELD_LABEL, "Renamed")
	props.Put(PN_VALUE_TYPE, "long")
	props.Put(PN_ITEM_VALUE, "changed")

	if headline.Name() != "headline" || headline.Title() != "Headline" {
		t.Errorf("Expected parsed name and title, got %s/%s", headline.Name(), headline.Title())
	}
	if headline.DataType().ValueType() != "string" || headline.DefaultContent() != "Untitled" {
		t.Errorf("Expected parsed type and default, got %s/%s", headline.DataType().ValueType(), headline.DefaultContent())
	}
}

func TestTemplateForElement(t *testing.T) {
	repo, _ := setupTestRepo(t)
	tmpl := setupTestTemplate(t, repo)
	cf := createStructured(t, repo, "/content/dam/test/cf", "body", "text", "other", "x")

	def := tmpl.ForElement(cf.Element("body"))
	if def == nil || def.Title() != "Body" {
		t.Fatal("Expected body definition")
	}
	if tmpl.ForElement(cf.Element("other")) != nil {
		t.Error("Expected no definition for other")
	}
	if tmpl.ForElement(nil) != nil {
		t.Error("Expected nil for nil element")
	}
}

func TestNewTemplateRequiresStructure(t *testing.T) {
	repo, _ := setupTestRepo(t)

	cases := map[string]string{
		"/conf/a": "",
		"/conf/b": "/jcr:content",
		"/conf/c": "/jcr:content/model",
		"/conf/d": "/jcr:content/model/cq:dialog/content",
	}
	for p, sub := range cases {
		if _, err := repo.GetOrCreate(p+sub, "", "", nil); err != nil {
			t.Fatalf("Failed to create %s: %v", p+sub, err)
		}
		if _, err := NewTemplate(repo.GetResource(p)); !errors.Is(err, ErrInvalidStructure) {
			t.Errorf("%s: expected ErrInvalidStructure, got %v", p, err)
		}
	}
	if _, err := NewTemplate(nil); !errors.Is(err, ErrInvalidStructure) {
		t.Errorf("Expected ErrInvalidStructure for nil, got %v", err)
	}
}

func TestCreateFragment(t *testing.T) {
	repo, _ := setupTestRepo(t)
	tmpl := setupTestTemplate(t, repo)
	parent := repo.GetResource("/content/dam/test")

	cf, err := tmpl.CreateFragment(parent, "", "My Fragment")
	if err != nil {
		t.Fatalf("Failed to create fragment: %v", err)
	}
	if cf.Name() != "my-fragment" {
		t.Errorf("Expected 'my-fragment', got '%s'", cf.Name())
	}
	if cf.Title() != "My Fragment" {
		t.Errorf("Expected 'My Fragment', got '%s'", cf.Title())
	}

	base := "/content/dam/test/my-fragment"
	asset := repo.GetResource(base)
	if asset == nil || asset.ResourceType() != dam.NT_DAM_ASSET {
		t.Fatal("Expected dam:Asset node")
	}
	if asset.ValueMap().GetString(dam.PN_UUID, "") == "" {
		t.Error("Expected jcr:uuid to be set")
	}
	content := repo.GetResource(base + "/jcr:content")
	if content == nil || content.ResourceType() != dam.NT_DAM_ASSETCONTENT {
		t.Fatal("Expected dam:AssetContent node")
	}
	if !content.ValueMap().GetBool(PN_CONTENT_FRAGMENT, false) {
		t.Error("Expected contentFragment=true")
	}
	data := repo.GetResource(base + "/jcr:content/data")
	if data == nil || data.ValueMap().GetString(PN_MODEL, "") != testTemplatePath {
		t.Error("Expected data node referencing the template")
	}
	for _, p := range []string{"/jcr:content/metadata", "/jcr:content/data/master"} {
		if repo.GetResource(base+p) == nil {
			t.Errorf("Expected %s to exist", p)
		}
	}

	frag, ok := cf.(*Fragment)
	if !ok || frag.Mode() != "structured" {
		t.Error("Expected a structured fragment")
	}
	if cf.Elements().Next() {
		t.Error("Expected new fragment to have no elements")
	}
}

func TestCreateFragmentUniqueNames(t *testing.T) {
	repo, _ := setupTestRepo(t)
	tmpl := setupTestTemplate(t, repo)
	parent := repo.GetResource("/content/dam/test")

	want := []string{"news", "news0", "news1"}
	for _, name := range want {
		cf, err := tmpl.CreateFragment(parent, "news", "")
		if err != nil {
			t.Fatalf("Failed to create fragment: %v", err)
		}
		if cf.Name() != name {
			t.Errorf("Expected '%s', got '%s'", name, cf.Name())
		}
		if cf.Title() != cf.Name() {
			t.Errorf("Expected title to default to name, got '%s'", cf.Title())
		}
	}
}

func TestCreateFragmentNameFallback(t *testing.T) {
	repo, _ := setupTestRepo(t)
	tmpl := setupTestTemplate(t, repo)
	parent := repo.GetResource("/content/dam/test")

	cf, err := tmpl.CreateFragment(parent, "", "!!!")
	if err != nil {
		t.Fatalf("Failed to create fragment: %v", err)
	}
	if cf.Name() != NAME_REPLACEMENT {
		t.Errorf("Expected '%s', got '%s'", NAME_REPLACEMENT, cf.Name())
	}
	if strings.ContainsAny(cf.Name(), INVALID_NAME_CHARS) {
		t.Error("Derived name contains invalid characters")
	}
}

func TestCreateFragmentRejectsInput(t *testing.T) {
	repo, _ := setupTestRepo(t)
	tmpl := setupTestTemplate(t, repo)
	parent := repo.GetResource("/content/dam/test")
	before := repo.Size()

	cases := []struct {
		parent      *resource.Resource
		name, title string
	}{
		{nil, "x", "X"},
		{parent, "", ""},
		{parent, "  ", " "},
		{parent, "a:b", ""},
		{parent, "a/b", ""},
		{parent, "..", ""},
	}
	for _, tc := range cases {
		_, err := tmpl.CreateFragment(tc.parent, tc.name, tc.title)
		var cfErr *Error
		if !errors.As(err, &cfErr) {
			t.Errorf("%q/%q: expected *Error, got %v", tc.name, tc.title, err)
		}
	}
	if repo.Size() != before {
		t.Errorf("Expected no nodes created, size %d -> %d", before, repo.Size())
	}
}

func TestCreateFragmentCleansUpOnFailure(t *testing.T) {
	boom := errors.New("disk full")
	repo, _ := setupTestRepo(t)
	tmpl := setupTestTemplate(t, repo)
	parent := repo.GetResource("/content/dam/test")
	before := repo.Size()

	repo.SetWriteHook(func(parentPath, name string) error {
		if name == dam.METADATA_FOLDER {
			return boom
		}
		return nil
	})

	_, err := tmpl.CreateFragment(parent, "broken", "")
	var cfErr *Error
	if !errors.As(err, &cfErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected cause to be wrapped, got %v", err)
	}
	if parent.Child("broken") != nil {
		t.Error("Expected partial skeleton to be removed")
	}
	if repo.Size() != before {
		t.Errorf("Expected size %d, got %d", before, repo.Size())
	}
}

func TestCreateFragmentReportsFailedCleanup(t *testing.T) {
	boom := errors.New("disk full")
	locked := errors.New("locked")
	repo, _ := setupTestRepo(t)
	tmpl := setupTestTemplate(t, repo)
	parent := repo.GetResource("/content/dam/test")

	writes := 0
	repo.SetWriteHook(func(parentPath, name string) error {
		switch name {
		case dam.METADATA_FOLDER:
			return boom
		case "broken":
			// the create succeeds, the cleanup delete fails
			writes++
			if writes > 1 {
				return locked
			}
		}
		return nil
	})

	_, err := tmpl.CreateFragment(parent, "broken", "")
	var cfErr *Error
	if !errors.As(err, &cfErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if !errors.Is(err, boom) || !errors.Is(err, locked) {
		t.Errorf("Expected write and cleanup errors, got %v", err)
	}
	if parent.Child("broken") == nil {
		t.Error("Expected the skeleton to remain when cleanup fails")
	}
}

func TestValidNames(t *testing.T) {
	valid := []string{"a", "my-fragment", "_", "name0", "äöü"}
	invalid := []string{"", ".", "..", "a/b", "a:b", "a[0]", "a*", "a|b", "it's", "a\"b", "a\tb", "a\nb"}

	for _, n := range valid {
		if !isValidName(n) {
			t.Errorf("Expected %q to be valid", n)
		}
	}
	for _, n := range invalid {
		if isValidName(n) {
			t.Errorf("Expected %q to be invalid", n)
		}
	}

	if got := createValidName("Hello World"); got != "hello-world" {
		t.Errorf("Expected 'hello-world', got '%s'", got)
	}
	if got := createValidName(""); got != NAME_REPLACEMENT {
		t.Errorf("Expected '%s', got '%s'", NAME_REPLACEMENT, got)
	}
}
