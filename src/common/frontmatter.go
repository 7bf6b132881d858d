package common

import (
	"bytes"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Page represents a content markdown file with frontmatter
type Page struct {
	FilePath string `yaml:"-"` // Internal use only - do not read from YAML

	// Required fields
	Title string `yaml:"title"`

	// Optional fields
	Slug        string     `yaml:"slug,omitempty"`
	Description string     `yaml:"description,omitempty"`
	Images      []ImageRef `yaml:"images,omitempty"`

	// Raw content (after frontmatter)
	Content string `yaml:"-"`
}

// ImageRef is one image a page wants rendered.
// Width and Height are floats because authors sometimes write computed values.
type ImageRef struct {
	Src       string            `yaml:"src"`
	Alt       string            `yaml:"alt,omitempty"`
	Width     float64           `yaml:"width,omitempty"`
	Height    float64           `yaml:"height,omitempty"`
	Format    string            `yaml:"format,omitempty"`
	Formats   []string          `yaml:"formats,omitempty"`
	Quality   string            `yaml:"quality,omitempty"`
	Widths    []int             `yaml:"widths,omitempty"`
	Densities []string          `yaml:"densities,omitempty"`
	Layout    string            `yaml:"layout,omitempty"`
	Fit       string            `yaml:"fit,omitempty"`
	Position  string            `yaml:"position,omitempty"`
	InferSize bool              `yaml:"infer_size,omitempty"`
	Priority  bool              `yaml:"priority,omitempty"`
	Attrs     map[string]string `yaml:"attributes,omitempty"`
}

// RoundedWidth returns Width rounded half away from zero
func (r ImageRef) RoundedWidth() int {
	return int(math.Round(r.Width))
}

// RoundedHeight returns Height rounded half away from zero
func (r ImageRef) RoundedHeight() int {
	return int(math.Round(r.Height))
}

// ParsePage reads a markdown file and parses the YAML frontmatter
func ParsePage(filePath string) (*Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Split frontmatter and content
	parts := bytes.SplitN(data, []byte("---"), 3)
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid frontmatter: missing --- delimiters")
	}

	page := &Page{
		FilePath: filePath,
		Content:  string(bytes.TrimSpace(parts[2])),
	}

	if err := yaml.Unmarshal(parts[1], page); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	if page.Title == "" {
		return nil, fmt.Errorf("missing required field: title")
	}
	for i, img := range page.Images {
		if img.Src == "" {
			return nil, fmt.Errorf("missing required field: images[%d].src", i)
		}
	}

	return page, nil
}

// ParseContentDir parses every markdown page under dir, sorted by path.
// Hidden files and directories are skipped.
func ParseContentDir(dir string) ([]*Page, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && filepath.Ext(name) == ".md" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk content dir: %w", err)
	}
	sort.Strings(paths)

	pages := make([]*Page, 0, len(paths))
	for _, p := range paths {
		page, err := ParsePage(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

var slugCleanRE = regexp.MustCompile(`[^a-z0-9-]+`)

// GetSlug returns the frontmatter slug, or a URL-friendly slug from the title
func (p *Page) GetSlug() string {
	if p.Slug != "" {
		return p.Slug
	}
	slug := strings.ToLower(p.Title)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "æ", "ae")
	slug = strings.ReplaceAll(slug, "ø", "oe")
	slug = strings.ReplaceAll(slug, "å", "aa")
	// Remove non-alphanumeric characters except hyphens
	return slugCleanRE.ReplaceAllString(slug, "")
}
