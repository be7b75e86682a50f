package protocol

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// defaultCatalogJSON is the catalog shipped with the binary. It is used
// until the daemon can report its protocols at runtime.
//
//go:embed protocol_list.json
var defaultCatalogJSON []byte

// Loader supplies a catalog to NewRegistry.
type Loader interface {
	Load(ctx context.Context) (*Catalog, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (*Catalog, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (*Catalog, error) {
	return f(ctx)
}

// Format is a catalog document encoding.
type Format string

// Supported catalog formats. FormatAuto sniffs the content.
const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat converts a config string into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return FormatAuto, fmt.Errorf("unsupported catalog format %q", s)
	}
}

// FormatFromPath picks a format from a file extension, falling back to
// FormatAuto.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatAuto
	}
}

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogJSON, FormatJSON)
}

// EmbeddedLoader returns a Loader for the embedded catalog. It needs no
// filesystem or daemon access.
func EmbeddedLoader() Loader {
	return LoaderFunc(func(_ context.Context) (*Catalog, error) {
		return DefaultCatalog()
	})
}

// StaticLoader returns a Loader that always yields c.
func StaticLoader(c *Catalog) Loader {
	return LoaderFunc(func(_ context.Context) (*Catalog, error) {
		return c, nil
	})
}

// FileLoader reads a catalog document from disk.
type FileLoader struct {
	Path string
	// Format overrides extension-based detection when set.
	Format Format
}

// Load reads and parses the file.
func (l FileLoader) Load(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrLoad, l.Path, err)
	}

	format := l.Format
	if format == FormatAuto {
		format = FormatFromPath(l.Path)
	}

	cat, err := ParseCatalog(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Path, err)
	}
	return cat, nil
}

// ParseCatalog decodes a catalog document.
//
// The document must contain a "protocols" list and every protocol must be
// named. Errors wrap ErrLoad.
func ParseCatalog(data []byte, format Format) (*Catalog, error) {
	var (
		cat *Catalog
		err error
	)

	switch format {
	case FormatJSON:
		cat, err = parseJSON(data)
	case FormatYAML:
		cat, err = parseYAML(data)
	case FormatTOML:
		cat, err = parseTOML(data)
	case FormatAuto:
		cat, err = parseAutoDetect(data)
	default:
		err = fmt.Errorf("unsupported catalog format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	if err := checkCatalog(cat); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return cat, nil
}

func parseJSON(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing JSON catalog: %w", err)
	}
	return &cat, nil
}

func parseYAML(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing YAML catalog: %w", err)
	}
	return &cat, nil
}

func parseTOML(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := toml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing TOML catalog: %w", err)
	}
	return &cat, nil
}

// parseAutoDetect tries JSON for documents starting with '{', then YAML,
// then TOML.
func parseAutoDetect(data []byte) (*Catalog, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		return parseJSON(data)
	}

	cat, yamlErr := parseYAML(data)
	if yamlErr == nil && cat.Protocols != nil {
		return cat, nil
	}

	if cat, err := parseTOML(data); err == nil {
		return cat, nil
	}

	if yamlErr != nil {
		return nil, yamlErr
	}
	return cat, nil
}

// checkCatalog enforces the structural minimum every format must meet.
func checkCatalog(cat *Catalog) error {
	if cat == nil || cat.Protocols == nil {
		return fmt.Errorf("missing %q list", "protocols")
	}
	for i, def := range cat.Protocols {
		if def.Name == "" {
			return fmt.Errorf("protocol at index %d has no name", i)
		}
	}
	return nil
}
