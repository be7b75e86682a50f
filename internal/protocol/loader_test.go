package protocol

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const jsonCatalog = `{
  "protocols": [
    {
      "name": "daycom",
      "devices": ["switch1"],
      "options": [
        {"name": "state", "vartype": "string"},
        {"name": "label", "vartype": ["string", "number"]}
      ]
    }
  ]
}`

const yamlCatalog = `protocols:
  - name: daycom
    devices: [switch1]
    options:
      - name: state
        vartype: string
      - name: label
        vartype: [string, number]
`

const tomlCatalog = `[[protocols]]
name = "daycom"
devices = ["switch1"]

[[protocols.options]]
name = "state"
vartype = "string"

[[protocols.options]]
name = "label"
vartype = ["string", "number"]
`

func wantDaycomCatalog() *Catalog {
	return &Catalog{Protocols: []ProtocolDefinition{
		{
			Name:    "daycom",
			Devices: []string{"switch1"},
			Options: []OptionDescriptor{
				{Name: "state", Type: Scalar("string")},
				{Name: "label", Type: OneOf(Scalar("string"), Scalar("number"))},
			},
		},
	}}
}

func TestParseCatalog_Formats(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"json", jsonCatalog, FormatJSON},
		{"yaml", yamlCatalog, FormatYAML},
		{"toml", tomlCatalog, FormatTOML},
		{"auto json", jsonCatalog, FormatAuto},
		{"auto yaml", yamlCatalog, FormatAuto},
		{"auto toml", tomlCatalog, FormatAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCatalog([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("ParseCatalog() error = %v", err)
			}
			if !reflect.DeepEqual(got, wantDaycomCatalog()) {
				t.Errorf("ParseCatalog() = %+v, want %+v", got, wantDaycomCatalog())
			}
		})
	}
}

func TestParseCatalog_NestedVartype(t *testing.T) {
	data := `{"protocols": [{"name": "x", "devices": [], "options": [
		{"name": "v", "vartype": ["string", ["number"]]},
		{"name": "w"}
	]}]}`

	cat, err := ParseCatalog([]byte(data), FormatJSON)
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}

	opts := cat.Protocols[0].Options
	want := OneOf(Scalar("string"), OneOf(Scalar("number")))
	if !reflect.DeepEqual(opts[0].Type, want) {
		t.Errorf("nested vartype = %#v, want %#v", opts[0].Type, want)
	}
	if got := Resolve(opts[0].Type).String(); got != "string|number" {
		t.Errorf("Resolve(nested) = %q, want string|number", got)
	}
	if opts[1].Type.IsList() || opts[1].Type.Tag != "" {
		t.Errorf("missing vartype = %#v, want empty", opts[1].Type)
	}
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"malformed json", `{"protocols": [`, FormatJSON},
		{"missing protocols", `{"devices": []}`, FormatJSON},
		{"unnamed protocol", `{"protocols": [{"devices": [], "options": []}]}`, FormatJSON},
		{"yaml without protocols", "devices: []\n", FormatYAML},
		{"unsupported format", jsonCatalog, Format("xml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCatalog([]byte(tt.data), tt.format); !errors.Is(err, ErrLoad) {
				t.Errorf("ParseCatalog() error = %v, want ErrLoad", err)
			}
		})
	}
}

func TestParseCatalog_NonStringVartype(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		want   TypeSpec
	}{
		{
			name:   "json number",
			data:   `{"protocols": [{"name": "odd", "options": [{"name": "v", "vartype": 3}]}]}`,
			format: FormatJSON,
			want:   Scalar("3"),
		},
		{
			name:   "yaml bool",
			data:   "protocols:\n  - name: odd\n    options:\n      - name: v\n        vartype: true\n",
			format: FormatYAML,
			want:   Scalar("true"),
		},
		{
			name:   "number inside list",
			data:   `{"protocols": [{"name": "odd", "options": [{"name": "v", "vartype": ["string", 1]}]}]}`,
			format: FormatJSON,
			want:   OneOf(Scalar("string"), Scalar("1")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := ParseCatalog([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("ParseCatalog() error = %v", err)
			}
			got := cat.Protocols[0].Options[0].Type
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("vartype = %#v, want %#v", got, tt.want)
			}

			log := &recordingLogger{}
			r := newTestRegistry(t, cat, WithLogger(log))
			if _, err := r.Validate(Payload{"protocol": "odd", "v": true}, false); err != nil {
				t.Errorf("Validate() error = %v, want accepted", err)
			}
			if len(log.warns) != 1 {
				t.Errorf("warnings = %v, want one unknown-type warning", log.warns)
			}

			if _, err := NewRegistry(context.Background(), cat, WithStrict(true)); !errors.Is(err, ErrLoad) {
				t.Errorf("NewRegistry(strict) error = %v, want ErrLoad", err)
			}
		})
	}
}

func TestParseCatalog_EmptyList(t *testing.T) {
	cat, err := ParseCatalog([]byte(`{"protocols": []}`), FormatJSON)
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}
	if len(cat.Protocols) != 0 {
		t.Errorf("Protocols = %v, want empty", cat.Protocols)
	}
}

func TestTypeSpec_String(t *testing.T) {
	cat := wantDaycomCatalog()
	if got := cat.Protocols[0].Options[1].Type.String(); got != `["string","number"]` {
		t.Errorf("String() = %q, want list form", got)
	}
	if got := cat.Protocols[0].Options[0].Type.String(); got != "string" {
		t.Errorf("String() = %q, want string", got)
	}
}

func TestDefaultCatalog(t *testing.T) {
	cat, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog() error = %v", err)
	}
	if len(cat.Protocols) == 0 {
		t.Fatal("DefaultCatalog() returned no protocols")
	}

	seen := make(map[string]bool)
	for _, def := range cat.Protocols {
		if seen[def.Name] {
			t.Errorf("duplicate protocol %q in embedded catalog", def.Name)
		}
		seen[def.Name] = true
		for _, opt := range def.Options {
			if tag, unknown := HasUnknown(opt.Type); unknown {
				t.Errorf("%s.%s has unknown type %q", def.Name, opt.Name, tag)
			}
		}
	}
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()

	write := func(name, data string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		return path
	}

	tests := []struct {
		name   string
		loader FileLoader
	}{
		{"json extension", FileLoader{Path: write("catalog.json", jsonCatalog)}},
		{"yml extension", FileLoader{Path: write("catalog.yml", yamlCatalog)}},
		{"toml extension", FileLoader{Path: write("catalog.toml", tomlCatalog)}},
		{"sniffed", FileLoader{Path: write("catalog.conf", yamlCatalog)}},
		{"explicit format", FileLoader{Path: write("catalog.txt", tomlCatalog), Format: FormatTOML}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.loader.Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !reflect.DeepEqual(got, wantDaycomCatalog()) {
				t.Errorf("Load() = %+v, want daycom catalog", got)
			}
		})
	}
}

func TestFileLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		path string
	}{
		{"missing file", context.Background(), filepath.Join(dir, "absent.json")},
		{"malformed file", context.Background(), bad},
		{"cancelled context", cancelled, bad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FileLoader{Path: tt.path}.Load(tt.ctx)
			if !errors.Is(err, ErrLoad) {
				t.Errorf("Load() error = %v, want ErrLoad", err)
			}
		})
	}
}

func TestStaticLoader(t *testing.T) {
	cat := wantDaycomCatalog()
	got, err := StaticLoader(cat).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != cat {
		t.Error("StaticLoader returned a different catalog")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatAuto, false},
		{"auto", FormatAuto, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{" yaml ", FormatYAML, false},
		{"toml", FormatTOML, false},
		{"xml", FormatAuto, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"/etc/pilight/protocols.json", FormatJSON},
		{"catalog.YAML", FormatYAML},
		{"catalog.yml", FormatYAML},
		{"catalog.toml", FormatTOML},
		{"catalog", FormatAuto},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := FormatFromPath(tt.path); got != tt.want {
				t.Errorf("FormatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
