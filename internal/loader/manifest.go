package loader

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/spritegrid/internal/constants"
)

// ReservedPrefix marks built-in names; user asset names must not start
// with it.
const ReservedPrefix = "_"

// screenSizes is the fixed set of legal screen resolutions.
var screenSizes = map[string]bool{
	"320x200": true,
	"320x240": true,
	"640x400": true,
	"640x480": true,
}

// manifestFile is the root of the manifest grammar.
type manifestFile struct {
	Game *Manifest `hcl:"game,block"`
}

// Manifest is the decoded game block. The same schema decodes from native
// HCL and from JSON manifests.
type Manifest struct {
	Title      string            `hcl:"title,optional"`
	ScreenSize string            `hcl:"screen_size"`
	StartMode  string            `hcl:"start_mode"`
	Modes      []string          `hcl:"modes"`
	Scripts    []string          `hcl:"scripts,optional"`
	Docs       []string          `hcl:"docs,optional"`
	Assets     map[string]string `hcl:"assets,optional"`
	Constants  cty.Value         `hcl:"constants,optional"`
}

// decodeManifest parses and validates the root manifest document. Syntax is
// chosen by filename: .json manifests go through HCL's JSON syntax,
// everything else is native HCL.
func decodeManifest(url string, data []byte) (*Manifest, error) {
	parser := hclparse.NewParser()

	var file *hcl.File
	var diags hcl.Diagnostics
	if strings.HasSuffix(url, ".json") {
		file, diags = parser.ParseJSON(data, url)
	} else {
		file, diags = parser.ParseHCL(data, url)
	}
	if diags.HasErrors() {
		return nil, configErrf(url, "parsing manifest: %s", diags.Error())
	}

	var mf manifestFile
	if diags := gohcl.DecodeBody(file.Body, nil, &mf); diags.HasErrors() {
		return nil, configErrf(url, "decoding manifest: %s", diags.Error())
	}
	if mf.Game == nil {
		return nil, configErrf(url, "manifest has no game block")
	}

	m := mf.Game
	if err := m.validate(url); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) validate(url string) error {
	if len(m.Modes) == 0 {
		return configErrf(url, "modes must declare at least one mode")
	}
	if !screenSizes[m.ScreenSize] {
		return configErrf(url, "illegal screen_size %q", m.ScreenSize)
	}
	matches := 0
	for _, mode := range m.Modes {
		if mode == m.StartMode {
			matches++
		}
	}
	if matches != 1 {
		return configErrf(url, "start_mode %q must resolve to exactly one declared mode (found %d)", m.StartMode, matches)
	}
	for name := range m.Assets {
		if strings.HasPrefix(name, ReservedPrefix) {
			return configErrf(url, "asset name %q uses the reserved prefix %q", name, ReservedPrefix)
		}
	}
	return nil
}

// constantDecls reads the manifest's constants table into declarations.
func (m *Manifest) constantDecls(url string) ([]constants.Decl, error) {
	v := m.Constants
	if v == cty.NilVal || v.IsNull() {
		return nil, nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, configErrf(url, "constants must be a mapping of name to declaration")
	}

	var decls []constants.Decl
	for it := v.ElementIterator(); it.Next(); {
		key, dv := it.Element()
		name := key.AsString()
		decl, err := declFromValue(url, name, dv)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func declFromValue(url, name string, v cty.Value) (constants.Decl, error) {
	if !v.Type().IsObjectType() || !v.Type().HasAttribute("type") || !v.Type().HasAttribute("value") {
		return constants.Decl{}, configErrf(url, "constant %q must be an object with type and value", name)
	}
	tagVal := v.GetAttr("type")
	if tagVal.Type() != cty.String {
		return constants.Decl{}, configErrf(url, "constant %q: type must be a string", name)
	}

	decl := constants.Decl{
		Name:  name,
		Tag:   constants.Tag(tagVal.AsString()),
		Value: v.GetAttr("value"),
	}
	if v.Type().HasAttribute("transpose") {
		tv := v.GetAttr("transpose")
		if tv.Type() != cty.Bool {
			return constants.Decl{}, configErrf(url, "constant %q: transpose must be a bool", name)
		}
		decl.Transpose = tv.True()
	}
	return decl, nil
}
