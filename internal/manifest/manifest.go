// Package manifest reads package manifests (package.toml or package.yaml)
// and turns them into index records ready to publish.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/papapumpkin/semverx/internal/index"
	"github.com/papapumpkin/semverx/internal/semverx"
)

// ErrUnknownFormat is returned for a manifest extension other than .toml,
// .yaml, or .yml.
var ErrUnknownFormat = errors.New("unknown manifest format")

// Format is a manifest encoding.
type Format string

// Formats.
const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

// Manifest is the on-disk description of one package release.
type Manifest struct {
	ID           string       `toml:"id" yaml:"id" validate:"required,max=214,package_id"`
	Version      string       `toml:"version" yaml:"version" validate:"required,semverx"`
	Tier         string       `toml:"tier" yaml:"tier" validate:"omitempty,oneof=live local remote"`
	Access       string       `toml:"access" yaml:"access" validate:"omitempty,oneof=public protected private"`
	Metadata     Metadata     `toml:"metadata" yaml:"metadata"`
	Dependencies []Dependency `toml:"dependencies" yaml:"dependencies" validate:"dive"`
}

// Metadata mirrors index.Metadata with encoding tags.
type Metadata struct {
	Name          string `toml:"name" yaml:"name"`
	Description   string `toml:"description" yaml:"description"`
	Author        string `toml:"author" yaml:"author"`
	License       string `toml:"license" yaml:"license"`
	TarballURL    string `toml:"tarball_url" yaml:"tarball_url" validate:"omitempty,url"`
	InstallScript string `toml:"install_script" yaml:"install_script"`
}

// Dependency is a declared edge in a manifest.
type Dependency struct {
	Target   string `toml:"target" yaml:"target" validate:"required"`
	Range    string `toml:"range" yaml:"range" validate:"omitempty,semverx_range"`
	Optional bool   `toml:"optional" yaml:"optional"`
}

// Loader decodes and validates manifests.
type Loader struct {
	validate *validator.Validate
}

// NewLoader returns a Loader with the package_id, semverx, and
// semverx_range validators registered.
func NewLoader() *Loader {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("semverx", func(fl validator.FieldLevel) bool {
		_, err := semverx.Parse(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("package_id", func(fl validator.FieldLevel) bool {
		return validPackageID(fl.Field().String())
	})
	_ = v.RegisterValidation("semverx_range", func(fl validator.FieldLevel) bool {
		_, err := semverx.ParseRange(fl.Field().String())
		return err == nil
	})
	return &Loader{validate: v}
}

// validPackageID rejects whitespace and control characters, which
// includes the NUL byte the Badger edge keys use as a separator.
func validPackageID(id string) bool {
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return id != ""
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// LoadFile reads and validates the manifest at path.
func (l *Loader) LoadFile(path string) (Manifest, error) {
	f, err := FormatOf(path)
	if err != nil {
		return Manifest{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	m, err := l.Decode(data, f)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return m, nil
}

// Decode parses data in format f and validates the result. Unknown fields
// are rejected.
func (l *Loader) Decode(data []byte, f Format) (Manifest, error) {
	var m Manifest
	switch f {
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return Manifest{}, fmt.Errorf("decode toml: %w", err)
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return Manifest{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return Manifest{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err := l.Validate(m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks field constraints, reporting every failing field.
func (l *Loader) Validate(m Manifest) error {
	err := l.validate.Struct(m)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("invalid manifest: %s", strings.Join(msgs, "; "))
}

// Record converts a validated manifest into an index record.
func (m Manifest) Record() (index.Record, error) {
	v, err := semverx.Parse(m.Version)
	if err != nil {
		return index.Record{}, err
	}
	tier, err := index.ParseAccessTier(m.Tier)
	if err != nil {
		return index.Record{}, err
	}
	access, err := index.ParseAccessLevel(m.Access)
	if err != nil {
		return index.Record{}, err
	}
	r := index.Record{
		PackageID: m.ID,
		Version:   v,
		Metadata:  index.Metadata(m.Metadata),
		Tier:      tier,
		Access:    access,
	}
	for _, d := range m.Dependencies {
		rng, err := semverx.ParseRange(d.Range)
		if err != nil {
			return index.Record{}, fmt.Errorf("dependency %s: %w", d.Target, err)
		}
		r.Dependencies = append(r.Dependencies, index.DependencyEdge{Target: d.Target, Range: rng, Optional: d.Optional})
	}
	return r, nil
}

// Encode renders m in format f.
func Encode(m Manifest, f Format) ([]byte, error) {
	switch f {
	case TOML:
		return toml.Marshal(m)
	case YAML:
		return yaml.Marshal(m)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}
