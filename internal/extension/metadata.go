package extension

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// descriptorFile is the package descriptor at the package root.
	descriptorFile = "package.json"

	// mainFile is the required entry point at the package root.
	mainFile = "main.js"

	fallbackName = "extension"
)

// Engines holds the host compatibility ranges declared by a package.
type Engines struct {
	HostAPI string `json:"hostApi,omitempty"`
	// Brackets is the historical key for the same range.
	Brackets string `json:"brackets,omitempty"`
}

// Range returns the declared host API range, preferring hostApi.
func (e *Engines) Range() string {
	if e == nil {
		return ""
	}
	if e.HostAPI != "" {
		return e.HostAPI
	}
	return e.Brackets
}

// PackageDescriptor is the resolved package.json of an extension.
type PackageDescriptor struct {
	Name         string            `json:"name"`
	Version      string            `json:"version,omitempty"`
	Title        string            `json:"title,omitempty"`
	Description  string            `json:"description,omitempty"`
	Main         string            `json:"main,omitempty"`
	Engines      *Engines          `json:"engines,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`

	// Legacy is set when the archive carried no package.json.
	Legacy bool `json:"-"`
	// nameDeclared is false when Name was derived from the archive file name.
	nameDeclared bool
}

// HostAPIRange returns the declared engines.hostApi range, or "".
func (d *PackageDescriptor) HostAPIRange() string {
	if d == nil {
		return ""
	}
	return d.Engines.Range()
}

// HasDependencies reports whether the package declares runtime dependencies.
func (d *PackageDescriptor) HasDependencies() bool {
	return d != nil && len(d.Dependencies) > 0
}

var (
	// ErrDescriptorNotFound is returned when a directory has no package.json.
	ErrDescriptorNotFound = errors.New("package descriptor not found")
	// ErrInvalidDescriptor is returned when package.json is not valid JSON
	// of the expected shape.
	ErrInvalidDescriptor = errors.New("invalid package descriptor")
)

// ReadDescriptor reads package.json from dir.
func ReadDescriptor(dir string) (*PackageDescriptor, error) {
	data, err := os.ReadFile(filepath.Join(dir, descriptorFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDescriptorNotFound
		}
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}

	var desc PackageDescriptor
	if unmarshalErr := json.Unmarshal(data, &desc); unmarshalErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, unmarshalErr)
	}
	desc.nameDeclared = desc.Name != ""
	return &desc, nil
}

// ResolveDescriptor determines the descriptor for a staged package. When the
// package has no package.json, or it cannot be parsed, a legacy descriptor
// named after the archive is returned so validation can continue.
func ResolveDescriptor(stagedRoot, archivePath string) (*PackageDescriptor, []ValidationError, error) {
	derived := DeriveName(archivePath)

	desc, err := ReadDescriptor(stagedRoot)
	switch {
	case errors.Is(err, ErrDescriptorNotFound):
		return &PackageDescriptor{Name: derived, Legacy: true}, nil, nil
	case errors.Is(err, ErrInvalidDescriptor):
		return &PackageDescriptor{Name: derived, Legacy: true},
			[]ValidationError{NewValidationError(ErrKindInvalidPackageJSON, err.Error())}, nil
	case err != nil:
		return nil, nil, err
	}

	var errs []ValidationError
	if !desc.nameDeclared {
		errs = append(errs, NewValidationError(ErrKindMissingPackageName, descriptorFile))
		desc.Name = derived
	}
	return desc, errs, nil
}

// DeriveName returns the legacy package name for an archive: its base name
// with the archive extension removed, sanitized for use as a directory name.
//
// Legacy identity is name only. Two different archives with the same file
// name are treated as the same package.
func DeriveName(archivePath string) string {
	base := filepath.Base(archivePath)
	lower := strings.ToLower(base)
	for _, ext := range []string{".tar.gz", ".tgz", ".zip"} {
		if strings.HasSuffix(lower, ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}
	return SanitizeName(base)
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName makes name safe to use as a single path element.
func SanitizeName(name string) string {
	cleaned := unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return fallbackName
	}
	return cleaned
}
