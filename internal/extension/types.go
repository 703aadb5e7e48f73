package extension

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validation error kinds reported in InstallResult.Errors.
const (
	ErrKindNotFound            = "NOT_FOUND_ERR"
	ErrKindCorruptArchive      = "CORRUPT_ARCHIVE"
	ErrKindInvalidPackageJSON  = "INVALID_PACKAGE_JSON"
	ErrKindMissingPackageName  = "MISSING_PACKAGE_NAME"
	ErrKindBadPackageName      = "BAD_PACKAGE_NAME"
	ErrKindMissingVersion      = "MISSING_PACKAGE_VERSION"
	ErrKindInvalidVersion      = "INVALID_VERSION_NUMBER"
	ErrKindMissingMain         = "MISSING_MAIN"
	ErrKindAPINotCompatible    = "API_NOT_COMPATIBLE"
	ErrKindDependencyInstall   = "DEPENDENCY_INSTALL_FAILED"
	errKindMissingRequiredOpts = "MISSING_REQUIRED_OPTIONS"
)

var (
	// ErrMissingRequiredOptions is returned when InstallOptions lacks the
	// disabled directory or the host API version.
	ErrMissingRequiredOptions = errors.New(errKindMissingRequiredOpts)

	// ErrInvalidAPIVersion is returned when InstallOptions.APIVersion is not semver.
	ErrInvalidAPIVersion = errors.New("invalid host API version")

	// ErrNotFound is returned by Remove when the directory does not exist.
	ErrNotFound = errors.New(ErrKindNotFound)
)

// ValidationError is a package defect: a kind plus free-form detail.
type ValidationError struct {
	Kind   string
	Detail []string
}

// NewValidationError builds a ValidationError.
func NewValidationError(kind string, detail ...string) ValidationError {
	return ValidationError{Kind: kind, Detail: detail}
}

// Error implements error.
func (e ValidationError) Error() string {
	if len(e.Detail) == 0 {
		return e.Kind
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Detail)
}

// MarshalJSON encodes the error as the tuple [kind, detail...].
func (e ValidationError) MarshalJSON() ([]byte, error) {
	tuple := make([]string, 0, len(e.Detail)+1)
	tuple = append(tuple, e.Kind)
	tuple = append(tuple, e.Detail...)
	return json.Marshal(tuple)
}

// UnmarshalJSON decodes the [kind, detail...] tuple form.
func (e *ValidationError) UnmarshalJSON(data []byte) error {
	var tuple []string
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) == 0 {
		return errors.New("empty validation error tuple")
	}
	e.Kind = tuple[0]
	e.Detail = append([]string(nil), tuple[1:]...)
	return nil
}

// hasKind reports whether errs contains an error of the given kind.
func hasKind(errs []ValidationError, kind string) bool {
	for _, e := range errs {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// InstallationStatus is the outcome of an install or update attempt.
type InstallationStatus string

// Installation statuses.
const (
	StatusInstalled        InstallationStatus = "INSTALLED"
	StatusAlreadyInstalled InstallationStatus = "ALREADY_INSTALLED"
	StatusSameVersion      InstallationStatus = "SAME_VERSION"
	StatusOlderVersion     InstallationStatus = "OLDER_VERSION"
	StatusNeedsUpdate      InstallationStatus = "NEEDS_UPDATE"
	StatusDisabled         InstallationStatus = "DISABLED"
	StatusFailed           InstallationStatus = "FAILED"
)

// IsValid reports whether s is one of the known statuses.
func (s InstallationStatus) IsValid() bool {
	switch s {
	case StatusInstalled, StatusAlreadyInstalled, StatusSameVersion, StatusOlderVersion,
		StatusNeedsUpdate, StatusDisabled, StatusFailed:
		return true
	default:
		return false
	}
}

// Commits reports whether the status results in content being moved into place.
func (s InstallationStatus) Commits() bool {
	return s == StatusInstalled || s == StatusDisabled
}

// String implements fmt.Stringer.
func (s InstallationStatus) String() string { return string(s) }

// InstallOptions are the caller-supplied settings for Install and Update.
// Both fields are required.
type InstallOptions struct {
	// DisabledDirectory receives extensions incompatible with APIVersion.
	DisabledDirectory string `json:"disabled_directory" yaml:"disabled_directory"`
	// APIVersion is the running host API version, e.g. "0.22.0".
	APIVersion string `json:"api_version" yaml:"api_version"`
}

// InstallResult is returned by Install and Update.
type InstallResult struct {
	Status         InstallationStatus `json:"installationStatus"`
	InstalledTo    string             `json:"installedTo,omitempty"`
	Name           string             `json:"name"`
	LocalPath      string             `json:"localPath"`
	DisabledReason string             `json:"disabledReason,omitempty"`
	Metadata       *PackageDescriptor `json:"metadata,omitempty"`
	Errors         []ValidationError  `json:"errors"`
}

// InstalledPackage describes one directory found under an extension root.
type InstalledPackage struct {
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	Path     string `json:"path"`
	Disabled bool   `json:"disabled"`
	Legacy   bool   `json:"legacy"`
}
