package extension

import (
	"os"
	"path/filepath"
	"regexp"
)

var packageNameRegex = regexp.MustCompile(`^[a-z0-9._-]+$`)

// Validate checks a staged package and returns every problem found, in order:
// entry point, descriptor well-formedness, host API compatibility. It only
// reads the filesystem.
func Validate(stagedRoot string, desc *PackageDescriptor, apiVersion string) []ValidationError {
	var errs []ValidationError

	if !isFile(filepath.Join(stagedRoot, mainFile)) {
		errs = append(errs, NewValidationError(ErrKindMissingMain, mainFile))
	}

	if desc == nil || desc.Legacy {
		return errs
	}

	if desc.nameDeclared && !validPackageName(desc.Name) {
		errs = append(errs, NewValidationError(ErrKindBadPackageName, desc.Name))
	}

	switch {
	case desc.Version == "":
		errs = append(errs, NewValidationError(ErrKindMissingVersion, desc.Name))
	case !IsValidVersion(desc.Version):
		errs = append(errs, NewValidationError(ErrKindInvalidVersion, desc.Version))
	}

	if hostRange := desc.HostAPIRange(); hostRange != "" {
		ok, err := apiCompatible(apiVersion, hostRange)
		if err != nil {
			errs = append(errs, NewValidationError(ErrKindAPINotCompatible, hostRange, err.Error()))
		} else if !ok {
			errs = append(errs, NewValidationError(ErrKindAPINotCompatible, hostRange, apiVersion))
		}
	}

	return errs
}

func validPackageName(name string) bool {
	return name != "." && name != ".." && packageNameRegex.MatchString(name)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
