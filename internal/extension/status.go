package extension

import "path/filepath"

// Existing describes an installed directory that the candidate would collide with.
type Existing struct {
	Name     string
	Path     string
	Version  string
	Disabled bool
}

// Legacy reports whether the installed package has no usable version.
func (e *Existing) Legacy() bool {
	return e.Version == ""
}

// StatusInput is everything ResolveStatus needs to decide an outcome.
type StatusInput struct {
	Candidate    *PackageDescriptor
	Errors       []ValidationError
	ActiveRoot   string
	DisabledRoot string
	// Existing is the installed directory matching the candidate, or nil.
	Existing *Existing
	// Update requests replacement of Existing instead of an advisory status.
	Update bool
}

// StatusDecision is the outcome computed by ResolveStatus.
type StatusDecision struct {
	Status         InstallationStatus
	Name           string
	Target         string
	DisabledReason string
	// Replace is the directory to remove before Target is committed.
	Replace *Existing
}

// ResolveStatus decides what an install or update attempt should do. It is a
// pure function of its input and touches no files.
func ResolveStatus(in StatusInput) StatusDecision {
	name := fallbackName
	if in.Candidate != nil {
		name = SanitizeName(in.Candidate.Name)
	}

	if blocking(in.Errors) || in.Candidate == nil {
		return StatusDecision{Status: StatusFailed, Name: name}
	}

	commit := StatusDecision{
		Status: StatusInstalled,
		Name:   name,
		Target: filepath.Join(in.ActiveRoot, name),
	}
	if hasKind(in.Errors, ErrKindAPINotCompatible) {
		commit.Status = StatusDisabled
		commit.Target = filepath.Join(in.DisabledRoot, name)
		commit.DisabledReason = ErrKindAPINotCompatible
	}

	if in.Update {
		commit.Replace = in.Existing
		return commit
	}
	if in.Existing == nil {
		return commit
	}

	return StatusDecision{
		Status: advisoryStatus(in.Candidate, in.Existing),
		Name:   in.Existing.Name,
	}
}

// advisoryStatus compares a candidate with what is already installed.
// Legacy packages compare by presence of a descriptor only.
func advisoryStatus(candidate *PackageDescriptor, existing *Existing) InstallationStatus {
	switch {
	case candidate.Legacy:
		return StatusAlreadyInstalled
	case existing.Legacy():
		return StatusNeedsUpdate
	}

	cmp, err := CompareVersions(candidate.Version, existing.Version)
	switch {
	case err != nil:
		return StatusNeedsUpdate
	case cmp > 0:
		return StatusNeedsUpdate
	case cmp == 0:
		return StatusSameVersion
	default:
		return StatusOlderVersion
	}
}

// blocking reports whether errs contains anything other than an API
// compatibility problem. Incompatible packages are installed disabled.
func blocking(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Kind != ErrKindAPINotCompatible {
			return true
		}
	}
	return false
}
