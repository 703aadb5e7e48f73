package extension

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/classicvalues/phoenix/internal/logging"
)

// Installer installs, updates and removes extensions. An Installer is safe
// for concurrent use; requests touching the same package name are serialized.
type Installer struct {
	fetcher    DependencyFetcher
	stagingDir string
	locks      *nameLocks
}

// Option configures an Installer.
type Option func(*Installer)

// WithDependencyFetcher replaces the default npm-based fetcher. A nil fetcher
// disables dependency resolution.
func WithDependencyFetcher(f DependencyFetcher) Option {
	return func(i *Installer) { i.fetcher = f }
}

// WithStagingDir sets the parent directory for staging. Placing it on the same
// filesystem as the extension roots keeps the final move a plain rename.
func WithStagingDir(dir string) Option {
	return func(i *Installer) { i.stagingDir = dir }
}

// NewInstaller creates an Installer.
func NewInstaller(opts ...Option) *Installer {
	i := &Installer{
		fetcher: NewExecFetcher(""),
		locks:   newNameLocks(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Validate checks that the required options are present and usable.
func (o InstallOptions) Validate() error {
	if o.DisabledDirectory == "" || o.APIVersion == "" {
		return ErrMissingRequiredOptions
	}
	if !IsValidVersion(o.APIVersion) {
		return fmt.Errorf("%w: %q", ErrInvalidAPIVersion, o.APIVersion)
	}
	return nil
}

// Install installs the archive into destinationRoot. Existing installations
// are never modified: a collision yields an advisory status and the caller
// decides whether to call Update.
func (i *Installer) Install(
	ctx context.Context,
	archivePath, destinationRoot string,
	opts InstallOptions,
) (*InstallResult, error) {
	return i.run(ctx, "install", archivePath, destinationRoot, opts, false)
}

// Update installs the archive, replacing any installed directory of the same
// package in either root. The result is INSTALLED, or DISABLED when the new
// version is still incompatible with the host API.
func (i *Installer) Update(
	ctx context.Context,
	archivePath, destinationRoot string,
	opts InstallOptions,
) (*InstallResult, error) {
	return i.run(ctx, "update", archivePath, destinationRoot, opts, true)
}

func (i *Installer) run(
	ctx context.Context,
	operation, archivePath, destinationRoot string,
	opts InstallOptions,
	update bool,
) (*InstallResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if destinationRoot == "" {
		return nil, fmt.Errorf("%w: destination directory", ErrMissingRequiredOptions)
	}

	log := logging.FromContext(ctx)
	log.Debug().
		Ctx(ctx).
		Str("component", "extension").
		Str("operation", operation).
		Str("archive", archivePath).
		Str("destination", destinationRoot).
		Str("disabled_dir", opts.DisabledDirectory).
		Str("api_version", opts.APIVersion).
		Msg("processing extension archive")

	result := &InstallResult{
		LocalPath: archivePath,
		Name:      DeriveName(archivePath),
		Errors:    []ValidationError{},
	}

	staged, stageErrs, err := Stage(ctx, archivePath, i.stagingDir)
	if err != nil {
		return nil, err
	}
	if len(stageErrs) > 0 {
		result.Status = StatusFailed
		result.Errors = stageErrs
		return result, nil
	}
	defer func() {
		if cleanupErr := staged.Cleanup(); cleanupErr != nil {
			log.Warn().
				Ctx(ctx).
				Str("component", "extension").
				Str("operation", operation).
				Str("staging_dir", staged.Dir).
				Err(cleanupErr).
				Msg("failed to remove staging directory")
		}
	}()

	desc, errs, err := ResolveDescriptor(staged.Root, archivePath)
	if err != nil {
		return nil, err
	}
	errs = append(errs, Validate(staged.Root, desc, opts.APIVersion)...)

	result.Metadata = desc
	result.Name = SanitizeName(desc.Name)
	if len(errs) > 0 {
		result.Errors = errs
	}

	if blocking(errs) {
		result.Status = StatusFailed
		log.Debug().
			Ctx(ctx).
			Str("component", "extension").
			Str("operation", operation).
			Str("name", result.Name).
			Int("error_count", len(errs)).
			Msg("extension failed validation")
		return result, nil
	}

	decision, err := i.commit(ctx, staged, desc, errs, archivePath, destinationRoot, opts.DisabledDirectory, update)
	if err != nil {
		return nil, err
	}

	result.Status = decision.Status
	result.Name = decision.Name
	result.DisabledReason = decision.DisabledReason
	if !decision.Status.Commits() {
		log.Debug().
			Ctx(ctx).
			Str("component", "extension").
			Str("operation", operation).
			Str("name", decision.Name).
			Str("status", decision.Status.String()).
			Msg("extension already present, nothing changed")
		return result, nil
	}

	result.InstalledTo = decision.Target
	log.Info().
		Ctx(ctx).
		Str("component", "extension").
		Str("operation", operation).
		Str("name", decision.Name).
		Str("version", desc.Version).
		Str("status", decision.Status.String()).
		Str("path", decision.Target).
		Msg("extension installed")

	result.Errors = append(result.Errors, resolveDependencies(ctx, i.fetcher, decision.Target, desc)...)
	return result, nil
}

// commit resolves the status under the package locks and performs the
// filesystem change it implies.
func (i *Installer) commit(
	ctx context.Context,
	staged *StagedArchive,
	desc *PackageDescriptor,
	errs []ValidationError,
	archivePath, activeRoot, disabledRoot string,
	update bool,
) (StatusDecision, error) {
	unlock, err := i.locks.acquire(ctx, slotPaths(desc, archivePath, activeRoot, disabledRoot)...)
	if err != nil {
		return StatusDecision{}, err
	}
	defer unlock()

	existing, err := findExisting(desc, archivePath, activeRoot, disabledRoot)
	if err != nil {
		return StatusDecision{}, err
	}

	decision := ResolveStatus(StatusInput{
		Candidate:    desc,
		Errors:       errs,
		ActiveRoot:   activeRoot,
		DisabledRoot: disabledRoot,
		Existing:     existing,
		Update:       update,
	})
	if !decision.Status.Commits() {
		return decision, nil
	}

	if err := replaceInstalled(ctx, decision.Replace, staged.Root, decision.Target); err != nil {
		return StatusDecision{}, fmt.Errorf("installing %s: %w", decision.Name, err)
	}
	return decision, nil
}

// slotPaths lists every directory the candidate could occupy or replace.
func slotPaths(desc *PackageDescriptor, archivePath, activeRoot, disabledRoot string) []string {
	names := []string{SanitizeName(desc.Name)}
	if derived := DeriveName(archivePath); !desc.Legacy && derived != names[0] {
		names = append(names, derived)
	}

	paths := make([]string, 0, len(names)*2)
	for _, name := range names {
		paths = append(paths, filepath.Join(activeRoot, name), filepath.Join(disabledRoot, name))
	}
	return paths
}

// findExisting locates an installed directory for the candidate. The
// candidate's own name is checked in both roots first. A package that now
// ships a descriptor may also replace a legacy install named after its archive.
func findExisting(desc *PackageDescriptor, archivePath, activeRoot, disabledRoot string) (*Existing, error) {
	name := SanitizeName(desc.Name)
	for _, slot := range []struct {
		root     string
		disabled bool
	}{{activeRoot, false}, {disabledRoot, true}} {
		ex, _, err := inspectInstalled(filepath.Join(slot.root, name), name, slot.disabled)
		if err != nil || ex != nil {
			return ex, err
		}
	}

	derived := DeriveName(archivePath)
	if desc.Legacy || derived == name {
		return nil, nil
	}
	for _, slot := range []struct {
		root     string
		disabled bool
	}{{activeRoot, false}, {disabledRoot, true}} {
		ex, hasDescriptor, err := inspectInstalled(filepath.Join(slot.root, derived), derived, slot.disabled)
		if err != nil {
			return nil, err
		}
		if ex != nil && !hasDescriptor {
			return ex, nil
		}
	}
	return nil, nil
}

// inspectInstalled describes the directory at path, or returns nil if there is none.
func inspectInstalled(path, name string, disabled bool) (*Existing, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("inspecting %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, false, nil
	}

	ex := &Existing{Name: name, Path: path, Disabled: disabled}
	desc, err := ReadDescriptor(path)
	if err != nil {
		return ex, !errors.Is(err, ErrDescriptorNotFound), nil
	}
	if IsValidVersion(desc.Version) {
		ex.Version = desc.Version
	}
	return ex, true, nil
}

// Remove deletes an installed extension directory and everything in it.
func (i *Installer) Remove(ctx context.Context, installedDirPath string) error {
	if installedDirPath == "" {
		return fmt.Errorf("%w: empty path", ErrNotFound)
	}

	unlock, err := i.locks.acquire(ctx, installedDirPath)
	if err != nil {
		return err
	}
	defer unlock()

	info, err := os.Lstat(installedDirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, installedDirPath)
		}
		return fmt.Errorf("inspecting %s: %w", installedDirPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not an extension directory", installedDirPath)
	}

	size, _ := DirSize(installedDirPath)
	if removeErr := os.RemoveAll(installedDirPath); removeErr != nil {
		return fmt.Errorf("removing %s: %w", installedDirPath, removeErr)
	}

	log := logging.FromContext(ctx)
	log.Info().
		Ctx(ctx).
		Str("component", "extension").
		Str("operation", "remove").
		Str("path", installedDirPath).
		Int64("bytes_freed", size).
		Msg("extension removed")
	return nil
}

// List returns the packages installed under both roots, sorted by name.
// Missing roots are treated as empty.
func (i *Installer) List(ctx context.Context, destinationRoot, disabledRoot string) ([]InstalledPackage, error) {
	var active, disabled []InstalledPackage

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = scanRoot(destinationRoot, false)
		return err
	})
	if disabledRoot != "" {
		g.Go(func() error {
			var err error
			disabled, err = scanRoot(disabledRoot, true)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := append(active, disabled...)
	slices.SortFunc(all, func(a, b InstalledPackage) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return all, nil
}

func scanRoot(root string, disabled bool) ([]InstalledPackage, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading extension directory %s: %w", root, err)
	}

	var pkgs []InstalledPackage
	for _, entry := range entries {
		// Hidden entries are in-flight installs or removals.
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(root, entry.Name())
		ex, hasDescriptor, inspectErr := inspectInstalled(path, entry.Name(), disabled)
		if inspectErr != nil || ex == nil {
			continue
		}
		pkgs = append(pkgs, InstalledPackage{
			Name:     ex.Name,
			Version:  ex.Version,
			Path:     ex.Path,
			Disabled: disabled,
			Legacy:   !hasDescriptor,
		})
	}
	return pkgs, nil
}
