// Package extension installs, updates and removes extensions delivered as
// archive files.
//
// An install request flows through a fixed pipeline:
//
//  1. Stage: the archive is extracted into a private staging directory.
//     Symlink entries are dropped and a single wrapping directory is stripped.
//  2. ResolveDescriptor: package.json at the staged root is parsed. Archives
//     without one are "legacy" extensions named after the archive file.
//  3. Validate: main.js must exist, the descriptor must be well formed and the
//     declared engines.hostApi range must accept the host API version.
//  4. ResolveStatus: a pure decision from the candidate and whatever is
//     already installed under the active and disabled roots.
//  5. Commit: the staged tree is renamed into place under a per-name lock.
//  6. Dependencies declared in package.json are fetched by a DependencyFetcher.
//
// Package defects are reported in InstallResult.Errors; environment problems
// are returned as Go errors.
package extension
