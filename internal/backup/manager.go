package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/temirov/toolbump/internal/journal"
	"github.com/temirov/toolbump/internal/opresult"
	"github.com/temirov/toolbump/internal/utils"
)

const (
	// ManifestFileName is the dependency manifest protected by the snapshot.
	ManifestFileName = "package.json"
	// LockFileName is the optional lock file protected by the snapshot.
	LockFileName = "package-lock.json"
	// BackupSuffix is appended to live file names to form backup file names.
	BackupSuffix = ".backup"

	reporterNotConfiguredMessageConstant = "backup manager reporter not configured"
	manifestPathRequiredMessageConstant  = "backup manager manifest path not configured"
	defaultFilePermissionsConstant       = 0o644

	creatingBackupMessageConstant         = "Creating backup of dependency manifest"
	manifestMissingTemplateConstant       = "Cannot create backup: manifest %s does not exist"
	manifestCopyFailedTemplateConstant    = "Cannot back up %s: %v"
	lockCopyFailedTemplateConstant        = "Cannot back up lock file %s: %v"
	staleLockRemovalFailedTemplate        = "Cannot remove stale lock file backup %s: %v"
	backupCreatedTemplateConstant         = "Backup created: %s"
	backupCreatedWithLockTemplate         = "Backup created: %s and %s"
	restoringBackupMessageConstant        = "Restoring dependency manifest from backup"
	backupMissingTemplateConstant         = "Cannot restore: backup %s does not exist"
	manifestRestoreFailedTemplate         = "Cannot restore %s: %v"
	lockRestoreFailedTemplateConstant     = "Cannot restore lock file %s: %v"
	backupRestoredTemplateConstant        = "Restored %s from backup"
	backupRestoredWithLockTemplate        = "Restored %s and %s from backup"
	uncapturedLockRemovedTemplate         = "Removed %s created after the backup"
	uncapturedLockRemovalFailedTemplate   = "Cannot remove %s created after the backup: %v"
	backupRemovedTemplateConstant         = "Removed backup file %s"
	backupRemovalFailedTemplateConstant   = "Cannot remove backup file %s: %v"
	readSourceErrorTemplateConstant       = "read %s: %w"
	writeDestinationErrorTemplateConstant = "write %s: %w"
)

// ErrReporterNotConfigured indicates the manager was constructed without a reporter.
var ErrReporterNotConfigured = errors.New(reporterNotConfiguredMessageConstant)

// ErrManifestPathRequired indicates the manager was constructed without a manifest path.
var ErrManifestPathRequired = errors.New(manifestPathRequiredMessageConstant)

// Paths locates the live files and their backups.
type Paths struct {
	Manifest       string
	LockFile       string
	ManifestBackup string
	LockFileBackup string
}

// DefaultPaths returns the standard file layout inside a project directory.
func DefaultPaths(projectDirectory string) Paths {
	manifestPath := filepath.Join(projectDirectory, ManifestFileName)
	lockFilePath := filepath.Join(projectDirectory, LockFileName)
	return Paths{
		Manifest:       manifestPath,
		LockFile:       lockFilePath,
		ManifestBackup: manifestPath + BackupSuffix,
		LockFileBackup: lockFilePath + BackupSuffix,
	}
}

// Manager owns the snapshot files. It is the only writer of backup paths.
type Manager struct {
	paths    Paths
	reporter journal.Reporter
}

// NewManager constructs a Manager.
func NewManager(paths Paths, reporter journal.Reporter) (*Manager, error) {
	if reporter == nil {
		return nil, ErrReporterNotConfigured
	}
	if len(paths.Manifest) == 0 {
		return nil, ErrManifestPathRequired
	}
	if len(paths.ManifestBackup) == 0 {
		paths.ManifestBackup = paths.Manifest + BackupSuffix
	}
	if len(paths.LockFile) > 0 && len(paths.LockFileBackup) == 0 {
		paths.LockFileBackup = paths.LockFile + BackupSuffix
	}
	return &Manager{paths: paths, reporter: reporter}, nil
}

// Create copies the manifest and, when present, the lock file to their backup paths.
// Repeated calls replace the previous snapshot with the current live files.
func (manager *Manager) Create() opresult.Result {
	_ = manager.reporter.Info(creatingBackupMessageConstant)

	if !fileExists(manager.paths.Manifest) {
		return manager.fail(fmt.Sprintf(manifestMissingTemplateConstant, manager.paths.Manifest))
	}

	if copyError := copyFile(manager.paths.Manifest, manager.paths.ManifestBackup); copyError != nil {
		return manager.fail(fmt.Sprintf(manifestCopyFailedTemplateConstant, manager.paths.Manifest, copyError))
	}

	if !manager.tracksLockFile() {
		return manager.succeed(fmt.Sprintf(backupCreatedTemplateConstant, manager.paths.ManifestBackup))
	}

	if !fileExists(manager.paths.LockFile) {
		if removeError := os.Remove(manager.paths.LockFileBackup); removeError != nil && !errors.Is(removeError, os.ErrNotExist) {
			return manager.fail(fmt.Sprintf(staleLockRemovalFailedTemplate, manager.paths.LockFileBackup, removeError))
		}
		return manager.succeed(fmt.Sprintf(backupCreatedTemplateConstant, manager.paths.ManifestBackup))
	}

	if copyError := copyFile(manager.paths.LockFile, manager.paths.LockFileBackup); copyError != nil {
		return manager.fail(fmt.Sprintf(lockCopyFailedTemplateConstant, manager.paths.LockFile, copyError))
	}

	return manager.succeed(fmt.Sprintf(backupCreatedWithLockTemplate, manager.paths.ManifestBackup, manager.paths.LockFileBackup))
}

// Restore copies the backups over the live files. A lock file that was absent when the snapshot
// was taken is removed, so the project returns to its captured state.
func (manager *Manager) Restore() opresult.Result {
	_ = manager.reporter.Info(restoringBackupMessageConstant)

	if !fileExists(manager.paths.ManifestBackup) {
		return manager.fail(fmt.Sprintf(backupMissingTemplateConstant, manager.paths.ManifestBackup))
	}

	if copyError := copyFile(manager.paths.ManifestBackup, manager.paths.Manifest); copyError != nil {
		return manager.fail(fmt.Sprintf(manifestRestoreFailedTemplate, manager.paths.Manifest, copyError))
	}

	if !manager.tracksLockFile() {
		return manager.succeed(fmt.Sprintf(backupRestoredTemplateConstant, manager.paths.Manifest))
	}

	if !fileExists(manager.paths.LockFileBackup) {
		removeError := os.Remove(manager.paths.LockFile)
		switch {
		case removeError == nil:
			_ = manager.reporter.Info(fmt.Sprintf(uncapturedLockRemovedTemplate, manager.paths.LockFile))
		case errors.Is(removeError, os.ErrNotExist):
		default:
			return manager.fail(fmt.Sprintf(uncapturedLockRemovalFailedTemplate, manager.paths.LockFile, removeError))
		}
		return manager.succeed(fmt.Sprintf(backupRestoredTemplateConstant, manager.paths.Manifest))
	}

	if copyError := copyFile(manager.paths.LockFileBackup, manager.paths.LockFile); copyError != nil {
		return manager.fail(fmt.Sprintf(lockRestoreFailedTemplateConstant, manager.paths.LockFile, copyError))
	}

	return manager.succeed(fmt.Sprintf(backupRestoredWithLockTemplate, manager.paths.Manifest, manager.paths.LockFile))
}

// HasSnapshot reports whether a manifest backup exists.
func (manager *Manager) HasSnapshot() bool {
	return fileExists(manager.paths.ManifestBackup)
}

// Cleanup deletes the backup files. Failures are reported as warnings.
func (manager *Manager) Cleanup() {
	backupPaths := []string{manager.paths.ManifestBackup}
	if manager.tracksLockFile() {
		backupPaths = append(backupPaths, manager.paths.LockFileBackup)
	}
	for _, backupPath := range backupPaths {
		removeError := os.Remove(backupPath)
		switch {
		case removeError == nil:
			_ = manager.reporter.Info(fmt.Sprintf(backupRemovedTemplateConstant, backupPath))
		case errors.Is(removeError, os.ErrNotExist):
		default:
			_ = manager.reporter.Warn(fmt.Sprintf(backupRemovalFailedTemplateConstant, backupPath, removeError))
		}
	}
}

func (manager *Manager) tracksLockFile() bool {
	return len(manager.paths.LockFile) > 0
}

func (manager *Manager) succeed(message string) opresult.Result {
	_ = manager.reporter.Success(message)
	return opresult.Succeeded(message)
}

func (manager *Manager) fail(message string) opresult.Result {
	_ = manager.reporter.Error(message)
	return opresult.Failed(message, "")
}

func fileExists(filePath string) bool {
	fileInfo, statError := os.Stat(filePath)
	return statError == nil && fileInfo.Mode().IsRegular()
}

func copyFile(sourcePath string, destinationPath string) error {
	content, readError := os.ReadFile(sourcePath)
	if readError != nil {
		return fmt.Errorf(readSourceErrorTemplateConstant, sourcePath, readError)
	}
	permissions := utils.FilePermissions(sourcePath, defaultFilePermissionsConstant)
	if writeError := utils.WriteFileAtomically(destinationPath, content, permissions); writeError != nil {
		return fmt.Errorf(writeDestinationErrorTemplateConstant, destinationPath, writeError)
	}
	return nil
}
