package backup_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/toolbump/internal/backup"
	"github.com/temirov/toolbump/internal/journal"
)

const (
	testManifestContentConstant = "{\n  \"name\": \"sequencer\",\n  \"dependencies\": {\n    \"react-scripts\": \"4.0.3\"\n  }\n}\n"
	testLockContentConstant     = "{\n  \"lockfileVersion\": 2\n}\n"
	testModifiedContentConstant = "{\"name\":\"broken\""
)

type managerFixture struct {
	projectDirectory string
	paths            backup.Paths
	journal          *journal.Journal
	manager          *backup.Manager
}

func newManagerFixture(testInstance *testing.T, withLockFile bool) managerFixture {
	testInstance.Helper()
	projectDirectory := testInstance.TempDir()
	paths := backup.DefaultPaths(projectDirectory)
	require.NoError(testInstance, os.WriteFile(paths.Manifest, []byte(testManifestContentConstant), 0o644))
	if withLockFile {
		require.NoError(testInstance, os.WriteFile(paths.LockFile, []byte(testLockContentConstant), 0o644))
	}

	runJournal, openError := journal.Open(journal.Options{ArtifactPath: filepath.Join(testInstance.TempDir(), "upgrade.log")})
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() { _ = runJournal.Close() })

	manager, creationError := backup.NewManager(paths, runJournal)
	require.NoError(testInstance, creationError)

	return managerFixture{projectDirectory: projectDirectory, paths: paths, journal: runJournal, manager: manager}
}

func readFile(testInstance *testing.T, filePath string) string {
	testInstance.Helper()
	content, readError := os.ReadFile(filePath)
	require.NoError(testInstance, readError)
	return string(content)
}

func TestDefaultPaths(testInstance *testing.T) {
	paths := backup.DefaultPaths("/srv/app")
	require.Equal(testInstance, backup.Paths{
		Manifest:       "/srv/app/package.json",
		LockFile:       "/srv/app/package-lock.json",
		ManifestBackup: "/srv/app/package.json.backup",
		LockFileBackup: "/srv/app/package-lock.json.backup",
	}, paths)
}

func TestNewManagerValidation(testInstance *testing.T) {
	_, reporterError := backup.NewManager(backup.DefaultPaths("."), nil)
	require.ErrorIs(testInstance, reporterError, backup.ErrReporterNotConfigured)

	runJournal, openError := journal.Open(journal.Options{ArtifactPath: filepath.Join(testInstance.TempDir(), "upgrade.log")})
	require.NoError(testInstance, openError)
	defer runJournal.Close()

	_, pathError := backup.NewManager(backup.Paths{}, runJournal)
	require.ErrorIs(testInstance, pathError, backup.ErrManifestPathRequired)
}

func TestBackupRoundTrip(testInstance *testing.T) {
	testCases := []struct {
		name         string
		withLockFile bool
	}{
		{name: "manifest_and_lock", withLockFile: true},
		{name: "manifest_only", withLockFile: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newManagerFixture(testInstance, testCase.withLockFile)

			createResult := fixture.manager.Create()
			require.True(testInstance, createResult.Success, createResult.Message)
			require.True(testInstance, fixture.manager.HasSnapshot())
			require.Equal(testInstance, testManifestContentConstant, readFile(testInstance, fixture.paths.ManifestBackup))

			require.NoError(testInstance, os.WriteFile(fixture.paths.Manifest, []byte(testModifiedContentConstant), 0o644))
			if testCase.withLockFile {
				require.NoError(testInstance, os.WriteFile(fixture.paths.LockFile, []byte(testModifiedContentConstant), 0o644))
			}

			restoreResult := fixture.manager.Restore()
			require.True(testInstance, restoreResult.Success, restoreResult.Message)
			require.Equal(testInstance, testManifestContentConstant, readFile(testInstance, fixture.paths.Manifest))
			if testCase.withLockFile {
				require.Equal(testInstance, testLockContentConstant, readFile(testInstance, fixture.paths.LockFile))
			} else {
				require.NoFileExists(testInstance, fixture.paths.LockFileBackup)
			}
		})
	}
}

func TestCreateIsIdempotent(testInstance *testing.T) {
	fixture := newManagerFixture(testInstance, true)

	require.True(testInstance, fixture.manager.Create().Success)
	require.True(testInstance, fixture.manager.Create().Success)

	require.Equal(testInstance, testManifestContentConstant, readFile(testInstance, fixture.paths.ManifestBackup))
	require.Equal(testInstance, testLockContentConstant, readFile(testInstance, fixture.paths.LockFileBackup))
}

func TestCreateRemovesStaleLockBackup(testInstance *testing.T) {
	fixture := newManagerFixture(testInstance, true)
	require.True(testInstance, fixture.manager.Create().Success)

	require.NoError(testInstance, os.Remove(fixture.paths.LockFile))
	require.True(testInstance, fixture.manager.Create().Success)

	require.NoFileExists(testInstance, fixture.paths.LockFileBackup)
}

func TestCreateFailsWithoutManifest(testInstance *testing.T) {
	fixture := newManagerFixture(testInstance, false)
	require.NoError(testInstance, os.Remove(fixture.paths.Manifest))

	createResult := fixture.manager.Create()
	require.False(testInstance, createResult.Success)
	require.Contains(testInstance, createResult.Message, "does not exist")
	require.False(testInstance, fixture.manager.HasSnapshot())

	entries := fixture.journal.Entries()
	require.Equal(testInstance, journal.LevelError, entries[len(entries)-1].Level)
}

func TestRestoreWithoutBackupIsReported(testInstance *testing.T) {
	fixture := newManagerFixture(testInstance, true)

	restoreResult := fixture.manager.Restore()
	require.False(testInstance, restoreResult.Success)
	require.Equal(testInstance, testManifestContentConstant, readFile(testInstance, fixture.paths.Manifest))
}

func TestRestoreRemovesLockFileCreatedAfterBackup(testInstance *testing.T) {
	testCases := []struct {
		name               string
		createLockFile     bool
		expectRemovalEntry bool
	}{
		{name: "lock_created_by_install", createLockFile: true, expectRemovalEntry: true},
		{name: "no_lock_created", createLockFile: false, expectRemovalEntry: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newManagerFixture(testInstance, false)
			require.True(testInstance, fixture.manager.Create().Success)

			require.NoError(testInstance, os.WriteFile(fixture.paths.Manifest, []byte(testModifiedContentConstant), 0o644))
			if testCase.createLockFile {
				require.NoError(testInstance, os.WriteFile(fixture.paths.LockFile, []byte(testLockContentConstant), 0o644))
			}

			restoreResult := fixture.manager.Restore()
			require.True(testInstance, restoreResult.Success, restoreResult.Message)
			require.Equal(testInstance, testManifestContentConstant, readFile(testInstance, fixture.paths.Manifest))
			require.NoFileExists(testInstance, fixture.paths.LockFile)

			var sawRemoval bool
			for _, entry := range fixture.journal.Entries() {
				if entry.Message == "Removed "+fixture.paths.LockFile+" created after the backup" {
					sawRemoval = true
				}
			}
			require.Equal(testInstance, testCase.expectRemovalEntry, sawRemoval)
		})
	}
}

func TestRestoreReportsUncapturedLockFileRemovalFailure(testInstance *testing.T) {
	fixture := newManagerFixture(testInstance, false)
	require.True(testInstance, fixture.manager.Create().Success)

	require.NoError(testInstance, os.Mkdir(fixture.paths.LockFile, 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(fixture.paths.LockFile, "entry"), []byte("x"), 0o644))

	restoreResult := fixture.manager.Restore()
	require.False(testInstance, restoreResult.Success)
	require.Contains(testInstance, restoreResult.Message, "created after the backup")
	require.Equal(testInstance, testManifestContentConstant, readFile(testInstance, fixture.paths.Manifest))
}

func TestCleanupRemovesBackups(testInstance *testing.T) {
	fixture := newManagerFixture(testInstance, true)
	require.True(testInstance, fixture.manager.Create().Success)

	fixture.manager.Cleanup()
	require.NoFileExists(testInstance, fixture.paths.ManifestBackup)
	require.NoFileExists(testInstance, fixture.paths.LockFileBackup)

	fixture.manager.Cleanup()
	for _, entry := range fixture.journal.Entries() {
		require.NotEqual(testInstance, journal.LevelWarn, entry.Level)
	}
}
