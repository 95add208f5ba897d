package upgrade

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/toolbump/internal/execshell"
	"github.com/temirov/toolbump/internal/journal"
)

type idleExecutor struct{}

func (idleExecutor) ExecuteNPM(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return execshell.ExecutionResult{}, nil
}

func TestCleanReportsSlowAndFailedRemovalsAsWarnings(testInstance *testing.T) {
	projectDirectory := testInstance.TempDir()
	runJournal, openError := journal.Open(journal.Options{ArtifactPath: filepath.Join(projectDirectory, "upgrade.log")})
	require.NoError(testInstance, openError)
	defer func() { _ = runJournal.Close() }()

	installer, creationError := NewNPMInstaller(idleExecutor{}, runJournal, InstallerOptions{
		ProjectDirectory: projectDirectory,
		CleanTimeout:     20 * time.Millisecond,
	})
	require.NoError(testInstance, creationError)

	release := make(chan struct{})
	defer close(release)
	installer.remove = func(removalPath string) error {
		if filepath.Base(removalPath) == defaultDependencyDirectoryConstant {
			<-release
			return nil
		}
		return errors.New("permission denied")
	}

	result := installer.Clean(context.Background())
	require.False(testInstance, result.Success)

	warnings := []string{}
	for _, entry := range runJournal.Entries() {
		if entry.Level == journal.LevelWarn {
			warnings = append(warnings, entry.Message)
		}
	}
	require.Len(testInstance, warnings, 2)
	require.Contains(testInstance, warnings[0], "did not finish within")
	require.Contains(testInstance, warnings[1], "permission denied")
}
