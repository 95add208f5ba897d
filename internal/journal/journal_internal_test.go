package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJournalRetainsFirstAppendFailure(testInstance *testing.T) {
	runJournal, openError := Open(Options{ArtifactPath: filepath.Join(testInstance.TempDir(), "upgrade.log")})
	require.NoError(testInstance, openError)

	require.NoError(testInstance, runJournal.artifact.Close())

	firstError := runJournal.Warn("first")
	require.Error(testInstance, firstError)
	secondError := runJournal.Error("second")
	require.Error(testInstance, secondError)

	require.Equal(testInstance, firstError, runJournal.Err())
	require.Len(testInstance, runJournal.Entries(), 1)
}
