package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	temporaryFilePatternTemplateConstant = ".%s.*.tmp"
	createTemporaryFileErrorTemplate     = "unable to create temporary file for %s: %w"
	writeTemporaryFileErrorTemplate      = "unable to write temporary file for %s: %w"
	syncTemporaryFileErrorTemplate       = "unable to sync temporary file for %s: %w"
	closeTemporaryFileErrorTemplate      = "unable to close temporary file for %s: %w"
	chmodTemporaryFileErrorTemplate      = "unable to set permissions on temporary file for %s: %w"
	renameTemporaryFileErrorTemplate     = "unable to replace %s: %w"
)

// WriteFileAtomically replaces targetPath with content so that readers observe either the previous file or the complete new one.
// The temporary file lives next to the target so the final rename never crosses file systems.
func WriteFileAtomically(targetPath string, content []byte, permissions os.FileMode) error {
	targetDirectory := filepath.Dir(targetPath)
	temporaryFile, createError := os.CreateTemp(targetDirectory, fmt.Sprintf(temporaryFilePatternTemplateConstant, filepath.Base(targetPath)))
	if createError != nil {
		return fmt.Errorf(createTemporaryFileErrorTemplate, targetPath, createError)
	}
	temporaryPath := temporaryFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(temporaryPath)
		}
	}()

	if _, writeError := temporaryFile.Write(content); writeError != nil {
		_ = temporaryFile.Close()
		return fmt.Errorf(writeTemporaryFileErrorTemplate, targetPath, writeError)
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		_ = temporaryFile.Close()
		return fmt.Errorf(syncTemporaryFileErrorTemplate, targetPath, syncError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return fmt.Errorf(closeTemporaryFileErrorTemplate, targetPath, closeError)
	}
	if chmodError := os.Chmod(temporaryPath, permissions); chmodError != nil {
		return fmt.Errorf(chmodTemporaryFileErrorTemplate, targetPath, chmodError)
	}
	if renameError := os.Rename(temporaryPath, targetPath); renameError != nil {
		return fmt.Errorf(renameTemporaryFileErrorTemplate, targetPath, renameError)
	}

	committed = true
	return nil
}

// FilePermissions returns the permission bits of an existing file or the fallback when it cannot be inspected.
func FilePermissions(filePath string, fallback os.FileMode) os.FileMode {
	fileInfo, statError := os.Stat(filePath)
	if statError != nil {
		return fallback
	}
	return fileInfo.Mode().Perm()
}
