package preflight

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"
)

const (
	openRepositoryErrorTemplateConstant = "unable to open repository at %s: %w"
	worktreeErrorTemplateConstant       = "unable to open worktree at %s: %w"
	statusErrorTemplateConstant         = "unable to read worktree status at %s: %w"
	notRepositoryLogMessageConstant     = "Project is not a git repository; skipping worktree inspection"
	inspectedLogMessageConstant         = "Inspected project worktree"
	projectDirectoryFieldConstant       = "project_directory"
	repositoryRootFieldConstant         = "repository_root"
	dirtyFilesFieldConstant             = "dirty_files"
)

// FileState is the git status of one watched file.
type FileState struct {
	Path     string
	Staging  git.StatusCode
	Worktree git.StatusCode
}

// Untracked reports whether git does not track the file.
func (state FileState) Untracked() bool {
	return state.Worktree == git.Untracked
}

// Report summarizes the worktree inspection.
type Report struct {
	Repository     bool
	RepositoryRoot string
	DirtyFiles     []FileState
}

// Clean reports whether every watched file matches the last commit.
func (report Report) Clean() bool {
	return len(report.DirtyFiles) == 0
}

// Inspector reads worktree status through go-git.
type Inspector struct {
	logger *zap.Logger
}

// NewInspector constructs an Inspector.
func NewInspector(logger *zap.Logger) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{logger: logger}
}

// Inspect reports uncommitted changes to the watched files. Directories outside a repository
// yield a report with Repository set to false.
func (inspector *Inspector) Inspect(_ context.Context, projectDirectory string, watchedFiles []string) (Report, error) {
	repository, openError := git.PlainOpenWithOptions(projectDirectory, &git.PlainOpenOptions{DetectDotGit: true})
	if openError != nil {
		if errors.Is(openError, git.ErrRepositoryNotExists) {
			inspector.logger.Debug(notRepositoryLogMessageConstant, zap.String(projectDirectoryFieldConstant, projectDirectory))
			return Report{}, nil
		}
		return Report{}, fmt.Errorf(openRepositoryErrorTemplateConstant, projectDirectory, openError)
	}

	worktree, worktreeError := repository.Worktree()
	if worktreeError != nil {
		return Report{}, fmt.Errorf(worktreeErrorTemplateConstant, projectDirectory, worktreeError)
	}
	repositoryRoot := worktree.Filesystem.Root()

	status, statusError := worktree.Status()
	if statusError != nil {
		return Report{}, fmt.Errorf(statusErrorTemplateConstant, repositoryRoot, statusError)
	}

	report := Report{Repository: true, RepositoryRoot: repositoryRoot, DirtyFiles: []FileState{}}
	for _, watchedFile := range watchedFiles {
		relativePath, relativeError := relativeToRoot(repositoryRoot, watchedFile)
		if relativeError != nil {
			continue
		}
		fileStatus, tracked := status[relativePath]
		if !tracked {
			continue
		}
		if fileStatus.Staging == git.Unmodified && fileStatus.Worktree == git.Unmodified {
			continue
		}
		report.DirtyFiles = append(report.DirtyFiles, FileState{
			Path:     relativePath,
			Staging:  fileStatus.Staging,
			Worktree: fileStatus.Worktree,
		})
	}
	sort.Slice(report.DirtyFiles, func(leftIndex int, rightIndex int) bool {
		return report.DirtyFiles[leftIndex].Path < report.DirtyFiles[rightIndex].Path
	})

	dirtyPaths := make([]string, 0, len(report.DirtyFiles))
	for _, dirtyFile := range report.DirtyFiles {
		dirtyPaths = append(dirtyPaths, dirtyFile.Path)
	}
	inspector.logger.Debug(inspectedLogMessageConstant,
		zap.String(repositoryRootFieldConstant, repositoryRoot),
		zap.Strings(dirtyFilesFieldConstant, dirtyPaths),
	)

	return report, nil
}

func relativeToRoot(repositoryRoot string, filePath string) (string, error) {
	absoluteRoot, rootError := filepath.Abs(repositoryRoot)
	if rootError != nil {
		return "", rootError
	}
	absolutePath, pathError := filepath.Abs(filePath)
	if pathError != nil {
		return "", pathError
	}
	if resolvedRoot, resolveError := filepath.EvalSymlinks(absoluteRoot); resolveError == nil {
		absoluteRoot = resolvedRoot
	}
	if resolvedDirectory, resolveError := filepath.EvalSymlinks(filepath.Dir(absolutePath)); resolveError == nil {
		absolutePath = filepath.Join(resolvedDirectory, filepath.Base(absolutePath))
	}
	relativePath, relativeError := filepath.Rel(absoluteRoot, absolutePath)
	if relativeError != nil {
		return "", relativeError
	}
	return filepath.ToSlash(relativePath), nil
}
