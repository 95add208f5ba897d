package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	artifactPathRequiredMessageConstant = "journal artifact path not configured"
	journalClosedMessageConstant        = "journal already closed"
	openArtifactErrorTemplateConstant   = "unable to open log artifact %s: %w"
	appendEntryErrorTemplateConstant    = "unable to append to log artifact %s: %w"
	closeArtifactErrorTemplateConstant  = "unable to close log artifact %s: %w"
	runStartedMessageTemplateConstant   = "Upgrade run %s started"
	logFieldRunIdentifierConstant       = "run_id"
	logFieldOutcomeConstant             = "outcome"
	successOutcomeValueConstant         = "success"
	artifactFilePermissionsConstant     = 0o644
)

// ErrArtifactPathRequired indicates the journal was opened without a log artifact path.
var ErrArtifactPathRequired = errors.New(artifactPathRequiredMessageConstant)

// ErrJournalClosed indicates an append after Close.
var ErrJournalClosed = errors.New(journalClosedMessageConstant)

// Reporter is the reporting surface shared by every component of a run.
type Reporter interface {
	Log(level Level, message string) error
	Info(message string) error
	Warn(message string) error
	Error(message string) error
	Success(message string) error
}

// Options configures a Journal.
type Options struct {
	ArtifactPath  string
	Console       io.Writer
	Logger        *zap.Logger
	Clock         func() time.Time
	RunIdentifier string
}

// Journal is the append-only run log.
type Journal struct {
	mutex         sync.Mutex
	artifact      *os.File
	artifactPath  string
	console       *consolePrinter
	logger        *zap.Logger
	clock         func() time.Time
	runIdentifier string
	entries       []Entry
	firstFailure  error
	closed        bool
}

// Open creates or appends to the log artifact and records the run-start marker.
func Open(options Options) (*Journal, error) {
	if len(options.ArtifactPath) == 0 {
		return nil, ErrArtifactPathRequired
	}

	artifact, openError := os.OpenFile(options.ArtifactPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, artifactFilePermissionsConstant)
	if openError != nil {
		return nil, fmt.Errorf(openArtifactErrorTemplateConstant, options.ArtifactPath, openError)
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := options.Clock
	if clock == nil {
		clock = time.Now
	}
	runIdentifier := options.RunIdentifier
	if len(runIdentifier) == 0 {
		runIdentifier = uuid.NewString()
	}

	journal := &Journal{
		artifact:      artifact,
		artifactPath:  options.ArtifactPath,
		console:       newConsolePrinter(options.Console),
		logger:        logger.With(zap.String(logFieldRunIdentifierConstant, runIdentifier)),
		clock:         clock,
		runIdentifier: runIdentifier,
	}

	if markerError := journal.Info(fmt.Sprintf(runStartedMessageTemplateConstant, runIdentifier)); markerError != nil {
		_ = artifact.Close()
		return nil, markerError
	}

	return journal, nil
}

// Log appends one entry. The first append failure is retained and reported by Err.
func (journal *Journal) Log(level Level, message string) error {
	journal.mutex.Lock()
	defer journal.mutex.Unlock()

	if journal.closed {
		return ErrJournalClosed
	}

	entry := Entry{Timestamp: journal.clock().UTC(), Level: level, Message: singleLine(message)}
	if _, writeError := journal.artifact.Write([]byte(entry.Format())); writeError != nil {
		appendError := fmt.Errorf(appendEntryErrorTemplateConstant, journal.artifactPath, writeError)
		if journal.firstFailure == nil {
			journal.firstFailure = appendError
		}
		journal.logger.Error(appendError.Error())
		return appendError
	}

	journal.entries = append(journal.entries, entry)
	journal.console.print(entry)
	journal.mirror(entry)
	return nil
}

// Info appends an INFO entry.
func (journal *Journal) Info(message string) error {
	return journal.Log(LevelInfo, message)
}

// Warn appends a WARN entry.
func (journal *Journal) Warn(message string) error {
	return journal.Log(LevelWarn, message)
}

// Error appends an ERROR entry.
func (journal *Journal) Error(message string) error {
	return journal.Log(LevelError, message)
}

// Success appends a SUCCESS entry.
func (journal *Journal) Success(message string) error {
	return journal.Log(LevelSuccess, message)
}

// Err returns the first append failure observed by the journal.
func (journal *Journal) Err() error {
	journal.mutex.Lock()
	defer journal.mutex.Unlock()
	return journal.firstFailure
}

// Entries returns a copy of the entries appended during this run.
func (journal *Journal) Entries() []Entry {
	journal.mutex.Lock()
	defer journal.mutex.Unlock()
	return append([]Entry(nil), journal.entries...)
}

// Path returns the log artifact location.
func (journal *Journal) Path() string {
	return journal.artifactPath
}

// RunIdentifier returns the identifier recorded in the run-start marker.
func (journal *Journal) RunIdentifier() string {
	return journal.runIdentifier
}

// Close releases the log artifact. The artifact itself is kept.
func (journal *Journal) Close() error {
	journal.mutex.Lock()
	defer journal.mutex.Unlock()

	if journal.closed {
		return nil
	}
	journal.closed = true
	if closeError := journal.artifact.Close(); closeError != nil {
		return fmt.Errorf(closeArtifactErrorTemplateConstant, journal.artifactPath, closeError)
	}
	return nil
}

func (journal *Journal) mirror(entry Entry) {
	switch entry.Level {
	case LevelWarn:
		journal.logger.Warn(entry.Message)
	case LevelError:
		journal.logger.Error(entry.Message)
	case LevelSuccess:
		journal.logger.Info(entry.Message, zap.String(logFieldOutcomeConstant, successOutcomeValueConstant))
	default:
		journal.logger.Info(entry.Message)
	}
}
