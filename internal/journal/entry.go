package journal

import (
	"fmt"
	"strings"
	"time"
)

const (
	levelInfoStringConstant     = "INFO"
	levelWarnStringConstant     = "WARN"
	levelErrorStringConstant    = "ERROR"
	levelSuccessStringConstant  = "SUCCESS"
	entryFormatTemplateConstant = "[%s] %s: %s\n"
	lineJoinSeparatorConstant   = " | "
)

// Level classifies a journal entry.
type Level string

// Supported journal levels.
const (
	LevelInfo    Level = Level(levelInfoStringConstant)
	LevelWarn    Level = Level(levelWarnStringConstant)
	LevelError   Level = Level(levelErrorStringConstant)
	LevelSuccess Level = Level(levelSuccessStringConstant)
)

// Entry is one appended journal record.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Message   string
}

// Format renders the entry as it appears in the log artifact.
func (entry Entry) Format() string {
	return fmt.Sprintf(entryFormatTemplateConstant, entry.Timestamp.UTC().Format(time.RFC3339), entry.Level, entry.Message)
}

// singleLine folds embedded line breaks so every entry occupies one artifact line.
func singleLine(message string) string {
	if !strings.ContainsAny(message, "\r\n") {
		return message
	}
	return strings.Join(capturedLines(message), lineJoinSeparatorConstant)
}
