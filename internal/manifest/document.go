package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/temirov/toolbump/internal/utils"
)

const (
	objectStartDelimiter             = '{'
	objectEndDelimiter               = '}'
	indentationConstant              = "  "
	emptyPrefixConstant              = ""
	trailingNewlineConstant          = "\n"
	defaultFilePermissionsConstant   = 0o644
	notAnObjectMessageConstant       = "manifest root is not a JSON object"
	trailingDataMessageConstant      = "manifest has data after the root object"
	parseErrorTemplateConstant       = "unable to parse manifest: %w"
	readErrorTemplateConstant        = "unable to read manifest %s: %w"
	writeErrorTemplateConstant       = "unable to write manifest %s: %w"
	encodeValueErrorTemplate         = "unable to encode manifest field %s: %w"
	indentErrorTemplateConstant      = "unable to format manifest: %w"
	unexpectedKeyTokenTemplate       = "unexpected token %v where a field name was expected"
	fieldNotObjectTemplateConstant   = "manifest field %s is not a JSON object"
	fieldNotStringTemplateConstant   = "manifest field %s is not a string"
	decodeFieldErrorTemplateConstant = "unable to decode manifest field %s: %w"
)

// ErrNotAnObject indicates the manifest (or a nested field) is not a JSON object.
var ErrNotAnObject = errors.New(notAnObjectMessageConstant)

// ErrTrailingData indicates content after the root object.
var ErrTrailingData = errors.New(trailingDataMessageConstant)

// Document is a JSON object that remembers the order of its keys.
// Values are kept as raw JSON so untouched fields are written back unchanged.
type Document struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{values: map[string]json.RawMessage{}}
}

// Parse decodes a JSON object. A repeated key keeps its first position and its last value.
func Parse(content []byte) (*Document, error) {
	decoder := json.NewDecoder(bytes.NewReader(content))

	openingToken, tokenError := decoder.Token()
	if tokenError != nil {
		return nil, fmt.Errorf(parseErrorTemplateConstant, tokenError)
	}
	if delimiter, isDelimiter := openingToken.(json.Delim); !isDelimiter || delimiter != objectStartDelimiter {
		return nil, fmt.Errorf(parseErrorTemplateConstant, ErrNotAnObject)
	}

	document := NewDocument()
	for decoder.More() {
		keyToken, keyError := decoder.Token()
		if keyError != nil {
			return nil, fmt.Errorf(parseErrorTemplateConstant, keyError)
		}
		key, isString := keyToken.(string)
		if !isString {
			return nil, fmt.Errorf(parseErrorTemplateConstant, fmt.Errorf(unexpectedKeyTokenTemplate, keyToken))
		}

		var value json.RawMessage
		if decodeError := decoder.Decode(&value); decodeError != nil {
			return nil, fmt.Errorf(parseErrorTemplateConstant, decodeError)
		}
		document.setRaw(key, value)
	}

	closingToken, closingError := decoder.Token()
	if closingError != nil {
		return nil, fmt.Errorf(parseErrorTemplateConstant, closingError)
	}
	if delimiter, isDelimiter := closingToken.(json.Delim); !isDelimiter || delimiter != objectEndDelimiter {
		return nil, fmt.Errorf(parseErrorTemplateConstant, ErrNotAnObject)
	}
	if _, trailingError := decoder.Token(); !errors.Is(trailingError, io.EOF) {
		return nil, fmt.Errorf(parseErrorTemplateConstant, ErrTrailingData)
	}

	return document, nil
}

// Load reads and parses the manifest at filePath.
func Load(filePath string) (*Document, error) {
	content, readError := os.ReadFile(filePath)
	if readError != nil {
		return nil, fmt.Errorf(readErrorTemplateConstant, filePath, readError)
	}
	return Parse(content)
}

// Keys returns the field names in document order.
func (document *Document) Keys() []string {
	return append([]string(nil), document.keys...)
}

// Has reports whether the field exists.
func (document *Document) Has(key string) bool {
	_, exists := document.values[key]
	return exists
}

// Raw returns the raw JSON of a field.
func (document *Document) Raw(key string) (json.RawMessage, bool) {
	value, exists := document.values[key]
	return value, exists
}

// Set encodes value into the field. New fields are appended after existing ones.
func (document *Document) Set(key string, value any) error {
	encodedValue, encodeError := encodeValue(value)
	if encodeError != nil {
		return fmt.Errorf(encodeValueErrorTemplate, key, encodeError)
	}
	document.setRaw(key, encodedValue)
	return nil
}

// Delete removes the field when present.
func (document *Document) Delete(key string) {
	if _, exists := document.values[key]; !exists {
		return
	}
	delete(document.values, key)
	for keyIndex, existingKey := range document.keys {
		if existingKey == key {
			document.keys = append(document.keys[:keyIndex], document.keys[keyIndex+1:]...)
			return
		}
	}
}

// String decodes a string field.
func (document *Document) String(key string) (string, bool, error) {
	rawValue, exists := document.values[key]
	if !exists {
		return "", false, nil
	}
	var value string
	if decodeError := json.Unmarshal(rawValue, &value); decodeError != nil {
		return "", true, fmt.Errorf(fieldNotStringTemplateConstant, key)
	}
	return value, true, nil
}

// Object parses a nested object field into its own ordered document.
func (document *Document) Object(key string) (*Document, bool, error) {
	rawValue, exists := document.values[key]
	if !exists {
		return nil, false, nil
	}
	nestedDocument, parseError := Parse(rawValue)
	if parseError != nil {
		return nil, true, fmt.Errorf(fieldNotObjectTemplateConstant, key)
	}
	return nestedDocument, true, nil
}

// SetObject stores a nested document in the field.
func (document *Document) SetObject(key string, nestedDocument *Document) error {
	compactContent, marshalError := nestedDocument.marshalCompact()
	if marshalError != nil {
		return marshalError
	}
	document.setRaw(key, compactContent)
	return nil
}

// Marshal serializes the document with two-space indentation and a trailing newline.
func (document *Document) Marshal() ([]byte, error) {
	compactContent, marshalError := document.marshalCompact()
	if marshalError != nil {
		return nil, marshalError
	}
	var indentedContent bytes.Buffer
	if indentError := json.Indent(&indentedContent, compactContent, emptyPrefixConstant, indentationConstant); indentError != nil {
		return nil, fmt.Errorf(indentErrorTemplateConstant, indentError)
	}
	indentedContent.WriteString(trailingNewlineConstant)
	return indentedContent.Bytes(), nil
}

// Save serializes the full document before atomically replacing filePath.
func (document *Document) Save(filePath string) error {
	content, marshalError := document.Marshal()
	if marshalError != nil {
		return fmt.Errorf(writeErrorTemplateConstant, filePath, marshalError)
	}
	permissions := utils.FilePermissions(filePath, defaultFilePermissionsConstant)
	if writeError := utils.WriteFileAtomically(filePath, content, permissions); writeError != nil {
		return fmt.Errorf(writeErrorTemplateConstant, filePath, writeError)
	}
	return nil
}

func (document *Document) setRaw(key string, value json.RawMessage) {
	if _, exists := document.values[key]; !exists {
		document.keys = append(document.keys, key)
	}
	document.values[key] = append(json.RawMessage(nil), value...)
}

func (document *Document) marshalCompact() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte(objectStartDelimiter)
	for keyIndex, key := range document.keys {
		if keyIndex > 0 {
			buffer.WriteByte(',')
		}
		encodedKey, keyError := encodeValue(key)
		if keyError != nil {
			return nil, fmt.Errorf(encodeValueErrorTemplate, key, keyError)
		}
		buffer.Write(encodedKey)
		buffer.WriteByte(':')
		if compactError := json.Compact(&buffer, document.values[key]); compactError != nil {
			return nil, fmt.Errorf(encodeValueErrorTemplate, key, compactError)
		}
	}
	buffer.WriteByte(objectEndDelimiter)
	return buffer.Bytes(), nil
}

func encodeValue(value any) (json.RawMessage, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if encodeError := encoder.Encode(value); encodeError != nil {
		return nil, encodeError
	}
	return json.RawMessage(strings.TrimRight(buffer.String(), trailingNewlineConstant)), nil
}

func decodeField(document *Document, key string, target any) error {
	rawValue, exists := document.values[key]
	if !exists {
		return nil
	}
	if decodeError := json.Unmarshal(rawValue, target); decodeError != nil {
		return fmt.Errorf(decodeFieldErrorTemplateConstant, key, decodeError)
	}
	return nil
}
