package resource

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the longest display name accepted, in characters.
const MaxNameLength = 255

const invalidNameChars = `\/:*?"<>|`

var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// ValidateName checks that name is a legal file or container name.
//
// The returned error is a *StoreError with code ErrInvalidName whose Message
// is suitable for the X-WOPI-InvalidFileNameError response header.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewError(ErrInvalidName, name, "name is empty")
	}
	if !utf8.ValidString(name) {
		return NewError(ErrInvalidName, name, "name is not valid UTF-8")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return NewError(ErrInvalidName, name, "name is longer than %d characters", MaxNameLength)
	}
	for _, r := range name {
		if strings.ContainsRune(invalidNameChars, r) {
			return NewError(ErrInvalidName, name, "name contains invalid character %q", r)
		}
		if unicode.IsControl(r) {
			return NewError(ErrInvalidName, name, "name contains a control character")
		}
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") {
		return NewError(ErrInvalidName, name, "name ends with a dot or a space")
	}

	base, _ := SplitName(name)
	if _, reserved := reservedNames[strings.ToUpper(strings.TrimSpace(base))]; reserved {
		return NewError(ErrInvalidName, name, "name is reserved")
	}
	return nil
}

// SplitName splits a display name into base and extension. The extension
// keeps its leading dot. Names starting with a dot and without another dot
// (".profile") have no extension.
func SplitName(name string) (base, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}

// Extension returns the extension of name including the leading dot.
func Extension(name string) string {
	_, ext := SplitName(name)
	return ext
}

// CandidateName returns the n-th collision alternative for name:
// "report.docx" -> "report (1).docx". n == 0 returns name unchanged.
func CandidateName(name string, n int) string {
	if n == 0 {
		return name
	}
	base, ext := SplitName(name)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

// NameKey normalises a name for collision checks. Names compare
// case-insensitively.
func NameKey(name string) string {
	return strings.ToLower(name)
}
