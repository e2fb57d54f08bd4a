package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const worldwideCountryCode = "W1"

var invalidFileNameChars = strings.NewReplacer(
	"/", "-", "\\", "-", "?", "-", "%", "-", "*", "-",
	":", "-", "|", "-", "\"", "-", "<", "-", ">", "-",
)

// PadVersion pads a dotted version with trailing ".0" segments up to four.
func PadVersion(version string) string {
	if version == "" {
		return version
	}
	parts := strings.Split(version, ".")
	for len(parts) < 4 {
		parts = append(parts, "0")
	}
	return strings.Join(parts, ".")
}

// CompareVersions compares two versions as strings after padding both to
// four segments. Segments are not parsed as numbers, so "10.0.0.0" sorts
// before "9.0.0.0".
func CompareVersions(a, b string) int {
	return strings.Compare(PadVersion(a), PadVersion(b))
}

// MajorVersion returns the first segment of a dotted version, or 0.
func MajorVersion(version string) int {
	head, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0
	}
	return major
}

func SanitizeFileName(name string) string {
	return invalidFileNameChars.Replace(name)
}

// NormalizeCountryCode upper-cases a country code and maps the worldwide
// code to "", which means no country segment in package ids.
func NormalizeCountryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == worldwideCountryCode {
		return ""
	}
	return code
}

// MicrosoftPackageID builds Microsoft.{name}[.{CC}].symbols[.{appId}].
func MicrosoftPackageID(name, countryCode, appID string) string {
	id := "Microsoft." + name
	if countryCode != "" {
		id += "." + strings.ToUpper(countryCode)
	}
	id += ".symbols"
	if appID != "" {
		id += "." + appID
	}
	return id
}

// GenericApplicationPackageID is how nuspec files declare a dependency on the
// country-less Application package.
const GenericApplicationPackageID = "Microsoft.Application.symbols"

// AppIDFromPackageID extracts the trailing application GUID from a feed
// package id such as "Contoso.App.symbols.<guid>".
func AppIDFromPackageID(packageID string) string {
	idx := strings.LastIndex(strings.ToLower(packageID), symbolsInfix)
	if idx < 0 {
		return ""
	}
	candidate := packageID[idx+len(symbolsInfix):]
	id, err := uuid.Parse(candidate)
	if err != nil {
		return ""
	}
	return id.String()
}

// CountryCodeFromPackageID returns the lower-cased third id segment when it
// looks like a two-letter country code.
func CountryCodeFromPackageID(packageID string) string {
	parts := strings.Split(packageID, ".")
	if len(parts) < 3 || len(parts[2]) != 2 {
		return ""
	}
	return strings.ToLower(parts[2])
}

// IsValidAppID reports whether id parses as a GUID.
func IsValidAppID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
