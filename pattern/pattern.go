// Package pattern synthesizes STIX detection patterns from an indicator key
// and an observable value. The indicator linker calls it when an observable
// is created with automatic indicator creation enabled.
package pattern

import (
	"context"
	"fmt"
	"strings"
)

// Bridge converts an (indicator key, observable value) pair into a STIX
// pattern string. An empty pattern with a nil error means the key has no
// pattern mapping; callers treat that as a silent no-op.
type Bridge interface {
	CreatePattern(ctx context.Context, key, value string) (string, error)
}

// stixPaths maps indicator keys to STIX object paths. Hash-qualified keys
// carry the hash algorithm selected by the linker.
var stixPaths = map[string]string{
	"Autonomous-System":           "autonomous-system:number",
	"Directory":                   "directory:path",
	"Domain-Name":                 "domain-name:value",
	"Email-Addr":                  "email-addr:value",
	"Email-Message":               "email-message:body",
	"File":                        "file:name",
	"File_md5":                    "file:hashes.'MD5'",
	"File_sha1":                   "file:hashes.'SHA-1'",
	"File_sha256":                 "file:hashes.'SHA-256'",
	"Artifact":                    "artifact:payload_bin",
	"Artifact_md5":                "artifact:hashes.'MD5'",
	"Artifact_sha1":               "artifact:hashes.'SHA-1'",
	"Artifact_sha256":             "artifact:hashes.'SHA-256'",
	"X509-Certificate":            "x509-certificate:subject",
	"X509-Certificate_md5":        "x509-certificate:hashes.'MD5'",
	"X509-Certificate_sha1":       "x509-certificate:hashes.'SHA-1'",
	"X509-Certificate_sha256":     "x509-certificate:hashes.'SHA-256'",
	"IPv4-Addr":                   "ipv4-addr:value",
	"IPv6-Addr":                   "ipv6-addr:value",
	"Mac-Addr":                    "mac-addr:value",
	"Mutex":                       "mutex:name",
	"Network-Traffic":             "network-traffic:dst_port",
	"Process":                     "process:pid",
	"Software":                    "software:name",
	"Url":                         "url:value",
	"User-Account":                "user-account:account_login",
	"Windows-Registry-Key":        "windows-registry-key:key",
	"Windows-Registry-Value-Type": "windows-registry-key:values.name",
}

// numericPaths are the object paths whose values are written unquoted.
var numericPaths = map[string]struct{}{
	"autonomous-system:number": {},
	"network-traffic:dst_port": {},
	"process:pid":              {},
}

// LocalBridge implements Bridge with the in-process path table. It replaces
// the out-of-process pattern service for deployments that only need the
// standard observable vocabulary.
type LocalBridge struct{}

// NewLocalBridge creates a LocalBridge.
func NewLocalBridge() *LocalBridge {
	return &LocalBridge{}
}

// CreatePattern returns a STIX comparison pattern for the key and value,
// or the empty string when the key has no mapping or the value is empty.
func (b *LocalBridge) CreatePattern(ctx context.Context, key, value string) (string, error) {
	if value == "" {
		return "", nil
	}

	path, ok := stixPaths[key]
	if !ok {
		return "", nil
	}

	if _, numeric := numericPaths[path]; numeric {
		return fmt.Sprintf("[%s = %s]", path, value), nil
	}
	return fmt.Sprintf("[%s = '%s']", path, escapeValue(value)), nil
}

// escapeValue escapes backslashes and single quotes per the STIX pattern
// string literal rules.
func escapeValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return v
}
