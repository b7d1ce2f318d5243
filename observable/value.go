package observable

import (
	"fmt"

	"github.com/stixgraph/stixgraph/store"
)

// ResolveValue maps an observable entity to its canonical display and
// matching value. Pure and deterministic: the same entity always resolves to
// the same value, so indicator names derived at creation time match what a
// later lookup computes.
//
// Hashed subtypes prefer sha256, then sha1, then md5, then the subtype's
// fallback field; the first non-empty attribute wins. Types without a
// dedicated branch fall back to the generic "value" attribute.
//
// The boolean return reports whether any value could be resolved.
func ResolveValue(entity *store.Entity) (string, bool) {
	if entity == nil {
		return "", false
	}

	switch entity.EntityType {
	case TypeAutonomousSystem:
		return attrString(entity, AttrNumber)
	case TypeDirectory:
		return attrString(entity, AttrPath)
	case TypeEmailMessage:
		return firstAttr(entity, AttrBody, AttrSubject)
	case TypeEmailMimePartType:
		return attrString(entity, AttrBody)
	case TypeArtifact:
		return firstAttr(entity, AttrSHA256, AttrSHA1, AttrMD5, AttrSHA512, AttrPayloadBin)
	case TypeStixFile:
		return firstAttr(entity, AttrSHA256, AttrSHA1, AttrMD5, AttrSHA512, AttrName)
	case TypeX509Certificate:
		return firstAttr(entity, AttrSHA256, AttrSHA1, AttrMD5, AttrSubject, AttrIssuer)
	case TypeMutex:
		return attrString(entity, AttrName)
	case TypeNetworkTraffic:
		return attrString(entity, AttrDstPort)
	case TypeProcess:
		return attrString(entity, AttrPID)
	case TypeSoftware:
		return attrString(entity, AttrName)
	case TypeUserAccount:
		return attrString(entity, AttrAccountLogin)
	case TypeWindowsRegistryKey:
		return attrString(entity, AttrAttributeKey)
	case TypeWindowsRegistryValue:
		return attrString(entity, AttrName)
	case TypeX509V3ExtensionsType:
		return attrString(entity, AttrCertificatePolicies)
	default:
		// Simple value-carrying types (addresses, urls, domain names, ...)
		// and any future subtype resolve through the generic attribute.
		return attrString(entity, AttrValue)
	}
}

// HashAttr returns the preferred hash attribute name and value for a hashed
// observable, trying sha256, sha1 and md5 in that order. The boolean reports
// whether any hash is set.
func HashAttr(entity *store.Entity) (key, value string, ok bool) {
	for _, k := range []string{AttrSHA256, AttrSHA1, AttrMD5} {
		if v, present := attrString(entity, k); present {
			return k, v, true
		}
	}
	return "", "", false
}

// attrString reads an attribute as a string, rendering numeric values so
// ports, pids and AS numbers resolve like any other value.
func attrString(entity *store.Entity, key string) (string, bool) {
	if entity.Attributes == nil {
		return "", false
	}
	v, ok := entity.Attributes[key]
	if !ok || v == nil {
		return "", false
	}
	switch tv := v.(type) {
	case string:
		return tv, tv != ""
	case int:
		return fmt.Sprintf("%d", tv), true
	case int64:
		return fmt.Sprintf("%d", tv), true
	case float64:
		// JSON round-trips numbers as float64; render integers without the
		// fractional part.
		if tv == float64(int64(tv)) {
			return fmt.Sprintf("%d", int64(tv)), true
		}
		return fmt.Sprintf("%g", tv), true
	default:
		return "", false
	}
}

// firstAttr returns the first non-empty attribute among keys.
func firstAttr(entity *store.Entity, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := attrString(entity, k); ok {
			return v, true
		}
	}
	return "", false
}
