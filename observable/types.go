// Package observable implements the cyber-observable domain core: the closed
// type registry, canonical value resolution, input syntax checking, the
// mutation service, and indicator linking.
package observable

import "sort"

// Abstract type tags grouping concrete entity types.
const (
	// AbstractObservable is the abstract type covering every observable subtype.
	AbstractObservable = "Stix-Cyber-Observable"

	// AbstractDomainObject is the abstract type covering STIX domain objects.
	AbstractDomainObject = "Stix-Domain-Object"

	// AbstractMetaRelationship is the abstract type covering meta relationships.
	AbstractMetaRelationship = "Stix-Meta-Relationship"
)

// Concrete observable type tags. The set is closed: a tag outside this list
// is rejected by the mutation service before anything touches the store.
const (
	TypeAutonomousSystem        = "Autonomous-System"
	TypeDirectory               = "Directory"
	TypeDomainName              = "Domain-Name"
	TypeEmailAddr               = "Email-Addr"
	TypeEmailMessage            = "Email-Message"
	TypeEmailMimePartType       = "Email-Mime-Part-Type"
	TypeArtifact                = "Artifact"
	TypeStixFile                = "StixFile"
	TypeX509Certificate         = "X509-Certificate"
	TypeIPv4Addr                = "IPv4-Addr"
	TypeIPv6Addr                = "IPv6-Addr"
	TypeMacAddr                 = "Mac-Addr"
	TypeMutex                   = "Mutex"
	TypeNetworkTraffic          = "Network-Traffic"
	TypeProcess                 = "Process"
	TypeSoftware                = "Software"
	TypeURL                     = "Url"
	TypeUserAccount             = "User-Account"
	TypeWindowsRegistryKey      = "Windows-Registry-Key"
	TypeWindowsRegistryValue    = "Windows-Registry-Value-Type"
	TypeX509V3ExtensionsType    = "X509-V3-Extensions-Type"
	TypeCryptographicKey        = "Cryptographic-Key"
	TypeCryptocurrencyWallet    = "Cryptocurrency-Wallet"
	TypeText                    = "Text"
	TypeUserAgent               = "User-Agent"
)

// Meta relationship type tags. Only these may be attached to an observable
// through the restricted relation-edit operations.
const (
	RelationCreatedBy         = "created-by"
	RelationObjectMarking     = "object-marking"
	RelationObjectLabel       = "object-label"
	RelationExternalReference = "external-reference"
	RelationObject            = "object"
)

// Common attribute keys of the per-type attribute bags.
const (
	AttrValue               = "value"
	AttrName                = "name"
	AttrPath                = "path"
	AttrNumber              = "number"
	AttrBody                = "body"
	AttrSubject             = "subject"
	AttrIssuer              = "issuer"
	AttrMD5                 = "md5"
	AttrSHA1                = "sha1"
	AttrSHA256              = "sha256"
	AttrSHA512              = "sha512"
	AttrPayloadBin          = "payload_bin"
	AttrDstPort             = "dst_port"
	AttrPID                 = "pid"
	AttrAccountLogin        = "account_login"
	AttrAttributeKey        = "attribute_key"
	AttrCertificatePolicies = "certificate_policies"
)

// observableTypes is the closed classification set.
var observableTypes = map[string]struct{}{
	TypeAutonomousSystem:     {},
	TypeDirectory:            {},
	TypeDomainName:           {},
	TypeEmailAddr:            {},
	TypeEmailMessage:         {},
	TypeEmailMimePartType:    {},
	TypeArtifact:             {},
	TypeStixFile:             {},
	TypeX509Certificate:      {},
	TypeIPv4Addr:             {},
	TypeIPv6Addr:             {},
	TypeMacAddr:              {},
	TypeMutex:                {},
	TypeNetworkTraffic:       {},
	TypeProcess:              {},
	TypeSoftware:             {},
	TypeURL:                  {},
	TypeUserAccount:          {},
	TypeWindowsRegistryKey:   {},
	TypeWindowsRegistryValue: {},
	TypeX509V3ExtensionsType: {},
	TypeCryptographicKey:     {},
	TypeCryptocurrencyWallet: {},
	TypeText:                 {},
	TypeUserAgent:            {},
}

// hashedObservableTypes are the subtypes whose identity can be carried by a
// file hash.
var hashedObservableTypes = map[string]struct{}{
	TypeArtifact:        {},
	TypeStixFile:        {},
	TypeX509Certificate: {},
}

// metaRelationshipTypes are the edge types allowed through the restricted
// relation operations.
var metaRelationshipTypes = map[string]struct{}{
	RelationCreatedBy:         {},
	RelationObjectMarking:     {},
	RelationObjectLabel:       {},
	RelationExternalReference: {},
	RelationObject:            {},
}

// IsObservable reports whether the tag is a known cyber-observable subtype.
// Pure and total: unknown tags return false.
func IsObservable(tag string) bool {
	_, ok := observableTypes[tag]
	return ok
}

// IsHashedObservable reports whether the tag is an observable subtype
// identified by file hashes.
func IsHashedObservable(tag string) bool {
	_, ok := hashedObservableTypes[tag]
	return ok
}

// IsMetaRelationship reports whether the tag is a meta relationship type.
func IsMetaRelationship(tag string) bool {
	_, ok := metaRelationshipTypes[tag]
	return ok
}

// AllTypes returns a sorted list of every registered observable type tag.
func AllTypes() []string {
	types := make([]string, 0, len(observableTypes))
	for t := range observableTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ClassifiesUnder reports whether a concrete entity type belongs under an
// abstract type tag. It is the classification hook handed to store
// implementations.
func ClassifiesUnder(entityType, abstractType string) bool {
	switch abstractType {
	case "":
		return true
	case AbstractObservable:
		return IsObservable(entityType)
	case AbstractMetaRelationship:
		return IsMetaRelationship(entityType)
	case AbstractDomainObject:
		// Domain objects are everything this module persists that is not an
		// observable; the concrete domain taxonomy lives upstream.
		return !IsObservable(entityType)
	default:
		return entityType == abstractType
	}
}
