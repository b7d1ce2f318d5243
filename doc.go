// Package stixgraph provides the domain core of a cyber-threat-intelligence
// knowledge platform built around STIX cyber observables.
//
// The platform models atomic pieces of observable data (file hashes, network
// addresses, processes, accounts) as typed entities in a graph store, derives
// detection indicators from them, and hands long-running enrichment and
// export tasks to external worker connectors over a message queue.
//
// # Core Concepts
//
// The module is organized around several key concepts:
//
//   - Observables: typed entity records classified by a closed type registry
//   - Indicators: STIX detection patterns derived from observable values
//   - Connectors: external worker processes performing enrichment and export
//   - Work/Job: paired records tracking one asynchronous connector task
//   - Edit contexts: ephemeral presence signals for collaborative editing
//
// # Architecture
//
// The packages are layered leaves-first:
//
//   - store: entity/relation persistence contract and an in-memory store
//   - observable: type registry, value resolution, syntax checking, mutations
//   - pattern: STIX pattern synthesis for indicator creation
//   - bus: topic registry, Redis notification fan-out, edit-context store
//   - connector: etcd-backed connector registration and discovery
//   - queue: Redis dispatch publisher for connector messages
//   - work, export: export job orchestration and work lifecycle records
//   - files: blob storage contract for imported and exported documents
//
// The root package carries the structured error type shared by every layer.
// Callers should match failures with errors.Is against the sentinel errors:
//
//	created, err := svc.Create(ctx, actor, input)
//	if errors.Is(err, stixgraph.ErrUnsupportedType) {
//		// the type tag is not a known observable subtype
//	}
//
// The GraphQL resolver layer, rendering tier, and the concrete graph and
// search backends sit outside this module and consume it through the
// interfaces each package exports.
package stixgraph
