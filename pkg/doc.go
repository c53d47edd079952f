// Package pkg provides the core libraries for tripdraw trip lotteries.
//
// # Overview
//
// Tripdraw assigns club members to trips with a seeded weekly lottery.
// The pkg directory is organized into three main areas:
//
//  1. Domain logic - the separation graph, ranking, and placement
//  2. Infrastructure - storage, caching, configuration, errors
//  3. Output - graph rendering and roster/result files
//
// # Architecture
//
// The typical data flow through a lottery run:
//
//	Roster (store or file)
//	         ↓
//	    [lottery] package (seeded, affiliation-weighted ranking)
//	         ↓
//	    [separation] package (unresolvable block-loop detection)
//	         ↓
//	    [lottery] package (placement: pairs, drivers, waitlists)
//	         ↓
//	    Run record (log + per-participant results)
//
// # Packages
//
//   - [separation]: the directed "never together" graph and its cycle
//     detection
//   - [lottery]: ranking, placement, and the weekly/trip runners
//   - [store]: participant, trip, signup, and run persistence
//     (in-memory and Mongo)
//   - [render]: separation graph DOT and SVG output
//   - [io]: roster import and result export
//   - [cache]: file, Redis, and null backends for rendered artifacts
//   - [config]: TOML configuration
//   - [errors]: structured error codes shared by the CLI and HTTP API
//   - [observability]: hook points for lottery events
//   - [buildinfo]: version metadata set at build time
package pkg
