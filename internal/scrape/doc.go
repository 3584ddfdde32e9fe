// Package scrape defines the core channel discovery pipeline: search the
// external catalog for candidate channels, enrich each candidate with detail
// lookups, admit by policy, and upsert admitted channels into the store.
//
// The package holds only domain types, collaborator interfaces, and the
// orchestrator; concrete backends live in their own packages (internal/youtube,
// internal/storage/postgres, ...) and are injected at construction time.
package scrape
