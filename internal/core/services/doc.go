// Package services contains the application core: the run orchestrator,
// query planning, term expansion, score fusion, stopping evaluation and
// citation building. Services depend on ports only; concrete providers
// are injected at construction time.
package services
