// Package core defines the shared data model and collaborator interfaces of
// ThreatMesh: analysis frameworks, the per-analysis context and report types,
// agent results with their section content variants, retrievable context
// documents, notification events and the store/provider interfaces the
// orchestration layer depends on. It has no dependencies on other ThreatMesh
// packages except logging.
package core
