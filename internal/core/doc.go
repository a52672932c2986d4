// Package core provides the business logic for contact import operations.
//
// The package has no UI or storage dependencies. Web handlers, the importer
// CLI and tests all drive it through [Service] and a [Store].
//
// # Import Flow
//
// An import moves through a fixed sequence of steps:
//
//  1. [Service.StartImport] parses the file and suggests a column mapping
//     with the [MappingEngine].
//  2. [Service.UpdateMapping] overrides individual columns.
//  3. [Service.Prepare] transforms each row against the catalogs of DSPs,
//     stations and markets, then gates it into a [Candidate] or a
//     [ValidationIssue]. Rows without any usable value are dropped.
//  4. [Service.Preview] reports likely duplicates and DSPs that would be
//     created, without writing anything.
//  5. [Service.Run] hands the candidates to an [Executor] in the background.
//     Progress is broadcast via [Service.SubscribeProgress] and the
//     [RunReport] is available from [Service.GetReport] once it finishes.
//
// Concurrent runs are bounded by an [ImportLimiter].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB008: Database errors (duplicates, constraints, connections)
//   - VAL001-VAL005: Validation errors (required fields, enums, mappings)
//   - FILE001-FILE006: File errors (size, encoding, format)
//   - IMP001-IMP007: Import errors (duplicates, limits, lifecycle)
//   - RATE001: Rate limiting
package core
