// Package core provides the business logic for importing condominium unit
// registries from spreadsheet files.
//
// This package is independent of any transport layer. It is used by the web
// handlers, the unitctl CLI and tests without modification.
//
// # Architecture
//
// The package is organized around a handful of concepts:
//
//   - Reading: [ReadTable] turns a CSV or XLSX file into a [RawTable], with
//     delimiter sniffing and Windows-1252 fallback for legacy exports.
//   - Session: an [ImportSession] carries the parsed rows, violations and
//     commit outcomes of one file through every stage.
//   - Validation: every row is checked and every problem is collected before
//     anything is written. A single blocking violation rejects the file.
//   - Commit: the [Committer] writes accepted rows sequentially in paced
//     batches, isolating failures to their own row.
//   - Service: [Service] is the entry point, running imports synchronously
//     ([Service.Import], [Service.Validate]) or in the background
//     ([Service.StartImport]) with progress subscriptions.
//
// # Import Flow
//
//  1. The file is read and its headers are mapped to canonical fields
//  2. Rows are parsed into units, recording per-cell issues
//  3. Duplicate codes are detected within the file and against the registry
//  4. If any blocking violation exists the report is Rejected and nothing is written
//  5. Otherwise rows are written in file order, [ServiceOptions.BatchSize] at a time
//  6. A [Report] summarizes accepted and rejected rows with the offending cells
//
// # Error Handling
//
// Violations carry an [ErrorKind]. Technical errors are mapped to
// user-friendly messages using [MapError], each with a support code:
//
//   - DB001-DB007: Database errors
//   - VAL001-VAL009: Validation errors
//   - FILE001-FILE006: File errors
//   - IMP001-IMP006: Import lifecycle errors
//
// # History
//
// Finished imports are recorded through [ImportHistory]. Entries older than
// the retention window are deleted by [Service.StartHistoryPruner].
package core
