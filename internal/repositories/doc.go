// Package repositories implements SQLite persistence for the submission ledger.
//
// Each repository wraps one table with hand-written SQL:
//   - [SubmissionRepository] : insert-or-ignore submission rows and the
//     pending-per-destination query in (submit_time, submission_id) order
//   - [UploadRepository] : upload records with a unique
//     (submission, destination) pair enforced by the schema
//   - [WatermarkRepository] : per-judge fetch boundaries, advanced
//     monotonically with a conditional upsert
//   - [LoginRepository] : cached destination tokens from browser auth
//
// [Store] composes the four into the record store the sync engine works
// against. Every Store method is atomic per call; nothing spans
// fetch+store+upload, so partial progress is durable at the granularity
// of one submission or one upload. Dedup never depends on caller
// behavior: it is carried entirely by the primary key and unique
// constraints, which also serialize concurrent runs sharing a database.
package repositories
