// Package models defines domain entities for the ojsync submission ledger.
//
// The package contains three kinds of types:
//
//  1. [Submission] : one accepted solution on one judge, keyed by the
//     globally unique (judge, problem, submission) triple in [SubmissionKey]
//  2. [UploadRecord] : proof that a submission reached one destination,
//     unique per (key, destination) pair
//  3. [Watermark] : per-judge marker of the newest stored submission,
//     bounding incremental fetches
//
// Ordering is a first-class contract here rather than a storage detail:
// [Less] defines the (SubmitTime, SubmissionID) processing order that the
// record store and sync engine rely on for resumable uploads, and
// [Watermark.Covers] defines the fetch boundary source adapters stop at.
package models
