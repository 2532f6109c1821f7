// Package services defines the [Source] and [Destination] interfaces for
// online judges and task boards and implements them for LeetCode and Trello.
//
// # Source Interface
//
// A [Source] fetches a user's submissions from a judge, newest first,
// stopping once it reaches submissions already covered by a watermark.
// Only accepted submissions are returned.
//
// # Destination Interface
//
// A [Destination] resolves a named container (for Trello, a list on a
// board) once per run via [Destination.ResolveContainer], then creates
// one entry per submission via [Destination.Upload]. Resolution gathers
// everything upload needs up front, so a misconfigured board or list
// name fails before any card is created.
//
// # Error Classification
//
// Transport and service failures come back as [shared.FetchError] or
// [shared.UploadError] with a Retryable flag. Rejected credentials wrap
// [shared.ErrAuthFailed] instead, which callers treat as fatal for the
// whole run.
package services
