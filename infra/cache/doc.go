// Package cache persists reconciled series as one parquet file each so a
// restart resumes incremental synchronization instead of refetching history.
//
// Loads report a typed outcome (ErrNotFound, ErrCorrupt, ErrSchemaMismatch),
// always wrapped in a failure.KindCacheUnavailable error, so the caller can
// choose between a quiet full fetch and quarantining a damaged file first.
package cache
