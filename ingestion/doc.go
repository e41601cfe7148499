// Package ingestion loads source documents into the chunk index.
//
// The Pipeline type manages the ingestion workflow, including:
//   - Extracting paragraphs from source files concurrently on a worker pool
//   - Skipping sources whose content was already ingested
//   - Embedding and inserting chunks, retrying transient embedder failures
//   - Watching a directory and ingesting new or updated files
//
// Sources are inserted in the order they were given, so chunk order in the
// index is deterministic. Extraction errors are logged and the source is
// skipped; embedder configuration errors abort the run.
package ingestion
