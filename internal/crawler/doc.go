// Package crawler holds the domain model shared by every layer: sources,
// campaigns, crawl jobs and articles, the store and transport interfaces the
// orchestrator depends on, and the error taxonomy used to classify failures.
package crawler
