// Package ingest stores survey rows as respondents and responses, skipping
// rows that were already imported so the same export can be loaded twice.
package ingest
