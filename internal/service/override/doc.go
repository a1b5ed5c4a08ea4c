// Package override records operator-confirmed pairings in a plain text file
// that survives a rebuild of the relational store.
//
// Each entry is one key=value line. The key is the BEFORE respondent's
// cohort, response timestamp, normalized email and name; the value carries
// the raw BEFORE email and name, the AFTER side, notes and audit fields.
// Fields are joined with '|' and percent-escaped individually. Lines the
// store does not touch, including comments and lines it cannot parse, are
// written back exactly as they were read.
package override
