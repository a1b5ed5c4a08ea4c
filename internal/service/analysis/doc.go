// Package analysis turns pairings and their responses into pre/post change
// statistics. Averages are computed in exact decimal arithmetic and rounded
// half-up to two places; an average over no values is domain.NoData.
package analysis
