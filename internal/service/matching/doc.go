// Package matching pairs BEFORE and AFTER respondents of the same cohort.
//
// An automatic run works cohort by cohort in two phases: exact normalized
// email first, then fuzzy name similarity over whoever is left. Respondents
// without a cohort are never paired automatically; operators pair them by
// hand, and those manual pairings are mirrored into the override store so
// they can be replayed after the relational store is rebuilt.
//
// The service depends only on the repository interfaces in this package.
// Implementations live in repository/postgres/ and repository/memory/.
package matching
