// Package repository contains data access logic separated from HTTP
// handlers. Each repository owns the queries for one table and reports
// lookup misses through sentinel errors so higher layers can distinguish
// failure scenarios without string matching. Ownership failures are
// deliberately reported with the same not-found sentinels as genuine
// misses: a caller probing ids they do not own learns nothing.
package repository
