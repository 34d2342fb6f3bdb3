// Package query is the manager layer atop the branch read primitives:
// a sealed predicate AST plus a QuerySet that filters, orders, and
// materializes one entity's records.
//
// Everything here is a pure read. A QuerySet never mutates the branch
// it was built from and every operation returns a new QuerySet, so
// holding intermediate sets is always safe. There is no planning or
// optimization: predicates evaluate record by record in branch order.
package query
