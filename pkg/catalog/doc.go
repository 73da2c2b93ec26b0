// Package catalog manages the reviewable works: categories, genres and titles.
//
// Writes are gated by rbac.CatalogGate, so anonymous and ordinary users can only
// read. Title reads compute the rating in the query as the mean of review scores;
// it is never stored.
package catalog
