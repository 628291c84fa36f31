// Package discovery finds candidate listings for a query: it broadens the
// query into variants, scrolls each variant's result feed until it
// converges, and merges results across variants.
package discovery
