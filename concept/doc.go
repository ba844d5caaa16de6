// Package concept derives keyword concepts from text and models the
// co-occurrence relationships between them.
//
// Extraction is deterministic: text is split on non-alphanumeric boundaries,
// lowercased, filtered against a fixed stopword list and deduplicated in
// first-occurrence order. BuildRelationships turns the concepts of one unit of
// content into one edge per unordered pair, and Strength maps an edge's
// accumulated occurrence count onto [0, 1].
package concept
