// Package normalisers provides implementations of the Normaliser interface
// for various document formats. Each normaliser knows how to extract text
// content from a specific format.
//
// Normalisers are registered with the Registry at startup; the registry
// selects one by filename extension, falling back to plain text.
package normalisers
