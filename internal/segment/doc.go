// Package segment splits novel text into chapter or scene units.
//
// Splitting is a pure function of the input. Chapter headings (第N章 or
// "Chapter N" at line start) take precedence; texts without headings fall
// back to fixed-size chunks aligned to line boundaries.
package segment
