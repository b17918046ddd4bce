// Package archive persists a frozen leaderboard document as a dated,
// compressed snapshot and reads snapshots back.
//
// File layout:
//
//	archives/leaderboard_20261019.lzma
//
// The file is an xz container (LZMA2) wrapping minimal-whitespace UTF-8 JSON:
//
//	{"timestamp":"2026-10-19T09:45:00.000000+02:00","data":{"1_0_1":"<raw response text>",...}}
//
// Data keys are emitted in sorted order, so two documents with the same entries
// encode to identical bytes apart from the timestamp. One file exists per
// calendar day; a second run on the same day replaces it. Writes go to a
// temporary file in the target directory and are renamed into place, so a
// failed write never leaves a partial archive behind.
package archive
