// Package importer implements the broker file import pipeline: format
// detection, per-broker parsers (MetaTrader XLSX/HTML, NinjaTrader CSV,
// Tradovate CSV/PDF), heuristic column mapping, timezone-aware date
// normalization, canonical trade assembly, and the deduplicating import
// executor.
//
// The pipeline guarantees two properties end to end: persisted entry and
// exit times are always expressed in the target timezone, and re-importing
// the same file in append mode never creates duplicate trades.
package importer
