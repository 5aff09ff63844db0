// Package trace decodes per-CPU scheduler trace files and merges them into a
// single time-ordered record stream.
//
// # Reading Guide
//
//   - record.go: the Record model (events, meta records) and the Stream contract
//   - codec.go: the fixed 24-byte binary layout, Decode and Encode
//   - decoder.go: FileDecoder, a lazy reader over one trace file
//   - merge.go: Merger, the k-way chronological merge with a reorder window
//   - parallel.go: ParallelSource, background decoding behind a bounded channel
//
// Downstream stages live in sub-packages:
//   - trace/pedf/: partitioned-EDF conformance checker
//   - trace/filter/: skip/max/earliest/latest filters and the sanitizer
//   - trace/report/: printers, progress reporting, inversion statistics
//
// Every stage is a Stream. Next returns io.EOF once the stream is exhausted,
// and Close releases whatever the stage (or anything upstream of it) holds open.
package trace
