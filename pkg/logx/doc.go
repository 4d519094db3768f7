// Package logx configures jmxpoller's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured, rotated by size
//   - The pool queue-full warning rate-limited (Throttled) so a
//     misbehaving pool can't flood the sink
package logx
