// Package streaming protects media responses from slow or vanished
// clients. Video downloads can run for minutes; without a per-write
// timeout a stalled TCP connection pins a handler goroutine and its
// open file for the rest of the process lifetime. Writer bounds each
// write, splits large buffers into flushable chunks, and aborts as
// soon as the request context is canceled.
package streaming
