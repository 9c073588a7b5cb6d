// Package clip cuts the processed tracks of a workspace according to a marks
// file, producing one output per track for every restart segment.
//
// Video tracks are read from the source capture through the stream index
// stored in their `.track` marker; audio tracks are the scheduler's
// `{base}-proc.{fmt}` files. Outputs that already exist are left alone, and
// cleanup mode deletes them instead of producing them.
package clip
