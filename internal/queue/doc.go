// Package queue carries acquisition requests between the admission router and
// the per-tier worker pools.
//
// Each tier is one FIFO list. The Redis backend uses LPUSH to enqueue and
// BRPOP with a short block timeout to dequeue, so any number of daemons can
// share a broker. The memory backend keeps the same semantics inside a single
// process. Every connectivity failure is reported wrapped in ErrUnavailable;
// the scheduler reacts to that marker by switching to direct processing.
package queue
