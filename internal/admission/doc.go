// Package admission decides, per request, whether work is queued on a tier
// or processed immediately in the caller.
//
// The router resolves the caller's tier, records the job, and consults the
// scheduler's availability. When the broker is down (or never configured)
// the request runs synchronously through the processor and the caller gets
// the terminal result instead of a queue acknowledgement.
package admission
