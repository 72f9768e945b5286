// Package cleanup enforces artifact retention.
//
// Janitor deletes individual files after a delay (anonymous downloads) and
// owns every pending timer so shutdown can cancel them together. Sweeper runs
// periodically, removing artifacts whose recorded expiry has passed and
// anonymous files that outlived their TTL, which covers deletions lost when
// the daemon restarted before a timer fired.
package cleanup
