// Package progress delivers session snapshots to live subscribers.
//
// The executor publishes a Snapshot after every counter change. A Hub fans
// snapshots out to the subscribers of this process; a RedisBroker carries
// them between processes so a client connected to any replica sees every
// update. The Notifier combines the current stored snapshot with the live
// feed and guarantees that a stream never goes backwards and ends after a
// terminal status.
package progress
