// Package retention prunes storage that the latest persisted snapshot
// already covers: acknowledged outbox entries and journal segments.
package retention
