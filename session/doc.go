// Package session owns the durable record of every issued refresh
// credential: who it belongs to, when it expires, what device it was bound
// to at login, and whether it is still valid.
//
// Records live in Redis. Each record is keyed by a hash of its refresh
// token, with two secondary indexes: a per-identity set of token hashes and
// a global sorted set scored by expiry for the sweep.
//
// Validity is strictly one-directional: once a record's validity flag is
// cleared it is never set back. The flag flip runs as a Lua script so
// concurrent invalidations against the same record serialize inside Redis
// rather than racing in application code. Logical invalidation and physical
// deletion are independent: SweepExpired is the only operation that removes
// records, and it removes them on expiry alone, valid or not.
//
// IsValid reads the validity flag only. A record past its expiry that was
// never explicitly invalidated keeps reporting valid until the sweep
// deletes it.
package session
