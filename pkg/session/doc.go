// Package session defines the session record and the storage interface the
// limiter enforces against.
//
// A Session is one authenticated browser session: an opaque session id, the
// owning user, the originating host and activity timestamps. Sessions are
// created by the authentication layer; the limiter only counts, lists and
// deletes them through the Store interface. The two verification flags
// (CheckedOnce, Verified) belong to the limit gate's double-check protocol
// and are mutated exclusively through Store.SetFlags.
//
// Three Store implementations ship with the package:
//
//   - MemoryStore: concurrent in-process map, for tests and single-node use.
//   - RedisStore: session hashes plus a per-user id index set.
//   - PGStore: a sessions table mirroring classic server-side session
//     storage, counted with SELECT count(DISTINCT sid).
//
// The Transport interface resolves the current session id from an HTTP
// request (plain cookie or bearer header); it deliberately carries no
// signing or encryption, since token integrity is the authentication
// layer's concern.
package session
