// Package transport moves identifier-keyed payloads between two processes.
//
// A [Transport] persists or sends a payload for an identifier and reads it
// back. Five strategies share that contract:
//
//   - [FileTransport]: one archive file per identifier in the group container
//   - [CoordinatedFileTransport]: the same files, with writes serialized by a
//     cross-process lock
//   - [ContextTransport]: the session's application context, one key per identifier
//   - [MessageTransport]: realtime session messages, push only
//   - [FileTransferTransport]: session file transfer, read back from the
//     archive files the receiving side re-persists
//
// Strategies are selected once by [Kind] through [New].
//
// # Failure reporting
//
// Transports never return errors to their callers. Write reports false and
// Read reports absent; the cause is logged. [Transport.Deliver] additionally
// distinguishes how an accepted payload was handled, since session writes
// can be accepted without confirmation that anything arrived.
package transport
