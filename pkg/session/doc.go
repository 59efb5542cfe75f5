/*
Package session runs respondent conversations.

A Manager owns one Chat per live session: the traversal state, a pacing queue
that releases display events at chat speed, and the reasoning subscription the
traversal uses. Work on a session is serialised by a reference-counted lock
(optionally backed by a distributed Locker) and every step is snapshotted to a
key-value store so sessions survive restarts. A completed session is handed to
the Repository exactly once.
*/
package session
