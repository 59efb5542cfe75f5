/*
Package reasoning is the client side of the reasoning service.

Requests are sent through a Transport and their results come back as Frames
published on an in-process message bus. A Subscription is opened once per
session; every call it makes carries a fresh request id and only frames whose
request id matches are delivered to that call. Frames for ids nobody is waiting
on (a call that timed out, a session that was closed) are acknowledged and dropped.

Two transports are provided: Loopback, which runs a Handler in-process, and
HTTP, which posts the request and reads a stream of newline-delimited JSON frames.
Rules is an offline Handler driven by `when <expr> -> <node>` instructions.
*/
package reasoning
