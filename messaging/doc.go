// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the Matrix client-server r0 HTTP API for the
// Ember connector.
//
// The package provides two core types. [Client] is an unauthenticated
// Matrix client holding the homeserver URL and HTTP transport; it
// handles password login and mints authenticated [Session] values.
// [DirectSession] wraps a Client with an access token for
// authenticated operations: profile lookups, room alias resolution,
// incremental sync with long-polling, message and state event sending,
// room administration (create, join, leave, invite, name, topic,
// alias, power levels), and media upload.
//
// Every API call funnels through [DirectSession.Send], which performs
// one logical protocol call as a sequence of one or more physical HTTP
// attempts. Server-side rate limiting (HTTP 429) is absorbed inside
// Send: the response's retry_after_ms dictates a suspension, after
// which the identical request is re-issued. The client never applies
// its own backoff curve — the server owns the wait time. The loop has
// no intrinsic retry cap; it is bounded by the caller's context and by
// the optional [ClientConfig.MaxRetryWait] budget. Matching the Matrix
// r0 convention, the access token travels as an access_token query
// parameter rather than an Authorization header.
//
// Any other non-2xx response fails the call immediately with a
// [*RequestError] carrying the HTTP status and the raw response body
// text. Callers that need the structured Matrix error code can use
// [MatrixCode] or [IsMatrixCode], which parse the raw body on demand.
// Write operations (SendMessageEvent, SendStateEvent) use Matrix's
// idempotent PUT with a transaction ID generated once per logical
// call, so a rate-limit retry reuses the same transaction ID and the
// homeserver deduplicates it.
//
// Request URLs are built by string concatenation rather than url.URL
// to avoid double-encoding of path segments that contain URL-encoded
// characters (such as room aliases).
package messaging
