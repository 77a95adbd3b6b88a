// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated value types for Matrix identifiers:
// user IDs, room IDs, room aliases, and event IDs.
//
// Identifiers arrive from configuration files and from homeserver
// responses. Parsing them into these types at the boundary means the
// rest of the connector never handles a malformed ID: a RoomID always
// starts with '!' and carries a server name, a UserID always starts
// with '@', and so on. All types implement TextMarshaler and
// TextUnmarshaler, so encoding/json validates them automatically
// during deserialization of homeserver responses.
//
// Each type is an immutable value wrapper around the raw string. The
// zero value is not valid; use IsZero to check. Event types
// (EventType) are the exception — they are opaque identifiers that
// need no validation, so EventType is a plain named string.
package ref
