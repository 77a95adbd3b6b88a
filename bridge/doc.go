// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge translates raw Matrix wire events into the typed
// events the bot consumes. Translation is table-driven: a wire event's
// type (and, for m.room.message, its msgtype) selects a constructor.
// Events with no matching constructor translate to nil, which callers
// treat as "ignore".
package bridge
