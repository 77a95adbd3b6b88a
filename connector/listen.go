// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/emberworks/ember/events"
	"github.com/emberworks/ember/messaging"
)

const (
	// longPollTimeoutMS is the server-side /sync timeout.
	longPollTimeoutMS = 30000

	// maxSyncRetries bounds consecutive failed sync attempts before
	// Listen gives up.
	maxSyncRetries = 5

	// syncRetryDelay is the pause between failed sync attempts.
	syncRetryDelay = time.Second
)

// Handler consumes translated incoming events.
type Handler func(ctx context.Context, event events.Event)

// Listen streams incoming events to handler until ctx is cancelled.
// Transient sync failures are retried with fresh connections; after
// maxSyncRetries consecutive failures the last error is returned.
// Returns ctx.Err() on cancellation.
func (c *Connector) Listen(ctx context.Context, handler Handler) error {
	retries := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.mu.Lock()
		since := c.nextBatch
		filterID := c.filterID
		c.mu.Unlock()

		response, err := c.session.Sync(ctx, messaging.SyncOptions{
			Since:     since,
			TimeoutMS: longPollTimeoutMS,
			Filter:    filterID,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			retries++
			if retries >= maxSyncRetries {
				return fmt.Errorf("connector: sync failed %d times: %w", retries, err)
			}
			c.logger.Warn("sync failed, retrying", "attempt", retries, "error", err)
			// A pooled connection may be the problem; force fresh
			// ones for the retry.
			c.client.CloseIdleConnections()
			select {
			case <-c.clock.After(syncRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		retries = 0

		c.mu.Lock()
		c.nextBatch = response.NextBatch
		c.mu.Unlock()

		c.dispatchSync(ctx, response, handler)
	}
}

// dispatchSync translates the timeline events of a sync response and
// hands them to the handler. The bot's own events are skipped.
// Translation failures are logged and skipped so one bad event never
// stalls the stream.
func (c *Connector) dispatchSync(ctx context.Context, response *messaging.SyncResponse, handler Handler) {
	for roomID, room := range response.Rooms.Join {
		for _, wire := range room.Timeline.Events {
			if wire.Sender == c.userID {
				continue
			}
			event, err := c.creator.CreateEvent(ctx, wire, roomID)
			if err != nil {
				c.logger.Error("failed to translate event",
					"event_id", wire.EventID,
					"room_id", roomID,
					"error", err,
				)
				continue
			}
			if event == nil {
				continue
			}
			handler(ctx, event)
		}
	}
}
