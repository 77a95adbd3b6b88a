// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

// Package connector runs a bot presence on a Matrix homeserver: it
// logs in, joins the configured rooms, streams incoming events to a
// handler, and dispatches outgoing events back to the protocol.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/emberworks/ember/bridge"
	"github.com/emberworks/ember/lib/clock"
	"github.com/emberworks/ember/lib/ref"
	"github.com/emberworks/ember/messaging"
)

// Connector is a Matrix chat connector. Create with NewConnector,
// then Connect before any other method.
type Connector struct {
	config  Config
	client  *messaging.Client
	session messaging.Session
	creator *bridge.Creator
	logger  *slog.Logger
	clock   clock.Clock
	userID  ref.UserID

	mu        sync.Mutex
	roomIDs   map[string]ref.RoomID // config name or alias -> room ID
	roomNames map[ref.RoomID]string // room ID -> config name
	filterID  string
	nextBatch string
}

// Options configures optional collaborators of a Connector. The zero
// value is fully usable.
type Options struct {
	// HTTPClient overrides the HTTP client used for all API calls.
	HTTPClient *http.Client

	// Logger receives structured log output. Nil means slog.Default().
	Logger *slog.Logger

	// Clock supplies time. Nil means the real clock.
	Clock clock.Clock
}

// NewConnector creates a connector from a validated config.
func NewConnector(config Config, options Options) (*Connector, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeSource := options.Clock
	if timeSource == nil {
		timeSource = clock.Real()
	}
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: config.Homeserver,
		HTTPClient:    options.HTTPClient,
		Logger:        logger,
		Clock:         timeSource,
		MaxRetryWait:  config.MaxRetryWait,
	})
	if err != nil {
		return nil, err
	}
	c := &Connector{
		config:    config,
		client:    client,
		logger:    logger,
		clock:     timeSource,
		roomIDs:   make(map[string]ref.RoomID),
		roomNames: make(map[ref.RoomID]string),
	}
	c.creator = bridge.NewCreator(c, c, logger)
	return c, nil
}

// UserID returns the bot's Matrix user ID. Valid after Connect.
func (c *Connector) UserID() ref.UserID { return c.userID }

// Session exposes the underlying authenticated session. Valid after
// Connect.
func (c *Connector) Session() messaging.Session { return c.session }

// Connect authenticates, joins the configured rooms, prepares the
// sync filter, and asserts the configured display name.
func (c *Connector) Connect(ctx context.Context) error {
	if err := c.authenticate(ctx); err != nil {
		return err
	}

	for name, room := range c.config.Rooms {
		roomID, err := c.session.JoinRoom(ctx, room)
		if err != nil {
			return fmt.Errorf("connector: joining room %q (%s): %w", name, room, err)
		}
		c.mu.Lock()
		c.roomIDs[name] = roomID
		c.roomIDs[room] = roomID
		c.roomNames[roomID] = name
		c.mu.Unlock()
		c.logger.Info("joined room", "name", name, "room", room, "room_id", roomID)
	}

	if err := c.prepareFilter(ctx); err != nil {
		return err
	}

	// An initial zero-timeout sync establishes the batch token so the
	// event stream starts at "now" instead of replaying history.
	response, err := c.session.Sync(ctx, messaging.SyncOptions{Filter: c.filterID})
	if err != nil {
		return fmt.Errorf("connector: initial sync: %w", err)
	}
	c.mu.Lock()
	c.nextBatch = response.NextBatch
	c.mu.Unlock()

	return c.assertNick(ctx)
}

// Disconnect invalidates the session. The connector is unusable
// afterwards.
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.session == nil {
		return nil
	}
	return c.session.Logout(ctx)
}

func (c *Connector) authenticate(ctx context.Context) error {
	userID, err := ref.ParseUserID(c.config.MXID)
	if err != nil {
		return fmt.Errorf("connector: %w", err)
	}
	if c.config.AccessToken != "" {
		session := c.client.SessionFromToken(userID, c.config.AccessToken)
		// Confirm the token is live and actually belongs to the
		// configured user.
		whoami, err := session.WhoAmI(ctx)
		if err != nil {
			return fmt.Errorf("connector: access token check: %w", err)
		}
		if whoami != userID {
			return fmt.Errorf("connector: access token belongs to %s, config says %s", whoami, userID)
		}
		c.session = session
		c.userID = userID
		return nil
	}

	session, err := c.client.Login(ctx, userID.String(), c.config.Password, c.config.DeviceName)
	if err != nil {
		return err
	}
	c.session = session
	c.userID = session.UserID()
	return nil
}

// prepareFilter uploads a sync filter restricted to the joined rooms
// and the event types the bridge can translate.
func (c *Connector) prepareFilter(ctx context.Context) error {
	c.mu.Lock()
	rooms := make([]ref.RoomID, 0, len(c.roomNames))
	for roomID := range c.roomNames {
		rooms = append(rooms, roomID)
	}
	c.mu.Unlock()

	filterID, err := c.session.CreateFilter(ctx, messaging.FilterDefinition{
		Room: messaging.RoomFilter{
			Rooms: rooms,
			Timeline: messaging.EventFilter{
				Types: []ref.EventType{
					ref.EventTypeMessage,
					ref.EventTypeRoomName,
					ref.EventTypeRoomTopic,
					ref.EventTypeReaction,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("connector: creating sync filter: %w", err)
	}
	c.mu.Lock()
	c.filterID = filterID
	c.mu.Unlock()
	return nil
}

// assertNick sets the configured display name if the profile differs.
func (c *Connector) assertNick(ctx context.Context) error {
	if c.config.Nick == "" {
		return nil
	}
	current, err := c.session.GetDisplayName(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("connector: reading own display name: %w", err)
	}
	if current == c.config.Nick {
		return nil
	}
	if err := c.session.SetDisplayName(ctx, c.config.Nick); err != nil {
		return fmt.Errorf("connector: setting display name: %w", err)
	}
	c.logger.Info("display name updated", "from", current, "to", c.config.Nick)
	return nil
}

// Nick resolves a user's display name: the room-scoped name when
// room_specific_nicks is on, then the global profile name, then the
// bare Matrix ID. Lookup failures fall back rather than fail, so a
// flaky profile API never blocks the event stream; context
// cancellation still propagates.
func (c *Connector) Nick(ctx context.Context, roomID ref.RoomID, userID ref.UserID) (string, error) {
	if c.config.RoomSpecificNicks {
		name, err := c.session.RoomDisplayName(ctx, roomID, userID)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			c.logger.Warn("room display name lookup failed", "user", userID, "error", err)
		} else if name != "" {
			return name, nil
		}
	}
	name, err := c.session.GetDisplayName(ctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		c.logger.Warn("display name lookup failed", "user", userID, "error", err)
		return userID.String(), nil
	}
	if name == "" {
		return userID.String(), nil
	}
	return name, nil
}

// DownloadURL converts an mxc content URI into a fetchable HTTP URL.
func (c *Connector) DownloadURL(mxcURI string) (string, error) {
	return c.session.DownloadURL(mxcURI)
}

// RoomName returns the configured name for a room ID, or "" when the
// room is not one of the configured conversations.
func (c *Connector) RoomName(roomID ref.RoomID) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomNames[roomID]
}

// RoomID returns the room ID for a configured room name or alias.
func (c *Connector) RoomID(name string) (ref.RoomID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	roomID, ok := c.roomIDs[name]
	return roomID, ok
}

// resolveTarget maps an event target to a room ID. Targets may be a
// configured room name, a room ID, or an alias; alias resolutions are
// cached.
func (c *Connector) resolveTarget(ctx context.Context, target string) (ref.RoomID, error) {
	c.mu.Lock()
	if roomID, ok := c.roomIDs[target]; ok {
		c.mu.Unlock()
		return roomID, nil
	}
	c.mu.Unlock()

	if strings.HasPrefix(target, "!") {
		return ref.ParseRoomID(target)
	}
	if strings.HasPrefix(target, "#") {
		alias, err := ref.ParseRoomAlias(target)
		if err != nil {
			return ref.RoomID{}, err
		}
		roomID, err := c.session.ResolveRoomAlias(ctx, alias)
		if err != nil {
			return ref.RoomID{}, err
		}
		c.mu.Lock()
		c.roomIDs[target] = roomID
		c.mu.Unlock()
		return roomID, nil
	}
	return ref.RoomID{}, fmt.Errorf("connector: unknown target %q", target)
}
