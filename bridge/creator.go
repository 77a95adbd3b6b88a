// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emberworks/ember/events"
	"github.com/emberworks/ember/lib/ref"
	"github.com/emberworks/ember/messaging"
)

// NickResolver resolves a user's display name in the context of a
// room. Implemented by the connector; tests use a stub.
type NickResolver interface {
	Nick(ctx context.Context, roomID ref.RoomID, userID ref.UserID) (string, error)
}

// MediaResolver converts mxc:// content URIs into fetchable HTTP URLs.
type MediaResolver interface {
	DownloadURL(mxcURI string) (string, error)
}

// Creator translates Matrix wire events into typed events.
type Creator struct {
	nicks  NickResolver
	media  MediaResolver
	logger *slog.Logger

	eventConstructors   map[ref.EventType]constructor
	messageConstructors map[string]constructor
}

// constructor fills in the variant-specific fields of an event. base
// is already populated.
type constructor func(c *Creator, wire messaging.Event, base events.Base) (events.Event, error)

// NewCreator builds a Creator. nicks and media must be non-nil;
// logger nil means slog.Default().
func NewCreator(nicks NickResolver, media MediaResolver, logger *slog.Logger) *Creator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Creator{nicks: nicks, media: media, logger: logger}
	c.eventConstructors = map[ref.EventType]constructor{
		ref.EventTypeRoomName:  (*Creator).createRoomName,
		ref.EventTypeRoomTopic: (*Creator).createRoomDescription,
		ref.EventTypeReaction:  (*Creator).createReaction,
	}
	c.messageConstructors = map[string]constructor{
		"m.text":  (*Creator).createText,
		"m.file":  (*Creator).createFile,
		"m.image": (*Creator).createImage,
	}
	return c
}

// CreateEvent translates one wire event. Events with no registered
// constructor, or m.room.message events with no registered msgtype,
// yield (nil, nil). Display-name resolution failures propagate: a
// translated event always carries an accurate sender name.
func (c *Creator) CreateEvent(ctx context.Context, wire messaging.Event, target ref.RoomID) (events.Event, error) {
	construct, ok := c.lookup(wire)
	if !ok {
		c.logger.Debug("no constructor for event", "type", wire.Type, "event_id", wire.EventID)
		return nil, nil
	}

	nick, err := c.nicks.Nick(ctx, target, wire.Sender)
	if err != nil {
		return nil, fmt.Errorf("bridge: resolving display name for %s: %w", wire.Sender, err)
	}

	base := events.Base{
		User:    nick,
		UserID:  wire.Sender.String(),
		Target:  target.String(),
		EventID: wire.EventID.String(),
		Raw:     wire,
	}
	return construct(c, wire, base)
}

// lookup selects the constructor for a wire event. m.room.message
// events dispatch on their msgtype, everything else on the event type.
func (c *Creator) lookup(wire messaging.Event) (constructor, bool) {
	if wire.Type == ref.EventTypeMessage {
		msgtype, _ := wire.Content["msgtype"].(string)
		construct, ok := c.messageConstructors[msgtype]
		return construct, ok
	}
	construct, ok := c.eventConstructors[wire.Type]
	return construct, ok
}

func (c *Creator) createText(wire messaging.Event, base events.Base) (events.Event, error) {
	relates, _ := wire.Content["m.relates_to"].(map[string]any)
	if relType, _ := relates["rel_type"].(string); relType == "m.replace" {
		newContent, _ := wire.Content["m.new_content"].(map[string]any)
		body, _ := newContent["body"].(string)
		edited, _ := relates["event_id"].(string)
		return &events.EditedMessage{
			Base:        base,
			Text:        body,
			EditedEvent: edited,
		}, nil
	}
	body, _ := wire.Content["body"].(string)
	return &events.Message{Base: base, Text: body}, nil
}

func (c *Creator) createFile(wire messaging.Event, base events.Base) (events.Event, error) {
	file, err := c.fileFields(wire, base)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (c *Creator) createImage(wire messaging.Event, base events.Base) (events.Event, error) {
	file, err := c.fileFields(wire, base)
	if err != nil {
		return nil, err
	}
	return &events.Image{File: *file}, nil
}

// fileFields extracts the fields shared by file and image events,
// converting the mxc content URI into a fetchable URL.
func (c *Creator) fileFields(wire messaging.Event, base events.Base) (*events.File, error) {
	mxcURI, _ := wire.Content["url"].(string)
	downloadURL, err := c.media.DownloadURL(mxcURI)
	if err != nil {
		return nil, fmt.Errorf("bridge: resolving content URI for %s: %w", wire.EventID, err)
	}
	name, _ := wire.Content["body"].(string)
	var mimeType string
	if info, ok := wire.Content["info"].(map[string]any); ok {
		mimeType, _ = info["mimetype"].(string)
	}
	return &events.File{
		Base:     base,
		Name:     name,
		URL:      downloadURL,
		MimeType: mimeType,
	}, nil
}

func (c *Creator) createRoomName(wire messaging.Event, base events.Base) (events.Event, error) {
	name, _ := wire.Content["name"].(string)
	return &events.RoomName{Base: base, Name: name}, nil
}

func (c *Creator) createRoomDescription(wire messaging.Event, base events.Base) (events.Event, error) {
	topic, _ := wire.Content["topic"].(string)
	return &events.RoomDescription{Base: base, Description: topic}, nil
}

func (c *Creator) createReaction(wire messaging.Event, base events.Base) (events.Event, error) {
	relates, _ := wire.Content["m.relates_to"].(map[string]any)
	emoji, _ := relates["key"].(string)
	linked, _ := relates["event_id"].(string)
	return &events.Reaction{
		Base:        base,
		Emoji:       emoji,
		LinkedEvent: linked,
	}, nil
}
