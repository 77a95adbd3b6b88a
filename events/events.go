// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

// Package events defines the typed chat events that flow between the
// Matrix connector and the rest of the bot. Incoming wire events are
// translated into these types by the bridge package; outgoing events
// are constructed by skills and dispatched by the connector.
package events

import (
	"github.com/emberworks/ember/messaging"
)

// Event is implemented by every typed chat event.
type Event interface {
	// Meta returns the envelope shared by all events.
	Meta() *Base
}

// Base is the envelope carried by every event: who produced it, where
// it belongs, and the wire event it was derived from.
type Base struct {
	// User is the sender's display name, resolved at translation
	// time. Falls back to the raw user ID when no name is set.
	User string

	// UserID is the sender's Matrix user ID, verbatim.
	UserID string

	// Target identifies the conversation the event belongs to,
	// normally a room ID.
	Target string

	// EventID is the originating wire event's ID. Empty for events
	// constructed locally for sending.
	EventID string

	// Raw is the wire event this was derived from, unmodified. Zero
	// for locally-constructed events.
	Raw messaging.Event
}

// Meta implements Event.
func (b *Base) Meta() *Base { return b }

// Message is a plain text chat message.
type Message struct {
	Base

	// Text is the message body. Markdown is rendered when the
	// connector sends it.
	Text string
}

// EditedMessage is a replacement for an earlier message.
type EditedMessage struct {
	Base

	// Text is the new message body.
	Text string

	// EditedEvent is the ID of the event being replaced.
	EditedEvent string
}

// Typing signals that a user started or stopped typing.
type Typing struct {
	Base

	// Trigger is true when typing starts, false when it stops.
	Trigger bool

	// TimeoutMS is how long the notification stays active.
	TimeoutMS int64
}

// File is a file shared in a room. Exactly one of URL or Content is
// set: incoming files carry a URL, outgoing files may carry raw bytes
// for the connector to upload.
type File struct {
	Base

	// Name is the file's display name.
	Name string

	// URL is an HTTP URL the file can be fetched from.
	URL string

	// Content is the raw file data for outgoing files.
	Content []byte

	// MimeType is the file's MIME type when known. Empty lets the
	// connector sniff it from Content.
	MimeType string
}

// Image is an image shared in a room.
type Image struct {
	File
}

// RoomName reports or requests a change to a room's name.
type RoomName struct {
	Base

	// Name is the room's new name.
	Name string
}

// RoomDescription reports or requests a change to a room's topic.
type RoomDescription struct {
	Base

	// Description is the room's new topic.
	Description string
}

// RoomImage requests a change to a room's avatar.
type RoomImage struct {
	Base

	// Image carries the avatar to set.
	Image *Image
}

// Reaction is an emoji reaction to an earlier message.
type Reaction struct {
	Base

	// Emoji is the reaction content.
	Emoji string

	// LinkedEvent is the ID of the message being reacted to.
	LinkedEvent string
}

// NewRoom requests creation of a room.
type NewRoom struct {
	Base

	// Name is the new room's name, optional.
	Name string
}

// RoomAddress requests publishing an alias for a room.
type RoomAddress struct {
	Base

	// Address is the alias to publish, e.g. "#general:example.org".
	Address string
}

// JoinRoom requests joining the target room.
type JoinRoom struct {
	Base
}

// UserInvite requests inviting a user to the target room.
type UserInvite struct {
	Base

	// InvitedUser is the Matrix ID of the user to invite.
	InvitedUser string
}

// Role labels for UserRole. Connectors translate them into whatever
// privilege scheme the protocol uses.
const (
	RoleModerator = "mod"
	RoleAdmin     = "admin"
)

// UserRole requests a privilege change for a user in the target room.
// Either Role or Power is set; Role takes precedence when both are.
type UserRole struct {
	Base

	// TargetUser is the Matrix ID of the user whose role changes.
	TargetUser string

	// Role is a symbolic role: RoleModerator or RoleAdmin.
	Role string

	// Power is an explicit power level, used when Role is empty.
	Power int
}
