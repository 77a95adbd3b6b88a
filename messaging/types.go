// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"github.com/emberworks/ember/lib/ref"
)

// LoginRequest is the body for POST /login with the m.login.password
// flow.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// AuthResponse is the response from a successful login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// WhoAmIResponse is the response from GET /account/whoami.
type WhoAmIResponse struct {
	UserID ref.UserID `json:"user_id"`
}

// DisplayNameResponse is the response from GET /profile/{userID}/displayname.
type DisplayNameResponse struct {
	DisplayName string `json:"displayname"`
}

// AvatarURLResponse is the response from GET /profile/{userID}/avatar_url.
// The URL is an mxc:// content URI.
type AvatarURLResponse struct {
	AvatarURL string `json:"avatar_url"`
}

// ResolveAliasResponse is the response from
// GET /directory/room/{alias}.
type ResolveAliasResponse struct {
	RoomID  ref.RoomID `json:"room_id"`
	Servers []string   `json:"servers"`
}

// Event is a single Matrix event as delivered by /sync or fetched from
// a room. Content is kept as a generic map: event content schemas are
// open-ended and interpretation belongs to the layer above.
type Event struct {
	EventID        ref.EventID    `json:"event_id"`
	Type           ref.EventType  `json:"type"`
	Sender         ref.UserID     `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	RoomID         ref.RoomID     `json:"room_id,omitempty"`
	StateKey       *string        `json:"state_key,omitempty"`
	Unsigned       map[string]any `json:"unsigned,omitempty"`
}

// SyncOptions controls a single /sync long-poll.
type SyncOptions struct {
	// Since is the batch token from the previous sync. Empty requests
	// an initial sync.
	Since string

	// TimeoutMS is the server-side long-poll timeout in milliseconds.
	// Zero returns immediately.
	TimeoutMS int64

	// Filter is a server-side filter ID or inline filter JSON.
	Filter string

	// SetPresence, when "offline", stops the sync from marking the
	// user as online.
	SetPresence string
}

// SyncResponse is the response from GET /sync.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection groups per-room sync updates by membership.
type RoomsSection struct {
	Join   map[ref.RoomID]JoinedRoom  `json:"join"`
	Invite map[ref.RoomID]InvitedRoom `json:"invite"`
	Leave  map[ref.RoomID]LeftRoom    `json:"leave"`
}

// JoinedRoom carries sync updates for a room the user has joined.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// InvitedRoom carries the stripped state of a room the user has been
// invited to.
type InvitedRoom struct {
	InviteState StateSection `json:"invite_state"`
}

// LeftRoom carries the final updates for a room the user has left.
type LeftRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// TimelineSection is the message timeline slice of a sync update.
type TimelineSection struct {
	Events    []Event `json:"events"`
	Limited   bool    `json:"limited"`
	PrevBatch string  `json:"prev_batch"`
}

// StateSection is the state-delta slice of a sync update.
type StateSection struct {
	Events []Event `json:"events"`
}

// FilterDefinition is the body for POST /user/{userID}/filter. Only
// the parts the connector uses are modeled.
type FilterDefinition struct {
	Room RoomFilter `json:"room,omitempty"`
}

// RoomFilter filters the rooms section of a sync.
type RoomFilter struct {
	Rooms    []ref.RoomID `json:"rooms,omitempty"`
	Timeline EventFilter  `json:"timeline,omitempty"`
}

// EventFilter filters a list of events by type and count.
type EventFilter struct {
	Types []ref.EventType `json:"types,omitempty"`
	Limit int             `json:"limit,omitempty"`
}

// FilterResponse is the response from creating a filter.
type FilterResponse struct {
	FilterID string `json:"filter_id"`
}

// CreateRoomRequest is the body for POST /createRoom.
type CreateRoomRequest struct {
	Name          string       `json:"name,omitempty"`
	Topic         string       `json:"topic,omitempty"`
	RoomAliasName string       `json:"room_alias_name,omitempty"`
	Preset        string       `json:"preset,omitempty"`
	Visibility    string       `json:"visibility,omitempty"`
	Invite        []ref.UserID `json:"invite,omitempty"`
}

// CreateRoomResponse is the response from POST /createRoom.
type CreateRoomResponse struct {
	RoomID ref.RoomID `json:"room_id"`
}

// JoinRoomResponse is the response from POST /join/{roomIDOrAlias}.
type JoinRoomResponse struct {
	RoomID ref.RoomID `json:"room_id"`
}

// RoomMember is one entry in a room's m.room.member state.
type RoomMember struct {
	UserID      ref.UserID `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Membership  string     `json:"membership"`
}

// JoinedMembersResponse is the response from
// GET /rooms/{roomID}/members, reduced to the member chunk.
type JoinedMembersResponse struct {
	Chunk []memberEvent `json:"chunk"`
}

type memberEvent struct {
	StateKey ref.UserID    `json:"state_key"`
	Content  memberContent `json:"content"`
}

type memberContent struct {
	DisplayName string `json:"displayname"`
	Membership  string `json:"membership"`
}

// PowerLevels is the content of an m.room.power_levels event. Pointer
// fields distinguish "absent" from an explicit zero so a read-merge-
// write cycle preserves the server's defaults.
type PowerLevels struct {
	Users         map[ref.UserID]int    `json:"users,omitempty"`
	UsersDefault  *int                  `json:"users_default,omitempty"`
	Events        map[ref.EventType]int `json:"events,omitempty"`
	EventsDefault *int                  `json:"events_default,omitempty"`
	StateDefault  *int                  `json:"state_default,omitempty"`
	Ban           *int                  `json:"ban,omitempty"`
	Kick          *int                  `json:"kick,omitempty"`
	Redact        *int                  `json:"redact,omitempty"`
	Invite        *int                  `json:"invite,omitempty"`
}

// SendEventResponse is the response from sending a room or state
// event.
type SendEventResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// UploadResponse is the response from POST /_matrix/media/r0/upload.
type UploadResponse struct {
	ContentURI string `json:"content_uri"`
}
