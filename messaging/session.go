// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/emberworks/ember/lib/ref"
)

// Session is an authenticated Matrix session. Implementations must be
// safe for concurrent use.
type Session interface {
	// UserID returns the fully-qualified Matrix user ID the session
	// is authenticated as.
	UserID() ref.UserID

	// Send performs one logical API call: a single conceptual
	// operation that absorbs rate limiting internally. The returned
	// body is the raw JSON of the final successful response.
	Send(ctx context.Context, request Request) (json.RawMessage, error)

	// WhoAmI asks the homeserver which user the access token belongs
	// to.
	WhoAmI(ctx context.Context) (ref.UserID, error)

	// GetDisplayName fetches a user's global display name. A user
	// with no display name set yields "".
	GetDisplayName(ctx context.Context, userID ref.UserID) (string, error)

	// SetDisplayName sets the session user's global display name.
	SetDisplayName(ctx context.Context, name string) error

	// GetAvatarURL fetches a user's avatar as an mxc:// content URI.
	GetAvatarURL(ctx context.Context, userID ref.UserID) (string, error)

	// ResolveRoomAlias resolves a room alias to its room ID.
	ResolveRoomAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error)

	// GetRoomMembers lists the joined members of a room.
	GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]RoomMember, error)

	// RoomDisplayName fetches a user's display name within a room,
	// falling back through the member list. Empty means the user has
	// no room-specific name.
	RoomDisplayName(ctx context.Context, roomID ref.RoomID, userID ref.UserID) (string, error)

	// Sync performs one /sync long-poll.
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)

	// CreateFilter uploads a filter definition and returns its ID.
	CreateFilter(ctx context.Context, filter FilterDefinition) (string, error)

	// SendMessageEvent sends a message event into a room with an
	// idempotent transaction ID and returns the new event's ID.
	SendMessageEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, content any) (ref.EventID, error)

	// SendStateEvent sends a state event into a room.
	SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) (ref.EventID, error)

	// SetRoomName sets a room's m.room.name state.
	SetRoomName(ctx context.Context, roomID ref.RoomID, name string) error

	// SetRoomTopic sets a room's m.room.topic state.
	SetRoomTopic(ctx context.Context, roomID ref.RoomID, topic string) error

	// PowerLevels fetches a room's m.room.power_levels state.
	PowerLevels(ctx context.Context, roomID ref.RoomID) (PowerLevels, error)

	// GetStateEvent fetches the content of a state event.
	GetStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) error

	// CreateRoom creates a new room.
	CreateRoom(ctx context.Context, request CreateRoomRequest) (ref.RoomID, error)

	// JoinRoom joins a room by ID or alias and returns the resolved
	// room ID.
	JoinRoom(ctx context.Context, roomIDOrAlias string) (ref.RoomID, error)

	// LeaveRoom leaves a room.
	LeaveRoom(ctx context.Context, roomID ref.RoomID) error

	// InviteUser invites a user to a room.
	InviteUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error

	// SetRoomAlias publishes an alias for a room in the server's
	// directory.
	SetRoomAlias(ctx context.Context, roomID ref.RoomID, alias ref.RoomAlias) error

	// UploadMedia uploads raw bytes to the media repository and
	// returns the mxc:// content URI.
	UploadMedia(ctx context.Context, contentType, filename string, data []byte) (string, error)

	// DownloadURL converts an mxc:// content URI into the HTTP URL it
	// can be fetched from. Purely computational, no network.
	DownloadURL(mxcURI string) (string, error)

	// Logout invalidates the session's access token.
	Logout(ctx context.Context) error
}

// DirectSession is a Session that talks to the homeserver directly
// with its own access token.
type DirectSession struct {
	client      *Client
	accessToken string
	userID      ref.UserID
	deviceID    string

	// transactionCounter disambiguates transaction IDs generated in
	// the same millisecond. Incremented once per logical send, never
	// per retry, so a rate-limited resend stays idempotent.
	transactionCounter atomic.Int64
}

var _ Session = (*DirectSession)(nil)

// UserID returns the user the session is authenticated as.
func (s *DirectSession) UserID() ref.UserID { return s.userID }

// DeviceID returns the device ID assigned at login, or "" for
// token-restored sessions.
func (s *DirectSession) DeviceID() string { return s.deviceID }

// AccessToken returns the session's access token, for persisting
// across restarts.
func (s *DirectSession) AccessToken() string { return s.accessToken }

// Send performs one logical API call with the session's access token.
func (s *DirectSession) Send(ctx context.Context, request Request) (json.RawMessage, error) {
	return s.client.send(ctx, s.accessToken, request)
}

// nextTransactionID generates a transaction ID unique within this
// session. Matrix uses these to make PUT event sends idempotent.
func (s *DirectSession) nextTransactionID() string {
	return fmt.Sprintf("ember-%d-%d", s.client.clock.Now().UnixMilli(), s.transactionCounter.Add(1))
}

// get performs a GET and decodes the JSON response into out.
func (s *DirectSession) get(ctx context.Context, path string, query url.Values, out any) error {
	body, err := s.Send(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("messaging: failed to parse response from %s: %w", path, err)
	}
	return nil
}

func (s *DirectSession) WhoAmI(ctx context.Context) (ref.UserID, error) {
	var response WhoAmIResponse
	if err := s.get(ctx, "/account/whoami", nil, &response); err != nil {
		return ref.UserID{}, err
	}
	return response.UserID, nil
}

func (s *DirectSession) GetDisplayName(ctx context.Context, userID ref.UserID) (string, error) {
	var response DisplayNameResponse
	err := s.get(ctx, "/profile/"+url.PathEscape(userID.String())+"/displayname", nil, &response)
	if err != nil {
		// Servers answer 404 for users with no display name set.
		if IsMatrixCode(err, ErrCodeNotFound) {
			return "", nil
		}
		return "", err
	}
	return response.DisplayName, nil
}

func (s *DirectSession) SetDisplayName(ctx context.Context, name string) error {
	_, err := s.Send(ctx, Request{
		Method:  http.MethodPut,
		Path:    "/profile/" + url.PathEscape(s.userID.String()) + "/displayname",
		Content: DisplayNameResponse{DisplayName: name},
	})
	return err
}

func (s *DirectSession) GetAvatarURL(ctx context.Context, userID ref.UserID) (string, error) {
	var response AvatarURLResponse
	err := s.get(ctx, "/profile/"+url.PathEscape(userID.String())+"/avatar_url", nil, &response)
	if err != nil {
		if IsMatrixCode(err, ErrCodeNotFound) {
			return "", nil
		}
		return "", err
	}
	return response.AvatarURL, nil
}

func (s *DirectSession) ResolveRoomAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error) {
	var response ResolveAliasResponse
	err := s.get(ctx, "/directory/room/"+url.PathEscape(alias.String()), nil, &response)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("messaging: failed to resolve alias %s: %w", alias, err)
	}
	return response.RoomID, nil
}

func (s *DirectSession) GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]RoomMember, error) {
	var response JoinedMembersResponse
	err := s.get(ctx, "/rooms/"+url.PathEscape(roomID.String())+"/members", nil, &response)
	if err != nil {
		return nil, err
	}
	members := make([]RoomMember, 0, len(response.Chunk))
	for _, event := range response.Chunk {
		members = append(members, RoomMember{
			UserID:      event.StateKey,
			DisplayName: event.Content.DisplayName,
			Membership:  event.Content.Membership,
		})
	}
	return members, nil
}

// RoomDisplayName scans the room member list for the user's
// room-scoped display name.
func (s *DirectSession) RoomDisplayName(ctx context.Context, roomID ref.RoomID, userID ref.UserID) (string, error) {
	members, err := s.GetRoomMembers(ctx, roomID)
	if err != nil {
		return "", err
	}
	for _, member := range members {
		if member.UserID == userID {
			return member.DisplayName, nil
		}
	}
	return "", nil
}

func (s *DirectSession) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.TimeoutMS > 0 {
		query.Set("timeout", strconv.FormatInt(options.TimeoutMS, 10))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}
	if options.SetPresence != "" {
		query.Set("set_presence", options.SetPresence)
	}
	var response SyncResponse
	if err := s.get(ctx, "/sync", query, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (s *DirectSession) CreateFilter(ctx context.Context, filter FilterDefinition) (string, error) {
	body, err := s.Send(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/user/" + url.PathEscape(s.userID.String()) + "/filter",
		Content: filter,
	})
	if err != nil {
		return "", err
	}
	var response FilterResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse filter response: %w", err)
	}
	return response.FilterID, nil
}

func (s *DirectSession) SendMessageEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, content any) (ref.EventID, error) {
	body, err := s.Send(ctx, Request{
		Method: http.MethodPut,
		Path: "/rooms/" + url.PathEscape(roomID.String()) +
			"/send/" + url.PathEscape(string(eventType)) +
			"/" + url.PathEscape(s.nextTransactionID()),
		Content: content,
	})
	if err != nil {
		return ref.EventID{}, err
	}
	var response SendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: failed to parse send response: %w", err)
	}
	return response.EventID, nil
}

func (s *DirectSession) SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) (ref.EventID, error) {
	body, err := s.Send(ctx, Request{
		Method: http.MethodPut,
		Path: "/rooms/" + url.PathEscape(roomID.String()) +
			"/state/" + url.PathEscape(string(eventType)) +
			"/" + url.PathEscape(stateKey),
		Content: content,
	})
	if err != nil {
		return ref.EventID{}, err
	}
	var response SendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: failed to parse state send response: %w", err)
	}
	return response.EventID, nil
}

func (s *DirectSession) SetRoomName(ctx context.Context, roomID ref.RoomID, name string) error {
	_, err := s.SendStateEvent(ctx, roomID, ref.EventTypeRoomName, "",
		map[string]string{"name": name})
	return err
}

func (s *DirectSession) SetRoomTopic(ctx context.Context, roomID ref.RoomID, topic string) error {
	_, err := s.SendStateEvent(ctx, roomID, ref.EventTypeRoomTopic, "",
		map[string]string{"topic": topic})
	return err
}

func (s *DirectSession) PowerLevels(ctx context.Context, roomID ref.RoomID) (PowerLevels, error) {
	var levels PowerLevels
	if err := s.GetStateEvent(ctx, roomID, ref.EventTypePowerLevels, "", &levels); err != nil {
		return PowerLevels{}, err
	}
	return levels, nil
}

func (s *DirectSession) GetStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) error {
	return s.get(ctx, "/rooms/"+url.PathEscape(roomID.String())+
		"/state/"+url.PathEscape(string(eventType))+
		"/"+url.PathEscape(stateKey), nil, content)
}

func (s *DirectSession) CreateRoom(ctx context.Context, request CreateRoomRequest) (ref.RoomID, error) {
	body, err := s.Send(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/createRoom",
		Content: request,
	})
	if err != nil {
		return ref.RoomID{}, err
	}
	var response CreateRoomResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.RoomID{}, fmt.Errorf("messaging: failed to parse createRoom response: %w", err)
	}
	return response.RoomID, nil
}

// JoinRoom accepts either a room ID or an alias; the server resolves
// aliases during join.
func (s *DirectSession) JoinRoom(ctx context.Context, roomIDOrAlias string) (ref.RoomID, error) {
	body, err := s.Send(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/join/" + url.PathEscape(roomIDOrAlias),
		Content: struct{}{},
	})
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("messaging: failed to join %s: %w", roomIDOrAlias, err)
	}
	var response JoinRoomResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.RoomID{}, fmt.Errorf("messaging: failed to parse join response: %w", err)
	}
	return response.RoomID, nil
}

func (s *DirectSession) LeaveRoom(ctx context.Context, roomID ref.RoomID) error {
	_, err := s.Send(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/rooms/" + url.PathEscape(roomID.String()) + "/leave",
		Content: struct{}{},
	})
	return err
}

func (s *DirectSession) InviteUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error {
	_, err := s.Send(ctx, Request{
		Method: http.MethodPost,
		Path:   "/rooms/" + url.PathEscape(roomID.String()) + "/invite",
		Content: struct {
			UserID ref.UserID `json:"user_id"`
		}{UserID: userID},
	})
	return err
}

func (s *DirectSession) SetRoomAlias(ctx context.Context, roomID ref.RoomID, alias ref.RoomAlias) error {
	_, err := s.Send(ctx, Request{
		Method: http.MethodPut,
		Path:   "/directory/room/" + url.PathEscape(alias.String()),
		Content: struct {
			RoomID ref.RoomID `json:"room_id"`
		}{RoomID: roomID},
	})
	return err
}

func (s *DirectSession) Logout(ctx context.Context) error {
	_, err := s.Send(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/logout",
		Content: struct{}{},
	})
	return err
}
