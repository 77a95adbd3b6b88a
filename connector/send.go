// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/emberworks/ember/events"
	"github.com/emberworks/ember/lib/ref"
	"github.com/emberworks/ember/messaging"
)

// Send dispatches an outgoing event to Matrix. The event's Target
// selects the room; it may be a configured room name, an alias, or a
// room ID. Unsupported event types fail with an error.
//
// A transport-level failure (dropped pooled connection) is retried
// once on a fresh connection before giving up.
func (c *Connector) Send(ctx context.Context, event events.Event) error {
	err := c.dispatch(ctx, event)
	if err == nil {
		return nil
	}
	var transportErr *url.Error
	if errors.As(err, &transportErr) && ctx.Err() == nil {
		c.logger.Warn("send hit a transport error, retrying once", "error", err)
		c.client.CloseIdleConnections()
		return c.dispatch(ctx, event)
	}
	return err
}

func (c *Connector) dispatch(ctx context.Context, event events.Event) error {
	roomID, err := c.resolveTarget(ctx, event.Meta().Target)
	if err != nil && !needsNoTarget(event) {
		return err
	}

	switch e := event.(type) {
	case *events.Message:
		content, err := formattedContent("m.text", e.Text)
		if err != nil {
			return err
		}
		_, err = c.session.SendMessageEvent(ctx, roomID, ref.EventTypeMessage, content)
		return err

	case *events.EditedMessage:
		return c.sendEdit(ctx, roomID, e)

	case *events.File:
		return c.sendFile(ctx, roomID, e, "m.file")

	case *events.Image:
		return c.sendImage(ctx, roomID, e)

	case *events.Reaction:
		_, err := c.session.SendMessageEvent(ctx, roomID, ref.EventTypeReaction, map[string]any{
			"m.relates_to": map[string]any{
				"rel_type": "m.annotation",
				"event_id": e.LinkedEvent,
				"key":      e.Emoji,
			},
		})
		return err

	case *events.RoomName:
		return c.session.SetRoomName(ctx, roomID, e.Name)

	case *events.RoomDescription:
		return c.session.SetRoomTopic(ctx, roomID, e.Description)

	case *events.RoomImage:
		return c.sendRoomImage(ctx, roomID, e)

	case *events.NewRoom:
		created, err := c.session.CreateRoom(ctx, messaging.CreateRoomRequest{Name: e.Name})
		if err != nil {
			return err
		}
		c.logger.Info("room created", "room_id", created, "name", e.Name)
		return nil

	case *events.RoomAddress:
		alias, err := ref.ParseRoomAlias(e.Address)
		if err != nil {
			return err
		}
		return c.session.SetRoomAlias(ctx, roomID, alias)

	case *events.JoinRoom:
		_, err := c.session.JoinRoom(ctx, event.Meta().Target)
		return err

	case *events.UserInvite:
		invited, err := ref.ParseUserID(e.InvitedUser)
		if err != nil {
			return err
		}
		return c.session.InviteUser(ctx, roomID, invited)

	case *events.UserRole:
		return c.sendUserRole(ctx, roomID, e)

	case *events.Typing:
		return c.sendTyping(ctx, roomID, e)

	default:
		return fmt.Errorf("connector: unsupported event type %T", event)
	}
}

// needsNoTarget reports whether an event kind is meaningful without a
// resolvable target room.
func needsNoTarget(event events.Event) bool {
	switch event.(type) {
	case *events.NewRoom:
		return true
	}
	return false
}

// sendEdit replaces an earlier message. The fallback body carries the
// conventional "* " prefix for clients that do not render
// replacements.
func (c *Connector) sendEdit(ctx context.Context, roomID ref.RoomID, e *events.EditedMessage) error {
	newContent, err := formattedContent("m.text", e.Text)
	if err != nil {
		return err
	}
	content, err := formattedContent("m.text", e.Text)
	if err != nil {
		return err
	}
	content["body"] = "* " + content["body"].(string)
	content["formatted_body"] = "* " + content["formatted_body"].(string)
	content["m.new_content"] = newContent
	content["m.relates_to"] = map[string]any{
		"rel_type": "m.replace",
		"event_id": e.EditedEvent,
	}
	_, err = c.session.SendMessageEvent(ctx, roomID, ref.EventTypeMessage, content)
	return err
}

// uploadFile pushes a file's content to the media repository and
// returns its mxc URI with the effective MIME type. A file that
// already carries an mxc URL is passed through without re-uploading.
func (c *Connector) uploadFile(ctx context.Context, file *events.File) (uri, mimeType string, err error) {
	if len(file.Content) == 0 {
		if strings.HasPrefix(file.URL, "mxc://") {
			return file.URL, file.MimeType, nil
		}
		return "", "", fmt.Errorf("connector: file %q has no content to upload", file.Name)
	}
	mimeType = file.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(file.Content)
	}
	uri, err = c.session.UploadMedia(ctx, mimeType, file.Name, file.Content)
	if err != nil {
		return "", "", err
	}
	return uri, mimeType, nil
}

func (c *Connector) sendFile(ctx context.Context, roomID ref.RoomID, file *events.File, msgtype string) error {
	uri, mimeType, err := c.uploadFile(ctx, file)
	if err != nil {
		return err
	}
	info := map[string]any{}
	if mimeType != "" {
		info["mimetype"] = mimeType
	}
	if len(file.Content) > 0 {
		info["size"] = len(file.Content)
	}
	_, err = c.session.SendMessageEvent(ctx, roomID, ref.EventTypeMessage, map[string]any{
		"msgtype": msgtype,
		"body":    file.Name,
		"url":     uri,
		"info":    info,
	})
	return err
}

// sendImage uploads and sends an image, including its pixel
// dimensions when the format is recognized.
func (c *Connector) sendImage(ctx context.Context, roomID ref.RoomID, img *events.Image) error {
	uri, mimeType, err := c.uploadFile(ctx, &img.File)
	if err != nil {
		return err
	}
	info := map[string]any{
		"mimetype": mimeType,
		"size":     len(img.Content),
	}
	if config, _, err := image.DecodeConfig(bytes.NewReader(img.Content)); err == nil {
		info["w"] = config.Width
		info["h"] = config.Height
	}
	_, err = c.session.SendMessageEvent(ctx, roomID, ref.EventTypeMessage, map[string]any{
		"msgtype": "m.image",
		"body":    img.Name,
		"url":     uri,
		"info":    info,
	})
	return err
}

func (c *Connector) sendRoomImage(ctx context.Context, roomID ref.RoomID, e *events.RoomImage) error {
	if e.Image == nil {
		return fmt.Errorf("connector: room image event carries no image")
	}
	uri, _, err := c.uploadFile(ctx, &e.Image.File)
	if err != nil {
		return err
	}
	_, err = c.session.SendStateEvent(ctx, roomID, ref.EventTypeRoomAvatar, "",
		map[string]any{"url": uri})
	return err
}

// sendTyping publishes a typing notification for the bot in a room.
func (c *Connector) sendTyping(ctx context.Context, roomID ref.RoomID, e *events.Typing) error {
	content := map[string]any{"typing": e.Trigger}
	if e.Trigger {
		timeout := e.TimeoutMS
		if timeout == 0 {
			timeout = 10000
		}
		content["timeout"] = timeout
	}
	_, err := c.session.Send(ctx, messaging.Request{
		Method: http.MethodPut,
		Path: "/rooms/" + url.PathEscape(roomID.String()) +
			"/typing/" + url.PathEscape(c.userID.String()),
		Content: content,
	})
	return err
}

// rolePowerLevels maps symbolic roles to Matrix power levels.
var rolePowerLevels = map[string]int{
	events.RoleModerator: 50,
	events.RoleAdmin:     100,
}

// sendUserRole updates one user's power level by fetching the room's
// current m.room.power_levels state, merging the change in, and
// writing the whole content back. The read-merge-write preserves
// every other user's level.
func (c *Connector) sendUserRole(ctx context.Context, roomID ref.RoomID, e *events.UserRole) error {
	power := e.Power
	if e.Role != "" {
		level, ok := rolePowerLevels[e.Role]
		if !ok {
			return fmt.Errorf("connector: unknown role %q", e.Role)
		}
		power = level
	}
	target, err := ref.ParseUserID(e.TargetUser)
	if err != nil {
		return err
	}

	levels, err := c.session.PowerLevels(ctx, roomID)
	if err != nil {
		return fmt.Errorf("connector: reading power levels: %w", err)
	}
	if levels.Users == nil {
		levels.Users = make(map[ref.UserID]int)
	}
	levels.Users[target] = power

	_, err = c.session.SendStateEvent(ctx, roomID, ref.EventTypePowerLevels, "", levels)
	return err
}
