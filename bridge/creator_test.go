// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/emberworks/ember/events"
	"github.com/emberworks/ember/lib/ref"
	"github.com/emberworks/ember/messaging"
)

type stubNicks struct {
	name  string
	err   error
	calls atomic.Int32
}

func (s *stubNicks) Nick(ctx context.Context, roomID ref.RoomID, userID ref.UserID) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return s.name, nil
}

type stubMedia struct{}

func (stubMedia) DownloadURL(mxcURI string) (string, error) {
	if mxcURI == "" {
		return "", errors.New("empty content uri")
	}
	return "https://example.org/media/" + mxcURI[len("mxc://"):], nil
}

var testRoom = ref.MustParseRoomID("!aroomid:example.org")

func messageEvent(msgtype, body string, extra map[string]any) messaging.Event {
	content := map[string]any{"msgtype": msgtype, "body": body}
	for k, v := range extra {
		content[k] = v
	}
	return messaging.Event{
		EventID: ref.MustParseEventID("$evt123:example.org"),
		Type:    ref.EventTypeMessage,
		Sender:  ref.MustParseUserID("@neo:matrix.org"),
		Content: content,
	}
}

func newTestCreator() (*Creator, *stubNicks) {
	nicks := &stubNicks{name: "Rabbit Hole"}
	return NewCreator(nicks, stubMedia{}, nil), nicks
}

func assertBase(t *testing.T, base *events.Base, wire messaging.Event) {
	t.Helper()
	if base.User != "Rabbit Hole" {
		t.Errorf("User = %q", base.User)
	}
	if base.UserID != "@neo:matrix.org" {
		t.Errorf("UserID = %q", base.UserID)
	}
	if base.Target != testRoom.String() {
		t.Errorf("Target = %q", base.Target)
	}
	if base.EventID != wire.EventID.String() {
		t.Errorf("EventID = %q, want %q", base.EventID, wire.EventID)
	}
	if base.Raw.EventID != wire.EventID {
		t.Errorf("Raw.EventID = %v", base.Raw.EventID)
	}
}

func TestCreateMessage(t *testing.T) {
	creator, nicks := newTestCreator()
	wire := messageEvent("m.text", "LOUD NOISES", nil)

	event, err := creator.CreateEvent(context.Background(), wire, testRoom)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	message, ok := event.(*events.Message)
	if !ok {
		t.Fatalf("event = %T, want *events.Message", event)
	}
	if message.Text != "LOUD NOISES" {
		t.Errorf("Text = %q", message.Text)
	}
	assertBase(t, message.Meta(), wire)
	if got := nicks.calls.Load(); got != 1 {
		t.Errorf("nick resolutions = %d, want 1", got)
	}

	// Translation is pure: a second pass over the same wire event
	// yields the same result.
	again, err := creator.CreateEvent(context.Background(), wire, testRoom)
	if err != nil {
		t.Fatalf("CreateEvent (second pass): %v", err)
	}
	if again.(*events.Message).Text != message.Text {
		t.Errorf("second pass Text = %q", again.(*events.Message).Text)
	}
}

func TestCreateEditedMessage(t *testing.T) {
	creator, _ := newTestCreator()
	wire := messageEvent("m.text", "* hello", map[string]any{
		"m.new_content": map[string]any{"msgtype": "m.text", "body": "hello"},
		"m.relates_to": map[string]any{
			"rel_type": "m.replace",
			"event_id": "$original:example.org",
		},
	})

	event, err := creator.CreateEvent(context.Background(), wire, testRoom)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	edit, ok := event.(*events.EditedMessage)
	if !ok {
		t.Fatalf("event = %T, want *events.EditedMessage", event)
	}
	if edit.Text != "hello" {
		t.Errorf("Text = %q, want the m.new_content body", edit.Text)
	}
	if edit.EditedEvent != "$original:example.org" {
		t.Errorf("EditedEvent = %q", edit.EditedEvent)
	}
	assertBase(t, edit.Meta(), wire)
}

func TestCreateFile(t *testing.T) {
	creator, _ := newTestCreator()
	wire := messageEvent("m.file", "notes.txt", map[string]any{
		"url":  "mxc://example.org/abc123",
		"info": map[string]any{"mimetype": "text/plain", "size": 13},
	})

	event, err := creator.CreateEvent(context.Background(), wire, testRoom)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	file, ok := event.(*events.File)
	if !ok {
		t.Fatalf("event = %T, want *events.File", event)
	}
	if file.URL != "https://example.org/media/example.org/abc123" {
		t.Errorf("URL = %q", file.URL)
	}
	if file.Name != "notes.txt" {
		t.Errorf("Name = %q", file.Name)
	}
	if file.MimeType != "text/plain" {
		t.Errorf("MimeType = %q", file.MimeType)
	}
	assertBase(t, file.Meta(), wire)
}

func TestCreateImage(t *testing.T) {
	creator, _ := newTestCreator()
	wire := messageEvent("m.image", "cat.png", map[string]any{
		"url":  "mxc://example.org/cat456",
		"info": map[string]any{"mimetype": "image/png", "w": 64, "h": 64},
	})

	event, err := creator.CreateEvent(context.Background(), wire, testRoom)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	image, ok := event.(*events.Image)
	if !ok {
		t.Fatalf("event = %T, want *events.Image", event)
	}
	if image.URL != "https://example.org/media/example.org/cat456" {
		t.Errorf("URL = %q", image.URL)
	}
	if image.MimeType != "image/png" {
		t.Errorf("MimeType = %q", image.MimeType)
	}
}

func TestCreateFileBadContentURI(t *testing.T) {
	creator, _ := newTestCreator()
	wire := messageEvent("m.file", "notes.txt", nil)

	_, err := creator.CreateEvent(context.Background(), wire, testRoom)
	if err == nil {
		t.Fatal("want error for file event without content uri")
	}
}

func TestCreateRoomName(t *testing.T) {
	creator, _ := newTestCreator()
	wire := messaging.Event{
		EventID: ref.MustParseEventID("$evt123:example.org"),
		Type:    ref.EventTypeRoomName,
		Sender:  ref.MustParseUserID("@neo:matrix.org"),
		Content: map[string]any{"name": "Testing"},
	}

	event, err := creator.CreateEvent(context.Background(), wire, testRoom)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	name, ok := event.(*events.RoomName)
	if !ok {
		t.Fatalf("event = %T, want *events.RoomName", event)
	}
	if name.Name != "Testing" {
		t.Errorf("Name = %q", name.Name)
	}
	assertBase(t, name.Meta(), wire)
}

func TestCreateRoomDescription(t *testing.T) {
	creator, _ := newTestCreator()
	wire := messaging.Event{
		EventID: ref.MustParseEventID("$evt123:example.org"),
		Type:    ref.EventTypeRoomTopic,
		Sender:  ref.MustParseUserID("@neo:matrix.org"),
		Content: map[string]any{"topic": "Hello world"},
	}

	event, err := creator.CreateEvent(context.Background(), wire, testRoom)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	topic, ok := event.(*events.RoomDescription)
	if !ok {
		t.Fatalf("event = %T, want *events.RoomDescription", event)
	}
	if topic.Description != "Hello world" {
		t.Errorf("Description = %q", topic.Description)
	}
}

func TestCreateReaction(t *testing.T) {
	creator, _ := newTestCreator()
	wire := messaging.Event{
		EventID: ref.MustParseEventID("$evt123:example.org"),
		Type:    ref.EventTypeReaction,
		Sender:  ref.MustParseUserID("@neo:matrix.org"),
		Content: map[string]any{
			"m.relates_to": map[string]any{
				"rel_type": "m.annotation",
				"key":      "👍",
				"event_id": "$target:example.org",
			},
		},
	}

	event, err := creator.CreateEvent(context.Background(), wire, testRoom)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	reaction, ok := event.(*events.Reaction)
	if !ok {
		t.Fatalf("event = %T, want *events.Reaction", event)
	}
	if reaction.Emoji != "👍" {
		t.Errorf("Emoji = %q", reaction.Emoji)
	}
	if reaction.LinkedEvent != "$target:example.org" {
		t.Errorf("LinkedEvent = %q", reaction.LinkedEvent)
	}
}

func TestUnknownEventsYieldNil(t *testing.T) {
	creator, nicks := newTestCreator()

	t.Run("unknown event type", func(t *testing.T) {
		wire := messaging.Event{
			EventID: ref.MustParseEventID("$evt123:example.org"),
			Type:    ref.EventType("m.room.encrypted"),
			Sender:  ref.MustParseUserID("@neo:matrix.org"),
			Content: map[string]any{},
		}
		event, err := creator.CreateEvent(context.Background(), wire, testRoom)
		if err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
		if event != nil {
			t.Errorf("event = %v, want nil", event)
		}
	})

	t.Run("unknown msgtype", func(t *testing.T) {
		wire := messageEvent("m.video", "clip.mp4", nil)
		event, err := creator.CreateEvent(context.Background(), wire, testRoom)
		if err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
		if event != nil {
			t.Errorf("event = %v, want nil", event)
		}
	})

	// Ignored events never trigger display-name resolution.
	if got := nicks.calls.Load(); got != 0 {
		t.Errorf("nick resolutions = %d, want 0", got)
	}
}

func TestNickResolutionFailurePropagates(t *testing.T) {
	resolveErr := errors.New("profile lookup failed")
	creator := NewCreator(&stubNicks{err: resolveErr}, stubMedia{}, nil)

	_, err := creator.CreateEvent(context.Background(), messageEvent("m.text", "hi", nil), testRoom)
	if !errors.Is(err, resolveErr) {
		t.Fatalf("err = %v, want wrapped resolve error", err)
	}
}
