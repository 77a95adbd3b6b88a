// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/emberworks/ember/lib/ref"
)

func TestGetDisplayName(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/_matrix/client/r0/profile/@neo:matrix.org/displayname" {
				t.Errorf("path = %q", r.URL.Path)
			}
			writeJSON(t, w, http.StatusOK, map[string]string{"displayname": "Rabbit Hole"})
		}))
		name, err := session.GetDisplayName(context.Background(), ref.MustParseUserID("@neo:matrix.org"))
		if err != nil {
			t.Fatalf("GetDisplayName: %v", err)
		}
		if name != "Rabbit Hole" {
			t.Errorf("name = %q", name)
		}
	})

	t.Run("unset yields empty", func(t *testing.T) {
		session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusNotFound, map[string]string{
				"errcode": "M_NOT_FOUND",
				"error":   "Profile was not found",
			})
		}))
		name, err := session.GetDisplayName(context.Background(), ref.MustParseUserID("@ghost:matrix.org"))
		if err != nil {
			t.Fatalf("GetDisplayName: %v", err)
		}
		if name != "" {
			t.Errorf("name = %q, want empty", name)
		}
	})
}

func TestSetDisplayName(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/_matrix/client/r0/profile/@bot:example.org/displayname" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body["displayname"] != "ember" {
			t.Errorf("displayname = %q", body["displayname"])
		}
		writeJSON(t, w, http.StatusOK, map[string]string{})
	}))
	if err := session.SetDisplayName(context.Background(), "ember"); err != nil {
		t.Fatalf("SetDisplayName: %v", err)
	}
}

func TestResolveRoomAlias(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/_matrix/client/r0/directory/room/") {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(t, w, http.StatusOK, map[string]any{
			"room_id": "!aroomid:example.org",
			"servers": []string{"example.org"},
		})
	}))
	roomID, err := session.ResolveRoomAlias(context.Background(), ref.MustParseRoomAlias("#test:example.org"))
	if err != nil {
		t.Fatalf("ResolveRoomAlias: %v", err)
	}
	if roomID.String() != "!aroomid:example.org" {
		t.Errorf("roomID = %s", roomID)
	}
}

func TestRoomDisplayName(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"chunk": []map[string]any{
				{
					"state_key": "@neo:matrix.org",
					"content":   map[string]string{"displayname": "Rabbit Hole", "membership": "join"},
				},
				{
					"state_key": "@bot:example.org",
					"content":   map[string]string{"displayname": "ember", "membership": "join"},
				},
			},
		})
	}))

	name, err := session.RoomDisplayName(context.Background(),
		ref.MustParseRoomID("!aroomid:example.org"), ref.MustParseUserID("@neo:matrix.org"))
	if err != nil {
		t.Fatalf("RoomDisplayName: %v", err)
	}
	if name != "Rabbit Hole" {
		t.Errorf("name = %q", name)
	}

	name, err = session.RoomDisplayName(context.Background(),
		ref.MustParseRoomID("!aroomid:example.org"), ref.MustParseUserID("@absent:matrix.org"))
	if err != nil {
		t.Fatalf("RoomDisplayName: %v", err)
	}
	if name != "" {
		t.Errorf("name = %q, want empty for non-member", name)
	}
}

func TestSendMessageEventTransactionIDs(t *testing.T) {
	var paths []string
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		paths = append(paths, r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]string{"event_id": "$evt:example.org"})
	}))

	roomID := ref.MustParseRoomID("!aroomid:example.org")
	content := map[string]string{"msgtype": "m.text", "body": "hello"}
	for i := 0; i < 2; i++ {
		eventID, err := session.SendMessageEvent(context.Background(), roomID, ref.EventTypeMessage, content)
		if err != nil {
			t.Fatalf("SendMessageEvent: %v", err)
		}
		if eventID.String() != "$evt:example.org" {
			t.Errorf("eventID = %s", eventID)
		}
	}

	if len(paths) != 2 {
		t.Fatalf("requests = %d, want 2", len(paths))
	}
	prefix := "/_matrix/client/r0/rooms/!aroomid:example.org/send/m.room.message/"
	for _, p := range paths {
		if !strings.HasPrefix(p, prefix) {
			t.Errorf("path = %q, want prefix %q", p, prefix)
		}
	}
	if paths[0] == paths[1] {
		t.Errorf("transaction IDs must differ across sends: %q", paths[0])
	}
}

func TestSendMessageEventTransactionIDStableAcrossRetry(t *testing.T) {
	var paths []string
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if len(paths) == 1 {
			writeJSON(t, w, http.StatusTooManyRequests, map[string]any{"retry_after_ms": 10})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]string{"event_id": "$evt:example.org"})
	}))

	_, err := session.SendMessageEvent(context.Background(),
		ref.MustParseRoomID("!aroomid:example.org"), ref.EventTypeMessage,
		map[string]string{"msgtype": "m.text", "body": "hello"})
	if err != nil {
		t.Fatalf("SendMessageEvent: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("requests = %d, want 2", len(paths))
	}
	if paths[0] != paths[1] {
		t.Errorf("rate-limited resend changed the transaction ID: %q vs %q", paths[0], paths[1])
	}
}

func TestSync(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("since") != "batch-1" {
			t.Errorf("since = %q", q.Get("since"))
		}
		if q.Get("timeout") != "30000" {
			t.Errorf("timeout = %q", q.Get("timeout"))
		}
		writeJSON(t, w, http.StatusOK, map[string]any{
			"next_batch": "batch-2",
			"rooms": map[string]any{
				"join": map[string]any{
					"!aroomid:example.org": map[string]any{
						"timeline": map[string]any{
							"events": []map[string]any{{
								"event_id":         "$evt:example.org",
								"type":             "m.room.message",
								"sender":           "@neo:matrix.org",
								"origin_server_ts": 1700000000000,
								"content":          map[string]any{"msgtype": "m.text", "body": "LOUD NOISES"},
							}},
						},
					},
				},
			},
		})
	}))

	response, err := session.Sync(context.Background(), SyncOptions{Since: "batch-1", TimeoutMS: 30000})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if response.NextBatch != "batch-2" {
		t.Errorf("NextBatch = %q", response.NextBatch)
	}
	room, ok := response.Rooms.Join[ref.MustParseRoomID("!aroomid:example.org")]
	if !ok {
		t.Fatalf("joined room missing: %+v", response.Rooms.Join)
	}
	if len(room.Timeline.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(room.Timeline.Events))
	}
	event := room.Timeline.Events[0]
	if event.Type != ref.EventTypeMessage {
		t.Errorf("type = %s", event.Type)
	}
	if event.Content["body"] != "LOUD NOISES" {
		t.Errorf("body = %v", event.Content["body"])
	}
}

func TestJoinRoomAcceptsAlias(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_matrix/client/r0/join/#test:example.org" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(t, w, http.StatusOK, map[string]string{"room_id": "!aroomid:example.org"})
	}))
	roomID, err := session.JoinRoom(context.Background(), "#test:example.org")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if roomID.String() != "!aroomid:example.org" {
		t.Errorf("roomID = %s", roomID)
	}
}

func TestUploadMedia(t *testing.T) {
	payload := []byte("file contents")
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_matrix/media/r0/upload" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "text/plain" {
			t.Errorf("Content-Type = %q", ct)
		}
		if name := r.URL.Query().Get("filename"); name != "notes.txt" {
			t.Errorf("filename = %q", name)
		}
		writeJSON(t, w, http.StatusOK, map[string]string{"content_uri": "mxc://example.org/abc123"})
	}))

	uri, err := session.UploadMedia(context.Background(), "text/plain", "notes.txt", payload)
	if err != nil {
		t.Fatalf("UploadMedia: %v", err)
	}
	if uri != "mxc://example.org/abc123" {
		t.Errorf("uri = %q", uri)
	}
}

func TestDownloadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("DownloadURL must not touch the network")
	}))
	defer server.Close()
	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	session := client.SessionFromToken(ref.MustParseUserID("@bot:example.org"), "tok")

	got, err := session.DownloadURL("mxc://example.org/abc123")
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	want := server.URL + "/_matrix/media/r0/download/example.org/abc123"
	if got != want {
		t.Errorf("url = %q, want %q", got, want)
	}

	for _, bad := range []string{"https://example.org/x", "mxc://", "mxc://serveronly"} {
		if _, err := session.DownloadURL(bad); err == nil {
			t.Errorf("DownloadURL(%q) succeeded, want error", bad)
		}
	}
}

func TestGetStateEvent(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/state/m.room.power_levels/") {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(t, w, http.StatusOK, map[string]any{
			"users":         map[string]int{"@admin:example.org": 100},
			"users_default": 0,
		})
	}))

	var levels PowerLevels
	err := session.GetStateEvent(context.Background(),
		ref.MustParseRoomID("!aroomid:example.org"), ref.EventTypePowerLevels, "", &levels)
	if err != nil {
		t.Fatalf("GetStateEvent: %v", err)
	}
	if levels.Users[ref.MustParseUserID("@admin:example.org")] != 100 {
		t.Errorf("users = %v", levels.Users)
	}
	if levels.UsersDefault == nil || *levels.UsersDefault != 0 {
		t.Errorf("users_default = %v, want explicit 0", levels.UsersDefault)
	}
}
