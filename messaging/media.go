// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// UploadMedia uploads raw bytes to the media repository. contentType
// is the MIME type of the data; filename, when non-empty, is recorded
// as the upload's name. The returned string is an mxc:// content URI.
func (s *DirectSession) UploadMedia(ctx context.Context, contentType, filename string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	query := url.Values{}
	if filename != "" {
		query.Set("filename", filename)
	}
	header := http.Header{}
	header.Set("Content-Type", contentType)

	body, err := s.Send(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/upload",
		APIPath: APIPathMedia,
		Content: data,
		Query:   query,
		Header:  header,
	})
	if err != nil {
		return "", fmt.Errorf("messaging: media upload failed: %w", err)
	}
	var response UploadResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse upload response: %w", err)
	}
	return response.ContentURI, nil
}

// DownloadURL converts an mxc:// content URI into the HTTP URL the
// content can be fetched from on this session's homeserver. Purely
// computational, no network.
func (s *DirectSession) DownloadURL(mxcURI string) (string, error) {
	rest, ok := strings.CutPrefix(mxcURI, "mxc://")
	if !ok {
		return "", fmt.Errorf("messaging: not an mxc URI: %q", mxcURI)
	}
	server, mediaID, ok := strings.Cut(rest, "/")
	if !ok || server == "" || mediaID == "" {
		return "", fmt.Errorf("messaging: malformed mxc URI: %q", mxcURI)
	}
	return s.client.baseURL + APIPathMedia + "/download/" +
		url.PathEscape(server) + "/" + url.PathEscape(mediaID), nil
}
