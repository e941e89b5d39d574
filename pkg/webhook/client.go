// Package webhook is the thin client for the remote chat backend. One
// submission is one POST; the backend's reply is a JSON object exposing the
// assistant text under "reply", "output", or "message".
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/floatchat/floatchat/pkg/attach"
)

// ErrNetworkFailure covers transport errors and non-2xx responses.
var ErrNetworkFailure = errors.New("chat backend request failed")

// Action is the fixed tag carried by every outgoing payload.
const Action = "sendMessage"

const defaultTimeout = 120 * time.Second

// FilePayload is one encoded attachment on the wire.
type FilePayload struct {
	FileName      string `json:"fileName"`
	FileSize      string `json:"fileSize"`
	FileExtension string `json:"fileExtension"`
	FileType      string `json:"fileType"`
	MimeType      string `json:"mimeType"`
	Data          string `json:"data"`
}

// Payload is the JSON body of one outgoing chat request.
type Payload struct {
	SessionID string        `json:"sessionId"`
	Action    string        `json:"action"`
	ChatInput string        `json:"chatInput"`
	Files     []FilePayload `json:"files"`
}

// NewPayload assembles the outgoing request from text and encoded
// attachments, in their original order. ChatInput may be empty when files
// are present; Files is always a non-nil array.
func NewPayload(sessionID, text string, files []attach.Encoded) Payload {
	fp := make([]FilePayload, 0, len(files))
	for _, f := range files {
		fp = append(fp, FilePayload{
			FileName:      f.Name,
			FileSize:      fmt.Sprintf("%d bytes", f.SizeBytes),
			FileExtension: f.FileExtension,
			FileType:      f.FileType,
			MimeType:      f.MimeType,
			Data:          f.Data,
		})
	}
	return Payload{
		SessionID: sessionID,
		Action:    Action,
		ChatInput: text,
		Files:     fp,
	}
}

// Empty reports whether the payload carries neither text nor files. Empty
// payloads must not be sent.
func (p Payload) Empty() bool {
	return p.ChatInput == "" && len(p.Files) == 0
}

// Client posts payloads to one webhook URL.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: defaultTimeout},
	}
}

// NewClientWithHTTP allows the caller to supply the underlying http.Client.
func NewClientWithHTTP(url string, hc *http.Client) *Client {
	if hc == nil {
		return NewClient(url)
	}
	return &Client{url: url, http: hc}
}

func (c *Client) URL() string { return c.url }

// Send posts the payload and returns the assistant's reply text. The reply
// is read from the response keys "reply", "output", then "message"; when all
// are absent the reply is empty. Transport errors and non-2xx statuses are
// reported as ErrNetworkFailure.
func (c *Client) Send(ctx context.Context, p Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d", ErrNetworkFailure, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrNetworkFailure, err)
	}

	return ExtractReply(raw), nil
}

// ExtractReply pulls the assistant text out of a backend response body,
// checking "reply", "output", and "message" in that priority order. A body
// that is not a JSON object, or carries none of the keys, yields "".
func ExtractReply(raw []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"reply", "output", "message"} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	}
	return ""
}
