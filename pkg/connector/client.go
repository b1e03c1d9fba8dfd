// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SkypeClient talks to the Skype messaging gateway: REST calls for outbound
// messages and profile lookups, a websocket subscription for the inbound
// event stream.
type SkypeClient struct {
	gatewayURL string
	token      string
	userID     string

	http    *http.Client
	handler func(*SkypeMessage)

	// wsLock guards ws against the shutdown/reconnect window: Disconnect can
	// run while the listen goroutine is swapping the connection.
	wsLock sync.Mutex
	ws     *websocket.Conn

	stopOnce sync.Once
	stopChan chan struct{}
	log      zerolog.Logger
}

var _ RemoteNetwork = (*SkypeClient)(nil)
var _ ProfileSource = (*SkypeClient)(nil)

// NewSkypeClient creates a client for the configured gateway. userID is the
// bridge's own Skype identity, used to drop echoes of its own sends from the
// event stream.
func NewSkypeClient(gatewayURL, token, userID string, log zerolog.Logger) *SkypeClient {
	return &SkypeClient{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		token:      token,
		userID:     userID,
		http:       &http.Client{Timeout: 30 * time.Second},
		stopChan:   make(chan struct{}),
		log:        log.With().Str("component", "skype_client").Logger(),
	}
}

// OnMessage registers the handler for inbound messages. Must be called
// before Connect.
func (c *SkypeClient) OnMessage(fn func(*SkypeMessage)) {
	c.handler = fn
}

// Connect opens the event stream subscription and starts the listen loop.
func (c *SkypeClient) Connect(ctx context.Context) error {
	if err := c.dialEventStream(ctx); err != nil {
		return err
	}
	go c.listenEventStream()
	return nil
}

func (c *SkypeClient) dialEventStream(ctx context.Context) error {
	wsURL := httpToWS(c.gatewayURL) + "/v1/users/ME/endpoints/SELF/subscriptions/0/events"
	header := http.Header{}
	header.Set("Authentication", "skypetoken="+c.token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	c.wsLock.Lock()
	c.ws = conn
	c.wsLock.Unlock()
	c.log.Info().Str("ws_url", wsURL).Msg("Event stream connected")
	return nil
}

func (c *SkypeClient) conn() *websocket.Conn {
	c.wsLock.Lock()
	defer c.wsLock.Unlock()
	return c.ws
}

func (c *SkypeClient) listenEventStream() {
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		conn := c.conn()
		if conn == nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopChan:
				return
			default:
			}
			c.log.Warn().Err(err).Msg("Event stream closed, reconnecting")
			if err := c.dialEventStream(context.Background()); err != nil {
				c.log.Error().Err(err).Msg("Failed to reconnect event stream")
				return
			}
			continue
		}

		for _, msg := range c.parseEventFrame(data) {
			if c.handler != nil {
				c.handler(msg)
			}
		}
	}
}

// Disconnect closes the event stream and stops the listen loop. Safe to call
// more than once.
func (c *SkypeClient) Disconnect() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	c.wsLock.Lock()
	defer c.wsLock.Unlock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
}

// httpToWS converts an HTTP(S) URL to a WS(S) URL.
func httpToWS(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	if strings.HasPrefix(url, "http://") {
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

// Gateway wire structures. Only the fields the bridge reads are declared.
type eventFrame struct {
	EventMessages []struct {
		ResourceType string        `json:"resourceType"`
		Resource     eventResource `json:"resource"`
	} `json:"eventMessages"`
}

type eventResource struct {
	ID               string `json:"id"`
	ConversationLink string `json:"conversationLink"`
	From             string `json:"from"`
	MessageType      string `json:"messagetype"`
	Content          string `json:"content"`
	IMDisplayName    string `json:"imdisplayname"`
	ComposeTime      string `json:"composetime"`
}

// parseEventFrame extracts bridgeable messages from one event stream frame,
// dropping non-message resources and echoes of the bridge's own sends.
func (c *SkypeClient) parseEventFrame(data []byte) []*SkypeMessage {
	var frame eventFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.log.Warn().Err(err).Msg("Failed to parse event frame")
		return nil
	}

	var msgs []*SkypeMessage
	for _, evt := range frame.EventMessages {
		if evt.ResourceType != "NewMessage" {
			continue
		}
		res := evt.Resource
		if res.MessageType != "Text" && res.MessageType != "RichText" {
			continue
		}
		sender := lastPathSegment(res.From)
		if sender == "" || sender == c.userID {
			continue
		}
		conversation := lastPathSegment(res.ConversationLink)
		if conversation == "" {
			continue
		}

		ts := time.Now().UTC()
		if parsed, err := time.Parse(time.RFC3339, res.ComposeTime); err == nil {
			ts = parsed
		}

		msgs = append(msgs, &SkypeMessage{
			ID:                res.ID,
			ConversationID:    conversation,
			SenderID:          sender,
			SenderDisplayName: res.IMDisplayName,
			Body:              richTextToPlain(res.Content),
			Timestamp:         ts,
		})
	}
	return msgs
}

// lastPathSegment returns the final segment of a gateway resource link, e.g.
// ".../v1/users/ME/contacts/8:live:someone" -> "8:live:someone".
func lastPathSegment(link string) string {
	if link == "" {
		return ""
	}
	return link[strings.LastIndex(link, "/")+1:]
}

var richTextTag = regexp.MustCompile(`</?[a-z_]+[^>]*>`)

// richTextToPlain strips Skype's RichText markup (a small non-HTML tag set:
// ss, quote, legacyquote, e_m and friends) down to the plain text body.
func richTextToPlain(content string) string {
	return strings.TrimSpace(richTextTag.ReplaceAllString(content, ""))
}

type sendMessageRequest struct {
	ClientMessageID string `json:"clientmessageid"`
	Content         string `json:"content"`
	MessageType     string `json:"messagetype"`
	ContentType     string `json:"contenttype"`
	IMDisplayName   string `json:"imdisplayname,omitempty"`
}

// SendMessage posts a message into a Skype conversation. senderContext is
// carried as the displayed sender identity on the wire.
func (c *SkypeClient) SendMessage(ctx context.Context, conversationID, body, senderContext string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ClientMessageID: fmt.Sprintf("%d", time.Now().UnixMilli()),
		Content:         body,
		MessageType:     "RichText",
		ContentType:     "text",
		IMDisplayName:   senderContext,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/v1/users/ME/conversations/%s/messages", c.gatewayURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authentication", "skypetoken="+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway rejected message: %s", resp.Status)
	}
	return nil
}

type profileResponse struct {
	DisplayName string `json:"displayname"`
	FirstName   string `json:"firstname"`
	LastName    string `json:"lastname"`
}

// DisplayName fetches a Skype user's profile display name.
func (c *SkypeClient) DisplayName(ctx context.Context, remoteUserID string) (string, error) {
	url := fmt.Sprintf("%s/v1/users/%s/profile", c.gatewayURL, remoteUserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build profile request: %w", err)
	}
	req.Header.Set("Authentication", "skypetoken="+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile lookup failed: %s", resp.Status)
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", fmt.Errorf("failed to parse profile: %w", err)
	}
	if profile.DisplayName != "" {
		return profile.DisplayName, nil
	}
	name := strings.TrimSpace(profile.FirstName + " " + profile.LastName)
	if name == "" {
		return "", fmt.Errorf("profile for %s has no name", remoteUserID)
	}
	return name, nil
}
