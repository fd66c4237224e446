package chatkit

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core/chat"
	"github.com/leadergroupsaudi/chatkit-go/pkg/protocol"
)

// WidgetSettings is the per-company widget configuration served by the
// backend.
type WidgetSettings struct {
	CompanyID      string `json:"company_id"`
	AgentID        string `json:"agent_id"`
	AgentName      string `json:"agent_name"`
	WelcomeMessage string `json:"welcome_message"`
	PrimaryColor   string `json:"primary_color"`
	VoiceEnabled   bool   `json:"voice_enabled"`
	VoiceID        string `json:"voice_id"`
	STTProvider    string `json:"stt_provider"`
}

// VideoCallToken is the join credential for an accepted call.
type VideoCallToken struct {
	Token      string `json:"token"`
	RoomName   string `json:"room_name"`
	LivekitURL string `json:"livekit_url"`
}

// UploadedFile describes a stored attachment.
type UploadedFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Location is a coarse visitor locale used to pick the widget language.
type Location struct {
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	City        string `json:"city"`
}

type restClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func (r *restClient) get(ctx context.Context, path string, out any) error {
	return r.do(ctx, http.MethodGet, path, nil, out)
}

func (r *restClient) post(ctx context.Context, path string, body, out any) error {
	return r.do(ctx, http.MethodPost, path, body, out)
}

func (r *restClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return core.NewInvalidRequestError("encode request body: " + err.Error())
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return core.NewInvalidRequestError("build request: " + err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return core.NewTransportError(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return core.NewAPIError(
			fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(raw)),
			fmt.Sprintf("http_%d", resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.NewProtocolError("decode response for "+path, err)
	}
	return nil
}

// WidgetSettingsFor fetches the widget configuration for a company.
func (c *Client) WidgetSettingsFor(ctx context.Context, companyID string) (*WidgetSettings, error) {
	var settings WidgetSettings
	if err := c.rest.get(ctx, "/widget-settings/"+url.PathEscape(companyID), &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// ConversationHistory fetches the stored transcript for a session, oldest
// first.
func (c *Client) ConversationHistory(ctx context.Context, agentID, sessionID string) ([]chat.Message, error) {
	var frames []protocol.ServerFrame
	path := "/conversations/" + url.PathEscape(agentID) + "/" + url.PathEscape(sessionID)
	if err := c.rest.get(ctx, path, &frames); err != nil {
		return nil, err
	}
	msgs := make([]chat.Message, 0, len(frames))
	for _, f := range frames {
		msgs = append(msgs, chat.FromFrame(protocol.MessageFrame{ServerFrame: f}))
	}
	return msgs, nil
}

// RequestVideoCallToken asks the backend to mint a call join credential.
func (c *Client) RequestVideoCallToken(ctx context.Context, companyID, sessionID string) (*VideoCallToken, error) {
	var token VideoCallToken
	body := map[string]string{"company_id": companyID, "session_id": sessionID}
	if err := c.rest.post(ctx, "/video-call/token", body, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// UploadFile stores an attachment. The payload travels as a data URL, the
// same shape the composer produces from a file picker.
func (c *Client) UploadFile(ctx context.Context, name, contentType string, data []byte) (*UploadedFile, error) {
	if len(data) == 0 {
		return nil, core.NewInvalidRequestError("upload is empty")
	}
	body := map[string]string{
		"id":   uuid.NewString(),
		"name": name,
		"data": "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}
	var uploaded UploadedFile
	if err := c.rest.post(ctx, "/files/upload", body, &uploaded); err != nil {
		return nil, err
	}
	if uploaded.Size == 0 {
		uploaded.Size = int64(len(data))
	}
	return &uploaded, nil
}

// Locate asks the backend for the visitor's coarse location. Failures fall
// back to a zero Location; the widget only uses it for language defaults.
func (c *Client) Locate(ctx context.Context) Location {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var loc Location
	if err := c.rest.get(ctx, "/locate", &loc); err != nil {
		c.logger.Warn("locate failed, using defaults", "error", err)
		return Location{}
	}
	return loc
}
