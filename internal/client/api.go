package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/domain"
	"driftchat/internal/services"
	"driftchat/internal/transport/httpdto"
	drift_errors "driftchat/pkg/errors"
)

// API is the HTTP client for the chat backend. It holds the token pair and
// performs one silent refresh-and-retry when an access token expires mid
// request.
type API struct {
	baseURL string
	httpc   *http.Client

	mu      sync.Mutex
	access  string
	refresh string
}

func NewAPI(baseURL string) *API {
	return &API{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *API) SetTokens(access, refresh string) {
	a.mu.Lock()
	a.access = access
	a.refresh = refresh
	a.mu.Unlock()
}

func (a *API) AccessToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.access
}

func (a *API) Register(ctx context.Context, username, email, password string) (services.AuthResponse, error) {
	var resp services.AuthResponse
	err := a.do(ctx, http.MethodPost, "/api/auth/register", httpdto.RegisterRequest{
		Username: username, Email: email, Password: password,
	}, &resp)
	if err != nil {
		return services.AuthResponse{}, err
	}
	a.SetTokens(resp.AccessToken, resp.RefreshToken)
	return resp, nil
}

func (a *API) Login(ctx context.Context, email, password string) (services.AuthResponse, error) {
	var resp services.AuthResponse
	err := a.do(ctx, http.MethodPost, "/api/auth/login", httpdto.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return services.AuthResponse{}, err
	}
	a.SetTokens(resp.AccessToken, resp.RefreshToken)
	return resp, nil
}

func (a *API) Users(ctx context.Context) ([]services.UserSummary, error) {
	var out struct {
		Users []services.UserSummary `json:"users"`
	}
	err := a.do(ctx, http.MethodGet, "/api/users", nil, &out)
	return out.Users, err
}

func (a *API) OpenDirect(ctx context.Context, otherID uuid.UUID) (domain.Conversation, error) {
	var conv domain.Conversation
	err := a.do(ctx, http.MethodPost, "/api/conversations/find-or-create",
		httpdto.OpenDirectRequest{UserID: otherID.String()}, &conv)
	return conv, err
}

func (a *API) Conversations(ctx context.Context) ([]domain.Conversation, error) {
	var out struct {
		Conversations []domain.Conversation `json:"conversations"`
	}
	err := a.do(ctx, http.MethodGet, "/api/conversations", nil, &out)
	return out.Conversations, err
}

func (a *API) Messages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	err := a.do(ctx, http.MethodGet, "/api/messages/"+conversationID.String(), nil, &out)
	return out.Messages, err
}

func (a *API) SendMessage(ctx context.Context, conversationID uuid.UUID, req httpdto.SendMessageRequest) (domain.Message, error) {
	req.ConversationID = conversationID.String()
	var msg domain.Message
	err := a.do(ctx, http.MethodPost, "/api/messages/send/"+conversationID.String(), req, &msg)
	return msg, err
}

func (a *API) MarkSeen(ctx context.Context, messageID uuid.UUID) error {
	return a.do(ctx, http.MethodPatch, "/api/messages/"+messageID.String()+"/seen", nil, nil)
}

func (a *API) StartCall(ctx context.Context, receiverID uuid.UUID, callType domain.CallType) (domain.CallSession, error) {
	var session domain.CallSession
	err := a.do(ctx, http.MethodPost, "/api/calls/start",
		httpdto.StartCallRequest{ReceiverID: receiverID.String(), CallType: string(callType)}, &session)
	return session, err
}

func (a *API) AcceptCall(ctx context.Context) (domain.CallSession, error) {
	var session domain.CallSession
	err := a.do(ctx, http.MethodPost, "/api/calls/accept", nil, &session)
	return session, err
}

func (a *API) DeclineCall(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/calls/decline", nil, nil)
}

func (a *API) Hangup(ctx context.Context, receiverID uuid.UUID) error {
	return a.do(ctx, http.MethodPost, "/api/calls/hangup",
		httpdto.HangupRequest{ReceiverID: receiverID.String()}, nil)
}

func (a *API) LogCall(ctx context.Context, req httpdto.LogCallRequest) error {
	return a.do(ctx, http.MethodPost, "/api/callhistory/log", req, nil)
}

func (a *API) CallHistory(ctx context.Context) ([]domain.CallRecord, error) {
	var out struct {
		Calls []domain.CallRecord `json:"calls"`
	}
	err := a.do(ctx, http.MethodGet, "/api/callhistory", nil, &out)
	return out.Calls, err
}

func (a *API) StartTyping(ctx context.Context, recipientID uuid.UUID) error {
	return a.do(ctx, http.MethodPost, "/api/typing/start",
		httpdto.TypingRequest{RecipientID: recipientID.String()}, nil)
}

func (a *API) StopTyping(ctx context.Context, recipientID uuid.UUID) error {
	return a.do(ctx, http.MethodPost, "/api/typing/stop",
		httpdto.TypingRequest{RecipientID: recipientID.String()}, nil)
}

func (a *API) PresignUpload(ctx context.Context, filename, contentType string, sizeBytes int64) (services.UploadTicket, error) {
	var ticket services.UploadTicket
	err := a.do(ctx, http.MethodPost, "/api/upload",
		httpdto.PresignUploadRequest{Filename: filename, ContentType: contentType, SizeBytes: sizeBytes}, &ticket)
	return ticket, err
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	status, err := a.once(ctx, method, path, body, out)
	if err != nil {
		return err
	}
	if status != http.StatusUnauthorized {
		return nil
	}

	// One silent refresh, then one retry. A second 401 surfaces.
	if err := a.refreshTokens(ctx); err != nil {
		return err
	}
	status, err = a.once(ctx, method, path, body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return drift_errors.ErrUnauthorized
	}
	return nil
}

// once performs a single request. Non-2xx responses other than 401 are
// turned into errors here; a 401 is reported via the status so the caller
// can refresh.
func (a *API) once(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, nil
	}

	var envelope httpdto.Response[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Success {
		return resp.StatusCode, fmt.Errorf("%s %s: %s (%s)", method, path, envelope.Error, envelope.Code)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode data: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (a *API) refreshTokens(ctx context.Context) error {
	a.mu.Lock()
	refresh := a.refresh
	a.mu.Unlock()
	if refresh == "" {
		return drift_errors.ErrUnauthorized
	}

	var resp services.AuthResponse
	status, err := a.once(ctx, http.MethodPost, "/api/auth/refresh", httpdto.RefreshRequest{RefreshToken: refresh}, &resp)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return drift_errors.ErrAuthExpired
	}
	a.SetTokens(resp.AccessToken, resp.RefreshToken)
	return nil
}
