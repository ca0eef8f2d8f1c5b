package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// HTTPClient implements API against the studygalaxy HTTP server.
type HTTPClient struct {
	baseURL string // e.g. http://localhost:8080/api
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
}

var _ API = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 3 * time.Minute},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (c *HTTPClient) ListChatbots(ctx context.Context) ([]models.ChatBot, error) {
	var out []models.ChatBot
	err := c.do(ctx, http.MethodGet, "/chatbots", nil, &out)
	return out, err
}

func (c *HTTPClient) CreateChatbot(ctx context.Context, name, description string) (*models.ChatBot, *models.XPAward, error) {
	var out struct {
		Bot   *models.ChatBot `json:"bot"`
		Award *models.XPAward `json:"award"`
	}
	body := map[string]string{"name": name, "description": description}
	if err := c.do(ctx, http.MethodPost, "/chatbots", body, &out); err != nil {
		return nil, nil, err
	}
	return out.Bot, out.Award, nil
}

func (c *HTTPClient) UpdateChatbot(ctx context.Context, id string, name, description *string) (*models.ChatBot, error) {
	var out models.ChatBot
	body := map[string]*string{"name": name, "description": description}
	if err := c.do(ctx, http.MethodPatch, "/chatbots/"+url.PathEscape(id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateActivity(ctx context.Context, id string, activity float64) (*models.ChatBot, error) {
	var out models.ChatBot
	body := map[string]float64{"activity": activity}
	if err := c.do(ctx, http.MethodPut, "/chatbots/"+url.PathEscape(id)+"/activity", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteChatbot(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/chatbots/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) AwardXP(ctx context.Context, id string, action leveling.Action) (*models.XPAward, error) {
	var out models.XPAward
	body := map[string]string{"action": string(action)}
	if err := c.do(ctx, http.MethodPost, "/chatbots/"+url.PathEscape(id)+"/xp", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Chat(ctx context.Context, id, message string) (*Reply, error) {
	return c.study(ctx, id, "chat", map[string]any{"message": message})
}

func (c *HTTPClient) Summarize(ctx context.Context, id string) (*Reply, error) {
	return c.study(ctx, id, "summarize", nil)
}

func (c *HTTPClient) ShortNotes(ctx context.Context, id string) (*Reply, error) {
	return c.study(ctx, id, "short-notes", nil)
}

func (c *HTTPClient) Quiz(ctx context.Context, id string, questionCount int) (*Reply, error) {
	var body map[string]any
	if questionCount > 0 {
		body = map[string]any{"questionCount": questionCount}
	}
	return c.study(ctx, id, "quiz", body)
}

func (c *HTTPClient) study(ctx context.Context, id, command string, body any) (*Reply, error) {
	var out Reply
	if err := c.do(ctx, http.MethodPost, "/chatbots/"+url.PathEscape(id)+"/"+command, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadPDF streams body as the multipart "file" field.
func (c *HTTPClient) UploadPDF(ctx context.Context, id, filename string, body io.Reader) (*Upload, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		h.Set("Content-Type", "application/pdf")
		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/chatbots/"+url.PathEscape(id)+"/documents", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out Upload
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DialFeed opens the WebSocket change feed, authenticating with the token.
func (c *HTTPClient) DialFeed(ctx context.Context) (FeedConn, error) {
	u, err := url.Parse(c.baseURL + "/feed")
	if err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}
	return conn, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(buf)
	}
	req, err := c.newRequest(ctx, method, path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *HTTPClient) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
