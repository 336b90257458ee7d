// Package wechat exchanges mini-program login codes for WeChat sessions.
package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const defaultBaseURL = "https://api.weixin.qq.com"

// Session is the identity WeChat returns for a login code.
type Session struct {
	OpenID     string `json:"openid"`
	UnionID    string `json:"unionid"`
	SessionKey string `json:"session_key"`

	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Client calls the WeChat auth API. The zero http.Client default transport
// is expected to be telemetry-wrapped by the caller's bootstrap.
type Client struct {
	appID      string
	secret     string
	baseURL    string
	httpClient *http.Client
}

func New(appID, secret string) *Client {
	return &Client{
		appID:      appID,
		secret:     secret,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
}

// Exchange trades a wx.login code for the user's WeChat session. Codes are
// single use; WeChat rejects replays with a business error code.
func (c *Client) Exchange(ctx context.Context, code string) (Session, error) {
	query := url.Values{
		"appid":      {c.appID},
		"secret":     {c.secret},
		"js_code":    {code},
		"grant_type": {"authorization_code"},
	}
	endpoint := c.baseURL + "/sns/jscode2session?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Session{}, fmt.Errorf("building session exchange request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("exchanging login code: %w", err)
	}
	defer resp.Body.Close()

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return Session{}, fmt.Errorf("decoding session response: %w", err)
	}

	if session.ErrCode != 0 {
		return Session{}, fmt.Errorf("wechat rejected login code: %d %s", session.ErrCode, session.ErrMsg)
	}
	if session.OpenID == "" {
		return Session{}, fmt.Errorf("wechat session response missing openid")
	}

	return session, nil
}
