// Package login produces authenticated cookie jars for the crawler. Two
// providers exist: FlowProvider drives X's onboarding task flow natively,
// ExecProvider shells out to an external login helper (typically a
// browser-based one) and reads the jar it writes.
package login

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	json "github.com/goccy/go-json"
	"github.com/pquerna/otp/totp"

	xsearch "github.com/xsearchkit/go-xsearch"
)

const apiURL = "https://api.twitter.com"

// defaultBearerToken is the well-known web-app bearer used by the
// onboarding flow endpoints.
const defaultBearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

const flowUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/145.0.0.0 Safari/537.36"

// initFlowPayload is the subtask_versions body for flow_name=login.
const initFlowPayload = `{"input_flow_data":{"flow_context":{"debug_overrides":{},"start_location":{"location":"splash_screen"}}},"subtask_versions":{"action_list":2,"alert_dialog":1,"app_download_cta":1,"check_logged_in_account":1,"choice_selection":3,"contacts_live_sync_permission_prompt":0,"cta":7,"email_verification":2,"end_flow":1,"enter_date":1,"enter_email":2,"enter_password":5,"enter_phone":2,"enter_recaptcha":1,"enter_text":5,"enter_username":2,"generic_urt":3,"in_app_notification":1,"interest_picker":3,"js_instrumentation":1,"menu_dialog":1,"notifications_permission_prompt":2,"open_account":2,"open_home_timeline":1,"open_link":1,"phone_verification":4,"privacy_options":1,"security_key":3,"select_avatar":4,"select_banner":2,"settings_list":7,"show_code":1,"sign_up":2,"sign_up_review":4,"tweet_selection_urt":1,"update_users":1,"upload_media":1,"user_recommendations_list":4,"user_recommendations_urt":1,"wait_spinner":3,"web_modal":1}}`

// flowHeaderOrder is the browser header order for the onboarding endpoints.
var flowHeaderOrder = []string{
	"authorization",
	"content-type",
	"x-guest-token",
	"x-twitter-active-user",
	"x-twitter-client-language",
	"referer",
	"origin",
	"user-agent",
	"accept",
	"accept-language",
}

// FlowProvider logs in through X's multi-step onboarding flow with a
// username, password, and optional TOTP secret for the 2FA challenge.
type FlowProvider struct {
	Username    string
	Password    string
	TOTPSecret  string
	BearerToken string
}

type flowResponse struct {
	FlowToken string `json:"flow_token"`
	Subtasks  []struct {
		SubtaskID string `json:"subtask_id"`
	} `json:"subtasks"`
}

// Login runs the flow and returns the captured session cookies.
func (p *FlowProvider) Login(ctx context.Context) ([]xsearch.Cookie, error) {
	if p.Username == "" || p.Password == "" {
		return nil, fmt.Errorf("flow login needs username and password")
	}
	slog.Info("logging in", slog.String("user", p.Username))

	bc, err := stealth.NewClient(stealth.WithHeaderOrder(flowHeaderOrder))
	if err != nil {
		return nil, fmt.Errorf("stealth client: %w", err)
	}

	guestToken, err := p.guestToken(bc)
	if err != nil {
		return nil, fmt.Errorf("get guest token: %w", err)
	}

	fr, err := p.initFlow(bc, guestToken)
	if err != nil {
		return nil, fmt.Errorf("init login flow: %w", err)
	}

	for round := 0; round < 10; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(fr.Subtasks) == 0 {
			break
		}

		subtaskID := fr.Subtasks[0].SubtaskID
		slog.Debug("login subtask", slog.String("user", p.Username), slog.String("subtask", subtaskID))

		switch subtaskID {
		case "LoginJsInstrumentationSubtask":
			payload := fmt.Sprintf(`{"flow_token":%q,"subtask_inputs":[{"subtask_id":"LoginJsInstrumentationSubtask","js_instrumentation":{"response":"{\"rf\":{\"a\":\"b\"},\"s\":\"s\"}","link":"next_link"}}]}`,
				fr.FlowToken)
			fr, err = p.submitStep(bc, guestToken, payload)

		case "LoginEnterUserIdentifierSSO":
			payload := fmt.Sprintf(`{"flow_token":%q,"subtask_inputs":[{"subtask_id":"LoginEnterUserIdentifierSSO","settings_list":{"setting_responses":[{"key":"user_identifier","response_data":{"text_data":{"result":%q}}}],"link":"next_link"}}]}`,
				fr.FlowToken, p.Username)
			fr, err = p.submitStep(bc, guestToken, payload)

		case "LoginEnterPassword":
			payload := fmt.Sprintf(`{"flow_token":%q,"subtask_inputs":[{"subtask_id":"LoginEnterPassword","enter_password":{"password":%q,"link":"next_link"}}]}`,
				fr.FlowToken, p.Password)
			fr, err = p.submitStep(bc, guestToken, payload)

		case "LoginTwoFactorAuthChallenge":
			if p.TOTPSecret == "" {
				return nil, fmt.Errorf("2FA required but no TOTP secret for %s", p.Username)
			}
			code, codeErr := totp.GenerateCode(p.TOTPSecret, time.Now())
			if codeErr != nil {
				return nil, fmt.Errorf("TOTP code generation failed for %s: %w", p.Username, codeErr)
			}
			slog.Info("submitting TOTP code", slog.String("user", p.Username))
			payload := fmt.Sprintf(`{"flow_token":%q,"subtask_inputs":[{"subtask_id":"LoginTwoFactorAuthChallenge","enter_text":{"text":%q,"link":"next_link"}}]}`,
				fr.FlowToken, code)
			fr, err = p.submitStep(bc, guestToken, payload)

		case "LoginEnterAlternateIdentifierSubtask":
			payload := fmt.Sprintf(`{"flow_token":%q,"subtask_inputs":[{"subtask_id":"LoginEnterAlternateIdentifierSubtask","enter_text":{"text":%q,"link":"next_link"}}]}`,
				fr.FlowToken, p.Username)
			fr, err = p.submitStep(bc, guestToken, payload)

		case "LoginSuccessSubtask", "AccountDuplicationCheck":
			slog.Debug("login flow complete", slog.String("user", p.Username), slog.String("terminal", subtaskID))
			return p.extractCookies(bc)

		case "DenyLoginSubtask":
			return nil, fmt.Errorf("login denied for %s (account may be locked or disabled)", p.Username)

		case "LoginArkoseChallenge", "LoginArkoseCaptcha", "LoginEnterRecaptcha":
			return nil, fmt.Errorf("CAPTCHA challenge during login for %s, use the browser login helper", p.Username)

		default:
			slog.Warn("unknown login subtask, skipping", slog.String("user", p.Username), slog.String("subtask", subtaskID))
			payload := fmt.Sprintf(`{"flow_token":%q,"subtask_inputs":[{"subtask_id":%q,"action_list":{"link":"next_link"}}]}`,
				fr.FlowToken, subtaskID)
			fr, err = p.submitStep(bc, guestToken, payload)
		}

		if err != nil {
			return nil, fmt.Errorf("login subtask %s for %s: %w", subtaskID, p.Username, err)
		}
	}

	return p.extractCookies(bc)
}

func (p *FlowProvider) bearer() string {
	if p.BearerToken != "" {
		return p.BearerToken
	}
	return defaultBearerToken
}

func (p *FlowProvider) guestToken(bc *stealth.BrowserClient) (string, error) {
	headers := map[string]string{
		"authorization": "Bearer " + p.bearer(),
		"content-type":  "application/json",
		"user-agent":    flowUserAgent,
	}
	body, _, status, err := bc.DoWithHeaderOrder("POST", apiURL+"/1.1/guest/activate.json", headers, nil, flowHeaderOrder)
	if err != nil {
		return "", err
	}
	if status != 200 {
		return "", fmt.Errorf("guest token: HTTP %d", status)
	}
	var resp struct {
		GuestToken string `json:"guest_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.GuestToken == "" {
		return "", fmt.Errorf("empty guest token in response")
	}
	return resp.GuestToken, nil
}

func (p *FlowProvider) flowHeaders(guestToken string) map[string]string {
	return map[string]string{
		"authorization":             "Bearer " + p.bearer(),
		"content-type":              "application/json",
		"x-guest-token":             guestToken,
		"x-twitter-active-user":     "yes",
		"x-twitter-client-language": "en",
		"user-agent":                flowUserAgent,
		"accept":                    "*/*",
		"accept-language":           "en-US,en;q=0.9",
		"referer":                   "https://x.com/",
		"origin":                    "https://x.com",
	}
}

func (p *FlowProvider) initFlow(bc *stealth.BrowserClient, guestToken string) (*flowResponse, error) {
	body, _, status, err := bc.DoWithHeaderOrder("POST",
		apiURL+"/1.1/onboarding/task.json?flow_name=login",
		p.flowHeaders(guestToken),
		strings.NewReader(initFlowPayload),
		flowHeaderOrder,
	)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("init flow: HTTP %d: %s", status, clip(body, 300))
	}
	return parseFlowResponse(body)
}

func (p *FlowProvider) submitStep(bc *stealth.BrowserClient, guestToken, payload string) (*flowResponse, error) {
	body, _, status, err := bc.DoWithHeaderOrder("POST",
		apiURL+"/1.1/onboarding/task.json",
		p.flowHeaders(guestToken),
		strings.NewReader(payload),
		flowHeaderOrder,
	)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("flow step HTTP %d: %s", status, clip(body, 300))
	}
	return parseFlowResponse(body)
}

func parseFlowResponse(body []byte) (*flowResponse, error) {
	var fr flowResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, fmt.Errorf("parse flow response: %w", err)
	}
	if fr.FlowToken == "" {
		return nil, fmt.Errorf("empty flow_token in response: %s", clip(body, 200))
	}
	return &fr, nil
}

// extractCookies reads the session cookies out of the flow client. A
// missing ct0 gets a generated one; the server rotates it on first use.
func (p *FlowProvider) extractCookies(bc *stealth.BrowserClient) ([]xsearch.Cookie, error) {
	authToken := bc.GetCookieValue(apiURL, "auth_token")
	if authToken == "" {
		authToken = bc.GetCookieValue("https://x.com", "auth_token")
	}
	ct0 := bc.GetCookieValue(apiURL, "ct0")
	if ct0 == "" {
		ct0 = bc.GetCookieValue("https://x.com", "ct0")
	}
	if authToken == "" {
		return nil, fmt.Errorf("login completed but no auth_token in cookies for %s", p.Username)
	}
	if ct0 == "" {
		ct0 = generateCT0()
	}

	slog.Info("login successful", slog.String("user", p.Username))
	return []xsearch.Cookie{
		{Name: "auth_token", Value: authToken, Domain: ".x.com", Path: "/"},
		{Name: "ct0", Value: ct0, Domain: ".x.com", Path: "/"},
	}, nil
}

// generateCT0 generates a random 32-byte hex string for use as a ct0 CSRF
// token.
func generateCT0() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "0000000000000000000000000000000000000000000000000000000000000000"
	}
	return hex.EncodeToString(b)
}

func clip(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
