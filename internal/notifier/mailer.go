package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxGatewayResponseSize はゲートウェイ応答ボディの読み取り上限（64KB）。
const maxGatewayResponseSize = 64 * 1024

// Message はメールゲートウェイへ送信する1通のメッセージ。
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer はメール送信のインターフェース。
type Mailer interface {
	// Send はメッセージを送信し、ゲートウェイが発行したプロバイダIDを返す。
	Send(ctx context.Context, msg Message) (string, error)
}

// GatewayError はメールゲートウェイがエラー応答を返した場合のエラー。
// StatusCodeにより再試行可否を分類できる。
type GatewayError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *GatewayError) Error() string {
	return fmt.Sprintf("mail gateway returned status %d: %s", e.StatusCode, e.Body)
}

// EgressClientFactory はSSRF防止機能付きHTTPクライアントの生成インターフェース。
// security.EgressGuardServiceの部分集合として定義する。
type EgressClientFactory interface {
	NewSafeClient(timeout time.Duration) *http.Client
}

// HTTPMailer はHTTP APIベースのメールゲートウェイクライアント。
// JSONボディをPOSTし、2xx応答のプロバイダIDを返す。
type HTTPMailer struct {
	client     *http.Client
	gatewayURL string
	from       string
}

// NewHTTPMailer はHTTPMailerを生成する。
// egress guardのSSRF防止機能付きクライアントを送信に使用する。
func NewHTTPMailer(guard EgressClientFactory, gatewayURL, from string, timeout time.Duration) *HTTPMailer {
	return &HTTPMailer{
		client:     guard.NewSafeClient(timeout),
		gatewayURL: gatewayURL,
		from:       from,
	}
}

// gatewayRequest はゲートウェイAPIのリクエストボディ。
type gatewayRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

// gatewayResponse はゲートウェイAPIの成功レスポンスボディ。
type gatewayResponse struct {
	ID string `json:"id"`
}

// Send はメッセージをゲートウェイへ送信する。
// 2xx以外の応答はGatewayErrorとして返し、呼び出し側でステータスコードにより
// 再試行可否を分類する。
func (m *HTTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	body, err := json.Marshal(gatewayRequest{
		From:    m.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Kintai/1.0 Attendance Reminder")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("メールゲートウェイへの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayResponseSize))
	if err != nil {
		return "", fmt.Errorf("ゲートウェイ応答の読み取りに失敗しました: %w", err)
	}

	if ClassifyHTTPStatus(resp.StatusCode) != SendOutcomeOK {
		return "", &GatewayError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var gwResp gatewayResponse
	if err := json.Unmarshal(respBody, &gwResp); err != nil {
		// プロバイダIDが取れなくても送信自体は成功している
		return "", nil
	}

	return gwResp.ID, nil
}

// compile-time interface check
var _ Mailer = (*HTTPMailer)(nil)
