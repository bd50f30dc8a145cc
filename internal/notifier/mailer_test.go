package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// plainClientFactory はテスト用にガードなしのHTTPクライアントを返す。
// httptestサーバー（ループバックアドレス）への接続を許可するために使用する。
type plainClientFactory struct{}

func (plainClientFactory) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func TestHTTPMailer_Send_Success(t *testing.T) {
	var gotReq gatewayRequest
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("リクエストボディのデコードに失敗: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"msg-abc123"}`))
	}))
	defer server.Close()

	mailer := NewHTTPMailer(plainClientFactory{}, server.URL, "kintai@example.com", 5*time.Second)

	providerID, err := mailer.Send(context.Background(), Message{
		To:      "taro@example.com",
		Subject: "【勤怠】出勤打刻のお願い",
		HTML:    "<p>本文</p>",
		Text:    "本文",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if providerID != "msg-abc123" {
		t.Errorf("providerID = %q, want msg-abc123", providerID)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotReq.From != "kintai@example.com" {
		t.Errorf("from = %q, want kintai@example.com", gotReq.From)
	}
	if gotReq.To != "taro@example.com" {
		t.Errorf("to = %q, want taro@example.com", gotReq.To)
	}
	if gotReq.HTML != "<p>本文</p>" || gotReq.Text != "本文" {
		t.Errorf("本文が一致しない: html=%q text=%q", gotReq.HTML, gotReq.Text)
	}
}

func TestHTTPMailer_Send_ServerError_ReturnsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("gateway overloaded"))
	}))
	defer server.Close()

	mailer := NewHTTPMailer(plainClientFactory{}, server.URL, "kintai@example.com", 5*time.Second)

	_, err := mailer.Send(context.Background(), Message{To: "taro@example.com"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("GatewayErrorでないエラーが返った: %v", err)
	}
	if gwErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", gwErr.StatusCode)
	}
	if gwErr.Body != "gateway overloaded" {
		t.Errorf("Body = %q, want gateway overloaded", gwErr.Body)
	}
}

func TestHTTPMailer_Send_BadRequest_ReturnsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid recipient"}`))
	}))
	defer server.Close()

	mailer := NewHTTPMailer(plainClientFactory{}, server.URL, "kintai@example.com", 5*time.Second)

	_, err := mailer.Send(context.Background(), Message{To: "bad"})

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("GatewayErrorでないエラーが返った: %v", err)
	}
	if gwErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", gwErr.StatusCode)
	}
}

func TestHTTPMailer_Send_UnparseableSuccessBody_ReturnsEmptyID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	mailer := NewHTTPMailer(plainClientFactory{}, server.URL, "kintai@example.com", 5*time.Second)

	// 2xxだがJSONでない応答: プロバイダIDなしの成功として扱う
	providerID, err := mailer.Send(context.Background(), Message{To: "taro@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if providerID != "" {
		t.Errorf("providerID = %q, want empty", providerID)
	}
}

func TestHTTPMailer_Send_ConnectionRefused_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	mailer := NewHTTPMailer(plainClientFactory{}, url, "kintai@example.com", 2*time.Second)

	_, err := mailer.Send(context.Background(), Message{To: "taro@example.com"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// 接続エラーはGatewayErrorではない（呼び出し側で再試行可能として扱われる）
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		t.Errorf("接続エラーがGatewayErrorとして返った: %v", err)
	}
}
