package notifier

import "time"

// SendOutcome はメールゲートウェイ応答に基づく送信結果の分類。
type SendOutcome int

const (
	// SendOutcomeOK は送信成功（2xx）。
	SendOutcomeOK SendOutcome = iota
	// SendOutcomeRetry は再試行が必要なステータス（408/429/5xx、接続エラー）。
	SendOutcomeRetry
	// SendOutcomeStop は再試行しても回復しないステータス（その他の4xx）。
	SendOutcomeStop
)

const (
	// initialRetryDelay は指数バックオフの初回遅延（5分）。
	initialRetryDelay = 5 * time.Minute
	// maxRetryDelay は指数バックオフの最大遅延（1時間）。
	maxRetryDelay = time.Hour
)

// ClassifyHTTPStatus はゲートウェイのHTTPステータスコードを送信結果に分類する。
func ClassifyHTTPStatus(statusCode int) SendOutcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return SendOutcomeOK
	case statusCode == 408 || statusCode == 429:
		return SendOutcomeRetry
	case statusCode >= 500:
		return SendOutcomeRetry
	default:
		return SendOutcomeStop
	}
}

// CalculateBackoff は試行回数に基づいて指数バックオフ遅延を計算する。
// 初回5分、2倍ずつ増加、最大1時間。
// attemptsは完了済みの試行回数（1回目の失敗後は1）。
func CalculateBackoff(attempts int) time.Duration {
	delay := initialRetryDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay > maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
