package notifier

import (
	"bytes"
	"fmt"
	"html/template"
)

// lateReminderSubject は出勤打刻リマインドの件名（固定）。
const lateReminderSubject = "【勤怠】出勤打刻のお願い"

// lateReminderTemplate は出勤打刻リマインドの本文テンプレート。
// html/templateの自動エスケープにより従業員名はHTMLとして解釈されない。
var lateReminderTemplate = template.Must(template.New("late_reminder").Parse(`<p>{{.Name}} 様</p>
<p>本日の出勤打刻が確認できていません。</p>
<p>出勤予定時刻: <strong>{{.ExpectedClock}}</strong></p>
<p>出勤済みの場合は、打刻を忘れていないかご確認ください。</p>
<p><a href="{{.ClockInURL}}">打刻画面を開く</a></p>
`))

// reminderData はリマインド本文テンプレートへの埋め込みデータ。
type reminderData struct {
	Name          string
	ExpectedClock string
	ClockInURL    string
}

// BuildLateReminder は出勤打刻リマインドの件名とHTML本文を構築する。
// expectedClockは "09:00" 形式の期待出勤時刻文字列。
func BuildLateReminder(name, expectedClock, clockInURL string) (string, string, error) {
	var buf bytes.Buffer
	err := lateReminderTemplate.Execute(&buf, reminderData{
		Name:          name,
		ExpectedClock: expectedClock,
		ClockInURL:    clockInURL,
	})
	if err != nil {
		return "", "", fmt.Errorf("リマインド本文の構築に失敗しました: %w", err)
	}
	return lateReminderSubject, buf.String(), nil
}
