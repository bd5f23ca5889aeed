package main

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

// 队列中的邮件消息，Data 按 Type 解析为对应的结构
type queuedMail struct {
	Type string          `json:"type"`
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

type mailKind struct {
	template string
	subject  string
	data     func() any
}

var mailKinds = map[string]mailKind{
	"create_user": {
		template: "new_account_email.html",
		subject:  "排课系统 - 账户信息",
		data:     func() any { return &domain.CreateUserMailData{} },
	},
	"timetable_completed": {
		template: "timetable_completed_email.html",
		subject:  "排课系统 - 排课完成",
		data:     func() any { return &domain.TimetableCompletedMailData{} },
	},
	"timetable_failed": {
		template: "timetable_failed_email.html",
		subject:  "排课系统 - 排课失败",
		data:     func() any { return &domain.TimetableFailedMailData{} },
	},
}

// buildMessage 根据队列中的消息构建邮件，返回的错误都是不可重试的
func buildMessage(from string, body []byte) (*mail.Msg, error) {
	queued := queuedMail{}
	if err := json.Unmarshal(body, &queued); err != nil {
		return nil, fmt.Errorf("邮件信息反序列化失败: %w", err)
	}

	kind, ok := mailKinds[queued.Type]
	if !ok {
		return nil, fmt.Errorf("不支持的邮件类型 %q", queued.Type)
	}

	data := kind.data()
	if err := json.Unmarshal(queued.Data, data); err != nil {
		return nil, fmt.Errorf("邮件数据反序列化失败: %w", err)
	}

	tmpl, err := template.ParseFS(templateFS, "templates/"+kind.template)
	if err != nil {
		return nil, fmt.Errorf("无法解析邮件模板: %w", err)
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := m.To(queued.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}
	if err := m.SetBodyHTMLTemplate(tmpl, data); err != nil {
		return nil, fmt.Errorf("无法设置邮件正文: %w", err)
	}
	m.Subject(kind.subject)

	return m, nil
}
