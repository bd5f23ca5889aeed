package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func TestBuildMessage(t *testing.T) {
	tests := []struct {
		body    string
		subject string
	}{
		{
			`{"type": "create_user", "to": "zw@example.com", "data": {"fullName": "张伟", "username": "zhangw1", "password": "secret"}}`,
			"排课系统 - 账户信息",
		},
		{
			`{"type": "timetable_completed", "to": "zw@example.com", "data": {"runID": 3, "name": "2024 秋季学期", "fitness": 0.98, "generations": 120}}`,
			"排课系统 - 排课完成",
		},
		{
			`{"type": "timetable_failed", "to": "zw@example.com", "data": {"runID": 3, "name": "2024 秋季学期", "reason": "超时"}}`,
			"排课系统 - 排课失败",
		},
	}

	for _, tt := range tests {
		m, err := buildMessage("noreply@example.com", []byte(tt.body))
		require.NoError(t, err)
		assert.Equal(t, []string{tt.subject}, m.GetGenHeader(mail.HeaderSubject))
	}
}

func TestBuildMessageRejectsBadInput(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"type": "reset_password", "to": "zw@example.com", "data": {}}`,
		`{"type": "create_user", "to": "not an address", "data": {}}`,
		`{"type": "timetable_failed", "to": "zw@example.com", "data": "oops"}`,
	}

	for _, body := range bodies {
		_, err := buildMessage("noreply@example.com", []byte(body))
		assert.Error(t, err, body)
	}
}
