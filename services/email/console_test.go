package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	logsvc "github.com/trezcool/ratiba/services/logger"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(new(bytes.Buffer), conf)
	core.ParseEmailTemplates(logger, conf)
	ClearSentMessages()

	svc := NewConsoleServiceMock(logger, conf)
	withAttachment := &core.EmailMessage{
		To:      []mail.Address{{Name: "Ada", Address: "ada@test.test"}},
		Subject: "invite",
		BodyStr: "see attached",
	}
	require.NoError(t, withAttachment.Attach(strings.NewReader("BEGIN:VCALENDAR"), "coaching.ics", "text/calendar"))

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Ada", Address: "ada@test.test"}},
			Subject:      "Password Reset",
			TemplateName: "password_reset",
			TemplateData: map[string]string{"Name": "Ada", "UID": "uid", "Token": "tok"},
		},
		withAttachment,
		&core.EmailMessage{Subject: "no recipient", BodyStr: "dropped"},
	)

	sent := LastSentMessages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].TextContent, "Ada")
	assert.Contains(t, sent[0].HTMLContent, "tok")
	assert.Equal(t, "see attached", sent[1].TextContent)
	require.Len(t, sent[1].Attachments, 1)
	assert.Equal(t, "text/calendar", sent[1].Attachments[0].ContentType)
}

func TestConsoleService_Output(t *testing.T) {
	conf := core.NewTestConfig()
	out := new(bytes.Buffer)
	svc := consoleService{defaultFromEmail: conf.DefaultFromEmail, subjPrefix: "[Ratiba] ", out: out}

	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "ada@test.test"}},
		Subject:     "Hello",
		TextContent: "plain body",
	}
	require.NoError(t, svc.send(msg))
	assert.Contains(t, out.String(), "Subject: [Ratiba] Hello")
	assert.Contains(t, out.String(), "plain body")
	assert.NotContains(t, out.String(), "CC:")
}
