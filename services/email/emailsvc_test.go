package emailsvc

import (
	"io"
	"log"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fourmis/core"
	logsvc "github.com/trezcool/fourmis/services/logger"
)

func newTestConfig() *core.Config {
	return &core.Config{
		TestMode:         true,
		AppName:          "Fourmis",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Fourmis", Address: "noreply@fourmis.test"},
	}
}

func newTestLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

func TestNew(t *testing.T) {
	conf := newTestConfig()
	logger := newTestLogger(conf)

	assert.IsType(t, &ConsoleServiceMock{}, New(conf, logger))

	conf.TestMode = false
	assert.IsType(t, &consoleService{}, New(conf, logger), "no api key")

	conf.SendgridApiKey = "key"
	assert.IsType(t, &SendgridService{}, New(conf, logger))

	conf.Debug = true
	assert.IsType(t, &consoleService{}, New(conf, logger))
}

func TestConsoleServiceMock(t *testing.T) {
	conf := newTestConfig()
	logger := newTestLogger(conf)
	core.ParseEmailTemplates(logger)
	svc := NewConsoleServiceMock(conf, logger)

	to := []mail.Address{{Name: "Jean", Address: "jean@mail.fr"}}
	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "Plain", BodyStr: "Hello"},
		&core.EmailMessage{To: to, Subject: "Missing", TemplateName: "does_not_exist"},
		&core.EmailMessage{Subject: "Nobody", BodyStr: "Hello"},
		&core.EmailMessage{
			To: to, Subject: "Templated", TemplateName: "invitation",
			TemplateData: map[string]string{"Name": "Jean", "OrganizationName": "Les Fourmis", "UID": "uid", "Token": "tok"},
		},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2, "unrenderable and recipient-less messages are dropped")
	assert.Equal(t, "Hello", sent[0].TextContent)
	assert.Contains(t, sent[1].TextContent, "/set-password/uid/tok")
	assert.Contains(t, sent[1].HTMLContent, "Les Fourmis")

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestSendgridService_prepare(t *testing.T) {
	conf := newTestConfig()
	svc := NewSendgridService(conf, newTestLogger(conf))

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Jean", Address: "jean@mail.fr"}},
		Cc:          []mail.Address{{Address: "cc@mail.fr"}},
		Subject:     "Hi",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
	})
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Fourmis] Hi", p.Subject)
	assert.Equal(t, "jean@mail.fr", p.To[0].Address)
	assert.Equal(t, "cc@mail.fr", p.CC[0].Address)
	assert.Equal(t, "noreply@fourmis.test", m.From.Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
