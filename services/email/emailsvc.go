// Package emailsvc provides the email services: SendGrid in production, the console otherwise.
package emailsvc

import "github.com/trezcool/fourmis/core"

// New picks the email service for the environment.
func New(conf *core.Config, logger core.Logger) core.EmailService {
	switch {
	case conf.TestMode:
		return NewConsoleServiceMock(conf, logger)
	case conf.Debug || conf.SendgridApiKey == "":
		return NewConsoleService(conf, logger)
	default:
		return NewSendgridService(conf, logger)
	}
}
