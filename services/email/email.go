package emailsvc

import "github.com/trezcool/darasa/core"

// NewService returns the sendgrid service when a key is configured, the console service otherwise.
func NewService(conf *core.Config, logger core.Logger) core.EmailService {
	switch {
	case conf.TestMode:
		return NewConsoleServiceMock(conf, logger)
	case conf.Debug || conf.SendgridAPIKey == "":
		return NewConsoleService(conf, logger)
	default:
		return NewSendgridService(conf, logger)
	}
}
