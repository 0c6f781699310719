package tests

import (
	"testing"

	"github.com/jmoiron/sqlx"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/apps/shared"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
	appfs "github.com/trezcool/darasa/fs"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	metricsvc "github.com/trezcool/darasa/services/metrics"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
	testutil "github.com/trezcool/darasa/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	conf       *core.Config
	db         *sqlx.DB
	app        *shared.App
	usrRepo    user.Repository
	courseRepo course.Repository
}

func setup(t *testing.T) *testApp {
	conf := testutil.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf), logsvc.ComponentAPI, conf)

	// set up DB & services
	db := testutil.PrepareDB(t, conf)
	app := shared.NewApp(db, conf, logger, emailsvc.NewConsoleServiceMock(conf, logger))
	core.ParseEmailTemplates(conf, appfs.FS, appfs.EmailTemplatesDir, logger)
	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswords, logger)
	emailsvc.ResetSentMessages()

	// set up server
	server := NewServer(ServerDeps{
		Conf:            conf,
		Logger:          logger,
		UserSvc:         app.UserSvc,
		SubscriptionSvc: app.SubscriptionSvc,
		CourseSvc:       app.CourseSvc,
		ContentSvc:      app.ContentSvc,
		Metrics:         metricsvc.NewMetrics(),
		Validate:        app.Validate,
		Translator:      app.Translator,
		DisableReqLogs:  true,
	})

	return &testApp{
		Server:     server,
		conf:       conf,
		db:         db,
		app:        app,
		usrRepo:    sqlxrepos.NewUserRepository(db),
		courseRepo: sqlxrepos.NewCourseRepository(db),
	}
}
