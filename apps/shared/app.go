// Package shared wires the services every app (API server, admin CLI) runs on.
package shared

import (
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/subscription"
	"github.com/trezcool/darasa/core/user"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

type App struct {
	Conf       *core.Config
	DB         *sqlx.DB
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	UserSvc         *user.Service
	SubscriptionSvc *subscription.Service
	CourseSvc       *course.Service
	ContentSvc      *content.Service
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator returns a validator knowing the custom tags and translations of every domain.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	content.InitValidators(validate, translator)
	return validate
}

func NewApp(db *sqlx.DB, conf *core.Config, logger core.Logger, mailSvc core.EmailService) *App {
	translator := NewTranslator()
	validate := NewValidator(translator)

	usrRepo := sqlxrepos.NewUserRepository(db)
	courseRepo := sqlxrepos.NewCourseRepository(db)

	subSvc := subscription.NewService(sqlxrepos.NewSubscriptionRepository(db))
	auth := course.NewAuthorizer(course.NewResolver(sqlxrepos.NewGraph(db)), courseRepo)

	return &App{
		Conf:            conf,
		DB:              db,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         user.NewService(db, usrRepo, mailSvc, conf),
		SubscriptionSvc: subSvc,
		CourseSvc:       course.NewService(db, courseRepo, usrRepo, subSvc, auth, conf),
		ContentSvc: content.NewService(
			sqlxrepos.NewContentRepository(db), auth, courseRepo, mailSvc, validate, logger, conf,
		),
	}
}
