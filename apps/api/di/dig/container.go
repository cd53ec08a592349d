package dig_container

import (
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/mohamed-arabi16/studybuddy-bright-sub000/apps/api/echo"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/plan"
	locksvc "github.com/mohamed-arabi16/studybuddy-bright-sub000/services/lock"
	logsvc "github.com/mohamed-arabi16/studybuddy-bright-sub000/services/logger"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/storage/database"
	sqlxrepos "github.com/mohamed-arabi16/studybuddy-bright-sub000/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func namedLogger(name string, conf *core.Config) core.Logger {
	zl, err := logsvc.NewZapLogger(name, conf)
	if err != nil {
		log.Fatalf("building %s logger: %v", name, err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newLogger(conf *core.Config) core.Logger {
	return namedLogger("API", conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return namedLogger("DB", conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newLocker(conf *core.Config, logger core.Logger) core.Locker {
	if conf.Lock.Backend == "redis" {
		rdb, err := locksvc.NewRedisClient(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up redis: %v", err), err)
		}
		return locksvc.NewRedisLocker(rdb, conf, logger)
	}
	return locksvc.NewMemoryLocker(conf.Lock.Wait)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newLocker))
	must(c.Provide(sqlxrepos.NewPlanRepository))
	must(c.Provide(plan.NewService, dig.As(new(plan.ServiceInterface))))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
