package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/hudhuria/apps/api/echo"
	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/classroom"
	"github.com/trezcool/hudhuria/core/face"
	"github.com/trezcool/hudhuria/core/report"
	"github.com/trezcool/hudhuria/core/settings"
	"github.com/trezcool/hudhuria/core/user"
	emailsvc "github.com/trezcool/hudhuria/services/email"
	logsvc "github.com/trezcool/hudhuria/services/logger"
	smssvc "github.com/trezcool/hudhuria/services/sms"
	"github.com/trezcool/hudhuria/storage/database"
	"github.com/trezcool/hudhuria/storage/fotostore"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	usrRepo := database.NewUserRepository(db)
	classRepo := database.NewClassroomRepository(db)
	attRepo := database.NewAttendanceRepository(db)
	smsLogRepo := database.NewSMSLogRepository(db)
	settingsRepo := database.NewSettingsRepository(db)

	// set up the face pipeline
	locator, err := face.NewPigoLocator(conf.CascadeFile)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading face cascade: %v", err), err)
	}
	extractor := face.NewExtractor(locator)

	photos, err := fotostore.New(conf.AttendancePhotos)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up photo store: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	var smsSvc core.SMSService
	if conf.Twilio.Enabled() {
		smsSvc = smssvc.NewTwilioService(conf, smsLogRepo, logger)
	} else {
		smsSvc = smssvc.NewConsoleService(smsLogRepo, logger)
	}

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	usrSvc := user.NewService(usrRepo, extractor, mailSvc, conf, validate)
	classSvc := classroom.NewService(classRepo, usrSvc, validate)
	attSvc := attendance.NewService(attRepo, classSvc, usrSvc, extractor, photos, smsSvc, conf, logger, validate)
	reportSvc := report.NewService(attSvc)
	settingsSvc := settings.NewService(settingsRepo)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			UserSvc:       usrSvc,
			ClassSvc:      classSvc,
			AttendanceSvc: attSvc,
			ReportSvc:     reportSvc,
			SettingsSvc:   settingsSvc,
			SMSSvc:        smsSvc,
			SMSLogRepo:    smsLogRepo,
			Validate:      validate,
			Translator:    translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
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

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
