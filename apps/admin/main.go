package main

import (
	"log"
	"os"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/enrollment"
	appfs "github.com/trezcool/kozi/fs"
	emailsvc "github.com/trezcool/kozi/services/email"
	logsvc "github.com/trezcool/kozi/services/logger"
	"github.com/trezcool/kozi/storage/database"
	sqlxrepos "github.com/trezcool/kozi/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.LoadConfig()
	core.TemplatesFS = appfs.FS

	appLogger := logsvc.NewRollbarLogger(logger)
	appLogger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// set up services
	courseSvc := course.NewService(sqlxrepos.NewCourseRepository(db))
	enrSvc := enrollment.NewService(sqlxrepos.NewEnrollmentRepository(db), courseSvc, emailsvc.NewConsoleService(), appLogger)

	// start CLI
	cli := commandLine{
		db:     db,
		enrSvc: enrSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
