package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mateatletas/backend/core"
	"github.com/mateatletas/backend/core/membership"
	"github.com/mateatletas/backend/core/user"
	logsvc "github.com/mateatletas/backend/services/logger"
	"github.com/mateatletas/backend/storage/database"
	inmemdb "github.com/mateatletas/backend/storage/database/inmem"
	sqlxrepos "github.com/mateatletas/backend/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	cli := commandLine{logger: logger, out: os.Stdout}
	closeDB := func() {}

	// set up DB & repos
	var mbRepo membership.Repository
	if conf.Database.InMemory() {
		logger.Warn("using the in-memory database: changes are lost on exit")
		db := inmemdb.Open()
		cli.usrRepo = inmemdb.NewUserRepository(db)
		mbRepo = inmemdb.NewMembershipRepository(db)
	} else {
		if err := database.CreateIfNotExist(conf); err != nil {
			logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
		}
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		closeDB = func() {
			if err := db.Close(); err != nil {
				logger.Error("failed to close database", err)
			}
		}
		cli.db = db.DB
		cli.usrRepo = sqlxrepos.NewUserRepository(db)
		mbRepo = sqlxrepos.NewMembershipRepository(db)
	}

	cli.usrSvc = user.NewService(cli.usrRepo)
	cli.mbSvc = membership.NewService(mbRepo, cli.usrSvc, conf.Location())

	err := cli.run(os.Args)
	closeDB()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}
