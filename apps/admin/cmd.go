package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/plan"
	locksvc "github.com/mohamed-arabi16/studybuddy-bright-sub000/services/lock"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/storage/database"
	sqlxrepos "github.com/mohamed-arabi16/studybuddy-bright-sub000/storage/database/sqlx"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	out    io.Writer

	// set up on first use by connect
	db      *sqlx.DB
	repo    plan.Repository
	planSvc plan.ServiceInterface
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  seed -user ID -file FIXTURE - store the courses, topics and preferences of a fixture for the user")
	fmt.Fprintln(cli.out, "  generate -user ID - generate the user's plan from today on")
	fmt.Fprintln(cli.out, "  recreate -user ID - replan from today on, carrying missed work over")
	fmt.Fprintln(cli.out, "  preview -file FIXTURE [-today YYYY-MM-DD] [-json] - run the planner on a fixture without a database")
	fmt.Fprintln(cli.out, "  token -user ID [-ttl DURATION] - sign an API token for the user (development only)")
}

// connect opens the database and builds the plan service, unless already done.
func (cli *commandLine) connect() error {
	if cli.repo != nil {
		return nil
	}

	db, err := database.Open(cli.conf)
	if err != nil {
		return err
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return err
	}
	cli.db = db

	var locker core.Locker = locksvc.NewMemoryLocker(cli.conf.Lock.Wait)
	if cli.conf.Lock.Backend == "redis" {
		rdb, err := locksvc.NewRedisClient(cli.conf)
		if err != nil {
			return err
		}
		locker = locksvc.NewRedisLocker(rdb, cli.conf, cli.logger)
	}

	cli.repo = sqlxrepos.NewPlanRepository(db)
	cli.planSvc = plan.NewService(cli.repo, locker, cli.logger, cli.conf)
	return nil
}

func (cli *commandLine) sqlDB() *sql.DB {
	if cli.db == nil {
		return nil
	}
	return cli.db.DB
}

func (cli *commandLine) close() error {
	if cli.db == nil {
		return nil
	}
	return cli.db.Close()
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	seedCmd := cli.newFlagSet("seed")
	seedUser := seedCmd.String("user", "", "The user id.")
	seedFile := seedCmd.String("file", "", "Path to a YAML fixture.")

	generateCmd := cli.newFlagSet("generate")
	generateUser := generateCmd.String("user", "", "The user id.")

	recreateCmd := cli.newFlagSet("recreate")
	recreateUser := recreateCmd.String("user", "", "The user id.")

	previewCmd := cli.newFlagSet("preview")
	previewFile := previewCmd.String("file", "", "Path to a YAML fixture.")
	previewToday := previewCmd.String("today", "", "Planning date (YYYY-MM-DD); defaults to the fixture's, then to today.")
	previewJSON := previewCmd.Bool("json", false, "Print the result as JSON.")

	tokenCmd := cli.newFlagSet("token")
	tokenUser := tokenCmd.String("user", "", "The user id.")
	tokenTTL := tokenCmd.Duration("ttl", 24*time.Hour, "Token lifetime.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		if err := cli.connect(); err != nil {
			return err
		}
		return cli.migrate(args[2:])
	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedUser == "" || *seedFile == "" {
			seedCmd.Usage()
			return errHelp
		}
		if err := cli.connect(); err != nil {
			return err
		}
		return cli.seed(*seedUser, *seedFile)
	case "generate":
		if err := generateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *generateUser == "" {
			generateCmd.Usage()
			return errHelp
		}
		if err := cli.connect(); err != nil {
			return err
		}
		return cli.generate(*generateUser)
	case "recreate":
		if err := recreateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *recreateUser == "" {
			recreateCmd.Usage()
			return errHelp
		}
		if err := cli.connect(); err != nil {
			return err
		}
		return cli.recreate(*recreateUser)
	case "preview":
		if err := previewCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *previewFile == "" {
			previewCmd.Usage()
			return errHelp
		}
		return cli.preview(*previewFile, *previewToday, *previewJSON)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUser == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUser, *tokenTTL)
	default:
		cli.printUsage()
		return errHelp
	}
}
