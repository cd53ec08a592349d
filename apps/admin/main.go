package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
	logsvc "github.com/mohamed-arabi16/studybuddy-bright-sub000/services/logger"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger("ADMIN", conf)
	if err != nil {
		log.Fatal(err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)
	defer logger.Sync()

	// start CLI
	cli := commandLine{
		conf:   conf,
		logger: logger,
		out:    os.Stdout,
	}
	err = cli.run(os.Args)
	if cErr := cli.close(); cErr != nil {
		logger.Error(fmt.Sprintf("closing database: %v", cErr), cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		logger.Sync()
		os.Exit(1)
	}
}
