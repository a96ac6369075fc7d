package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/trezcool/darasa/core/session"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db       *sql.DB
	sessRepo session.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args] - run database migrations (up, down, status, version, ...)")
	fmt.Println("  purgesessions - delete expired sessions and their auth tokens")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "purgesessions":
		return cli.purgeSessions()
	default:
		cli.printUsage()
		return errHelp
	}
}
