package main

import (
	"fmt"
	"strconv"

	"github.com/trezcool/darasa/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate(args []string) error {
	command := args[0]
	switch command {
	case database.MigrateUpTo, database.MigrateDownTo:
		if len(args) < 2 {
			return fmt.Errorf("%s must be of form: migrate %s VERSION", command, command)
		}
		version, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("version must be a number (got '%s')", args[1])
		}
		return migrateFunc(cli.db, command, version)
	case database.MigrateUp, database.MigrateUpByOne, database.MigrateDown, database.MigrateRedo:
		return migrateFunc(cli.db, command)
	default:
		return fmt.Errorf("%q: no such command", command)
	}
}
