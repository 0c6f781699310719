package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/darasa/apps/shared"
	"github.com/trezcool/darasa/core"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sqlx.DB
	app    *shared.App
	out    io.Writer
	logger core.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL [-admin] - create or update a user, the password is prompted next")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate up|up-by-one|up-to VERSION|down|down-to VERSION|redo - run database migrations")
	fmt.Fprintln(cli.out, "  subscribe -email EMAIL -plan free|basic|pro -days DAYS - start a subscription")
	fmt.Fprintln(cli.out, "  importenrollments -course ID -file PATH -as EMAIL - enroll the users of a CSV file")
}

// readPassword prompts for a password; an empty password is a usage error.
func (cli *commandLine) readPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every admin role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	subscribeCmd := flag.NewFlagSet("subscribe", flag.ContinueOnError)
	subscribeEmail := subscribeCmd.String("email", "", "The subscriber's email.")
	subscribePlan := subscribeCmd.String("plan", "", "The plan: free, basic or pro.")
	subscribeDays := subscribeCmd.Int("days", 365, "The subscription duration, in days.")

	importCmd := flag.NewFlagSet("importenrollments", flag.ContinueOnError)
	importCourse := importCmd.String("course", "", "The course ID.")
	importFile := importCmd.String("file", "", "The CSV file (columns email and name).")
	importAs := importCmd.String("as", "", "The email of the instructor, TA or admin running the import.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, subscribeCmd, importCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserEmail, pwd, *addUserAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "subscribe":
		if err := subscribeCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *subscribeEmail == "" || *subscribePlan == "" {
			subscribeCmd.Usage()
			return errHelp
		}
		return cli.subscribe(*subscribeEmail, *subscribePlan, *subscribeDays)
	case "importenrollments":
		if err := importCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *importCourse == "" || *importFile == "" || *importAs == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importEnrollments(*importCourse, *importFile, *importAs)
	default:
		cli.printUsage()
		return errHelp
	}
}
