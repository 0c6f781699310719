package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// importEnrollments enrolls the users listed in a CSV file, on behalf of the user owning asEmail.
func (cli *commandLine) importEnrollments(courseID, path, asEmail string) error {
	ctx := context.Background()
	actor, err := cli.app.UserSvc.GetByEmail(ctx, asEmail)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening import file")
	}
	defer f.Close()

	summary, err := cli.app.CourseSvc.Import(ctx, actor, courseID, f)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
