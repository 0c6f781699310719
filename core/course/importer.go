package course

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const (
	colEmail = "email"
	colName  = "name"
)

var (
	ErrMissingColumn  = errors.New("missing required column")
	ErrImportTooLarge = errors.New("import file too large")

	emailValidate = validator.New()
)

type (
	// InvalidRow is a skipped row. Rows are the file lines after the header, numbered from 1:
	// blank lines are counted, and a record spanning several lines has the number of its first one.
	InvalidRow struct {
		Row   int    `json:"row"`
		Email string `json:"email"`
		Error string `json:"error"`
	}

	ImportSummary struct {
		DuplicateEmailSet        []string     `json:"duplicate_email_set"`
		ExistingUsersCount       int          `json:"existing_users_count"`
		NewUsersCount            int          `json:"new_users_count"`
		ExistingEnrollmentsCount int          `json:"existing_enrollments_count"`
		PendingEnrollmentsCount  int          `json:"pending_enrollments_count"`
		NewEnrollmentsCount      int          `json:"new_enrollments_count"`
		InvalidRows              []InvalidRow `json:"invalid_rows"`
	}

	importRow struct {
		num   int
		email string
		name  string
	}
)

// Importer enrolls users listed in a CSV file (columns email and name, any order and case, extra columns ignored).
//
// Rows with an empty or malformed email or an empty name are skipped and reported.
// Emails listed more than once are ambiguous: every copy is skipped and the email is reported.
// Unknown emails get a new active user (and profile); every listed user ends up enrolled as a student,
// former members are re-enrolled with their role unchanged. All writes happen in a single transaction.
type Importer struct {
	db       core.DB
	users    user.Repository
	courses  Repository
	maxRows  int
	maxBytes int64
}

func NewImporter(db core.DB, users user.Repository, courses Repository, maxRows int, maxBytes int64) *Importer {
	return &Importer{db: db, users: users, courses: courses, maxRows: maxRows, maxBytes: maxBytes}
}

func (imp *Importer) MaxBytes() int64 { return imp.maxBytes }

func (imp *Importer) Import(ctx context.Context, c Course, r io.Reader) (ImportSummary, error) {
	rows, err := imp.read(r)
	if err != nil {
		return ImportSummary{}, err
	}

	summary := ImportSummary{DuplicateEmailSet: []string{}, InvalidRows: []InvalidRow{}}
	unique := imp.classify(rows, &summary)
	if len(unique) == 0 {
		return summary, nil
	}

	err = core.RunInTx(ctx, imp.db, func(tx core.DBExecutor) error {
		return imp.reconcile(ctx, tx, c, unique, &summary)
	})
	if err != nil {
		return ImportSummary{}, errors.Wrap(err, "importing enrollments")
	}
	return summary, nil
}

// read parses the whole file, bounded by the rows and bytes limits.
func (imp *Importer) read(r io.Reader) ([]importRow, error) {
	lr := &io.LimitedReader{R: r, N: imp.maxBytes + 1}
	cr := csv.NewReader(lr)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	tooLarge := func() error {
		return core.NewValidationError(ErrImportTooLarge, core.FieldError{
			Field: "file",
			Error: fmt.Sprintf("the file exceeds %d bytes or %d rows", imp.maxBytes, imp.maxRows),
		})
	}
	malformed := func(err error) error {
		if lr.N <= 0 {
			return tooLarge()
		}
		return core.NewValidationError(err, core.FieldError{Field: "file", Error: err.Error()})
	}

	header, err := cr.Read()
	if err == io.EOF {
		return nil, missingColumns(colEmail, colName)
	} else if err != nil {
		return nil, malformed(err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = core.CleanString(strings.TrimPrefix(h, "\ufeff"), true /* lower */)
		if _, ok := cols[h]; !ok {
			cols[h] = i
		}
	}
	headerLine, _ := cr.FieldPos(len(header) - 1)

	emailIdx, hasEmail := cols[colEmail]
	nameIdx, hasName := cols[colName]
	switch {
	case !hasEmail && !hasName:
		return nil, missingColumns(colEmail, colName)
	case !hasEmail:
		return nil, missingColumns(colEmail)
	case !hasName:
		return nil, missingColumns(colName)
	}

	field := func(rec []string, idx int) string {
		if idx < len(rec) {
			return core.CleanString(rec[idx])
		}
		return ""
	}

	rows := make([]importRow, 0, 64)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, malformed(err)
		}
		if len(rows) >= imp.maxRows {
			return nil, tooLarge()
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, importRow{
			num:   line - headerLine,
			email: strings.ToLower(field(rec, emailIdx)),
			name:  field(rec, nameIdx),
		})
	}
	if lr.N <= 0 {
		return nil, tooLarge()
	}
	return rows, nil
}

func missingColumns(cols ...string) error {
	return core.NewValidationError(ErrMissingColumn, core.FieldError{
		Field: "file",
		Error: "missing required column(s): " + strings.Join(cols, ", "),
	})
}

// classify reports invalid rows and duplicate emails, and returns the rows left to reconcile.
// Duplicates are found from the histogram of the whole file, so row order does not matter.
func (imp *Importer) classify(rows []importRow, summary *ImportSummary) []importRow {
	histogram := make(map[string]int, len(rows))
	for _, row := range rows {
		if row.email != "" {
			histogram[row.email]++
		}
	}

	unique := make([]importRow, 0, len(rows))
	for _, row := range rows {
		switch {
		case row.email == "":
			summary.InvalidRows = append(summary.InvalidRows, InvalidRow{Row: row.num, Error: "email is required"})
			continue
		case histogram[row.email] > 1:
			continue
		case emailValidate.Var(row.email, "email") != nil:
			summary.InvalidRows = append(summary.InvalidRows, InvalidRow{Row: row.num, Email: row.email, Error: "invalid email address"})
			continue
		case row.name == "":
			summary.InvalidRows = append(summary.InvalidRows, InvalidRow{Row: row.num, Email: row.email, Error: "name is required"})
			continue
		}
		unique = append(unique, row)
	}

	for email, count := range histogram {
		if count > 1 {
			summary.DuplicateEmailSet = append(summary.DuplicateEmailSet, email)
		}
	}
	sort.Strings(summary.DuplicateEmailSet)
	return unique
}

func (imp *Importer) reconcile(ctx context.Context, tx core.DBExecutor, c Course, rows []importRow, summary *ImportSummary) error {
	emails := make([]string, 0, len(rows))
	for _, row := range rows {
		emails = append(emails, row.email)
	}

	existing, err := imp.users.GetUsersByEmail(ctx, emails, tx)
	if err != nil {
		return errors.Wrap(err, "getting users by email")
	}
	usersByEmail := make(map[string]user.User, len(existing))
	userIDs := make([]string, 0, len(existing))
	for _, usr := range existing {
		usersByEmail[usr.Email] = usr
		userIDs = append(userIDs, usr.ID)
	}

	histories, err := imp.courses.GetHistoriesByUsers(ctx, c.ID, userIDs, tx)
	if err != nil {
		return errors.Wrap(err, "getting course histories")
	}
	historiesByUser := make(map[string]CourseHistory, len(histories))
	for _, h := range histories {
		historiesByUser[h.UserID] = h
	}

	now := core.Now()
	newHistory := func(userID string) CourseHistory {
		return CourseHistory{
			ID:        core.NewID(),
			CourseID:  c.ID,
			UserID:    userID,
			Role:      RoleStudent,
			Status:    StatusEnrolled,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	var (
		newUsers     []user.User
		newHistories []CourseHistory
	)
	for _, row := range rows {
		usr, ok := usersByEmail[row.email]
		if !ok {
			usr = user.User{
				ID:        core.NewID(),
				Name:      row.name,
				Email:     row.email,
				IsActive:  true,
				Roles:     core.StringList{},
				CreatedAt: now,
				UpdatedAt: now,
			}
			newUsers = append(newUsers, usr)
			newHistories = append(newHistories, newHistory(usr.ID))
			continue
		}

		summary.ExistingUsersCount++
		h, ok := historiesByUser[usr.ID]
		switch {
		case !ok:
			newHistories = append(newHistories, newHistory(usr.ID))
		case h.Status == StatusEnrolled:
			summary.ExistingEnrollmentsCount++
		default:
			h.Status = StatusEnrolled
			h.UpdatedAt = now
			if err = imp.courses.UpdateCourseHistory(ctx, h, tx); err != nil {
				return errors.Wrap(err, "re-enrolling member")
			}
			summary.PendingEnrollmentsCount++
		}
	}

	if newUsers, err = imp.createUsers(ctx, tx, newUsers, newHistories, summary); err != nil {
		return err
	}
	summary.NewUsersCount = len(newUsers)

	profiles := make([]user.Profile, 0, len(newUsers))
	for _, usr := range newUsers {
		profiles = append(profiles, user.Profile{UserID: usr.ID, CreatedAt: now})
	}
	if err = imp.users.BulkCreateProfiles(ctx, profiles, tx); err != nil {
		return errors.Wrap(err, "creating profiles")
	}

	written, err := imp.courses.BulkCreateCourseHistories(ctx, newHistories, tx)
	if err != nil {
		return errors.Wrap(err, "creating course histories")
	}
	// memberships created in the meantime by a concurrent import already enroll their users
	summary.NewEnrollmentsCount = int(written)
	summary.ExistingEnrollmentsCount += len(newHistories) - int(written)
	return nil
}

// createUsers inserts the staged users and returns the ones actually created.
// Users created in the meantime by a concurrent import are counted as existing users,
// and the staged memberships are pointed at them.
func (imp *Importer) createUsers(
	ctx context.Context,
	tx core.DBExecutor,
	staged []user.User,
	histories []CourseHistory,
	summary *ImportSummary,
) ([]user.User, error) {
	written, err := imp.users.BulkCreateUsers(ctx, staged, tx)
	if err != nil {
		return nil, errors.Wrap(err, "creating users")
	}
	if int(written) == len(staged) {
		return staged, nil
	}

	emails := make([]string, 0, len(staged))
	for _, usr := range staged {
		emails = append(emails, usr.Email)
	}
	stored, err := imp.users.GetUsersByEmail(ctx, emails, tx)
	if err != nil {
		return nil, errors.Wrap(err, "getting users by email")
	}
	storedIDs := make(map[string]string, len(stored))
	for _, usr := range stored {
		storedIDs[usr.Email] = usr.ID
	}

	remapped := make(map[string]string)
	created := make([]user.User, 0, written)
	for _, usr := range staged {
		if id, ok := storedIDs[usr.Email]; ok && id != usr.ID {
			remapped[usr.ID] = id
			summary.ExistingUsersCount++
			continue
		}
		created = append(created, usr)
	}
	for i := range histories {
		if id, ok := remapped[histories[i].UserID]; ok {
			histories[i].UserID = id
		}
	}
	return created, nil
}
