package course

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var (
	errNotPublished    = core.NewForbiddenError("this course is not open for enrollment")
	errOwnerUnenroll   = core.NewForbiddenError("the owner of a course cannot leave it")
	errOwnerDemoted    = core.NewForbiddenError("the owner of a course must stay an instructor")
	errCourseCodeTaken = core.NewConflictError("code")
)

type (
	Repository interface {
		MembershipReader

		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) error
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) error
		DeleteCourse(ctx context.Context, id string) error
		CountOwnedCourses(ctx context.Context, ownerID string) (int, error)
		ListPublishedCourses(ctx context.Context) ([]Course, error)
		// ListUserCourses lists the courses the user has a membership in.
		ListUserCourses(ctx context.Context, userID string) ([]Course, error)

		CreateCourseHistory(ctx context.Context, h CourseHistory, exec ...core.DBExecutor) error
		// UpsertCourseHistory inserts h, or updates the status of the existing membership of the same
		// (course, user). An enrolled membership stays enrolled. The stored row is returned.
		UpsertCourseHistory(ctx context.Context, h CourseHistory, exec ...core.DBExecutor) (CourseHistory, error)
		UpdateCourseHistory(ctx context.Context, h CourseHistory, exec ...core.DBExecutor) error
		ListMembers(ctx context.Context, courseID string, statuses ...string) ([]Member, error)

		// bulk operations
		GetHistoriesByUsers(ctx context.Context, courseID string, userIDs []string, exec ...core.DBExecutor) ([]CourseHistory, error)
		// BulkCreateCourseHistories skips memberships that already exist and returns the number of rows written.
		BulkCreateCourseHistories(ctx context.Context, hs []CourseHistory, exec ...core.DBExecutor) (int64, error)
	}

	// QuotaChecker gates course creation and edition on the owner's subscription.
	QuotaChecker interface {
		CanCreateCourse(ctx context.Context, userID string, ownedCount int) error
		CanUpdateCourse(ctx context.Context, userID string) error
	}

	Service struct {
		db       core.DB
		repo     Repository
		quota    QuotaChecker
		auth     *Authorizer
		importer *Importer
	}
)

func NewService(
	db core.DB,
	repo Repository,
	usrRepo user.Repository,
	quota QuotaChecker,
	auth *Authorizer,
	conf *core.Config,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		quota:    quota,
		auth:     auth,
		importer: NewImporter(db, usrRepo, repo, conf.Enrollment.MaxImportRows, conf.Enrollment.MaxImportBytes),
	}
}

func (svc *Service) Authorizer() *Authorizer { return svc.auth }

// Create creates a course owned by actor, who becomes its first instructor.
func (svc *Service) Create(ctx context.Context, actor user.User, nc NewCourse) (Course, error) {
	owned, err := svc.repo.CountOwnedCourses(ctx, actor.ID)
	if err != nil {
		return Course{}, errors.Wrap(err, "counting owned courses")
	}
	if err = svc.quota.CanCreateCourse(ctx, actor.ID, owned); err != nil {
		return Course{}, err
	}

	now := core.Now()
	c := Course{
		ID:          core.NewID(),
		OwnerID:     actor.ID,
		Title:       nc.Title,
		Code:        nc.Code,
		Type:        nc.Type,
		Published:   nc.Published,
		Description: nc.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.CreateCourse(ctx, c, tx); err != nil {
			if core.IsConflict(err) {
				return errCourseCodeTaken
			}
			return errors.Wrap(err, "creating course")
		}
		h := CourseHistory{
			ID:        core.NewID(),
			CourseID:  c.ID,
			UserID:    actor.ID,
			Role:      RoleInstructor,
			Status:    StatusEnrolled,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return errors.Wrap(svc.repo.CreateCourseHistory(ctx, h, tx), "creating owner membership")
	})
	if err != nil {
		return Course{}, err
	}
	return c, nil
}

// Get returns a course: published courses are visible to everyone, others to their members only.
func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if c.Published {
		return c, nil
	}
	return svc.auth.Check(ctx, actor, c, GateRegistered)
}

// List lists the courses actor is a member of (mine) or the published catalog.
func (svc *Service) List(ctx context.Context, actor user.User, mine bool) ([]Course, error) {
	if mine {
		return svc.repo.ListUserCourses(ctx, actor.ID)
	}
	return svc.repo.ListPublishedCourses(ctx)
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, uc UpdateCourse) (Course, error) {
	orig, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if _, err = svc.auth.Check(ctx, actor, orig, GateOwner); err != nil {
		return Course{}, err
	}
	if err = svc.quota.CanUpdateCourse(ctx, orig.OwnerID); err != nil {
		return Course{}, err
	}

	c := orig
	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Code != nil {
		c.Code = *uc.Code
	}
	if uc.Type != nil {
		c.Type = *uc.Type
	}
	if uc.Published != nil {
		c.Published = *uc.Published
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	c.UpdatedAt = core.Now()

	if err = svc.repo.UpdateCourse(ctx, c); err != nil {
		if core.IsConflict(err) {
			return Course{}, errCourseCodeTaken
		}
		return Course{}, errors.Wrap(err, "updating course")
	}
	return c, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	if _, err = svc.auth.Check(ctx, actor, c, GateOwner); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteCourse(ctx, c.ID), "deleting course")
}

// Enroll enrolls actor in a published course: directly in open courses, pending approval in moderated ones.
// Enrolling again is a no-op for enrolled members, and keeps the role of former members.
func (svc *Service) Enroll(ctx context.Context, actor user.User, courseID string) (CourseHistory, error) {
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return CourseHistory{}, err
	}
	if !c.Published {
		return CourseHistory{}, errNotPublished
	}

	status := StatusPending
	if c.IsOpen() {
		status = StatusEnrolled
	}
	now := core.Now()
	h := CourseHistory{
		ID:        core.NewID(),
		CourseID:  c.ID,
		UserID:    actor.ID,
		Role:      RoleStudent,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	h, err = svc.repo.UpsertCourseHistory(ctx, h)
	return h, errors.Wrap(err, "upserting course history")
}

// Unenroll marks the membership of actor as unenrolled. The membership is kept.
func (svc *Service) Unenroll(ctx context.Context, actor user.User, courseID string) (CourseHistory, error) {
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return CourseHistory{}, err
	}
	if c.OwnerID == actor.ID {
		return CourseHistory{}, errOwnerUnenroll
	}
	h, err := svc.repo.GetCourseHistory(ctx, c.ID, actor.ID)
	if err != nil {
		return CourseHistory{}, err
	}
	if h.Status == StatusUnenrolled {
		return h, nil
	}
	h.Status = StatusUnenrolled
	h.UpdatedAt = core.Now()
	return h, errors.Wrap(svc.repo.UpdateCourseHistory(ctx, h), "updating course history")
}

// UpdateMember changes the membership of userID: instructors and TAs may change its status,
// only the course owner may change its role.
func (svc *Service) UpdateMember(ctx context.Context, actor user.User, courseID, userID string, um UpdateMember) (CourseHistory, error) {
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return CourseHistory{}, err
	}
	if _, err = svc.auth.Check(ctx, actor, c, GateInstructorOrTA); err != nil {
		return CourseHistory{}, err
	}
	h, err := svc.repo.GetCourseHistory(ctx, c.ID, userID)
	if err != nil {
		return CourseHistory{}, err
	}

	if um.Role != "" && um.Role != h.Role {
		if _, err = svc.auth.Check(ctx, actor, c, GateOwner); err != nil {
			return CourseHistory{}, err
		}
		if userID == c.OwnerID {
			return CourseHistory{}, errOwnerDemoted
		}
		h.Role = um.Role
	}
	if um.Status != "" && um.Status != h.Status {
		if userID == c.OwnerID && um.Status != StatusEnrolled {
			return CourseHistory{}, errOwnerUnenroll
		}
		h.Status = um.Status
	}
	h.UpdatedAt = core.Now()

	return h, errors.Wrap(svc.repo.UpdateCourseHistory(ctx, h), "updating course history")
}

// ListMembers lists the memberships of a course, optionally filtered on statuses.
func (svc *Service) ListMembers(ctx context.Context, actor user.User, courseID string, statuses ...string) ([]Member, error) {
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if _, err = svc.auth.Check(ctx, actor, c, GateInstructorOrTA); err != nil {
		return nil, err
	}
	return svc.repo.ListMembers(ctx, c.ID, statuses...)
}

// Import enrolls the users listed in the CSV read from r. See Importer.
func (svc *Service) Import(ctx context.Context, actor user.User, courseID string, r io.Reader) (ImportSummary, error) {
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return ImportSummary{}, err
	}
	if _, err = svc.auth.Check(ctx, actor, c, GateInstructorOrTA); err != nil {
		return ImportSummary{}, err
	}
	return svc.importer.Import(ctx, c, r)
}

func (svc *Service) Importer() *Importer { return svc.importer }
