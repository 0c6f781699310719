package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
)

const (
	courseColumns  = "c.id, c.owner_id, c.title, c.code, c.type, c.published, c.description, c.created_at, c.updated_at"
	historyColumns = "id, course_id, user_id, role, status, created_at, updated_at"
)

var historyInsertColumns = strings.Split(historyColumns, ", ")

type courseRepository struct {
	baseRepo
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{baseRepo{exec: exec}}
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) error {
	q := `INSERT INTO courses (id, owner_id, title, code, type, published, description, created_at, updated_at)
		VALUES (:id, :owner_id, :title, :code, :type, :published, :description, :created_at, :updated_at)`
	_, err := namedExec(ctx, repo.getExec(exec), q, c)
	return trapUniqueErr(err, "inserting course", "code")
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	var c course.Course
	ex := repo.getExec(exec)
	q := ex.Rebind("SELECT " + courseColumns + " FROM courses c WHERE c.id = ?")
	if err := sqlx.GetContext(ctx, ex, &c, q, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, string(course.KindCourse), id, "getting course")
	}
	return c, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) error {
	q := `UPDATE courses SET title = :title, code = :code, type = :type, published = :published,
		description = :description, updated_at = :updated_at WHERE id = :id`
	res, err := namedExec(ctx, repo.getExec(exec), q, c)
	if err != nil {
		return trapUniqueErr(err, "updating course", "code")
	}
	return checkAffected(res, string(course.KindCourse), c.ID)
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM courses WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return checkAffected(res, string(course.KindCourse), id)
}

func (repo courseRepository) CountOwnedCourses(ctx context.Context, ownerID string) (int, error) {
	var count int
	q := repo.exec.Rebind("SELECT COUNT(*) FROM courses WHERE owner_id = ?")
	if err := sqlx.GetContext(ctx, repo.exec, &count, q, ownerID); err != nil {
		return 0, errors.Wrap(err, "counting courses")
	}
	return count, nil
}

func (repo courseRepository) ListPublishedCourses(ctx context.Context) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	q := "SELECT " + courseColumns + " FROM courses c WHERE c.published = ? ORDER BY c.title"
	if err := sqlx.SelectContext(ctx, repo.exec, &courses, repo.exec.Rebind(q), true); err != nil {
		return nil, errors.Wrap(err, "listing published courses")
	}
	return courses, nil
}

func (repo courseRepository) ListUserCourses(ctx context.Context, userID string) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	q := "SELECT " + courseColumns + ` FROM courses c
		JOIN course_histories h ON h.course_id = c.id
		WHERE h.user_id = ? ORDER BY c.title`
	if err := sqlx.SelectContext(ctx, repo.exec, &courses, repo.exec.Rebind(q), userID); err != nil {
		return nil, errors.Wrap(err, "listing user courses")
	}
	return courses, nil
}

// memberships

func (repo courseRepository) GetCourseHistory(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (course.CourseHistory, error) {
	var h course.CourseHistory
	ex := repo.getExec(exec)
	q := ex.Rebind("SELECT " + historyColumns + " FROM course_histories WHERE course_id = ? AND user_id = ?")
	if err := sqlx.GetContext(ctx, ex, &h, q, courseID, userID); err != nil {
		return course.CourseHistory{}, trapNoRowsErr(err, string(course.KindCourseHistory), userID, "getting course history")
	}
	return h, nil
}

// getCourseHistoryByID serves course.Graph lookups.
func (repo courseRepository) getCourseHistoryByID(ctx context.Context, id string) (course.CourseHistory, error) {
	var h course.CourseHistory
	q := repo.exec.Rebind("SELECT " + historyColumns + " FROM course_histories WHERE id = ?")
	if err := sqlx.GetContext(ctx, repo.exec, &h, q, id); err != nil {
		return course.CourseHistory{}, trapNoRowsErr(err, string(course.KindCourseHistory), id, "getting course history")
	}
	return h, nil
}

func (repo courseRepository) CreateCourseHistory(ctx context.Context, h course.CourseHistory, exec ...core.DBExecutor) error {
	q := "INSERT INTO course_histories (" + historyColumns + ") VALUES (" + namedParams(historyInsertColumns) + ")"
	_, err := namedExec(ctx, repo.getExec(exec), q, h)
	return trapUniqueErr(err, "inserting course history", "course_id", "user_id")
}

func (repo courseRepository) UpsertCourseHistory(ctx context.Context, h course.CourseHistory, exec ...core.DBExecutor) (course.CourseHistory, error) {
	ex := repo.getExec(exec)
	q := "INSERT INTO course_histories (" + historyColumns + ") VALUES (" + namedParams(historyInsertColumns) + `)
		ON CONFLICT (course_id, user_id) DO UPDATE SET
			status = CASE WHEN course_histories.status = 'enrolled' THEN 'enrolled' ELSE excluded.status END,
			updated_at = excluded.updated_at`
	if _, err := namedExec(ctx, ex, q, h); err != nil {
		return course.CourseHistory{}, errors.Wrap(err, "upserting course history")
	}
	return repo.GetCourseHistory(ctx, h.CourseID, h.UserID, ex)
}

func (repo courseRepository) UpdateCourseHistory(ctx context.Context, h course.CourseHistory, exec ...core.DBExecutor) error {
	q := "UPDATE course_histories SET role = :role, status = :status, updated_at = :updated_at WHERE id = :id"
	res, err := namedExec(ctx, repo.getExec(exec), q, h)
	if err != nil {
		return errors.Wrap(err, "updating course history")
	}
	return checkAffected(res, string(course.KindCourseHistory), h.ID)
}

func (repo courseRepository) ListMembers(ctx context.Context, courseID string, statuses ...string) ([]course.Member, error) {
	q := `SELECT h.id, h.course_id, h.user_id, h.role, h.status, h.created_at, h.updated_at, u.name, u.email
		FROM course_histories h JOIN users u ON u.id = h.user_id
		WHERE h.course_id = ?`
	args := []interface{}{courseID}
	if len(statuses) > 0 {
		q += " AND h.status IN (?)"
		args = append(args, statuses)
	}
	q += " ORDER BY u.name"

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "expanding query")
	}
	members := make([]course.Member, 0)
	if err = sqlx.SelectContext(ctx, repo.exec, &members, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing members")
	}
	return members, nil
}

// bulk operations

func (repo courseRepository) GetHistoriesByUsers(ctx context.Context, courseID string, userIDs []string, exec ...core.DBExecutor) ([]course.CourseHistory, error) {
	histories := make([]course.CourseHistory, 0, len(userIDs))
	err := selectIn(ctx, repo.getExec(exec), func(rows *sqlx.Rows) error {
		var h course.CourseHistory
		if err := rows.StructScan(&h); err != nil {
			return err
		}
		histories = append(histories, h)
		return nil
	}, "SELECT "+historyColumns+" FROM course_histories WHERE course_id = ? AND user_id IN (?)", userIDs, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "getting course histories")
	}
	return histories, nil
}

func (repo courseRepository) BulkCreateCourseHistories(ctx context.Context, hs []course.CourseHistory, exec ...core.DBExecutor) (int64, error) {
	return bulkInsert(ctx, repo.getExec(exec), "course_histories", historyInsertColumns, len(hs), func(i int) []interface{} {
		h := hs[i]
		return []interface{}{h.ID, h.CourseID, h.UserID, h.Role, h.Status, h.CreatedAt, h.UpdatedAt}
	})
}
