package sqlxrepos

import (
	"context"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
	"github.com/trezcool/darasa/core/course"
)

// contentTable maps a content kind to its table.
type contentTable struct {
	name    string
	parents map[course.Kind]string // parent kind => foreign key column
	owner   string                 // column of the accountable user, if any
	columns []string
	sorted  bool // has a sort_order column
}

var (
	byCourse     = map[course.Kind]string{course.KindCourse: "course_id"}
	byAssignment = map[course.Kind]string{course.KindAssignment: "assignment_id"}
	byChapterOr  = map[course.Kind]string{course.KindChapter: "chapter_id", course.KindSection: "section_id"}
)

var contentTables = map[course.Kind]*contentTable{
	course.KindChapter:      {name: "chapters", parents: byCourse},
	course.KindSection:      {name: "sections", parents: map[course.Kind]string{course.KindChapter: "chapter_id"}},
	course.KindVideo:        {name: "videos", parents: byChapterOr},
	course.KindDocument:     {name: "documents", parents: byChapterOr},
	course.KindPage:         {name: "pages", parents: byCourse},
	course.KindSchedule:     {name: "schedules", parents: byCourse},
	course.KindAnnouncement: {name: "announcements", parents: byCourse},
	course.KindNotification: {name: "notifications", parents: byCourse},
	course.KindEmail:        {name: "emails", parents: byCourse},

	course.KindSectionMarker:  {name: "section_markers", parents: map[course.Kind]string{course.KindVideo: "video_id"}},
	course.KindQuizMarker:     {name: "quiz_markers", parents: map[course.Kind]string{course.KindVideo: "video_id"}},
	course.KindQuiz:           {name: "quizzes", parents: byChapterOr},
	course.KindQuestionModule: {name: "question_modules", parents: map[course.Kind]string{course.KindQuiz: "quiz_id"}},
	course.KindQuestion: {
		name:    "questions",
		parents: map[course.Kind]string{course.KindQuestionModule: "question_module_id"},
	},

	course.KindAssignment:                  {name: "assignments", parents: byCourse},
	course.KindAssignmentSection:           {name: "assignment_sections", parents: byAssignment},
	course.KindSimpleProgrammingAssignment: {name: "simple_programming_assignments", parents: byAssignment},
	course.KindAdvancedProgrammingAssignment: {
		name:    "advanced_programming_assignments",
		parents: map[course.Kind]string{course.KindSimpleProgrammingAssignment: "simple_programming_assignment_id"},
	},
	course.KindExam:                 {name: "exams", parents: byAssignment},
	course.KindSubjectiveAssignment: {name: "subjective_assignments", parents: byAssignment},
	course.KindTestcase: {
		name: "testcases",
		parents: map[course.Kind]string{
			course.KindAssignment:        "assignment_id",
			course.KindAssignmentSection: "assignment_section_id",
		},
	},

	course.KindDiscussionForum: {name: "discussion_forums", parents: byCourse},
	course.KindDiscussionThread: {
		name:    "discussion_threads",
		parents: map[course.Kind]string{course.KindDiscussionForum: "forum_id"},
		owner:   "author_id",
	},
	course.KindDiscussionComment: {
		name:    "discussion_comments",
		parents: map[course.Kind]string{course.KindDiscussionThread: "thread_id"},
		owner:   "author_id",
	},
	course.KindDiscussionReply: {
		name:    "discussion_replies",
		parents: map[course.Kind]string{course.KindDiscussionComment: "comment_id"},
		owner:   "author_id",
	},
	course.KindCrib: {name: "cribs", parents: byCourse, owner: "created_by"},
	course.KindCribReply: {
		name:    "crib_replies",
		parents: map[course.Kind]string{course.KindCrib: "crib_id"},
		owner:   "created_by",
	},

	course.KindVideoHistory: {
		name:    "video_histories",
		parents: map[course.Kind]string{course.KindVideo: "video_id"},
		owner:   "user_id",
	},
	course.KindQuestionHistory: {
		name:    "question_histories",
		parents: map[course.Kind]string{course.KindQuestion: "question_id"},
		owner:   "user_id",
	},
	course.KindAssignmentHistory: {
		name:    "assignment_histories",
		parents: map[course.Kind]string{course.KindAssignment: "assignment_id"},
		owner:   "user_id",
	},
}

func init() {
	for kind, tbl := range contentTables {
		it, err := content.NewItem(kind)
		if err != nil {
			panic(err)
		}
		tbl.columns = dbColumns(reflect.TypeOf(it).Elem())
		for _, col := range tbl.columns {
			if col == "sort_order" {
				tbl.sorted = true
			}
		}
	}
}

// dbColumns lists the db tags of a struct, those of embedded structs first.
func dbColumns(t reflect.Type) []string {
	cols := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			cols = append(cols, dbColumns(f.Type)...)
			continue
		}
		if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
			cols = append(cols, tag)
		}
	}
	return cols
}

func getContentTable(kind course.Kind) (*contentTable, error) {
	tbl, ok := contentTables[kind]
	if !ok {
		return nil, errors.Wrapf(course.ErrUnsupportedKind, "%q is not stored as content", kind)
	}
	return tbl, nil
}

type contentRepository struct {
	baseRepo
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(exec core.DBExecutor) *contentRepository {
	return &contentRepository{baseRepo{exec: exec}}
}

func (repo contentRepository) ListItems(ctx context.Context, kind course.Kind, filter content.Filter) ([]content.Item, error) {
	tbl, err := getContentTable(kind)
	if err != nil {
		return nil, err
	}

	var (
		conds []string
		args  []interface{}
	)
	if !filter.Parent.IsZero() {
		col, ok := tbl.parents[filter.Parent.Kind]
		if !ok {
			return nil, errors.Wrapf(course.ErrUnsupportedKind, "%s items cannot hang from %q", kind, filter.Parent.Kind)
		}
		conds = append(conds, col+" = ?")
		args = append(args, filter.Parent.ID)
	}
	if filter.OwnerID != "" {
		if tbl.owner == "" {
			return nil, errors.Wrapf(course.ErrUnsupportedKind, "%s items have no owner", kind)
		}
		conds = append(conds, tbl.owner+" = ?")
		args = append(args, filter.OwnerID)
	}

	q := "SELECT " + strings.Join(tbl.columns, ", ") + " FROM " + tbl.name
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if tbl.sorted {
		q += " ORDER BY sort_order, created_at, id"
	} else {
		q += " ORDER BY created_at, id"
	}

	rows, err := repo.exec.QueryxContext(ctx, repo.exec.Rebind(q), args...)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", tbl.name)
	}
	defer rows.Close()

	items := make([]content.Item, 0)
	for rows.Next() {
		it, _ := content.NewItem(kind)
		if err = rows.StructScan(it); err != nil {
			return nil, errors.Wrapf(err, "scanning %s", kind)
		}
		items = append(items, it)
	}
	return items, errors.Wrapf(rows.Err(), "listing %s", tbl.name)
}

func (repo contentRepository) GetItem(ctx context.Context, kind course.Kind, id string) (content.Item, error) {
	tbl, err := getContentTable(kind)
	if err != nil {
		return nil, err
	}
	it, _ := content.NewItem(kind)
	q := repo.exec.Rebind("SELECT " + strings.Join(tbl.columns, ", ") + " FROM " + tbl.name + " WHERE id = ?")
	if err = sqlx.GetContext(ctx, repo.exec, it, q, id); err != nil {
		return nil, trapNoRowsErr(err, string(kind), id, "getting "+string(kind))
	}
	return it, nil
}

func (repo contentRepository) CreateItem(ctx context.Context, it content.Item) error {
	tbl, err := getContentTable(it.Kind())
	if err != nil {
		return err
	}
	q := "INSERT INTO " + tbl.name + " (" + strings.Join(tbl.columns, ", ") + ") VALUES (" + namedParams(tbl.columns) + ")"
	_, err = namedExec(ctx, repo.exec, q, it)
	return trapUniqueErr(err, "inserting "+string(it.Kind()), "id")
}

func (repo contentRepository) UpdateItem(ctx context.Context, it content.Item) error {
	tbl, err := getContentTable(it.Kind())
	if err != nil {
		return err
	}
	sets := make([]string, 0, len(tbl.columns))
	for _, col := range tbl.columns {
		if col != "id" && col != "created_at" {
			sets = append(sets, col)
		}
	}
	q := "UPDATE " + tbl.name + " SET " + namedSets(sets) + " WHERE id = :id"
	res, err := namedExec(ctx, repo.exec, q, it)
	if err != nil {
		return errors.Wrapf(err, "updating %s", it.Kind())
	}
	return checkAffected(res, string(it.Kind()), it.GetID())
}

func (repo contentRepository) DeleteItem(ctx context.Context, kind course.Kind, id string) error {
	tbl, err := getContentTable(kind)
	if err != nil {
		return err
	}
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM "+tbl.name+" WHERE id = ?"), id)
	if err != nil {
		return errors.Wrapf(err, "deleting %s", kind)
	}
	return checkAffected(res, string(kind), id)
}
