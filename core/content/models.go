package content

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
)

// Question kinds
const (
	QuestionSingleCorrect   = "single_correct"
	QuestionMultipleCorrect = "multiple_correct"
	QuestionFixedAnswer     = "fixed_answer"
	QuestionDescriptive     = "descriptive"
)

var QuestionTypes = []string{QuestionSingleCorrect, QuestionMultipleCorrect, QuestionFixedAnswer, QuestionDescriptive}

// Base holds the columns every content table has.
type Base struct {
	ID        string    `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (b *Base) GetID() string   { return b.ID }
func (b *Base) SetID(id string) { b.ID = id }
func (b *Base) base() *Base     { return b }

// Touch sets the update time, and the creation time of new items.
func (b *Base) Touch(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// Item is a stored content object. Items are always handled through pointers.
type Item interface {
	course.Node
	GetID() string
	SetID(id string)
	Touch(now time.Time)
	base() *Base
}

type (
	ownerSetter interface {
		SetOwner(userID string)
	}

	publishable interface {
		IsPublished() bool
	}

	redactable interface {
		// Redact hides what students must not see.
		Redact()
	}
)

func courseRef(id string) course.Ref {
	return course.Ref{Kind: course.KindCourse, ID: id}
}

// either returns the ref of whichever parent is set, the first one by default.
func either(first course.Kind, firstID null.String, second course.Kind, secondID null.String) course.Ref {
	if !firstID.Valid && secondID.Valid {
		return course.Ref{Kind: second, ID: secondID.String}
	}
	return course.Ref{Kind: first, ID: firstID.String}
}

// structure

type Chapter struct {
	Base
	CourseID    string `db:"course_id" json:"course_id" validate:"required"`
	Title       string `db:"title" json:"title" validate:"required,max=200"`
	Description string `db:"description" json:"description" validate:"max=5000"`
	SortOrder   int    `db:"sort_order" json:"sort_order"`
}

func (c Chapter) Kind() course.Kind  { return course.KindChapter }
func (c Chapter) Parent() course.Ref { return courseRef(c.CourseID) }

type Section struct {
	Base
	ChapterID   string `db:"chapter_id" json:"chapter_id" validate:"required"`
	Title       string `db:"title" json:"title" validate:"required,max=200"`
	Description string `db:"description" json:"description" validate:"max=5000"`
	SortOrder   int    `db:"sort_order" json:"sort_order"`
}

func (s Section) Kind() course.Kind { return course.KindSection }
func (s Section) Parent() course.Ref {
	return course.Ref{Kind: course.KindChapter, ID: s.ChapterID}
}

// Video belongs to either a chapter or a section, never both.
type Video struct {
	Base
	ChapterID       null.String `db:"chapter_id" json:"chapter_id"`
	SectionID       null.String `db:"section_id" json:"section_id"`
	Title           string      `db:"title" json:"title" validate:"required,max=200"`
	Description     string      `db:"description" json:"description" validate:"max=5000"`
	URL             string      `db:"url" json:"url" validate:"required,url"`
	DurationSeconds int         `db:"duration_seconds" json:"duration_seconds" validate:"min=0"`
	SortOrder       int         `db:"sort_order" json:"sort_order"`
}

func (v Video) Kind() course.Kind { return course.KindVideo }
func (v Video) Parent() course.Ref {
	return either(course.KindChapter, v.ChapterID, course.KindSection, v.SectionID)
}

type Document struct {
	Base
	ChapterID   null.String `db:"chapter_id" json:"chapter_id"`
	SectionID   null.String `db:"section_id" json:"section_id"`
	Title       string      `db:"title" json:"title" validate:"required,max=200"`
	Description string      `db:"description" json:"description" validate:"max=5000"`
	URL         string      `db:"url" json:"url" validate:"required,url"`
	SortOrder   int         `db:"sort_order" json:"sort_order"`
}

func (d Document) Kind() course.Kind { return course.KindDocument }
func (d Document) Parent() course.Ref {
	return either(course.KindChapter, d.ChapterID, course.KindSection, d.SectionID)
}

type Page struct {
	Base
	CourseID string `db:"course_id" json:"course_id" validate:"required"`
	Title    string `db:"title" json:"title" validate:"required,max=200"`
	Body     string `db:"body" json:"body"`
}

func (p Page) Kind() course.Kind  { return course.KindPage }
func (p Page) Parent() course.Ref { return courseRef(p.CourseID) }

type Schedule struct {
	Base
	CourseID    string    `db:"course_id" json:"course_id" validate:"required"`
	Title       string    `db:"title" json:"title" validate:"required,max=200"`
	Description string    `db:"description" json:"description" validate:"max=5000"`
	StartsAt    time.Time `db:"starts_at" json:"starts_at" validate:"required"`
	EndsAt      null.Time `db:"ends_at" json:"ends_at"`
}

func (s Schedule) Kind() course.Kind  { return course.KindSchedule }
func (s Schedule) Parent() course.Ref { return courseRef(s.CourseID) }

type Announcement struct {
	Base
	CourseID string `db:"course_id" json:"course_id" validate:"required"`
	Title    string `db:"title" json:"title" validate:"required,max=200"`
	Body     string `db:"body" json:"body" validate:"required"`
}

func (a Announcement) Kind() course.Kind  { return course.KindAnnouncement }
func (a Announcement) Parent() course.Ref { return courseRef(a.CourseID) }

type Notification struct {
	Base
	CourseID string `db:"course_id" json:"course_id" validate:"required"`
	Message  string `db:"message" json:"message" validate:"required,max=500"`
	Link     string `db:"link" json:"link" validate:"omitempty,url"`
}

func (n Notification) Kind() course.Kind  { return course.KindNotification }
func (n Notification) Parent() course.Ref { return courseRef(n.CourseID) }

// Email is a notice mailed to every enrolled member of the course when created.
type Email struct {
	Base
	CourseID string `db:"course_id" json:"course_id" validate:"required"`
	Subject  string `db:"subject" json:"subject" validate:"required,max=200"`
	Body     string `db:"body" json:"body" validate:"required"`
}

func (e Email) Kind() course.Kind  { return course.KindEmail }
func (e Email) Parent() course.Ref { return courseRef(e.CourseID) }

// quizzes

type Quiz struct {
	Base
	ChapterID        null.String `db:"chapter_id" json:"chapter_id"`
	SectionID        null.String `db:"section_id" json:"section_id"`
	Title            string      `db:"title" json:"title" validate:"required,max=200"`
	Description      string      `db:"description" json:"description" validate:"max=5000"`
	TimeLimitMinutes int         `db:"time_limit_minutes" json:"time_limit_minutes" validate:"min=0"`
	Published        bool        `db:"published" json:"published"`
}

func (q Quiz) Kind() course.Kind { return course.KindQuiz }
func (q Quiz) Parent() course.Ref {
	return either(course.KindChapter, q.ChapterID, course.KindSection, q.SectionID)
}
func (q Quiz) IsPublished() bool { return q.Published }

type SectionMarker struct {
	Base
	VideoID   string `db:"video_id" json:"video_id" validate:"required"`
	Title     string `db:"title" json:"title" validate:"required,max=200"`
	AtSeconds int    `db:"at_seconds" json:"at_seconds" validate:"min=0"`
}

func (m SectionMarker) Kind() course.Kind { return course.KindSectionMarker }
func (m SectionMarker) Parent() course.Ref {
	return course.Ref{Kind: course.KindVideo, ID: m.VideoID}
}

// QuizMarker pops a quiz at some point of a video.
type QuizMarker struct {
	Base
	VideoID   string      `db:"video_id" json:"video_id" validate:"required"`
	QuizID    null.String `db:"quiz_id" json:"quiz_id"`
	AtSeconds int         `db:"at_seconds" json:"at_seconds" validate:"min=0"`
}

func (m QuizMarker) Kind() course.Kind { return course.KindQuizMarker }
func (m QuizMarker) Parent() course.Ref {
	return course.Ref{Kind: course.KindVideo, ID: m.VideoID}
}

type QuestionModule struct {
	Base
	QuizID    string `db:"quiz_id" json:"quiz_id" validate:"required"`
	Title     string `db:"title" json:"title" validate:"required,max=200"`
	SortOrder int    `db:"sort_order" json:"sort_order"`
}

func (m QuestionModule) Kind() course.Kind { return course.KindQuestionModule }
func (m QuestionModule) Parent() course.Ref {
	return course.Ref{Kind: course.KindQuiz, ID: m.QuizID}
}

// Question of a quiz. Answer holds the correct option(s) for single and multiple correct questions,
// and the accepted answers for fixed answer questions.
type Question struct {
	Base
	QuestionModuleID string          `db:"question_module_id" json:"question_module_id" validate:"required"`
	QuestionType     string          `db:"kind" json:"kind" validate:"required,oneof=single_correct multiple_correct fixed_answer descriptive"`
	Prompt           string          `db:"prompt" json:"prompt" validate:"required"`
	Options          core.StringList `db:"options" json:"options"`
	Answer           core.StringList `db:"answer" json:"answer,omitempty"`
	Marks            int             `db:"marks" json:"marks" validate:"min=0"`
	SortOrder        int             `db:"sort_order" json:"sort_order"`
}

func (q Question) Kind() course.Kind { return course.KindQuestion }
func (q Question) Parent() course.Ref {
	return course.Ref{Kind: course.KindQuestionModule, ID: q.QuestionModuleID}
}
func (q *Question) Redact() { q.Answer = nil }

// assignments

type Assignment struct {
	Base
	CourseID    string    `db:"course_id" json:"course_id" validate:"required"`
	Title       string    `db:"title" json:"title" validate:"required,max=200"`
	Description string    `db:"description" json:"description" validate:"max=5000"`
	DueAt       null.Time `db:"due_at" json:"due_at"`
	MaxMarks    int       `db:"max_marks" json:"max_marks" validate:"min=0"`
	Published   bool      `db:"published" json:"published"`
}

func (a Assignment) Kind() course.Kind  { return course.KindAssignment }
func (a Assignment) Parent() course.Ref { return courseRef(a.CourseID) }
func (a Assignment) IsPublished() bool  { return a.Published }

// IsLate reports whether a submission made at t is past the due date.
func (a Assignment) IsLate(t time.Time) bool {
	return a.DueAt.Valid && t.After(a.DueAt.Time)
}

type AssignmentSection struct {
	Base
	AssignmentID string `db:"assignment_id" json:"assignment_id" validate:"required"`
	Title        string `db:"title" json:"title" validate:"required,max=200"`
	Description  string `db:"description" json:"description" validate:"max=5000"`
	SortOrder    int    `db:"sort_order" json:"sort_order"`
}

func (s AssignmentSection) Kind() course.Kind { return course.KindAssignmentSection }
func (s AssignmentSection) Parent() course.Ref {
	return course.Ref{Kind: course.KindAssignment, ID: s.AssignmentID}
}

type SimpleProgrammingAssignment struct {
	Base
	AssignmentID string `db:"assignment_id" json:"assignment_id" validate:"required"`
	Title        string `db:"title" json:"title" validate:"required,max=200"`
	Description  string `db:"description" json:"description" validate:"max=5000"`
	Language     string `db:"language" json:"language" validate:"required,max=32"`
	StarterCode  string `db:"starter_code" json:"starter_code"`
}

func (a SimpleProgrammingAssignment) Kind() course.Kind {
	return course.KindSimpleProgrammingAssignment
}
func (a SimpleProgrammingAssignment) Parent() course.Ref {
	return course.Ref{Kind: course.KindAssignment, ID: a.AssignmentID}
}

type AdvancedProgrammingAssignment struct {
	Base
	SimpleProgrammingAssignmentID string `db:"simple_programming_assignment_id" json:"simple_programming_assignment_id" validate:"required"`
	Title                         string `db:"title" json:"title" validate:"required,max=200"`
	Description                   string `db:"description" json:"description" validate:"max=5000"`
	BuildCommand                  string `db:"build_command" json:"build_command"`
	RunCommand                    string `db:"run_command" json:"run_command"`
}

func (a AdvancedProgrammingAssignment) Kind() course.Kind {
	return course.KindAdvancedProgrammingAssignment
}
func (a AdvancedProgrammingAssignment) Parent() course.Ref {
	return course.Ref{Kind: course.KindSimpleProgrammingAssignment, ID: a.SimpleProgrammingAssignmentID}
}

type Exam struct {
	Base
	AssignmentID    string    `db:"assignment_id" json:"assignment_id" validate:"required"`
	Title           string    `db:"title" json:"title" validate:"required,max=200"`
	Description     string    `db:"description" json:"description" validate:"max=5000"`
	StartsAt        time.Time `db:"starts_at" json:"starts_at" validate:"required"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes" validate:"min=0"`
}

func (e Exam) Kind() course.Kind { return course.KindExam }
func (e Exam) Parent() course.Ref {
	return course.Ref{Kind: course.KindAssignment, ID: e.AssignmentID}
}

type SubjectiveAssignment struct {
	Base
	AssignmentID string `db:"assignment_id" json:"assignment_id" validate:"required"`
	Title        string `db:"title" json:"title" validate:"required,max=200"`
	Description  string `db:"description" json:"description" validate:"max=5000"`
	MaxMarks     int    `db:"max_marks" json:"max_marks" validate:"min=0"`
}

func (a SubjectiveAssignment) Kind() course.Kind { return course.KindSubjectiveAssignment }
func (a SubjectiveAssignment) Parent() course.Ref {
	return course.Ref{Kind: course.KindAssignment, ID: a.AssignmentID}
}

// Testcase belongs to either an assignment or an assignment section, never both.
type Testcase struct {
	Base
	AssignmentID        null.String `db:"assignment_id" json:"assignment_id"`
	AssignmentSectionID null.String `db:"assignment_section_id" json:"assignment_section_id"`
	Input               string      `db:"input" json:"input"`
	ExpectedOutput      string      `db:"expected_output" json:"expected_output"`
	Marks               int         `db:"marks" json:"marks" validate:"min=0"`
}

func (tc Testcase) Kind() course.Kind { return course.KindTestcase }
func (tc Testcase) Parent() course.Ref {
	return either(course.KindAssignment, tc.AssignmentID, course.KindAssignmentSection, tc.AssignmentSectionID)
}

// discussions & cribs

type DiscussionForum struct {
	Base
	CourseID    string `db:"course_id" json:"course_id" validate:"required"`
	Title       string `db:"title" json:"title" validate:"required,max=200"`
	Description string `db:"description" json:"description" validate:"max=5000"`
}

func (f DiscussionForum) Kind() course.Kind  { return course.KindDiscussionForum }
func (f DiscussionForum) Parent() course.Ref { return courseRef(f.CourseID) }

type DiscussionThread struct {
	Base
	ForumID  string `db:"forum_id" json:"forum_id" validate:"required"`
	AuthorID string `db:"author_id" json:"author_id"`
	Title    string `db:"title" json:"title" validate:"required,max=200"`
	Body     string `db:"body" json:"body" validate:"required"`
	Pinned   bool   `db:"pinned" json:"pinned"`
}

func (th DiscussionThread) Kind() course.Kind { return course.KindDiscussionThread }
func (th DiscussionThread) Parent() course.Ref {
	return course.Ref{Kind: course.KindDiscussionForum, ID: th.ForumID}
}
func (th DiscussionThread) Owner() string       { return th.AuthorID }
func (th *DiscussionThread) SetOwner(id string) { th.AuthorID = id }

type DiscussionComment struct {
	Base
	ThreadID string `db:"thread_id" json:"thread_id" validate:"required"`
	AuthorID string `db:"author_id" json:"author_id"`
	Body     string `db:"body" json:"body" validate:"required"`
}

func (cm DiscussionComment) Kind() course.Kind { return course.KindDiscussionComment }
func (cm DiscussionComment) Parent() course.Ref {
	return course.Ref{Kind: course.KindDiscussionThread, ID: cm.ThreadID}
}
func (cm DiscussionComment) Owner() string       { return cm.AuthorID }
func (cm *DiscussionComment) SetOwner(id string) { cm.AuthorID = id }

type DiscussionReply struct {
	Base
	CommentID string `db:"comment_id" json:"comment_id" validate:"required"`
	AuthorID  string `db:"author_id" json:"author_id"`
	Body      string `db:"body" json:"body" validate:"required"`
}

func (r DiscussionReply) Kind() course.Kind { return course.KindDiscussionReply }
func (r DiscussionReply) Parent() course.Ref {
	return course.Ref{Kind: course.KindDiscussionComment, ID: r.CommentID}
}
func (r DiscussionReply) Owner() string       { return r.AuthorID }
func (r *DiscussionReply) SetOwner(id string) { r.AuthorID = id }

// Crib is a question or complaint raised by a member to the course staff.
type Crib struct {
	Base
	CourseID  string `db:"course_id" json:"course_id" validate:"required"`
	CreatedBy string `db:"created_by" json:"created_by"`
	Title     string `db:"title" json:"title" validate:"required,max=200"`
	Body      string `db:"body" json:"body" validate:"required"`
	Resolved  bool   `db:"resolved" json:"resolved"`
}

func (cr Crib) Kind() course.Kind   { return course.KindCrib }
func (cr Crib) Parent() course.Ref  { return courseRef(cr.CourseID) }
func (cr Crib) Owner() string       { return cr.CreatedBy }
func (cr *Crib) SetOwner(id string) { cr.CreatedBy = id }

type CribReply struct {
	Base
	CribID    string `db:"crib_id" json:"crib_id" validate:"required"`
	CreatedBy string `db:"created_by" json:"created_by"`
	Body      string `db:"body" json:"body" validate:"required"`
}

func (r CribReply) Kind() course.Kind { return course.KindCribReply }
func (r CribReply) Parent() course.Ref {
	return course.Ref{Kind: course.KindCrib, ID: r.CribID}
}
func (r CribReply) Owner() string       { return r.CreatedBy }
func (r *CribReply) SetOwner(id string) { r.CreatedBy = id }

// progress

// VideoHistory is the progress of a user on a video. There is at most one per (video, user).
type VideoHistory struct {
	Base
	VideoID        string `db:"video_id" json:"video_id"`
	UserID         string `db:"user_id" json:"user_id"`
	SecondsWatched int    `db:"seconds_watched" json:"seconds_watched"`
	Completed      bool   `db:"completed" json:"completed"`
}

func (h VideoHistory) Kind() course.Kind { return course.KindVideoHistory }
func (h VideoHistory) Parent() course.Ref {
	return course.Ref{Kind: course.KindVideo, ID: h.VideoID}
}
func (h VideoHistory) Owner() string { return h.UserID }

// QuestionHistory is one answer of a user to a question. IsCorrect is null until graded.
type QuestionHistory struct {
	Base
	QuestionID    string          `db:"question_id" json:"question_id"`
	UserID        string          `db:"user_id" json:"user_id"`
	Answer        core.StringList `db:"answer" json:"answer"`
	IsCorrect     null.Bool       `db:"is_correct" json:"is_correct"`
	MarksObtained int             `db:"marks_obtained" json:"marks_obtained"`
}

func (h QuestionHistory) Kind() course.Kind { return course.KindQuestionHistory }
func (h QuestionHistory) Parent() course.Ref {
	return course.Ref{Kind: course.KindQuestion, ID: h.QuestionID}
}
func (h QuestionHistory) Owner() string { return h.UserID }

type AssignmentHistory struct {
	Base
	AssignmentID  string   `db:"assignment_id" json:"assignment_id"`
	UserID        string   `db:"user_id" json:"user_id"`
	Submission    string   `db:"submission" json:"submission"`
	Late          bool     `db:"late" json:"late"`
	MarksObtained null.Int `db:"marks_obtained" json:"marks_obtained"`
}

func (h AssignmentHistory) Kind() course.Kind { return course.KindAssignmentHistory }
func (h AssignmentHistory) Parent() course.Ref {
	return course.Ref{Kind: course.KindAssignment, ID: h.AssignmentID}
}
func (h AssignmentHistory) Owner() string { return h.UserID }

// inputs of the progress operations

type VideoProgress struct {
	SecondsWatched int  `json:"seconds_watched" validate:"min=0"`
	Completed      bool `json:"completed"`
}

type Answer struct {
	Answer []string `json:"answer" validate:"required,min=1,dive,max=5000"`
}

type Submission struct {
	Submission string `json:"submission" validate:"required,max=100000"`
}
