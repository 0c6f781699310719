package content

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// memStore is a Repository, a course.Graph and a course.MembershipReader at once.
type memStore struct {
	items   map[course.Ref]Item
	courses map[string]course.Course
	members map[string]course.Member
}

func newMemStore() *memStore {
	return &memStore{
		items:   make(map[course.Ref]Item),
		courses: make(map[string]course.Course),
		members: make(map[string]course.Member),
	}
}

func (s *memStore) addCourse(id string) {
	s.courses[id] = course.Course{ID: id, OwnerID: "owner-" + id, Title: "Course " + id, Code: id, Type: course.TypeOpen}
}

func (s *memStore) addMember(courseID, userID, role, status string) {
	s.members[courseID+"/"+userID] = course.Member{
		CourseHistory: course.CourseHistory{ID: core.NewID(), CourseID: courseID, UserID: userID, Role: role, Status: status},
		Name:          userID,
		Email:         userID + "@test.cd",
	}
}

func (s *memStore) put(it Item) Item {
	if it.GetID() == "" {
		it.SetID(core.NewID())
	}
	s.items[course.Ref{Kind: it.Kind(), ID: it.GetID()}] = it
	return it
}

func (s *memStore) ListItems(_ context.Context, kind course.Kind, f Filter) ([]Item, error) {
	var items []Item
	for ref, it := range s.items {
		if ref.Kind != kind || it.Parent() != f.Parent {
			continue
		}
		if f.OwnerID != "" {
			if o, ok := it.(course.Owned); !ok || o.Owner() != f.OwnerID {
				continue
			}
		}
		items = append(items, clone(it))
	}
	return items, nil
}

// clone copies an item, like reading it again from a database would.
func clone(it Item) Item {
	cp := reflect.New(reflect.TypeOf(it).Elem())
	cp.Elem().Set(reflect.ValueOf(it).Elem())
	return cp.Interface().(Item)
}

func (s *memStore) GetItem(_ context.Context, kind course.Kind, id string) (Item, error) {
	it, ok := s.items[course.Ref{Kind: kind, ID: id}]
	if !ok {
		return nil, core.NewNotFoundError(string(kind), id)
	}
	return clone(it), nil
}

func (s *memStore) CreateItem(_ context.Context, it Item) error {
	s.put(it)
	return nil
}

func (s *memStore) UpdateItem(_ context.Context, it Item) error {
	s.put(it)
	return nil
}

func (s *memStore) DeleteItem(_ context.Context, kind course.Kind, id string) error {
	delete(s.items, course.Ref{Kind: kind, ID: id})
	return nil
}

func (s *memStore) LoadNode(ctx context.Context, ref course.Ref) (course.Node, error) {
	return s.GetItem(ctx, ref.Kind, ref.ID)
}

func (s *memStore) GetCourse(_ context.Context, id string) (course.Course, error) {
	c, ok := s.courses[id]
	if !ok {
		return course.Course{}, core.NewNotFoundError(string(course.KindCourse), id)
	}
	return c, nil
}

func (s *memStore) GetCourseHistory(_ context.Context, courseID, userID string, _ ...core.DBExecutor) (course.CourseHistory, error) {
	m, ok := s.members[courseID+"/"+userID]
	if !ok {
		return course.CourseHistory{}, core.NewNotFoundError(string(course.KindCourseHistory), userID)
	}
	return m.CourseHistory, nil
}

func (s *memStore) ListMembers(_ context.Context, courseID string, statuses ...string) ([]course.Member, error) {
	var members []course.Member
	for _, m := range s.members {
		if m.CourseID == courseID && (len(statuses) == 0 || core.StringInSlice(m.Status, statuses)) {
			members = append(members, m)
		}
	}
	return members, nil
}

type mailMock struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

func (m *mailMock) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages...)
}

func newTestService(t *testing.T) (*Service, *memStore, *mailMock) {
	t.Helper()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	store := newMemStore()
	store.addCourse("c1")
	store.addCourse("c2")
	store.addMember("c1", "owner-c1", course.RoleInstructor, course.StatusEnrolled)
	store.addMember("c1", "ta", course.RoleTA, course.StatusEnrolled)
	store.addMember("c1", "student", course.RoleStudent, course.StatusEnrolled)
	store.addMember("c1", "student2", course.RoleStudent, course.StatusEnrolled)
	store.addMember("c1", "pending", course.RoleStudent, course.StatusPending)
	store.addMember("c2", "ta", course.RoleTA, course.StatusEnrolled)

	auth := course.NewAuthorizer(course.NewResolver(store), store)
	mails := &mailMock{}
	conf := &core.Config{DefaultFromEmailName: "Darasa", DefaultFromEmailAddress: "noreply@darasa.test"}
	return NewService(store, auth, store, mails, validate, nopLogger{}, conf), store, mails
}

var (
	ta       = user.User{ID: "ta"}
	student  = user.User{ID: "student"}
	student2 = user.User{ID: "student2"}
	stranger = user.User{ID: "stranger"}
)

func TestService_CreateStructural(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	ch, err := svc.Create(ctx, ta, &Chapter{CourseID: "c1", Title: "  Basics  "})
	require.NoError(t, err)
	assert.NotEmpty(t, ch.GetID())
	assert.Equal(t, "Basics", ch.(*Chapter).Title)
	assert.Contains(t, store.items, course.Ref{Kind: course.KindChapter, ID: ch.GetID()})

	_, err = svc.Create(ctx, student, &Chapter{CourseID: "c1", Title: "Mine"})
	assert.True(t, core.IsForbidden(err))

	_, err = svc.Create(ctx, stranger, &Page{CourseID: "c1", Title: "Nope"})
	assert.True(t, core.IsForbidden(err))

	_, err = svc.Create(ctx, ta, &Page{CourseID: "c404", Title: "Lost"})
	assert.True(t, core.IsNotFound(err))

	_, err = svc.Create(ctx, user.User{}, &Page{CourseID: "c1", Title: "Anonymous"})
	assert.Equal(t, core.ErrUnauthenticated, err)
}

func TestService_CreateValidation(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	ch := store.put(&Chapter{CourseID: "c1", Title: "Basics"})
	sec := store.put(&Section{ChapterID: ch.GetID(), Title: "Intro"})

	tests := []struct {
		name  string
		item  Item
		valid bool
	}{
		{name: "video in chapter", item: &Video{ChapterID: null.StringFrom(ch.GetID()), Title: "V", URL: "https://v.test/1"}, valid: true},
		{name: "video in section", item: &Video{SectionID: null.StringFrom(sec.GetID()), Title: "V", URL: "https://v.test/1"}, valid: true},
		{name: "video in both", item: &Video{
			ChapterID: null.StringFrom(ch.GetID()), SectionID: null.StringFrom(sec.GetID()), Title: "V", URL: "https://v.test/1",
		}},
		{name: "video in none", item: &Video{Title: "V", URL: "https://v.test/1"}},
		{name: "bad url", item: &Document{ChapterID: null.StringFrom(ch.GetID()), Title: "D", URL: "not a url"}},
		{name: "testcase without parent", item: &Testcase{Input: "1", ExpectedOutput: "1"}},
		{name: "single correct outside options", item: &Question{
			QuestionModuleID: "m1", QuestionType: QuestionSingleCorrect, Prompt: "?",
			Options: core.StringList{"a", "b"}, Answer: core.StringList{"c"},
		}},
		{name: "unknown question kind", item: &Question{QuestionModuleID: "m1", QuestionType: "essay", Prompt: "?"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, ta, tt.item)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.IsType(t, validator.ValidationErrors{}, err)
		})
	}
}

func TestService_UserGenerated(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	it, err := svc.Create(ctx, student, &Crib{CourseID: "c1", CreatedBy: "someone-else", Title: "Grade", Body: "My grade is wrong"})
	require.NoError(t, err)
	crib := it.(*Crib)
	assert.Equal(t, student.ID, crib.CreatedBy)

	_, err = svc.Create(ctx, stranger, &Crib{CourseID: "c1", Title: "Hi", Body: "Let me in"})
	assert.True(t, core.IsForbidden(err))

	// only the author may edit, and the author cannot be changed
	bind := func(it Item) error {
		c := it.(*Crib)
		c.Resolved = true
		c.CreatedBy = ta.ID
		return nil
	}
	_, err = svc.Update(ctx, ta, course.KindCrib, crib.ID, bind)
	assert.True(t, core.IsForbidden(err))
	_, err = svc.Update(ctx, student2, course.KindCrib, crib.ID, bind)
	assert.True(t, core.IsForbidden(err))

	it, err = svc.Update(ctx, student, course.KindCrib, crib.ID, bind)
	require.NoError(t, err)
	assert.True(t, it.(*Crib).Resolved)
	assert.Equal(t, student.ID, it.(*Crib).CreatedBy)

	reply, err := svc.Create(ctx, ta, &CribReply{CribID: crib.ID, Body: "Fixed"})
	require.NoError(t, err)
	assert.True(t, core.IsForbidden(svc.Delete(ctx, student, course.KindCribReply, reply.GetID())))
	assert.NoError(t, svc.Delete(ctx, ta, course.KindCribReply, reply.GetID()))
}

func TestService_Update(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	ch1 := store.put(&Chapter{CourseID: "c1", Title: "One"})
	ch2 := store.put(&Chapter{CourseID: "c1", Title: "Two"})
	foreign := store.put(&Chapter{CourseID: "c2", Title: "Elsewhere"})
	sec := store.put(&Section{ChapterID: ch1.GetID(), Title: "Intro"}).(*Section)
	sec.Touch(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	created := sec.CreatedAt

	moveTo := func(chapterID string) func(Item) error {
		return func(it Item) error {
			s := it.(*Section)
			s.ChapterID = chapterID
			s.ID = "hijacked"
			return nil
		}
	}

	it, err := svc.Update(ctx, ta, course.KindSection, sec.ID, moveTo(ch2.GetID()))
	require.NoError(t, err)
	assert.Equal(t, sec.ID, it.GetID())
	assert.Equal(t, ch2.GetID(), it.(*Section).ChapterID)
	assert.Equal(t, created, it.(*Section).CreatedAt)
	assert.True(t, it.(*Section).UpdatedAt.After(created))

	_, err = svc.Update(ctx, ta, course.KindSection, sec.ID, moveTo(foreign.GetID()))
	require.Error(t, err)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "parent", verr.Fields[0].Field)

	_, err = svc.Update(ctx, ta, course.KindSection, "missing", moveTo(ch2.GetID()))
	assert.True(t, core.IsNotFound(err))
}

func TestService_QuizMarkerReferences(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	ch := store.put(&Chapter{CourseID: "c1", Title: "One"})
	video := store.put(&Video{ChapterID: null.StringFrom(ch.GetID()), Title: "V", URL: "https://v.test/1"})
	quiz := store.put(&Quiz{ChapterID: null.StringFrom(ch.GetID()), Title: "Q"})
	foreignCh := store.put(&Chapter{CourseID: "c2", Title: "Elsewhere"})
	foreignQuiz := store.put(&Quiz{ChapterID: null.StringFrom(foreignCh.GetID()), Title: "Q"})

	_, err := svc.Create(ctx, ta, &QuizMarker{VideoID: video.GetID(), QuizID: null.StringFrom(quiz.GetID()), AtSeconds: 30})
	assert.NoError(t, err)

	_, err = svc.Create(ctx, ta, &QuizMarker{VideoID: video.GetID(), QuizID: null.StringFrom(foreignQuiz.GetID())})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "quiz_id", verr.Fields[0].Field)
}

func TestService_Visibility(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	ch := store.put(&Chapter{CourseID: "c1", Title: "One"})
	chRef := course.Ref{Kind: course.KindChapter, ID: ch.GetID()}
	draft := store.put(&Quiz{ChapterID: null.StringFrom(ch.GetID()), Title: "Draft"})
	live := store.put(&Quiz{ChapterID: null.StringFrom(ch.GetID()), Title: "Live", Published: true})
	mod := store.put(&QuestionModule{QuizID: live.GetID(), Title: "M"})
	q := store.put(&Question{
		QuestionModuleID: mod.GetID(), QuestionType: QuestionSingleCorrect, Prompt: "2+2?",
		Options: core.StringList{"3", "4"}, Answer: core.StringList{"4"}, Marks: 2,
	})

	quizzes, err := svc.List(ctx, student, course.KindQuiz, chRef)
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, live.GetID(), quizzes[0].GetID())

	quizzes, err = svc.List(ctx, ta, course.KindQuiz, chRef)
	require.NoError(t, err)
	assert.Len(t, quizzes, 2)

	_, err = svc.Get(ctx, student, course.KindQuiz, draft.GetID())
	assert.True(t, core.IsNotFound(err))

	_, err = svc.List(ctx, student, course.KindQuiz, course.Ref{Kind: course.KindPage, ID: "p1"})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)

	// answers are hidden from students
	got, err := svc.Get(ctx, ta, course.KindQuestion, q.GetID())
	require.NoError(t, err)
	assert.Equal(t, core.StringList{"4"}, got.(*Question).Answer)

	got, err = svc.Get(ctx, student, course.KindQuestion, q.GetID())
	require.NoError(t, err)
	assert.Empty(t, got.(*Question).Answer)
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name    string
		q       Question
		answer  []string
		correct null.Bool
		marks   int
	}{
		{
			name: "single correct", answer: []string{"b"}, correct: null.BoolFrom(true), marks: 3,
			q: Question{QuestionType: QuestionSingleCorrect, Answer: core.StringList{"b"}, Marks: 3},
		},
		{
			name: "single wrong", answer: []string{"a"}, correct: null.BoolFrom(false),
			q: Question{QuestionType: QuestionSingleCorrect, Answer: core.StringList{"b"}, Marks: 3},
		},
		{
			name: "single with two answers", answer: []string{"a", "b"}, correct: null.BoolFrom(false),
			q: Question{QuestionType: QuestionSingleCorrect, Answer: core.StringList{"b"}, Marks: 3},
		},
		{
			name: "multiple any order", answer: []string{"c", "a"}, correct: null.BoolFrom(true), marks: 2,
			q: Question{QuestionType: QuestionMultipleCorrect, Answer: core.StringList{"a", "c"}, Marks: 2},
		},
		{
			name: "multiple partial", answer: []string{"a"}, correct: null.BoolFrom(false),
			q: Question{QuestionType: QuestionMultipleCorrect, Answer: core.StringList{"a", "c"}, Marks: 2},
		},
		{
			name: "multiple extra", answer: []string{"a", "b", "c"}, correct: null.BoolFrom(false),
			q: Question{QuestionType: QuestionMultipleCorrect, Answer: core.StringList{"a", "c"}, Marks: 2},
		},
		{
			name: "fixed answer ignores case", answer: []string{"paris"}, correct: null.BoolFrom(true), marks: 1,
			q: Question{QuestionType: QuestionFixedAnswer, Answer: core.StringList{"Paris", "Lutetia"}, Marks: 1},
		},
		{
			name: "descriptive stays ungraded", answer: []string{"an essay"},
			q: Question{QuestionType: QuestionDescriptive, Marks: 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, marks := Grade(&tt.q, tt.answer)
			assert.Equal(t, tt.correct, correct)
			assert.Equal(t, tt.marks, marks)
		})
	}
}

func TestService_Progress(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	ch := store.put(&Chapter{CourseID: "c1", Title: "One"})
	video := store.put(&Video{ChapterID: null.StringFrom(ch.GetID()), Title: "V", URL: "https://v.test/1"})
	quiz := store.put(&Quiz{ChapterID: null.StringFrom(ch.GetID()), Title: "Q", Published: true})
	mod := store.put(&QuestionModule{QuizID: quiz.GetID(), Title: "M"})
	q := store.put(&Question{
		QuestionModuleID: mod.GetID(), QuestionType: QuestionFixedAnswer, Prompt: "Capital of France?",
		Answer: core.StringList{"Paris"}, Marks: 2,
	})
	due := store.put(&Assignment{CourseID: "c1", Title: "A1", Published: true, DueAt: null.TimeFrom(now.Add(-time.Hour))})
	draft := store.put(&Assignment{CourseID: "c1", Title: "A2"})

	t.Run("video progress never goes back", func(t *testing.T) {
		h, err := svc.RecordVideoProgress(ctx, student, video.GetID(), VideoProgress{SecondsWatched: 120})
		require.NoError(t, err)
		first := h.ID

		h, err = svc.RecordVideoProgress(ctx, student, video.GetID(), VideoProgress{SecondsWatched: 60, Completed: true})
		require.NoError(t, err)
		assert.Equal(t, first, h.ID)
		assert.Equal(t, 120, h.SecondsWatched)
		assert.True(t, h.Completed)

		hist, err := svc.MyHistory(ctx, student, course.Ref{Kind: course.KindVideo, ID: video.GetID()})
		require.NoError(t, err)
		assert.Len(t, hist, 1)

		_, err = svc.RecordVideoProgress(ctx, stranger, video.GetID(), VideoProgress{SecondsWatched: 1})
		assert.True(t, core.IsForbidden(err))
	})

	t.Run("answers are graded", func(t *testing.T) {
		h, err := svc.AnswerQuestion(ctx, student, q.GetID(), Answer{Answer: []string{"  paris "}})
		require.NoError(t, err)
		assert.Equal(t, null.BoolFrom(true), h.IsCorrect)
		assert.Equal(t, 2, h.MarksObtained)
		assert.Equal(t, core.StringList{"paris"}, h.Answer)

		_, err = svc.AnswerQuestion(ctx, student, q.GetID(), Answer{})
		assert.IsType(t, validator.ValidationErrors{}, err)
	})

	t.Run("late submissions are flagged", func(t *testing.T) {
		h, err := svc.SubmitAssignment(ctx, student, due.GetID(), Submission{Submission: "my work"})
		require.NoError(t, err)
		assert.True(t, h.Late)
		assert.False(t, h.MarksObtained.Valid)

		_, err = svc.SubmitAssignment(ctx, student, draft.GetID(), Submission{Submission: "early"})
		assert.True(t, core.IsForbidden(err))
	})

	t.Run("history of others is not listed", func(t *testing.T) {
		hist, err := svc.MyHistory(ctx, student2, course.Ref{Kind: course.KindAssignment, ID: due.GetID()})
		require.NoError(t, err)
		assert.Empty(t, hist)

		_, err = svc.MyHistory(ctx, student, course.Ref{Kind: course.KindPage, ID: "p1"})
		var verr *core.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestService_EmailNotice(t *testing.T) {
	svc, _, mails := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ta, &Email{CourseID: "c1", Subject: "Exam moved", Body: "The exam is now on Friday."})
	require.NoError(t, err)

	require.Len(t, mails.messages, 1)
	msg := mails.messages[0]
	assert.Equal(t, "[c1] Exam moved", msg.Subject)
	assert.Equal(t, "course_notice", msg.TemplateName)
	assert.Equal(t, "noreply@darasa.test", msg.To[0].Address)

	var bcc []string
	for _, addr := range msg.Bcc {
		bcc = append(bcc, addr.Address)
	}
	// pending members are not mailed
	assert.ElementsMatch(t, []string{"owner-c1@test.cd", "ta@test.cd", "student@test.cd", "student2@test.cd"}, bcc)
}

func TestService_Locate(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	crib := store.put(&Crib{CourseID: "c1", CreatedBy: "student", Title: "T", Body: "B"})
	ref := course.Ref{Kind: course.KindCrib, ID: crib.GetID()}

	loc, err := svc.Locate(ctx, ta, ref)
	require.NoError(t, err)
	assert.Equal(t, "c1", loc.Course.ID)
	assert.Equal(t, "student", loc.OwnerID)

	_, err = svc.Locate(ctx, stranger, ref)
	assert.True(t, core.IsForbidden(err))
}
