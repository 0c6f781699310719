package tests

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/content"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

type contentFixture struct {
	*testApp
	c              course.Course
	owner, student user.User
	ownerToken     string
	studentToken   string
	student2Token  string
	outsiderToken  string
	adminToken     string
}

func setupContent(t *testing.T) contentFixture {
	app := setup(t)
	owner := testutil.CreateUser(t, app.usrRepo, "Owner", "owner@test.cd", "", nil, true)
	student := testutil.CreateUser(t, app.usrRepo, "Student", "student@test.cd", "", nil, true)
	student2 := testutil.CreateUser(t, app.usrRepo, "Student 2", "student2@test.cd", "", nil, true)
	outsider := testutil.CreateUser(t, app.usrRepo, "Outsider", "outsider@test.cd", "", nil, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	c := testutil.CreateCourse(t, app.courseRepo, owner, "CS101", course.TypeOpen, true)
	testutil.Enroll(t, app.courseRepo, c.ID, student.ID, course.RoleStudent, course.StatusEnrolled)
	testutil.Enroll(t, app.courseRepo, c.ID, student2.ID, course.RoleStudent, course.StatusEnrolled)

	return contentFixture{
		testApp:       app,
		c:             c,
		owner:         owner,
		student:       student,
		ownerToken:    getToken(t, app.conf, owner),
		studentToken:  getToken(t, app.conf, student),
		student2Token: getToken(t, app.conf, student2),
		outsiderToken: getToken(t, app.conf, outsider),
		adminToken:    getToken(t, app.conf, admin),
	}
}

// post creates an item and returns its decoded JSON.
func (f contentFixture) post(t *testing.T, token, kind string, body interface{}) map[string]interface{} {
	req, rec := newAuthRequest(http.MethodPost, "/v1/content/"+kind, token, marchallObj(t, body))
	f.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var data map[string]interface{}
	decode(t, rec, &data)
	return data
}

func Test_contentApi_structural(t *testing.T) {
	f := setupContent(t)
	chapter := f.post(t, f.ownerToken, "chapter", echo.Map{"course_id": f.c.ID, "title": " Intro "})
	chID := chapter["id"].(string)
	assert.Equal(t, "Intro", chapter["title"])

	runHTTPTests(t, f.testApp, []httpTest{
		{
			name: "students cannot create", method: http.MethodPost, path: "/v1/content/chapter", token: f.studentToken,
			body:     marchallObj(t, echo.Map{"course_id": f.c.ID, "title": "Nope"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only instructors and TAs of this course may do this"}),
		},
		{
			name: "unknown parent", method: http.MethodPost, path: "/v1/content/chapter", token: f.ownerToken,
			body: marchallObj(t, echo.Map{"course_id": "lol", "title": "Nope"}), wantCode: http.StatusNotFound,
		},
		{
			name: "invalid", method: http.MethodPost, path: "/v1/content/chapter", token: f.ownerToken,
			body:     marchallObj(t, echo.Map{"course_id": f.c.ID}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "outsiders cannot read", path: "/v1/content/chapter/" + chID, token: f.outsiderToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "you are not registered in this course"}),
		},
		{name: "admins can read", path: "/v1/content/chapter/" + chID, token: f.adminToken},
		{
			name: "parent required", path: "/v1/content/chapter", token: f.studentToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"parent_id": "this field is required"}),
		},
		{
			name: "wrong parent kind", path: "/v1/content/chapter?parent_id=x&parent_kind=video", token: f.studentToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "update", method: http.MethodPut, path: "/v1/content/chapter/" + chID, token: f.ownerToken,
			body: marchallObj(t, echo.Map{"title": "Introduction"}),
		},
		{name: "unknown kind", path: "/v1/content/lol/" + chID, token: f.ownerToken, wantCode: http.StatusNotFound},
		{name: "courses are not content", path: "/v1/content/course/" + f.c.ID, token: f.ownerToken, wantCode: http.StatusNotFound},
		{
			name: "histories are not content", path: "/v1/content/video_history/" + chID, token: f.ownerToken,
			wantCode: http.StatusNotFound,
		},
	})

	req, rec := newAuthRequest(http.MethodGet, "/v1/content/chapter?parent_id="+f.c.ID, f.studentToken)
	f.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var chapters []content.Chapter
	decode(t, rec, &chapters)
	require.Len(t, chapters, 1)
	assert.Equal(t, "Introduction", chapters[0].Title)
	assert.Equal(t, f.c.ID, chapters[0].CourseID)

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/content/chapter/"+chID, f.studentToken)
		f.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		req, rec = newAuthRequest(http.MethodDelete, "/v1/content/chapter/"+chID, f.ownerToken)
		f.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/content/chapter/"+chID, f.ownerToken)
		f.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_contentApi_videoProgress(t *testing.T) {
	f := setupContent(t)
	chapter := f.post(t, f.ownerToken, "chapter", echo.Map{"course_id": f.c.ID, "title": "Intro"})
	video := f.post(t, f.ownerToken, "video", echo.Map{
		"chapter_id": chapter["id"], "title": "Welcome", "url": "https://videos.test.cd/welcome.mp4",
	})
	path := "/v1/content/video/" + video["id"].(string)

	progress := func(body string) content.VideoHistory {
		req, rec := newAuthRequest(http.MethodPut, path+"/progress", f.studentToken, []byte(body))
		f.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var h content.VideoHistory
		decode(t, rec, &h)
		return h
	}

	h := progress(`{"seconds_watched": 120}`)
	assert.Equal(t, 120, h.SecondsWatched)
	assert.False(t, h.Completed)

	h2 := progress(`{"seconds_watched": 60, "completed": true}`)
	assert.Equal(t, h.ID, h2.ID)
	assert.Equal(t, 120, h2.SecondsWatched)
	assert.True(t, h2.Completed)

	h3 := progress(`{"seconds_watched": 0}`)
	assert.True(t, h3.Completed)

	runHTTPTests(t, f.testApp, []httpTest{
		{
			name: "negative", method: http.MethodPut, path: path + "/progress", token: f.studentToken,
			body: []byte(`{"seconds_watched": -1}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "outsiders", method: http.MethodPut, path: path + "/progress", token: f.outsiderToken,
			body: []byte(`{"seconds_watched": 1}`), wantCode: http.StatusForbidden,
		},
		{
			name: "videos only", method: http.MethodPut, path: "/v1/content/chapter/" + chapter["id"].(string) + "/progress",
			token: f.studentToken, body: []byte(`{"seconds_watched": 1}`), wantCode: http.StatusNotFound,
		},
		{
			name: "no history for chapters", path: "/v1/content/chapter/" + chapter["id"].(string) + "/history",
			token: f.studentToken, wantCode: http.StatusBadRequest,
		},
		{name: "no history yet", path: path + "/history", token: f.student2Token, wantData: []byte(`[]`)},
	})

	req, rec := newAuthRequest(http.MethodGet, path+"/history", f.studentToken)
	f.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var histories []content.VideoHistory
	decode(t, rec, &histories)
	require.Len(t, histories, 1)
	assert.Equal(t, f.student.ID, histories[0].UserID)
	assert.Equal(t, 120, histories[0].SecondsWatched)
}

func Test_contentApi_questions(t *testing.T) {
	f := setupContent(t)
	chapter := f.post(t, f.ownerToken, "chapter", echo.Map{"course_id": f.c.ID, "title": "Intro"})
	quiz := f.post(t, f.ownerToken, "quiz", echo.Map{"chapter_id": chapter["id"], "title": "Warm up"})
	module := f.post(t, f.ownerToken, "question_module", echo.Map{"quiz_id": quiz["id"], "title": "Maths"})
	question := f.post(t, f.ownerToken, "question", echo.Map{
		"question_module_id": module["id"],
		"kind":               content.QuestionSingleCorrect,
		"prompt":             "2 + 2 = ?",
		"options":            []string{"3", "4"},
		"answer":             []string{"4"},
		"marks":              2,
	})
	quizPath := "/v1/content/quiz/" + quiz["id"].(string)
	path := "/v1/content/question/" + question["id"].(string)

	get := func(token string) map[string]interface{} {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		f.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var data map[string]interface{}
		decode(t, rec, &data)
		return data
	}
	answer := func(ans string) content.QuestionHistory {
		req, rec := newAuthRequest(http.MethodPost, path+"/answer", f.studentToken, []byte(`{"answer": ["`+ans+`"]}`))
		f.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var h content.QuestionHistory
		decode(t, rec, &h)
		return h
	}

	// the quiz is not published yet
	runHTTPTests(t, f.testApp, []httpTest{
		{name: "hidden quiz", path: quizPath, token: f.studentToken, wantCode: http.StatusNotFound},
		{name: "staff see drafts", path: quizPath, token: f.ownerToken},
		{
			name: "publish", method: http.MethodPut, path: quizPath, token: f.ownerToken,
			body: []byte(`{"published": true}`),
		},
	})

	assert.Equal(t, []interface{}{"4"}, get(f.ownerToken)["answer"])
	_, ok := get(f.studentToken)["answer"]
	assert.False(t, ok, "the answer key is hidden from students")

	h := answer(" 4 ")
	assert.Equal(t, true, h.IsCorrect.Bool)
	assert.Equal(t, 2, h.MarksObtained)

	h = answer("3")
	assert.True(t, h.IsCorrect.Valid)
	assert.False(t, h.IsCorrect.Bool)
	assert.Equal(t, 0, h.MarksObtained)

	runHTTPTests(t, f.testApp, []httpTest{
		{
			name: "empty answer", method: http.MethodPost, path: path + "/answer", token: f.studentToken,
			body: []byte(`{"answer": []}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "questions only", method: http.MethodPost, path: quizPath + "/answer", token: f.studentToken,
			body: []byte(`{"answer": ["4"]}`), wantCode: http.StatusNotFound,
		},
	})

	req, rec := newAuthRequest(http.MethodGet, path+"/history", f.studentToken)
	f.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var histories []content.QuestionHistory
	decode(t, rec, &histories)
	assert.Len(t, histories, 2)
}

func Test_contentApi_discussions(t *testing.T) {
	f := setupContent(t)
	forum := f.post(t, f.ownerToken, "discussion_forum", echo.Map{"course_id": f.c.ID, "title": "General"})
	thread := f.post(t, f.studentToken, "discussion_thread", echo.Map{
		"forum_id": forum["id"], "title": "Hello", "body": "First!", "author_id": f.owner.ID,
	})
	assert.Equal(t, f.student.ID, thread["author_id"])
	path := "/v1/content/discussion_thread/" + thread["id"].(string)

	runHTTPTests(t, f.testApp, []httpTest{
		{
			name: "outsiders cannot post", method: http.MethodPost, path: "/v1/content/discussion_thread", token: f.outsiderToken,
			body:     marchallObj(t, echo.Map{"forum_id": forum["id"], "title": "Spam", "body": "Spam"}),
			wantCode: http.StatusForbidden,
		},
		{
			name: "other students cannot edit", method: http.MethodPut, path: path, token: f.student2Token,
			body:     []byte(`{"title": "Hijacked"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only the owner may do this"}),
		},
		{
			name: "other students cannot delete", method: http.MethodDelete, path: path, token: f.student2Token,
			wantCode: http.StatusForbidden,
		},
		{name: "admins can edit", method: http.MethodPut, path: path, token: f.adminToken, body: []byte(`{"pinned": true}`)},
	})

	req, rec := newAuthRequest(http.MethodPut, path, f.studentToken, []byte(`{"title": "Hello world", "author_id": "lol"}`))
	f.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated content.DiscussionThread
	decode(t, rec, &updated)
	assert.Equal(t, "Hello world", updated.Title)
	assert.Equal(t, "First!", updated.Body)
	assert.True(t, updated.Pinned)
	assert.Equal(t, f.student.ID, updated.AuthorID)

	t.Run("locate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path+"/course", f.student2Token)
		f.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var loc course.Location
		decode(t, rec, &loc)
		assert.Equal(t, f.c.ID, loc.Course.ID)
		assert.Equal(t, f.student.ID, loc.OwnerID)

		req, rec = newAuthRequest(http.MethodGet, "/v1/content/course/"+f.c.ID+"/course", f.outsiderToken)
		f.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/content/course/"+f.c.ID+"/course", f.studentToken)
		f.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &loc)
		assert.Equal(t, f.owner.ID, loc.OwnerID)
	})
}
