package sqlxrepos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_courseRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	usrRepo := NewUserRepository(db)
	repo := NewCourseRepository(db)

	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner@test.cd", "", nil, true)
	zoe := testutil.CreateUser(t, usrRepo, "Zoe", "zoe@test.cd", "", nil, true)
	amy := testutil.CreateUser(t, usrRepo, "Amy", "amy@test.cd", "", nil, true)
	c := testutil.CreateCourse(t, repo, owner, "CS101", course.TypeOpen, true)
	testutil.CreateCourse(t, repo, owner, "DRAFT", course.TypeOpen, false)

	t.Run("code is unique", func(t *testing.T) {
		dup := c
		dup.ID = core.NewID()
		err := repo.CreateCourse(ctx, dup)
		assert.True(t, core.IsConflict(err), "got %v", err)
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetCourse(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c, got)

		_, err = repo.GetCourse(ctx, "lol")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("counts & listings", func(t *testing.T) {
		n, err := repo.CountOwnedCourses(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		published, err := repo.ListPublishedCourses(ctx)
		require.NoError(t, err)
		require.Len(t, published, 1)
		assert.Equal(t, c.ID, published[0].ID)

		mine, err := repo.ListUserCourses(ctx, owner.ID)
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		none, err := repo.ListUserCourses(ctx, zoe.ID)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("upsert keeps enrolled members enrolled", func(t *testing.T) {
		now := core.Now()
		h := course.CourseHistory{
			ID: core.NewID(), CourseID: c.ID, UserID: zoe.ID, Role: course.RoleStudent, Status: course.StatusEnrolled,
			CreatedAt: now, UpdatedAt: now,
		}
		stored, err := repo.UpsertCourseHistory(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, h, stored)

		again := h
		again.ID = core.NewID()
		again.Status = course.StatusPending
		stored, err = repo.UpsertCourseHistory(ctx, again)
		require.NoError(t, err)
		assert.Equal(t, h.ID, stored.ID)
		assert.Equal(t, course.StatusEnrolled, stored.Status)

		stored.Status = course.StatusUnenrolled
		stored.Role = course.RoleTA
		require.NoError(t, repo.UpdateCourseHistory(ctx, stored))

		stored, err = repo.UpsertCourseHistory(ctx, again)
		require.NoError(t, err)
		assert.Equal(t, course.StatusPending, stored.Status)
		assert.Equal(t, course.RoleTA, stored.Role)
	})

	t.Run("members", func(t *testing.T) {
		testutil.Enroll(t, repo, c.ID, amy.ID, course.RoleStudent, course.StatusEnrolled)

		members, err := repo.ListMembers(ctx, c.ID)
		require.NoError(t, err)
		names := make([]string, 0, len(members))
		for _, m := range members {
			names = append(names, m.Name)
		}
		assert.Equal(t, []string{"Amy", "Owner", "Zoe"}, names)

		members, err = repo.ListMembers(ctx, c.ID, course.StatusPending, course.StatusUnenrolled)
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, "zoe@test.cd", members[0].Email)
	})

	t.Run("bulk create skips existing memberships", func(t *testing.T) {
		now := core.Now()
		newcomer := testutil.CreateUser(t, usrRepo, "Newcomer", "new@test.cd", "", nil, true)
		hs := []course.CourseHistory{
			{ID: core.NewID(), CourseID: c.ID, UserID: amy.ID, Role: course.RoleStudent, Status: course.StatusEnrolled, CreatedAt: now, UpdatedAt: now},
			{ID: core.NewID(), CourseID: c.ID, UserID: newcomer.ID, Role: course.RoleStudent, Status: course.StatusEnrolled, CreatedAt: now, UpdatedAt: now},
		}
		n, err := repo.BulkCreateCourseHistories(ctx, hs)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := repo.GetHistoriesByUsers(ctx, c.ID, []string{amy.ID, newcomer.ID, "lol"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteCourse(ctx, c.ID))
		assert.True(t, core.IsNotFound(repo.DeleteCourse(ctx, c.ID)))
		_, err := repo.GetCourseHistory(ctx, c.ID, amy.ID)
		assert.True(t, core.IsNotFound(err), "memberships are deleted with their course")
	})
}

func Test_userRepository_bulk(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	repo := NewUserRepository(db)
	existing := testutil.CreateUser(t, repo, "Existing", "existing@test.cd", "", nil, true)

	now := core.Now()
	users := []user.User{
		{ID: core.NewID(), Name: "A", Email: "a@test.cd", IsActive: true, Roles: core.StringList{}, CreatedAt: now, UpdatedAt: now},
		{ID: core.NewID(), Name: "Existing", Email: existing.Email, IsActive: true, Roles: core.StringList{}, CreatedAt: now, UpdatedAt: now},
	}
	n, err := repo.BulkCreateUsers(ctx, users)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetUsersByEmail(ctx, []string{"a@test.cd", existing.Email, "nobody@test.cd"})
	require.NoError(t, err)
	ids := map[string]string{}
	for _, u := range got {
		ids[u.Email] = u.ID
	}
	assert.Equal(t, map[string]string{"a@test.cd": users[0].ID, existing.Email: existing.ID}, ids)

	require.NoError(t, repo.BulkCreateProfiles(ctx, []user.Profile{{UserID: users[0].ID, CreatedAt: now}}))
	p, err := repo.GetProfile(ctx, users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, users[0].ID, p.UserID)
}

func Test_contentRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	usrRepo := NewUserRepository(db)
	repo := NewContentRepository(db)
	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner@test.cd", "", nil, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "student@test.cd", "", nil, true)
	c := testutil.CreateCourse(t, NewCourseRepository(db), owner, "CS101", course.TypeOpen, true)

	newChapter := func(title string, order int) *content.Chapter {
		ch := &content.Chapter{CourseID: c.ID, Title: title, SortOrder: order}
		ch.SetID(core.NewID())
		ch.Touch(core.Now())
		require.NoError(t, repo.CreateItem(ctx, ch))
		return ch
	}
	second := newChapter("Second", 2)
	first := newChapter("First", 1)

	items, err := repo.ListItems(ctx, course.KindChapter, content.Filter{Parent: course.Ref{Kind: course.KindCourse, ID: c.ID}})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].GetID())
	assert.Equal(t, second.ID, items[1].GetID())

	video := &content.Video{ChapterID: null.StringFrom(first.ID), Title: "Welcome", URL: "https://videos.test.cd/1.mp4"}
	video.SetID(core.NewID())
	video.Touch(core.Now())
	require.NoError(t, repo.CreateItem(ctx, video))

	got, err := repo.GetItem(ctx, course.KindVideo, video.ID)
	require.NoError(t, err)
	assert.Equal(t, video, got)

	t.Run("owner filter", func(t *testing.T) {
		h := &content.VideoHistory{VideoID: video.ID, UserID: student.ID, SecondsWatched: 10}
		h.SetID(core.NewID())
		h.Touch(core.Now())
		require.NoError(t, repo.CreateItem(ctx, h))

		ref := course.Ref{Kind: course.KindVideo, ID: video.ID}
		mine, err := repo.ListItems(ctx, course.KindVideoHistory, content.Filter{Parent: ref, OwnerID: student.ID})
		require.NoError(t, err)
		assert.Len(t, mine, 1)

		theirs, err := repo.ListItems(ctx, course.KindVideoHistory, content.Filter{Parent: ref, OwnerID: owner.ID})
		require.NoError(t, err)
		assert.Empty(t, theirs)

		_, err = repo.ListItems(ctx, course.KindChapter, content.Filter{OwnerID: owner.ID})
		assert.ErrorIs(t, err, course.ErrUnsupportedKind)
	})

	t.Run("update & delete", func(t *testing.T) {
		first.Title = "Introduction"
		require.NoError(t, repo.UpdateItem(ctx, first))
		got, err := repo.GetItem(ctx, course.KindChapter, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Introduction", got.(*content.Chapter).Title)

		require.NoError(t, repo.DeleteItem(ctx, course.KindChapter, first.ID))
		assert.True(t, core.IsNotFound(repo.DeleteItem(ctx, course.KindChapter, first.ID)))
		_, err = repo.GetItem(ctx, course.KindVideo, video.ID)
		assert.True(t, core.IsNotFound(err), "children are deleted with their parent")
	})
}
