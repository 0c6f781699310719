package course

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

type fakeNode struct {
	kind   Kind
	parent Ref
}

func (n fakeNode) Kind() Kind  { return n.kind }
func (n fakeNode) Parent() Ref { return n.parent }

type ownedNode struct {
	fakeNode
	owner string
}

func (n ownedNode) Owner() string { return n.owner }

// fakeGraph stores nodes by ref, and counts loads.
type fakeGraph struct {
	nodes   map[Ref]Node
	courses map[string]Course
	loads   int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{nodes: make(map[Ref]Node), courses: make(map[string]Course)}
}

func (g *fakeGraph) add(kind Kind, id string, parent Ref, owner ...string) Ref {
	ref := Ref{Kind: kind, ID: id}
	var n Node = fakeNode{kind: kind, parent: parent}
	if len(owner) > 0 {
		n = ownedNode{fakeNode: fakeNode{kind: kind, parent: parent}, owner: owner[0]}
	}
	g.nodes[ref] = n
	return ref
}

func (g *fakeGraph) LoadNode(_ context.Context, ref Ref) (Node, error) {
	g.loads++
	n, ok := g.nodes[ref]
	if !ok {
		return nil, core.NewNotFoundError(string(ref.Kind), ref.ID)
	}
	return n, nil
}

func (g *fakeGraph) GetCourse(_ context.Context, id string) (Course, error) {
	c, ok := g.courses[id]
	if !ok {
		return Course{}, core.NewNotFoundError(string(KindCourse), id)
	}
	return c, nil
}

// buildCourseGraph builds one object of every kind, all in course c1.
func buildCourseGraph() (*fakeGraph, map[string]Ref) {
	g := newFakeGraph()
	g.courses["c1"] = Course{ID: "c1", OwnerID: "owner", Title: "Go 101", Code: "GO101", Type: TypeOpen}
	course := Ref{Kind: KindCourse, ID: "c1"}

	refs := make(map[string]Ref)
	refs["chapter"] = g.add(KindChapter, "ch1", course)
	refs["section"] = g.add(KindSection, "s1", refs["chapter"])
	refs["video in chapter"] = g.add(KindVideo, "v1", refs["chapter"])
	refs["video in section"] = g.add(KindVideo, "v2", refs["section"])
	refs["document in section"] = g.add(KindDocument, "d1", refs["section"])
	refs["quiz in section"] = g.add(KindQuiz, "q1", refs["section"])
	refs["section marker"] = g.add(KindSectionMarker, "sm1", refs["video in section"])
	refs["quiz marker"] = g.add(KindQuizMarker, "qm1", refs["video in chapter"])
	refs["question module"] = g.add(KindQuestionModule, "qmod1", refs["quiz in section"])
	refs["question"] = g.add(KindQuestion, "qu1", refs["question module"])
	refs["page"] = g.add(KindPage, "p1", course)
	refs["schedule"] = g.add(KindSchedule, "sch1", course)
	refs["announcement"] = g.add(KindAnnouncement, "an1", course)
	refs["notification"] = g.add(KindNotification, "n1", course)
	refs["email"] = g.add(KindEmail, "e1", course)
	refs["course history"] = g.add(KindCourseHistory, "h1", course, "student")
	refs["assignment"] = g.add(KindAssignment, "a1", course)
	refs["assignment section"] = g.add(KindAssignmentSection, "as1", refs["assignment"])
	refs["simple programming"] = g.add(KindSimpleProgrammingAssignment, "spa1", refs["assignment"])
	refs["advanced programming"] = g.add(KindAdvancedProgrammingAssignment, "apa1", refs["simple programming"])
	refs["exam"] = g.add(KindExam, "ex1", refs["assignment"])
	refs["subjective"] = g.add(KindSubjectiveAssignment, "sa1", refs["assignment"])
	refs["testcase in assignment"] = g.add(KindTestcase, "t1", refs["assignment"])
	refs["testcase in section"] = g.add(KindTestcase, "t2", refs["assignment section"])
	refs["forum"] = g.add(KindDiscussionForum, "f1", course)
	refs["thread"] = g.add(KindDiscussionThread, "th1", refs["forum"], "student")
	refs["comment"] = g.add(KindDiscussionComment, "co1", refs["thread"], "student")
	refs["reply"] = g.add(KindDiscussionReply, "r1", refs["comment"], "ta")
	refs["crib"] = g.add(KindCrib, "cr1", course, "student")
	refs["crib reply"] = g.add(KindCribReply, "crr1", refs["crib"], "ta")
	refs["video history"] = g.add(KindVideoHistory, "vh1", refs["video in section"], "student")
	refs["question history"] = g.add(KindQuestionHistory, "qh1", refs["question"], "student")
	refs["assignment history"] = g.add(KindAssignmentHistory, "ah1", refs["assignment"], "student")
	return g, refs
}

func TestResolver_ResolveEveryKind(t *testing.T) {
	g, refs := buildCourseGraph()
	r := NewResolver(g)
	ctx := context.Background()

	for name, ref := range refs {
		t.Run(name, func(t *testing.T) {
			c, err := r.ResolveRef(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, "c1", c.ID)

			node, err := g.LoadNode(ctx, ref)
			require.NoError(t, err)
			c, err = r.Resolve(ctx, node)
			require.NoError(t, err)
			assert.Equal(t, "c1", c.ID)
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	g, refs := buildCourseGraph()
	r := NewResolver(g)
	ctx := context.Background()

	t.Run("course resolves to itself without loading", func(t *testing.T) {
		g.loads = 0
		c, err := r.Resolve(ctx, g.courses["c1"])
		require.NoError(t, err)
		assert.Equal(t, "c1", c.ID)
		assert.Zero(t, g.loads)
	})

	t.Run("deepest chain", func(t *testing.T) {
		g.loads = 0
		_, err := r.ResolveRef(ctx, refs["question"])
		require.NoError(t, err)
		// question, module, quiz, section, chapter
		assert.Equal(t, 5, g.loads)
	})

	t.Run("unsupported kind", func(t *testing.T) {
		_, err := r.Resolve(ctx, fakeNode{kind: "widget", parent: Ref{Kind: KindCourse, ID: "c1"}})
		assert.True(t, errors.Is(err, ErrUnsupportedKind))

		_, err = r.Resolve(ctx, nil)
		assert.True(t, errors.Is(err, ErrUnsupportedKind))

		_, err = r.ResolveRef(ctx, Ref{Kind: "widget", ID: "w1"})
		assert.True(t, errors.Is(err, ErrUnsupportedKind))
	})

	t.Run("dangling parent", func(t *testing.T) {
		orphan := g.add(KindSection, "orphan", Ref{Kind: KindChapter, ID: "gone"})
		_, err := r.ResolveRef(ctx, orphan)
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
		assert.Contains(t, err.Error(), "gone")
	})

	t.Run("missing course", func(t *testing.T) {
		lost := g.add(KindPage, "lost", Ref{Kind: KindCourse, ID: "c404"})
		_, err := r.ResolveRef(ctx, lost)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := r.ResolveRef(ctx, Ref{Kind: KindChapter})
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("cycle", func(t *testing.T) {
		g.add(KindDiscussionComment, "loop1", Ref{Kind: KindDiscussionComment, ID: "loop2"})
		g.add(KindDiscussionComment, "loop2", Ref{Kind: KindDiscussionComment, ID: "loop1"})
		_, err := r.ResolveRef(ctx, Ref{Kind: KindDiscussionComment, ID: "loop1"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errTooDeep))
	})
}

func TestResolver_Locate(t *testing.T) {
	g, refs := buildCourseGraph()
	r := NewResolver(g)
	ctx := context.Background()

	loc, err := r.Locate(ctx, refs["crib reply"])
	require.NoError(t, err)
	assert.Equal(t, "c1", loc.Course.ID)
	assert.Equal(t, "ta", loc.OwnerID)

	loc, err = r.Locate(ctx, refs["chapter"])
	require.NoError(t, err)
	assert.Empty(t, loc.OwnerID)

	loc, err = r.Locate(ctx, Ref{Kind: KindCourse, ID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "owner", loc.OwnerID)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Crib_Reply ")
	require.NoError(t, err)
	assert.Equal(t, KindCribReply, k)

	_, err = ParseKind("widget")
	assert.True(t, errors.Is(err, ErrUnsupportedKind))
}
