package course

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// Kind identifies the type of a course-owned object.
type Kind string

// Kinds
const (
	KindCourse        Kind = "course"
	KindCourseHistory Kind = "course_history"

	// structure
	KindChapter      Kind = "chapter"
	KindSection      Kind = "section"
	KindVideo        Kind = "video"
	KindDocument     Kind = "document"
	KindPage         Kind = "page"
	KindSchedule     Kind = "schedule"
	KindAnnouncement Kind = "announcement"
	KindNotification Kind = "notification"
	KindEmail        Kind = "email"

	// quizzes
	KindSectionMarker  Kind = "section_marker"
	KindQuizMarker     Kind = "quiz_marker"
	KindQuiz           Kind = "quiz"
	KindQuestionModule Kind = "question_module"
	KindQuestion       Kind = "question"

	// assignments
	KindAssignment                    Kind = "assignment"
	KindAssignmentSection             Kind = "assignment_section"
	KindSimpleProgrammingAssignment   Kind = "simple_programming_assignment"
	KindAdvancedProgrammingAssignment Kind = "advanced_programming_assignment"
	KindExam                          Kind = "exam"
	KindSubjectiveAssignment          Kind = "subjective_assignment"
	KindTestcase                      Kind = "testcase"

	// discussions & cribs
	KindDiscussionForum   Kind = "discussion_forum"
	KindDiscussionThread  Kind = "discussion_thread"
	KindDiscussionComment Kind = "discussion_comment"
	KindDiscussionReply   Kind = "discussion_reply"
	KindCrib              Kind = "crib"
	KindCribReply         Kind = "crib_reply"

	// progress
	KindVideoHistory      Kind = "video_history"
	KindQuestionHistory   Kind = "question_history"
	KindAssignmentHistory Kind = "assignment_history"
)

// maxDepth bounds a walk to the course. The deepest chain (discussion reply) has 4 hops.
const maxDepth = 8

var (
	ErrUnsupportedKind = errors.New("unsupported object kind")
	errTooDeep         = errors.New("object chain does not reach a course")

	kinds = map[Kind]bool{
		KindCourse: true, KindCourseHistory: true,
		KindChapter: true, KindSection: true, KindVideo: true, KindDocument: true, KindPage: true,
		KindSchedule: true, KindAnnouncement: true, KindNotification: true, KindEmail: true,
		KindSectionMarker: true, KindQuizMarker: true, KindQuiz: true, KindQuestionModule: true, KindQuestion: true,
		KindAssignment: true, KindAssignmentSection: true, KindSimpleProgrammingAssignment: true,
		KindAdvancedProgrammingAssignment: true, KindExam: true, KindSubjectiveAssignment: true, KindTestcase: true,
		KindDiscussionForum: true, KindDiscussionThread: true, KindDiscussionComment: true, KindDiscussionReply: true,
		KindCrib: true, KindCribReply: true,
		KindVideoHistory: true, KindQuestionHistory: true, KindAssignmentHistory: true,
	}
)

func (k Kind) Valid() bool { return kinds[k] }

func ParseKind(s string) (Kind, error) {
	k := Kind(core.CleanString(s, true /* lower */))
	if !k.Valid() {
		return "", errors.Wrapf(ErrUnsupportedKind, "%q", s)
	}
	return k, nil
}

// Ref points at one object.
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func (r Ref) IsZero() bool   { return r.Kind == "" && r.ID == "" }
func (r Ref) String() string { return string(r.Kind) + ":" + r.ID }

type (
	// Node is any object belonging to a course.
	Node interface {
		Kind() Kind
		// Parent is the next hop towards the course: the course itself for top level objects.
		Parent() Ref
	}

	// Owned is a Node with a single accountable user (its creator, author or submitter).
	Owned interface {
		Node
		Owner() string
	}

	// Graph loads the objects a Resolver walks through.
	Graph interface {
		// LoadNode returns a *core.NotFoundError if the object does not exist.
		LoadNode(ctx context.Context, ref Ref) (Node, error)
		GetCourse(ctx context.Context, id string) (Course, error)
	}
)

// Resolver finds the course any object belongs to by walking up its parents.
type Resolver struct {
	graph Graph
}

func NewResolver(graph Graph) *Resolver {
	return &Resolver{graph: graph}
}

// Resolve returns the course node belongs to.
func (r *Resolver) Resolve(ctx context.Context, node Node) (Course, error) {
	switch n := node.(type) {
	case nil:
		return Course{}, errors.Wrap(ErrUnsupportedKind, "nil node")
	case Course:
		return n, nil
	case *Course:
		return *n, nil
	}
	if !node.Kind().Valid() {
		return Course{}, errors.Wrapf(ErrUnsupportedKind, "%q", node.Kind())
	}
	return r.walk(ctx, node.Parent(), 1)
}

// ResolveRef returns the course the referenced object belongs to.
func (r *Resolver) ResolveRef(ctx context.Context, ref Ref) (Course, error) {
	return r.walk(ctx, ref, 0)
}

func (r *Resolver) walk(ctx context.Context, ref Ref, depth int) (Course, error) {
	for ; depth <= maxDepth; depth++ {
		if !ref.Kind.Valid() {
			return Course{}, errors.Wrapf(ErrUnsupportedKind, "%q", ref.Kind)
		}
		if ref.ID == "" {
			return Course{}, core.NewNotFoundError(string(ref.Kind), "")
		}
		if ref.Kind == KindCourse {
			return r.graph.GetCourse(ctx, ref.ID)
		}

		node, err := r.graph.LoadNode(ctx, ref)
		if err != nil {
			return Course{}, err
		}
		if node.Kind() != ref.Kind {
			return Course{}, errors.Wrapf(ErrUnsupportedKind, "loaded %q for %s", node.Kind(), ref)
		}
		ref = node.Parent()
	}
	return Course{}, errors.Wrapf(errTooDeep, "after %d hops", maxDepth)
}

// Location is where an object sits: its course and its accountable user (if any).
type Location struct {
	Course  Course `json:"course"`
	OwnerID string `json:"owner_id,omitempty"`
}

// Locate loads the referenced object and returns its course and owner.
func (r *Resolver) Locate(ctx context.Context, ref Ref) (Location, error) {
	if !ref.Kind.Valid() {
		return Location{}, errors.Wrapf(ErrUnsupportedKind, "%q", ref.Kind)
	}
	if ref.Kind == KindCourse {
		c, err := r.graph.GetCourse(ctx, ref.ID)
		if err != nil {
			return Location{}, err
		}
		return Location{Course: c, OwnerID: c.OwnerID}, nil
	}

	node, err := r.graph.LoadNode(ctx, ref)
	if err != nil {
		return Location{}, err
	}
	c, err := r.Resolve(ctx, node)
	if err != nil {
		return Location{}, err
	}
	loc := Location{Course: c}
	if owned, ok := node.(Owned); ok {
		loc.OwnerID = owned.Owner()
	}
	return loc, nil
}
