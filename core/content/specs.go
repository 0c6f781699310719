package content

import (
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/course"
)

// Policy is the gate of each operation on a kind.
type Policy struct {
	Read   course.Gate
	Create course.Gate
	Update course.Gate
	Delete course.Gate
}

var (
	// Structural content is authored by the course staff.
	Structural = Policy{
		Read:   course.GateRegistered,
		Create: course.GateInstructorOrTA,
		Update: course.GateInstructorOrTA,
		Delete: course.GateInstructorOrTA,
	}

	// UserGenerated content is authored by any member, and only its author may change it.
	UserGenerated = Policy{
		Read:   course.GateRegistered,
		Create: course.GateRegistered,
		Update: course.GateOwner,
		Delete: course.GateOwner,
	}
)

// KindSpec describes a kind served by the Service.
type KindSpec struct {
	Kind    course.Kind
	New     func() Item
	Policy  Policy
	Parents []course.Kind // kinds an item may hang from, for listing
}

func (s KindSpec) acceptsParent(k course.Kind) bool {
	for _, p := range s.Parents {
		if p == k {
			return true
		}
	}
	return false
}

var (
	chapterOrSection = []course.Kind{course.KindChapter, course.KindSection}
	onCourse         = []course.Kind{course.KindCourse}
	onAssignment     = []course.Kind{course.KindAssignment}
)

var specs = map[course.Kind]KindSpec{
	course.KindChapter:  {Kind: course.KindChapter, New: func() Item { return &Chapter{} }, Policy: Structural, Parents: onCourse},
	course.KindSection:  {Kind: course.KindSection, New: func() Item { return &Section{} }, Policy: Structural, Parents: []course.Kind{course.KindChapter}},
	course.KindVideo:    {Kind: course.KindVideo, New: func() Item { return &Video{} }, Policy: Structural, Parents: chapterOrSection},
	course.KindDocument: {Kind: course.KindDocument, New: func() Item { return &Document{} }, Policy: Structural, Parents: chapterOrSection},
	course.KindPage:     {Kind: course.KindPage, New: func() Item { return &Page{} }, Policy: Structural, Parents: onCourse},
	course.KindSchedule: {Kind: course.KindSchedule, New: func() Item { return &Schedule{} }, Policy: Structural, Parents: onCourse},
	course.KindAnnouncement: {
		Kind: course.KindAnnouncement, New: func() Item { return &Announcement{} }, Policy: Structural, Parents: onCourse,
	},
	course.KindNotification: {
		Kind: course.KindNotification, New: func() Item { return &Notification{} }, Policy: Structural, Parents: onCourse,
	},
	course.KindEmail: {Kind: course.KindEmail, New: func() Item { return &Email{} }, Policy: Structural, Parents: onCourse},

	course.KindSectionMarker: {
		Kind: course.KindSectionMarker, New: func() Item { return &SectionMarker{} }, Policy: Structural,
		Parents: []course.Kind{course.KindVideo},
	},
	course.KindQuizMarker: {
		Kind: course.KindQuizMarker, New: func() Item { return &QuizMarker{} }, Policy: Structural,
		Parents: []course.Kind{course.KindVideo},
	},
	course.KindQuiz: {Kind: course.KindQuiz, New: func() Item { return &Quiz{} }, Policy: Structural, Parents: chapterOrSection},
	course.KindQuestionModule: {
		Kind: course.KindQuestionModule, New: func() Item { return &QuestionModule{} }, Policy: Structural,
		Parents: []course.Kind{course.KindQuiz},
	},
	course.KindQuestion: {
		Kind: course.KindQuestion, New: func() Item { return &Question{} }, Policy: Structural,
		Parents: []course.Kind{course.KindQuestionModule},
	},

	course.KindAssignment: {Kind: course.KindAssignment, New: func() Item { return &Assignment{} }, Policy: Structural, Parents: onCourse},
	course.KindAssignmentSection: {
		Kind: course.KindAssignmentSection, New: func() Item { return &AssignmentSection{} }, Policy: Structural,
		Parents: onAssignment,
	},
	course.KindSimpleProgrammingAssignment: {
		Kind: course.KindSimpleProgrammingAssignment, New: func() Item { return &SimpleProgrammingAssignment{} },
		Policy: Structural, Parents: onAssignment,
	},
	course.KindAdvancedProgrammingAssignment: {
		Kind: course.KindAdvancedProgrammingAssignment, New: func() Item { return &AdvancedProgrammingAssignment{} },
		Policy: Structural, Parents: []course.Kind{course.KindSimpleProgrammingAssignment},
	},
	course.KindExam: {Kind: course.KindExam, New: func() Item { return &Exam{} }, Policy: Structural, Parents: onAssignment},
	course.KindSubjectiveAssignment: {
		Kind: course.KindSubjectiveAssignment, New: func() Item { return &SubjectiveAssignment{} }, Policy: Structural,
		Parents: onAssignment,
	},
	course.KindTestcase: {
		Kind: course.KindTestcase, New: func() Item { return &Testcase{} }, Policy: Structural,
		Parents: []course.Kind{course.KindAssignment, course.KindAssignmentSection},
	},

	course.KindDiscussionForum: {
		Kind: course.KindDiscussionForum, New: func() Item { return &DiscussionForum{} }, Policy: Structural, Parents: onCourse,
	},
	course.KindDiscussionThread: {
		Kind: course.KindDiscussionThread, New: func() Item { return &DiscussionThread{} }, Policy: UserGenerated,
		Parents: []course.Kind{course.KindDiscussionForum},
	},
	course.KindDiscussionComment: {
		Kind: course.KindDiscussionComment, New: func() Item { return &DiscussionComment{} }, Policy: UserGenerated,
		Parents: []course.Kind{course.KindDiscussionThread},
	},
	course.KindDiscussionReply: {
		Kind: course.KindDiscussionReply, New: func() Item { return &DiscussionReply{} }, Policy: UserGenerated,
		Parents: []course.Kind{course.KindDiscussionComment},
	},
	course.KindCrib: {Kind: course.KindCrib, New: func() Item { return &Crib{} }, Policy: UserGenerated, Parents: onCourse},
	course.KindCribReply: {
		Kind: course.KindCribReply, New: func() Item { return &CribReply{} }, Policy: UserGenerated,
		Parents: []course.Kind{course.KindCrib},
	},
}

// progress kinds are stored like content, but only written through the progress operations.
var historySpecs = map[course.Kind]KindSpec{
	course.KindVideoHistory: {
		Kind: course.KindVideoHistory, New: func() Item { return &VideoHistory{} }, Parents: []course.Kind{course.KindVideo},
	},
	course.KindQuestionHistory: {
		Kind: course.KindQuestionHistory, New: func() Item { return &QuestionHistory{} },
		Parents: []course.Kind{course.KindQuestion},
	},
	course.KindAssignmentHistory: {
		Kind: course.KindAssignmentHistory, New: func() Item { return &AssignmentHistory{} },
		Parents: []course.Kind{course.KindAssignment},
	},
}

// GetKindSpec returns how a kind is served by the content endpoints.
func GetKindSpec(kind course.Kind) (KindSpec, error) {
	s, ok := specs[kind]
	if !ok {
		return KindSpec{}, errors.Wrapf(course.ErrUnsupportedKind, "no content endpoints for %q", kind)
	}
	return s, nil
}

// NewItem returns an empty item of any stored kind, progress kinds included.
func NewItem(kind course.Kind) (Item, error) {
	if s, ok := specs[kind]; ok {
		return s.New(), nil
	}
	if s, ok := historySpecs[kind]; ok {
		return s.New(), nil
	}
	return nil, errors.Wrapf(course.ErrUnsupportedKind, "%q is not a content kind", kind)
}

// Kinds lists the kinds served by the content endpoints.
func Kinds() []course.Kind {
	kinds := make([]course.Kind, 0, len(specs))
	for k := range specs {
		kinds = append(kinds, k)
	}
	return kinds
}
