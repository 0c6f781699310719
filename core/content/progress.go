package content

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

var historyKinds = map[course.Kind]course.Kind{
	course.KindVideo:      course.KindVideoHistory,
	course.KindQuestion:   course.KindQuestionHistory,
	course.KindAssignment: course.KindAssignmentHistory,
}

// RecordVideoProgress saves how far actor went in a video. Progress never goes back:
// the furthest position and the completion are kept.
func (svc *Service) RecordVideoProgress(ctx context.Context, actor user.User, videoID string, vp VideoProgress) (*VideoHistory, error) {
	if err := svc.validate.StructCtx(ctx, vp); err != nil {
		return nil, err
	}
	video, err := svc.load(ctx, actor, course.KindVideo, videoID)
	if err != nil {
		return nil, err
	}

	// the first insert may race with another request of the same user
	for attempt := 0; ; attempt++ {
		h, err := svc.videoHistory(ctx, actor, video)
		if err != nil {
			return nil, err
		}
		if vp.SecondsWatched > h.SecondsWatched {
			h.SecondsWatched = vp.SecondsWatched
		}
		h.Completed = h.Completed || vp.Completed
		h.Touch(svc.now())

		if h.ID != "" {
			return h, errors.Wrap(svc.repo.UpdateItem(ctx, h), "updating video history")
		}
		h.ID = core.NewID()
		err = svc.repo.CreateItem(ctx, h)
		if err == nil {
			return h, nil
		}
		if !core.IsConflict(err) || attempt > 0 {
			return nil, errors.Wrap(err, "creating video history")
		}
	}
}

func (svc *Service) videoHistory(ctx context.Context, actor user.User, video Item) (*VideoHistory, error) {
	ref := course.Ref{Kind: course.KindVideo, ID: video.GetID()}
	items, err := svc.repo.ListItems(ctx, course.KindVideoHistory, Filter{Parent: ref, OwnerID: actor.ID})
	if err != nil {
		return nil, errors.Wrap(err, "listing video histories")
	}
	if len(items) > 0 {
		if h, ok := items[0].(*VideoHistory); ok {
			return h, nil
		}
	}
	return &VideoHistory{VideoID: video.GetID(), UserID: actor.ID}, nil
}

// AnswerQuestion stores an answer of actor, graded at once unless the question is descriptive.
func (svc *Service) AnswerQuestion(ctx context.Context, actor user.User, questionID string, a Answer) (*QuestionHistory, error) {
	if err := svc.validate.StructCtx(ctx, a); err != nil {
		return nil, err
	}
	it, err := svc.load(ctx, actor, course.KindQuestion, questionID)
	if err != nil {
		return nil, err
	}
	q := it.(*Question)

	h := &QuestionHistory{
		QuestionID: q.ID,
		UserID:     actor.ID,
		Answer:     make(core.StringList, 0, len(a.Answer)),
	}
	for _, ans := range a.Answer {
		h.Answer = append(h.Answer, strings.TrimSpace(ans))
	}
	h.IsCorrect, h.MarksObtained = Grade(q, h.Answer)
	h.SetID(core.NewID())
	h.Touch(svc.now())

	if err = svc.repo.CreateItem(ctx, h); err != nil {
		return nil, errors.Wrap(err, "creating question history")
	}
	return h, nil
}

// Grade grades answer against the answer key of q. Descriptive questions are left ungraded (null).
func Grade(q *Question, answer []string) (null.Bool, int) {
	var correct bool
	switch q.QuestionType {
	case QuestionSingleCorrect:
		correct = len(answer) == 1 && len(q.Answer) == 1 && answer[0] == q.Answer[0]
	case QuestionMultipleCorrect:
		correct = sameSet(answer, q.Answer)
	case QuestionFixedAnswer:
		if len(answer) == 1 {
			for _, accepted := range q.Answer {
				if strings.EqualFold(strings.TrimSpace(accepted), answer[0]) {
					correct = true
					break
				}
			}
		}
	default:
		return null.Bool{}, 0
	}

	if correct {
		return null.BoolFrom(true), q.Marks
	}
	return null.BoolFrom(false), 0
}

func sameSet(a, b []string) bool {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		if !set[s] {
			return false
		}
		seen[s] = true
	}
	return len(seen) == len(set)
}

// SubmitAssignment stores a submission of actor, flagged late when past the due date.
func (svc *Service) SubmitAssignment(ctx context.Context, actor user.User, assignmentID string, s Submission) (*AssignmentHistory, error) {
	if err := svc.validate.StructCtx(ctx, s); err != nil {
		return nil, err
	}
	it, err := svc.load(ctx, actor, course.KindAssignment, assignmentID)
	if err != nil {
		return nil, err
	}
	a := it.(*Assignment)

	now := svc.now()
	h := &AssignmentHistory{
		AssignmentID: a.ID,
		UserID:       actor.ID,
		Submission:   strings.TrimSpace(s.Submission),
		Late:         a.IsLate(now),
	}
	h.SetID(core.NewID())
	h.Touch(now)

	if err = svc.repo.CreateItem(ctx, h); err != nil {
		return nil, errors.Wrap(err, "creating assignment history")
	}
	return h, nil
}

// MyHistory lists the progress of actor on a video, question or assignment.
func (svc *Service) MyHistory(ctx context.Context, actor user.User, ref course.Ref) ([]Item, error) {
	kind, ok := historyKinds[ref.Kind]
	if !ok {
		return nil, core.NewValidationError(errNoHistory, core.FieldError{Field: "kind", Error: errNoHistory.Error()})
	}
	if _, err := svc.load(ctx, actor, ref.Kind, ref.ID); err != nil {
		return nil, err
	}
	items, err := svc.repo.ListItems(ctx, kind, Filter{Parent: ref, OwnerID: actor.ID})
	return items, errors.Wrapf(err, "listing %s", kind)
}

// load gets an item actor is registered for. Unpublished items exist for the course staff only.
func (svc *Service) load(ctx context.Context, actor user.User, kind course.Kind, id string) (Item, error) {
	it, err := svc.repo.GetItem(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	c, err := svc.auth.Check(ctx, actor, it, course.GateRegistered)
	if err != nil {
		return nil, err
	}
	if p, ok := it.(publishable); ok && !p.IsPublished() {
		staff, err := svc.isStaff(ctx, actor, c)
		if err != nil {
			return nil, err
		}
		if !staff {
			return nil, errNotPublished
		}
	}
	return it, nil
}
