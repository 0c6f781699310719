package content

import (
	"context"
	"net/mail"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

var (
	errParentMoved  = errors.New("an item cannot be moved to another course")
	errForeignQuiz  = errors.New("the quiz belongs to another course")
	errNotPublished = core.NewForbiddenError("this item is not published yet")
	errNoHistory    = errors.New("this kind has no progress history")
)

type (
	// Filter narrows a listing to the children of Parent, and to the items of OwnerID if set.
	Filter struct {
		Parent  course.Ref
		OwnerID string
	}

	Repository interface {
		ListItems(ctx context.Context, kind course.Kind, filter Filter) ([]Item, error)
		// GetItem returns a *core.NotFoundError if the item does not exist.
		GetItem(ctx context.Context, kind course.Kind, id string) (Item, error)
		CreateItem(ctx context.Context, it Item) error
		UpdateItem(ctx context.Context, it Item) error
		DeleteItem(ctx context.Context, kind course.Kind, id string) error
	}

	// MemberLister lists course members, the recipients of course emails.
	MemberLister interface {
		ListMembers(ctx context.Context, courseID string, statuses ...string) ([]course.Member, error)
	}

	// Service serves every content kind the same way, with the gates of its KindSpec.
	Service struct {
		repo     Repository
		auth     *course.Authorizer
		members  MemberLister
		mailSvc  core.EmailService
		validate *validator.Validate
		logger   core.Logger
		from     mail.Address
		now      func() time.Time
	}
)

func NewService(
	repo Repository,
	auth *course.Authorizer,
	members MemberLister,
	mailSvc core.EmailService,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		auth:     auth,
		members:  members,
		mailSvc:  mailSvc,
		validate: validate,
		logger:   logger,
		from:     conf.DefaultFromEmail(),
		now:      core.Now,
	}
}

// isStaff reports whether actor sees the unpublished and redacted parts of c.
func (svc *Service) isStaff(ctx context.Context, actor user.User, c course.Course) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	return svc.auth.IsInstructorOrTA(ctx, c.ID, actor.ID)
}

// visible hides unpublished items from students, and redacts the others.
func visible(it Item, staff bool) bool {
	if staff {
		return true
	}
	if p, ok := it.(publishable); ok && !p.IsPublished() {
		return false
	}
	if r, ok := it.(redactable); ok {
		r.Redact()
	}
	return true
}

// List lists the items of kind hanging from parent.
func (svc *Service) List(ctx context.Context, actor user.User, kind course.Kind, parent course.Ref) ([]Item, error) {
	spec, err := GetKindSpec(kind)
	if err != nil {
		return nil, err
	}
	if !spec.acceptsParent(parent.Kind) {
		return nil, core.NewValidationError(course.ErrUnsupportedKind, core.FieldError{
			Field: "parent_kind",
			Error: string(kind) + " items cannot hang from " + string(parent.Kind),
		})
	}

	c, err := svc.auth.CheckRef(ctx, actor, parent, spec.Policy.Read)
	if err != nil {
		return nil, err
	}
	staff, err := svc.isStaff(ctx, actor, c)
	if err != nil {
		return nil, err
	}

	items, err := svc.repo.ListItems(ctx, kind, Filter{Parent: parent})
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", kind)
	}
	shown := make([]Item, 0, len(items))
	for _, it := range items {
		if visible(it, staff) {
			shown = append(shown, it)
		}
	}
	return shown, nil
}

// Create stores a new item. The item's parent decides its course, and user-generated items
// are owned by actor.
func (svc *Service) Create(ctx context.Context, actor user.User, it Item) (Item, error) {
	spec, err := GetKindSpec(it.Kind())
	if err != nil {
		return nil, err
	}
	if actor.ID == "" {
		return nil, core.ErrUnauthenticated
	}
	if o, ok := it.(ownerSetter); ok {
		o.SetOwner(actor.ID)
	}
	clean(it)
	if err = svc.validate.StructCtx(ctx, it); err != nil {
		return nil, err
	}

	c, err := svc.auth.CheckRef(ctx, actor, it.Parent(), spec.Policy.Create)
	if err != nil {
		return nil, err
	}
	if err = svc.checkReferences(ctx, c, it); err != nil {
		return nil, err
	}

	it.SetID(core.NewID())
	it.Touch(svc.now())
	if err = svc.repo.CreateItem(ctx, it); err != nil {
		return nil, errors.Wrapf(err, "creating %s", it.Kind())
	}

	if e, ok := it.(*Email); ok {
		svc.sendNotice(ctx, c, e)
	}
	return it, nil
}

func (svc *Service) Get(ctx context.Context, actor user.User, kind course.Kind, id string) (Item, error) {
	spec, err := GetKindSpec(kind)
	if err != nil {
		return nil, err
	}
	it, err := svc.repo.GetItem(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	c, err := svc.auth.Check(ctx, actor, it, spec.Policy.Read)
	if err != nil {
		return nil, err
	}
	staff, err := svc.isStaff(ctx, actor, c)
	if err != nil {
		return nil, err
	}
	if !visible(it, staff) {
		return nil, core.NewNotFoundError(string(kind), id)
	}
	return it, nil
}

// Update binds new values onto the stored item. Its id, creation time and owner are kept,
// and its new parent must stay in the same course.
func (svc *Service) Update(ctx context.Context, actor user.User, kind course.Kind, id string, bind func(Item) error) (Item, error) {
	spec, err := GetKindSpec(kind)
	if err != nil {
		return nil, err
	}
	it, err := svc.repo.GetItem(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	c, err := svc.auth.Check(ctx, actor, it, spec.Policy.Update)
	if err != nil {
		return nil, err
	}

	base := *it.base()
	parent := it.Parent()
	var owner string
	if o, ok := it.(course.Owned); ok {
		owner = o.Owner()
	}

	if err = bind(it); err != nil {
		return nil, err
	}
	*it.base() = base
	if o, ok := it.(ownerSetter); ok {
		o.SetOwner(owner)
	}
	clean(it)
	if err = svc.validate.StructCtx(ctx, it); err != nil {
		return nil, err
	}

	if it.Parent() != parent {
		moved, err := svc.auth.Resolver().ResolveRef(ctx, it.Parent())
		if err != nil {
			return nil, err
		}
		if moved.ID != c.ID {
			return nil, core.NewValidationError(errParentMoved, core.FieldError{Field: "parent", Error: errParentMoved.Error()})
		}
	}
	if err = svc.checkReferences(ctx, c, it); err != nil {
		return nil, err
	}

	it.Touch(svc.now())
	if err = svc.repo.UpdateItem(ctx, it); err != nil {
		return nil, errors.Wrapf(err, "updating %s", kind)
	}
	return it, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, kind course.Kind, id string) error {
	spec, err := GetKindSpec(kind)
	if err != nil {
		return err
	}
	it, err := svc.repo.GetItem(ctx, kind, id)
	if err != nil {
		return err
	}
	if _, err = svc.auth.Check(ctx, actor, it, spec.Policy.Delete); err != nil {
		return err
	}
	return errors.Wrapf(svc.repo.DeleteItem(ctx, kind, id), "deleting %s", kind)
}

// Locate returns the course and owner of any object, to members of its course.
func (svc *Service) Locate(ctx context.Context, actor user.User, ref course.Ref) (course.Location, error) {
	loc, err := svc.auth.Resolver().Locate(ctx, ref)
	if err != nil {
		return course.Location{}, err
	}
	if _, err = svc.auth.Check(ctx, actor, loc.Course, course.GateRegistered); err != nil {
		return course.Location{}, err
	}
	return loc, nil
}

// checkReferences checks the references an item holds besides its parent.
func (svc *Service) checkReferences(ctx context.Context, c course.Course, it Item) error {
	qm, ok := it.(*QuizMarker)
	if !ok || !qm.QuizID.Valid {
		return nil
	}
	quizCourse, err := svc.auth.Resolver().ResolveRef(ctx, course.Ref{Kind: course.KindQuiz, ID: qm.QuizID.String})
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "quiz_id", Error: err.Error()})
		}
		return err
	}
	if quizCourse.ID != c.ID {
		return core.NewValidationError(errForeignQuiz, core.FieldError{Field: "quiz_id", Error: errForeignQuiz.Error()})
	}
	return nil
}

// sendNotice mails e to every enrolled member of c. Failures are logged: the email is stored anyway.
func (svc *Service) sendNotice(ctx context.Context, c course.Course, e *Email) {
	members, err := svc.members.ListMembers(ctx, c.ID, course.StatusEnrolled)
	if err != nil {
		svc.logger.Error("listing email recipients", err, map[string]interface{}{"course_id": c.ID})
		return
	}
	bcc := make([]mail.Address, 0, len(members))
	for _, m := range members {
		bcc = append(bcc, mail.Address{Name: m.Name, Address: m.Email})
	}
	if len(bcc) == 0 {
		return
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{svc.from},
		Bcc:          bcc,
		Subject:      "[" + c.Code + "] " + e.Subject,
		TemplateName: "course_notice",
		TemplateData: map[string]interface{}{
			"CourseID":    c.ID,
			"CourseTitle": c.Title,
			"CourseCode":  c.Code,
			"Body":        e.Body,
		},
	})
}

// clean trims the string fields of an item.
func clean(it Item) {
	v := reflect.ValueOf(it).Elem()
	for i := 0; i < v.NumField(); i++ {
		if f := v.Field(i); f.Kind() == reflect.String && f.CanSet() {
			f.SetString(strings.TrimSpace(f.String()))
		}
	}
}
