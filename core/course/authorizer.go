package course

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// Gate is an access rule evaluated against the course of an object.
type Gate int

const (
	GateRegistered     Gate = iota + 1 // any membership, whatever its role or status
	GateInstructorOrTA                 // membership with role instructor or ta
	GateOwner                          // the object's accountable user
)

func (g Gate) String() string {
	switch g {
	case GateRegistered:
		return "registered"
	case GateInstructorOrTA:
		return "instructor_or_ta"
	case GateOwner:
		return "owner"
	}
	return "unknown"
}

var (
	errNotRegistered     = core.NewForbiddenError("you are not registered in this course")
	errNotInstructorOrTA = core.NewForbiddenError("only instructors and TAs of this course may do this")
	errNotOwner          = core.NewForbiddenError("only the owner may do this")
)

// MembershipReader reads course memberships.
type MembershipReader interface {
	// GetCourseHistory returns a *core.NotFoundError if the user has no membership in the course.
	GetCourseHistory(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (CourseHistory, error)
}

// Authorizer answers membership and ownership questions. Nothing is cached: memberships may change
// between two requests, so every decision reads the current rows.
type Authorizer struct {
	resolver *Resolver
	members  MembershipReader
}

func NewAuthorizer(resolver *Resolver, members MembershipReader) *Authorizer {
	return &Authorizer{resolver: resolver, members: members}
}

func (a *Authorizer) Resolver() *Resolver { return a.resolver }

func (a *Authorizer) membership(ctx context.Context, courseID, userID string) (CourseHistory, bool, error) {
	if courseID == "" || userID == "" {
		return CourseHistory{}, false, nil
	}
	h, err := a.members.GetCourseHistory(ctx, courseID, userID)
	if err != nil {
		if core.IsNotFound(err) {
			return CourseHistory{}, false, nil
		}
		return CourseHistory{}, false, errors.Wrap(err, "getting course history")
	}
	return h, true, nil
}

// IsRegistered reports whether the user has a membership in the course, whatever its role or status.
func (a *Authorizer) IsRegistered(ctx context.Context, courseID, userID string) (bool, error) {
	_, ok, err := a.membership(ctx, courseID, userID)
	return ok, err
}

// IsInstructorOrTA reports whether the user is an instructor or a TA of the course.
func (a *Authorizer) IsInstructorOrTA(ctx context.Context, courseID, userID string) (bool, error) {
	h, ok, err := a.membership(ctx, courseID, userID)
	if err != nil || !ok {
		return false, err
	}
	return h.IsInstructorOrTA(), nil
}

// IsOwner reports whether userID is the accountable user of obj.
func IsOwner(obj Owned, userID string) bool {
	if obj == nil || userID == "" {
		return false
	}
	return obj.Owner() == userID
}

// Check resolves the course of node and evaluates gate for actor.
// It returns the course when allowed, a *core.ForbiddenError when denied, and propagates not found errors.
// Platform admins pass every gate.
func (a *Authorizer) Check(ctx context.Context, actor user.User, node Node, gate Gate) (Course, error) {
	c, err := a.resolver.Resolve(ctx, node)
	if err != nil {
		return Course{}, err
	}
	if err = a.evaluate(ctx, actor, c, node, gate); err != nil {
		return Course{}, err
	}
	return c, nil
}

// CheckRef is Check for an object that is not loaded yet, typically the parent of an object being created.
func (a *Authorizer) CheckRef(ctx context.Context, actor user.User, ref Ref, gate Gate) (Course, error) {
	c, err := a.resolver.ResolveRef(ctx, ref)
	if err != nil {
		return Course{}, err
	}

	var node Node = c
	if gate == GateOwner && ref.Kind != KindCourse {
		if node, err = a.resolver.graph.LoadNode(ctx, ref); err != nil {
			return Course{}, err
		}
	}
	if err = a.evaluate(ctx, actor, c, node, gate); err != nil {
		return Course{}, err
	}
	return c, nil
}

func (a *Authorizer) evaluate(ctx context.Context, actor user.User, c Course, node Node, gate Gate) error {
	if actor.ID == "" {
		return core.ErrUnauthenticated
	}
	if actor.IsAdmin() {
		return nil
	}

	switch gate {
	case GateRegistered:
		ok, err := a.IsRegistered(ctx, c.ID, actor.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errNotRegistered
		}
	case GateInstructorOrTA:
		ok, err := a.IsInstructorOrTA(ctx, c.ID, actor.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errNotInstructorOrTA
		}
	case GateOwner:
		owned, ok := node.(Owned)
		if !ok {
			return errors.Wrapf(ErrUnsupportedKind, "%q has no owner", node.Kind())
		}
		if !IsOwner(owned, actor.ID) {
			return errNotOwner
		}
	default:
		return errors.Errorf("unknown gate %d", gate)
	}
	return nil
}
