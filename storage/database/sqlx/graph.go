package sqlxrepos

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
)

// Graph loads course objects from the course and content tables.
type Graph struct {
	courses *courseRepository
	content *contentRepository
}

var _ course.Graph = (*Graph)(nil) // interface compliance check

func NewGraph(exec core.DBExecutor) *Graph {
	return &Graph{courses: NewCourseRepository(exec), content: NewContentRepository(exec)}
}

func (g *Graph) LoadNode(ctx context.Context, ref course.Ref) (course.Node, error) {
	switch ref.Kind {
	case course.KindCourse:
		return g.courses.GetCourse(ctx, ref.ID)
	case course.KindCourseHistory:
		return g.courses.getCourseHistoryByID(ctx, ref.ID)
	}
	it, err := g.content.GetItem(ctx, ref.Kind, ref.ID)
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (g *Graph) GetCourse(ctx context.Context, id string) (course.Course, error) {
	return g.courses.GetCourse(ctx, id)
}
