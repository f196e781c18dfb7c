package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
)

type fakeCourseSrv struct {
	lastFilter models.CourseFilter
	lastActor  permission.Actor
	cacheHit   bool
	listCalls  int
}

func (f *fakeCourseSrv) ListPublished(_ context.Context, filter models.CourseFilter) (*models.CourseListResult, bool, error) {
	f.lastFilter = filter
	f.listCalls++
	return &models.CourseListResult{
		Items:      []models.CourseListItem{{ID: "c1", Title: "Go"}},
		Pagination: models.Pagination{Page: 1, PageSize: 20, TotalCount: 1},
	}, f.cacheHit, nil
}

func (f *fakeCourseSrv) ListForInstructor(_ context.Context, actor permission.Actor, filter models.CourseFilter) (*models.CourseListResult, error) {
	f.lastActor = actor
	f.lastFilter = filter
	return &models.CourseListResult{Items: []models.CourseListItem{}}, nil
}

func (f *fakeCourseSrv) GetPublished(_ context.Context, id string) (*models.CourseDetail, error) {
	return &models.CourseDetail{}, nil
}

func (f *fakeCourseSrv) GetOwned(_ context.Context, actor permission.Actor, id string) (*models.CourseDetail, error) {
	f.lastActor = actor
	return &models.CourseDetail{}, nil
}

func (f *fakeCourseSrv) Create(_ context.Context, actor permission.Actor, req models.CreateCourseRequest, _ models.RequestMeta) (*models.Course, error) {
	f.lastActor = actor
	return &models.Course{ID: "c1", Title: req.Title, InstructorID: actor.ID}, nil
}

func (f *fakeCourseSrv) Update(_ context.Context, actor permission.Actor, id string, _ models.UpdateCourseRequest, _ models.RequestMeta) (*models.Course, error) {
	f.lastActor = actor
	return &models.Course{ID: id}, nil
}

func (f *fakeCourseSrv) Delete(_ context.Context, actor permission.Actor, _ string, _ models.RequestMeta) error {
	f.lastActor = actor
	return nil
}

func TestCourseHandlerParsesFilters(t *testing.T) {
	srv := &fakeCourseSrv{}
	handler := NewCourseHandler(srv)

	c, w := newGinContext(http.MethodGet, "/courses?level=Beginner&category=cat-1&min_price=10&max_price=99.5&search=go&ordering=-price&page=2&page_size=5", nil)
	handler.ListPublished(c)

	require.Equal(t, http.StatusOK, w.Code)
	filter := srv.lastFilter
	require.NotNil(t, filter.Level)
	assert.Equal(t, models.CourseLevel("Beginner"), *filter.Level)
	assert.Equal(t, "cat-1", filter.CategoryID)
	require.NotNil(t, filter.MinPrice)
	assert.Equal(t, 10.0, *filter.MinPrice)
	require.NotNil(t, filter.MaxPrice)
	assert.Equal(t, 99.5, *filter.MaxPrice)
	assert.Equal(t, "go", filter.Search)
	assert.Equal(t, "-price", filter.Ordering)
	assert.Equal(t, 2, filter.Page)
	assert.Equal(t, 5, filter.PageSize)
}

func TestCourseHandlerRejectsBadPrice(t *testing.T) {
	srv := &fakeCourseSrv{}
	handler := NewCourseHandler(srv)

	c, w := newGinContext(http.MethodGet, "/courses?min_price=cheap", nil)
	handler.ListPublished(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, srv.listCalls)
}

func TestCourseHandlerListMetaAndPagination(t *testing.T) {
	srv := &fakeCourseSrv{cacheHit: true}
	handler := NewCourseHandler(srv)

	c, w := newGinContext(http.MethodGet, "/courses", nil)
	handler.ListPublished(c)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}

func TestCourseHandlerCreateUsesCaller(t *testing.T) {
	srv := &fakeCourseSrv{}
	handler := NewCourseHandler(srv)

	c, w := newGinContext(http.MethodPost, "/instructor/courses", mustJSON(t, map[string]interface{}{"title": "Go", "price": 10}))
	withClaims(c, "i1", models.RoleInstructor)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "i1", srv.lastActor.ID)
}

func TestCourseHandlerDelete(t *testing.T) {
	srv := &fakeCourseSrv{}
	handler := NewCourseHandler(srv)

	c, w := newGinContext(http.MethodDelete, "/instructor/courses/c1", nil)
	c.Params = gin.Params{{Key: "id", Value: courseID1}}
	withClaims(c, "admin", models.RoleAdmin)
	handler.Delete(c)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, models.RoleAdmin, srv.lastActor.Role)
}
