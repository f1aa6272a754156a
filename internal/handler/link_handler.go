package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/linkage-api/internal/dto"
	"github.com/noah-isme/linkage-api/internal/models"
	"github.com/noah-isme/linkage-api/internal/service"
	appErrors "github.com/noah-isme/linkage-api/pkg/errors"
	"github.com/noah-isme/linkage-api/pkg/response"
)

type linkResolver interface {
	Resolve(ctx context.Context, path service.Path, key string) (*service.Chain, error)
	ResolveUserToChildren(ctx context.Context, email string) ([]models.ChildProfile, error)
	ResolveUserToClassrooms(ctx context.Context, email string) ([]models.Classroom, error)
	ResolveUserToProfile(ctx context.Context, email string) (models.Record, error)
	ResolveChildToUser(ctx context.Context, childID string) (*models.User, error)
	ResolveClassroomToUser(ctx context.Context, classroomID string) (*models.User, error)
}

// LinkHandler exposes relationship resolution endpoints.
type LinkHandler struct {
	resolver  linkResolver
	validator *validator.Validate
}

// NewLinkHandler constructs the handler.
func NewLinkHandler(resolver linkResolver, validate *validator.Validate) *LinkHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &LinkHandler{resolver: resolver, validator: validate}
}

func (h *LinkHandler) emailQuery(c *gin.Context) (string, bool) {
	var q dto.EmailQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query"))
		return "", false
	}
	q.Email = service.NormalizeEmail(q.Email)
	if err := h.validator.Struct(q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a valid email is required"))
		return "", false
	}
	return q.Email, true
}

// Children godoc
// @Summary Children of a parent user
// @Tags Links
// @Produce json
// @Param email query string true "Parent email"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /links/children [get]
func (h *LinkHandler) Children(c *gin.Context) {
	email, ok := h.emailQuery(c)
	if !ok {
		return
	}
	children, err := h.resolver.ResolveUserToChildren(c.Request.Context(), email)
	if err != nil {
		response.Error(c, service.AsAppError(err))
		return
	}
	respond(c, http.StatusOK, children)
}

// Classrooms godoc
// @Summary Classrooms of a teacher user
// @Tags Links
// @Produce json
// @Param email query string true "Teacher email"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /links/classrooms [get]
func (h *LinkHandler) Classrooms(c *gin.Context) {
	email, ok := h.emailQuery(c)
	if !ok {
		return
	}
	classrooms, err := h.resolver.ResolveUserToClassrooms(c.Request.Context(), email)
	if err != nil {
		response.Error(c, service.AsAppError(err))
		return
	}
	respond(c, http.StatusOK, classrooms)
}

// Profile godoc
// @Summary Profile matching a user's role
// @Tags Links
// @Produce json
// @Param email query string true "User email"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /links/profile [get]
func (h *LinkHandler) Profile(c *gin.Context) {
	email, ok := h.emailQuery(c)
	if !ok {
		return
	}
	profile, err := h.resolver.ResolveUserToProfile(c.Request.Context(), email)
	if err != nil {
		response.Error(c, service.AsAppError(err))
		return
	}
	respond(c, http.StatusOK, gin.H{"entityType": profile.Collection().EntityType(), "profile": profile})
}

// Guardian godoc
// @Summary Parent user of a child
// @Tags Links
// @Produce json
// @Param id path string true "Child profile ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /links/children/{id}/guardian [get]
func (h *LinkHandler) Guardian(c *gin.Context) {
	user, err := h.resolver.ResolveChildToUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, service.AsAppError(err))
		return
	}
	respond(c, http.StatusOK, user)
}

// Teacher godoc
// @Summary Teacher user of a classroom
// @Tags Links
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /links/classrooms/{id}/teacher [get]
func (h *LinkHandler) Teacher(c *gin.Context) {
	user, err := h.resolver.ResolveClassroomToUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, service.AsAppError(err))
		return
	}
	respond(c, http.StatusOK, user)
}

// Resolve godoc
// @Summary Run an ad hoc traversal
// @Description Walks the given hops and returns every intermediate step.
// @Tags Links
// @Accept json
// @Produce json
// @Param payload body dto.ResolveRequest true "Traversal"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /links/resolve [post]
func (h *LinkHandler) Resolve(c *gin.Context) {
	var req dto.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid traversal payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid traversal payload"))
		return
	}
	chain, err := h.resolver.Resolve(c.Request.Context(), toPath(req), req.Key)
	if err != nil {
		response.Error(c, service.AsAppError(err))
		return
	}
	respond(c, http.StatusOK, chain)
}

// adHocPath labels caller-supplied traversals in results and metrics.
const adHocPath = "ad-hoc"

func toPath(req dto.ResolveRequest) service.Path {
	path := service.Path{Name: adHocPath, Hops: make([]service.Hop, 0, len(req.Hops))}
	for _, hop := range req.Hops {
		cardinality := service.One
		if hop.Many {
			cardinality = service.Many
		}
		path.Hops = append(path.Hops, service.Hop{
			Entity:      hop.Entity,
			Collection:  models.Collection(hop.Collection),
			Field:       hop.Field,
			Source:      hop.Source,
			Cardinality: cardinality,
		})
	}
	return path
}
