package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/linkage-api/internal/models"
	"github.com/noah-isme/linkage-api/internal/repository"
	"github.com/noah-isme/linkage-api/pkg/middleware/requestid"
)

type identityReader interface {
	Get(ctx context.Context, collection models.Collection, id models.ID) (models.Record, error)
	FindBy(ctx context.Context, collection models.Collection, filter models.Filter) iter.Seq2[models.Record, error]
}

type resolutionObserver interface {
	ObserveResolution(path, outcome string)
}

// Step is the outcome of one hop.
type Step struct {
	Hop        int               `json:"hop"`
	Entity     string            `json:"entity"`
	Collection models.Collection `json:"collection"`
	Field      string            `json:"field"`
	Key        string            `json:"key"`
	Records    []models.Record   `json:"records"`
}

// Chain is a fully resolved path.
type Chain struct {
	Path  string `json:"path"`
	Key   string `json:"key"`
	Steps []Step `json:"steps"`
}

// Last returns the final step.
func (c *Chain) Last() Step {
	return c.Steps[len(c.Steps)-1]
}

// ResolverService walks relationship paths through the identity store.
type ResolverService struct {
	store   identityReader
	metrics resolutionObserver
	logger  *zap.Logger
}

// NewResolverService constructs the resolver. metrics may be nil.
func NewResolverService(store identityReader, metrics resolutionObserver, logger *zap.Logger) *ResolverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolverService{store: store, metrics: metrics, logger: logger}
}

// NormalizeEmail returns the form addresses are compared in. Stored
// addresses are folded the same way before matching.
func NormalizeEmail(email string) string {
	return models.FoldText(email)
}

// Resolve executes path starting from key. Each hop reads only after the
// previous one succeeded; a cancelled context stops the walk before the next
// hop and its error is returned as is.
func (s *ResolverService) Resolve(ctx context.Context, path Path, key string) (*Chain, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	chain, err := s.walk(ctx, path, key)
	s.observe(path.Name, err)
	if err != nil {
		var re *ResolutionError
		if errors.As(err, &re) {
			s.logger.Debug("resolution failed",
				zap.String("path", path.Name),
				zap.String("kind", string(re.Kind)),
				zap.Int("hop", re.Hop),
				zap.String("key", re.Key),
				zap.String("request_id", requestid.FromContext(ctx)),
			)
		}
		return nil, err
	}
	return chain, nil
}

func (s *ResolverService) walk(ctx context.Context, path Path, key string) (*Chain, error) {
	chain := &Chain{Path: path.Name, Key: key, Steps: make([]Step, 0, len(path.Hops))}
	var prev models.Record
	for i, hop := range path.Hops {
		n := i + 1
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		collection := hop.Collection
		lookup := key
		if i > 0 {
			lookup, _ = prev.Field(hop.Source)
		}
		if hop.ByRole {
			user, ok := prev.(models.User)
			if !ok {
				return nil, notFound(n, hop, "", lookup)
			}
			if collection, ok = user.Role.ProfileCollection(); !ok {
				return nil, notFound(n, hop, "", lookup)
			}
		}

		lookup, ok := canonicalKey(collection, hop.Field, lookup, i == 0)
		if !ok || lookup == "" {
			return nil, notFound(n, hop, collection, lookup)
		}

		records, err := s.lookup(ctx, collection, hop.Field, lookup)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &ResolutionError{
				Kind: KindStoreUnavailable, Hop: n, Entity: hop.label(),
				Collection: collection, Field: hop.Field, Key: lookup, Err: err,
			}
		}

		if hop.Cardinality == One {
			switch len(records) {
			case 0:
				return nil, notFound(n, hop, collection, lookup)
			case 1:
			default:
				return nil, &ResolutionError{
					Kind: KindAmbiguousReference, Hop: n, Entity: hop.label(),
					Collection: collection, Field: hop.Field, Key: lookup, Matches: len(records),
				}
			}
			prev = records[0]
		} else {
			sort.SliceStable(records, func(a, b int) bool { return records[a].Key() < records[b].Key() })
		}

		chain.Steps = append(chain.Steps, Step{
			Hop:        n,
			Entity:     hop.label(),
			Collection: collection,
			Field:      hop.Field,
			Key:        lookup,
			Records:    records,
		})
	}
	return chain, nil
}

// canonicalKey checks field against the collection and normalises a lookup
// value for it. Identifiers copied from a stored record are already canonical
// and are used byte for byte; only the caller's key is parsed.
func canonicalKey(collection models.Collection, field, value string, fromCaller bool) (string, bool) {
	spec, err := collection.LookupField(field)
	if err != nil {
		return value, false
	}
	switch {
	case spec.Kind == models.FieldCaseless:
		return models.FoldText(value), true
	case spec.Kind != models.FieldIdentifier, !fromCaller:
		return value, true
	}
	id, err := models.ParseID(value)
	if err != nil {
		return value, false
	}
	return id.String(), true
}

func (s *ResolverService) lookup(ctx context.Context, collection models.Collection, field, value string) ([]models.Record, error) {
	records := []models.Record{}
	if field == models.FieldID {
		rec, err := s.store.Get(ctx, collection, models.ID(value))
		if errors.Is(err, repository.ErrRecordNotFound) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		return append(records, rec), nil
	}
	for rec, err := range s.store.FindBy(ctx, collection, models.Eq(field, value)) {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *ResolverService) observe(path string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "resolved"
	var re *ResolutionError
	switch {
	case err == nil:
	case errors.As(err, &re):
		outcome = strings.ToLower(string(re.Kind))
	case errors.Is(err, ErrInvalidPath):
		outcome = "invalid_path"
	default:
		outcome = "cancelled"
	}
	s.metrics.ObserveResolution(path, outcome)
}

// ResolvePath runs one of the built-in paths by name.
func (s *ResolverService) ResolvePath(ctx context.Context, name, key string) (*Chain, error) {
	path, ok := BuiltinPaths()[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown path %q", ErrInvalidPath, name)
	}
	return s.Resolve(ctx, path, key)
}

// ResolveUserToChildren returns the children of the parent registered with email.
func (s *ResolverService) ResolveUserToChildren(ctx context.Context, email string) ([]models.ChildProfile, error) {
	chain, err := s.Resolve(ctx, UserChildrenPath, email)
	if err != nil {
		return nil, err
	}
	return recordsAs[models.ChildProfile](chain.Last().Records), nil
}

// ResolveUserToClassrooms returns the classrooms of the teacher registered with email.
func (s *ResolverService) ResolveUserToClassrooms(ctx context.Context, email string) ([]models.Classroom, error) {
	chain, err := s.Resolve(ctx, UserClassroomsPath, email)
	if err != nil {
		return nil, err
	}
	return recordsAs[models.Classroom](chain.Last().Records), nil
}

// ResolveUserToProfile returns the ParentProfile or TeacherProfile of the user.
func (s *ResolverService) ResolveUserToProfile(ctx context.Context, email string) (models.Record, error) {
	chain, err := s.Resolve(ctx, UserProfilePath, email)
	if err != nil {
		return nil, err
	}
	return chain.Last().Records[0], nil
}

// ResolveChildToUser returns the parent user of a child.
func (s *ResolverService) ResolveChildToUser(ctx context.Context, childID string) (*models.User, error) {
	chain, err := s.Resolve(ctx, ChildGuardianPath, childID)
	if err != nil {
		return nil, err
	}
	user := chain.Last().Records[0].(models.User)
	return &user, nil
}

// ResolveClassroomToUser returns the teacher user of a classroom.
func (s *ResolverService) ResolveClassroomToUser(ctx context.Context, classroomID string) (*models.User, error) {
	chain, err := s.Resolve(ctx, ClassroomTeacherPath, classroomID)
	if err != nil {
		return nil, err
	}
	user := chain.Last().Records[0].(models.User)
	return &user, nil
}

func recordsAs[T models.Record](records []models.Record) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if v, ok := rec.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
