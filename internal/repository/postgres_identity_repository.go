package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/linkage-api/internal/models"
)

var postgresColumns = map[string]string{
	models.FieldID:        "id",
	models.FieldEmail:     "email",
	models.FieldRole:      "role",
	models.FieldUserID:    "user_id",
	models.FieldParentID:  "parent_id",
	models.FieldTeacherID: "teacher_id",
	models.FieldFullName:  "full_name",
	models.FieldName:      "name",
}

type structScanner interface {
	StructScan(dest interface{}) error
}

// PostgresIdentityRepository reads identities from one table per collection.
type PostgresIdentityRepository struct {
	db *sqlx.DB
}

// NewPostgresIdentityRepository creates a new instance of PostgresIdentityRepository.
func NewPostgresIdentityRepository(db *sqlx.DB) *PostgresIdentityRepository {
	return &PostgresIdentityRepository{db: db}
}

func selectFrom(c models.Collection) string {
	fields := c.Fields()
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, postgresColumns[f.Name])
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), c)
}

// Get returns a record by id.
func (r *PostgresIdentityRepository) Get(ctx context.Context, collection models.Collection, id models.ID) (models.Record, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("get record: %w: %q", models.ErrUnknownCollection, collection)
	}
	query := selectFrom(collection) + " WHERE id = $1 LIMIT 1"
	rec, err := scanRecord(collection, r.db.QueryRowxContext(ctx, query, string(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("get %s by id: %w", collection, err)
	}
	return rec, nil
}

// FindBy streams the rows matching filter. Unknown fields are rejected before
// any SQL is built.
func (r *PostgresIdentityRepository) FindBy(ctx context.Context, collection models.Collection, filter models.Filter) iter.Seq2[models.Record, error] {
	if err := filter.Validate(collection); err != nil {
		return yieldErr(fmt.Errorf("find %s: %w", collection, err))
	}
	query := selectFrom(collection)
	var args []interface{}
	if !filter.IsMatchAll() {
		column, value := postgresColumns[filter.Field], filter.Value
		if spec, _ := collection.LookupField(filter.Field); spec.Kind == models.FieldCaseless {
			column, value = fmt.Sprintf("lower(btrim(%s))", column), models.FoldText(value)
		}
		query += fmt.Sprintf(" WHERE %s = $1", column)
		args = append(args, value)
	}
	return func(yield func(models.Record, error) bool) {
		rows, err := r.db.QueryxContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("find %s: %w", collection, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(collection, rows)
			if err != nil {
				yield(nil, fmt.Errorf("scan %s: %w", collection, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate %s: %w", collection, err))
		}
	}
}

// Ping checks the connection.
func (r *PostgresIdentityRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func scanRecord(c models.Collection, s structScanner) (models.Record, error) {
	switch c {
	case models.CollectionUsers:
		var u models.User
		if err := s.StructScan(&u); err != nil {
			return nil, err
		}
		return u, nil
	case models.CollectionParentProfiles:
		var p models.ParentProfile
		if err := s.StructScan(&p); err != nil {
			return nil, err
		}
		return p, nil
	case models.CollectionTeacherProfiles:
		var p models.TeacherProfile
		if err := s.StructScan(&p); err != nil {
			return nil, err
		}
		return p, nil
	case models.CollectionChildProfiles:
		var ch models.ChildProfile
		if err := s.StructScan(&ch); err != nil {
			return nil, err
		}
		return ch, nil
	case models.CollectionClassrooms:
		var cl models.Classroom
		if err := s.StructScan(&cl); err != nil {
			return nil, err
		}
		return cl, nil
	}
	return nil, fmt.Errorf("%w: %q", models.ErrUnknownCollection, c)
}
