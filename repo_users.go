package auth

import (
	"context"
	"database/sql"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// Users is the bun backed credential store
type Users interface {
	repository.Repository[*User]
	CredentialStore

	FindUserByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	InsertUserTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	CountByEmail(ctx context.Context, email string) (int, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

// GetByIdentifier looks a user up by email, the only identifier
// credentials sign in accepts.
func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	record := &User{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.Where("?TableAlias.email = ?", NormalizeEmail(identifier)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"identifier": identifier})
		}
		return nil, err
	}

	return record, nil
}

// FindUserByEmail performs a single lookup by normalized email. A miss
// returns ErrUserNotFound, any other failure ErrStoreUnavailable.
func (a *users) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return a.FindUserByEmailTx(ctx, a.db, email)
}

func (a *users) FindUserByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record, err := a.GetByIdentifierTx(ctx, tx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, sentinelError(ErrUserNotFound, nil)
		}
		return nil, sentinelError(ErrStoreUnavailable, err, map[string]any{
			"operation": "find_user_by_email",
		})
	}
	return record, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

// CreateTx fills in the record defaults before handing it to the generic
// repository.
func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) InsertUser(ctx context.Context, user *User) (*User, error) {
	return a.InsertUserTx(ctx, a.db, user)
}

// InsertUserTx creates the record. The unique index on email is the only
// guard against duplicates, a violation returns ErrDuplicateEmail.
func (a *users) InsertUserTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil {
		return nil, errors.New("user record is required", errors.CategoryBadInput)
	}

	created, err := a.CreateTx(ctx, tx, user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, sentinelError(ErrDuplicateEmail, nil, map[string]any{
				"email": user.Email,
			})
		}
		return nil, sentinelError(ErrStoreUnavailable, err, map[string]any{
			"operation": "insert_user",
		})
	}

	return created, nil
}

func (a *users) CountByEmail(ctx context.Context, email string) (int, error) {
	n, err := a.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Count(ctx)
	if err != nil {
		return 0, sentinelError(ErrStoreUnavailable, err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}

	var rich *errors.Error
	if errors.As(err, &rich) && rich.Category == errors.CategoryConflict {
		return true
	}

	// sqlite reports constraint errors as text only
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
