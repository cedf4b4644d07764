package postgres

import (
	"context"

	"gateway/config"
	domainerrors "gateway/internal/domain/errors"
	"gateway/internal/domain/repository"
	"gateway/internal/errors"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// gormTransactionManager implements the domain's TransactionManager interface using GORM.
type gormTransactionManager struct {
	db *gorm.DB
	// sessions, when set, is a session store living outside PostgreSQL. Transactions
	// then still serialize through the user row lock, but sessions are written there.
	sessions repository.SessionRepository
}

// gormRepositoryFactory implements the domain's RepositoryFactory interface.
// It holds a specific GORM transaction object and uses it to create
// repository instances that are bound to that single transaction.
type gormRepositoryFactory struct {
	tx       *gorm.DB // In GORM, a transaction object is also a *gorm.DB
	sessions repository.SessionRepository
}

// UserRepo returns a user repository bound to the transaction.
func (f *gormRepositoryFactory) UserRepo() repository.UserRepository {
	return NewUserRepository(f.tx)
}

// SessionRepo returns the session store for this transaction.
func (f *gormRepositoryFactory) SessionRepo() repository.SessionRepository {
	if f.sessions != nil {
		return f.sessions
	}

	return NewSessionRepository(f.tx)
}

// TransactionManagerParams holds dependencies for the transaction manager, injected by Fx.
type TransactionManagerParams struct {
	fx.In

	DB       *gorm.DB
	Config   *config.Config
	Sessions repository.SessionRepository
}

// NewTransactionManager is the constructor for gormTransactionManager.
// Sessions are only routed away from the transaction when another backend is configured.
func NewTransactionManager(params TransactionManagerParams) repository.TransactionManager {
	tm := &gormTransactionManager{db: params.DB}
	if params.Config.Session.Backend != config.SessionBackendPostgres {
		tm.sessions = params.Sessions
	}

	return tm
}

// Execute runs the given function within a single database transaction.
func (tm *gormTransactionManager) Execute(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	tx := tm.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errors.Wrap(domainerrors.ErrTransactionFailed, "failed to begin transaction: "+tx.Error.Error())
	}

	// Roll back on panic, then let the panic continue to the recover middleware.
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&gormRepositoryFactory{tx: tx, sessions: tm.sessions}); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			// The business error is the meaningful one; keep it as the cause.
			return errors.Wrapf(err, "transaction rollback failed: %v", rbErr)
		}

		return err
	}

	if err := tx.Commit().Error; err != nil {
		return errors.Wrap(domainerrors.ErrTransactionFailed, "failed to commit transaction: "+err.Error())
	}

	return nil
}
