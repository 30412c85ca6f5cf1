package user

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/domain/policy"
	"github.com/fastygo/taskhub/pkg/logger"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/usecase"
)

// Patch is an admin edit of a user; nil fields are kept.
type Patch struct {
	Name  *string
	Email *string
	Role  *string
}

type UseCase struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
	tx       repository.Transactor
	events   usecase.EventRecorder
	logger   *zap.Logger
}

func New(
	users repository.UserRepository,
	projects repository.ProjectRepository,
	tx repository.Transactor,
	events usecase.EventRecorder,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		projects: projects,
		tx:       tx,
		events:   events,
		logger:   logger,
	}
}

// Me returns the caller's own record.
func (uc *UseCase) Me(ctx context.Context, p domain.Principal) (*domain.User, error) {
	if !p.IsAuthenticated() {
		return nil, domain.ErrUnauthorized
	}
	user, err := uc.users.GetByID(ctx, p.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrUnauthorized
	}
	return user, err
}

func (uc *UseCase) List(ctx context.Context, p domain.Principal) ([]domain.User, error) {
	if err := policy.Authorize(p, policy.UserList, policy.Target{}); err != nil {
		return nil, err
	}
	users, err := uc.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (uc *UseCase) Get(ctx context.Context, p domain.Principal, id string) (*domain.User, error) {
	if err := policy.Authorize(p, policy.UserRead, policy.Target{}); err != nil {
		return nil, err
	}
	return uc.users.GetByID(ctx, id)
}

func (uc *UseCase) Update(ctx context.Context, p domain.Principal, id string, patch Patch) (*domain.User, error) {
	if err := policy.Authorize(p, policy.UserUpdate, policy.Target{}); err != nil {
		return nil, err
	}

	var user *domain.User
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if user, err = uc.users.GetByID(ctx, id); err != nil {
			return err
		}
		if patch.Name != nil {
			if user.Name, err = usecase.NormalizeName(*patch.Name); err != nil {
				return err
			}
		}
		if patch.Email != nil {
			if user.Email, err = usecase.NormalizeEmail(*patch.Email); err != nil {
				return err
			}
		}
		if patch.Role != nil {
			if user.Role, err = domain.ParseRole(*patch.Role); err != nil {
				return err
			}
		}
		return uc.users.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	usecase.Emit(ctx, uc.events, uc.logger, domain.NewEvent(
		domain.EventUserUpdated, domain.EntityUser, user.ID, p.UserID,
		map[string]string{"email": user.Email, "role": string(user.Role)},
	))
	return user, nil
}

// Delete removes the user and detaches it from every project it was assigned
// to. Tasks assigned to the user keep their reference.
func (uc *UseCase) Delete(ctx context.Context, p domain.Principal, id string) error {
	if err := policy.Authorize(p, policy.UserDelete, policy.Target{}); err != nil {
		return err
	}

	var detached int64
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := uc.users.GetByID(ctx, id); err != nil {
			return err
		}
		var err error
		if detached, err = uc.projects.RemoveMemberEverywhere(ctx, id); err != nil {
			return err
		}
		return uc.users.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	logger.WithRequestID(ctx, uc.logger).Info("user deleted",
		zap.String("user_id", id),
		zap.Int64("memberships_removed", detached),
	)
	usecase.Emit(ctx, uc.events, uc.logger, domain.NewEvent(
		domain.EventUserDeleted, domain.EntityUser, id, p.UserID,
		map[string]int64{"memberships_removed": detached},
	))
	return nil
}
