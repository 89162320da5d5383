package service

import (
	"context"
	"errors"
	"time"

	"atelier/internal/model"
	"atelier/internal/notifier"
	"atelier/internal/repository"
	"atelier/pkg/apperr"
	"atelier/pkg/logger"
	"atelier/pkg/password"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateUserRequest struct {
	Name  string   `json:"name" binding:"required"`
	Email string   `json:"email" binding:"required,email"`
	Phone string   `json:"phone"`
	Roles []string `json:"roles" binding:"required,min=1"` // Role UUIDs
}

type UpdateUserRequest struct {
	Name  *string   `json:"name"`
	Email *string   `json:"email"`
	Phone *string   `json:"phone"`
	Roles *[]string `json:"roles"` // desired role set; diffed against current links
}

type SendNewPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type UpdatePasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserRoleResponse struct {
	LinkID   string `json:"link_id"`
	RoleID   string `json:"role_id"`
	RoleName string `json:"role_name"`
	IsActive bool   `json:"is_active"`
}

type UserResponse struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Phone              string             `json:"phone"`
	IsSuperAdmin       bool               `json:"is_super_admin"`
	IsActive           bool               `json:"is_active"`
	MustChangePassword bool               `json:"must_change_password"`
	LastLogin          *string            `json:"last_login"`
	Roles              []UserRoleResponse `json:"roles"`
	CreatedAt          string             `json:"created_at"`
}

// --- Interface ---

type UserService interface {
	Create(ctx context.Context, req CreateUserRequest, actor Actor) (*UserResponse, error)
	Update(ctx context.Context, id string, req UpdateUserRequest, actor Actor) (*UserResponse, error)
	Remove(ctx context.Context, id string, actor Actor) error
	Deactivate(ctx context.Context, ids []string, actor Actor) error
	Reactivate(ctx context.Context, id string, actor Actor) (*UserResponse, error)
	ReactivateAll(ctx context.Context, ids []string, actor Actor) error
	FindAll(ctx context.Context, actor Actor) ([]UserResponse, error)
	FindOne(ctx context.Context, id string) (*UserResponse, error)
	SendNewPassword(ctx context.Context, email string, actor Actor) error
	UpdatePasswordTemp(ctx context.Context, userID uuid.UUID, newPassword string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
	VerifyCredentials(ctx context.Context, email, plain string) (*model.User, error)
	BootstrapSuperAdmin(ctx context.Context, email string) error
}

type userService struct {
	userRepo   repository.UserRepository
	roleRepo   repository.RoleRepository
	audit      AuditService
	dispatcher notifier.Dispatcher
	tx         repository.TransactionManager
	log        *logger.Logger
}

func NewUserService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	audit AuditService,
	dispatcher notifier.Dispatcher,
	tx repository.TransactionManager,
	log *logger.Logger,
) UserService {
	return &userService{
		userRepo:   userRepo,
		roleRepo:   roleRepo,
		audit:      audit,
		dispatcher: dispatcher,
		tx:         tx,
		log:        log,
	}
}

// --- Implementation ---

func (s *userService) Create(ctx context.Context, req CreateUserRequest, actor Actor) (*UserResponse, error) {
	roleIDs, err := parseIDs(req.Roles, "role")
	if err != nil {
		return nil, err
	}
	if len(roleIDs) == 0 {
		return nil, apperr.BadRequest("at least one role is required")
	}
	if err := s.validateAssignableRoles(ctx, roleIDs); err != nil {
		return nil, err
	}

	holders, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, s.internal(err, "failed to check email")
	}
	for _, holder := range holders {
		if holder.IsActive {
			return nil, apperr.BadRequest("email already in use")
		}
	}
	if len(holders) > 0 {
		// An inactive account already owns the email; the caller should offer
		// reactivation instead of creating a duplicate.
		return nil, apperr.ConflictWithData(
			"an inactive account already holds this email",
			map[string]interface{}{"inactive_user_id": holders[0].ID.String()},
		)
	}

	plain, err := password.GenerateTemp()
	if err != nil {
		return nil, s.internal(err, "failed to generate temporary password")
	}
	hashed, err := password.Hash(plain)
	if err != nil {
		return nil, s.internal(err, "failed to hash password")
	}

	user := &model.User{
		Name:               req.Name,
		Email:              req.Email,
		Phone:              req.Phone,
		Password:           hashed,
		IsActive:           true,
		MustChangePassword: true,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Create(txCtx, user); err != nil {
			return err
		}

		links := make([]model.UserRole, 0, len(roleIDs))
		for _, rid := range roleIDs {
			links = append(links, model.UserRole{UserID: user.ID, RoleID: rid, IsActive: true})
		}
		if err := s.userRepo.CreateUserRoles(txCtx, links); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, user.ID, model.EntityUser, model.ActionCreate, actor.ID); err != nil {
			return err
		}

		// The welcome mail carries the only copy of the temporary password, so
		// a failed dispatch aborts the whole creation.
		ok, err := s.dispatcher.Dispatch(notifier.EventWelcome, user.Email, map[string]string{
			"name":     user.Name,
			"password": plain,
		})
		if err != nil {
			return &apperr.Error{Kind: apperr.KindInternal, Message: "could not send welcome notification", Err: err}
		}
		if !ok {
			return &apperr.Error{Kind: apperr.KindInternal, Message: "could not send welcome notification"}
		}
		return nil
	})
	if err != nil {
		return nil, s.internal(err, "failed to create user")
	}

	return s.FindOne(ctx, user.ID.String())
}

func (s *userService) Update(ctx context.Context, id string, req UpdateUserRequest, actor Actor) (*UserResponse, error) {
	userID, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, s.internal(err, "failed to fetch user")
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Email != nil && *req.Email != user.Email {
		holders, err := s.userRepo.FindByEmail(ctx, *req.Email)
		if err != nil {
			return nil, s.internal(err, "failed to check email")
		}
		for _, holder := range holders {
			if holder.IsActive && holder.ID != user.ID {
				return nil, apperr.BadRequest("email already in use")
			}
		}
		user.Email = *req.Email
	}

	var addedIDs, removedIDs []uuid.UUID
	if req.Roles != nil {
		desired, err := parseIDs(*req.Roles, "role")
		if err != nil {
			return nil, err
		}

		current := make([]uuid.UUID, 0, len(user.Roles))
		for _, link := range user.Roles {
			current = append(current, link.RoleID)
		}

		for _, rid := range desired {
			if !containsID(current, rid) {
				addedIDs = append(addedIDs, rid)
			}
		}
		for _, rid := range current {
			if !containsID(desired, rid) {
				removedIDs = append(removedIDs, rid)
			}
		}

		if len(addedIDs) > 0 {
			if err := s.validateAssignableRoles(ctx, addedIDs); err != nil {
				return nil, err
			}
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Update(txCtx, user); err != nil {
			return err
		}
		if err := s.userRepo.DeleteUserRoles(txCtx, user.ID, removedIDs); err != nil {
			return err
		}
		if len(addedIDs) > 0 {
			links := make([]model.UserRole, 0, len(addedIDs))
			for _, rid := range addedIDs {
				links = append(links, model.UserRole{UserID: user.ID, RoleID: rid, IsActive: true})
			}
			if err := s.userRepo.CreateUserRoles(txCtx, links); err != nil {
				return err
			}
		}
		return s.audit.Record(txCtx, user.ID, model.EntityUser, model.ActionUpdate, actor.ID)
	})
	if err != nil {
		return nil, s.internal(err, "failed to update user")
	}

	return s.FindOne(ctx, id)
}

func (s *userService) Remove(ctx context.Context, id string, actor Actor) error {
	userID, err := parseID(id, "user")
	if err != nil {
		return err
	}
	if userID == actor.ID {
		return apperr.BadRequest("you cannot deactivate your own account")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user not found")
		}
		return s.internal(err, "failed to fetch user")
	}
	if s.holdsSuperAdmin(user) {
		return apperr.BadRequest("a superadmin account cannot be deactivated")
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.SetActive(txCtx, user.ID, false); err != nil {
			return err
		}
		if err := s.userRepo.SetUserRolesActive(txCtx, user.ID, false); err != nil {
			return err
		}
		return s.audit.Record(txCtx, user.ID, model.EntityUser, model.ActionDelete, actor.ID)
	})
	if err != nil {
		return s.internal(err, "failed to deactivate user")
	}
	return nil
}

func (s *userService) Deactivate(ctx context.Context, ids []string, actor Actor) error {
	userIDs, err := parseIDs(ids, "user")
	if err != nil {
		return err
	}

	users, err := s.userRepo.FindByIDs(ctx, userIDs)
	if err != nil {
		return s.internal(err, "failed to fetch users")
	}
	if len(users) == 0 {
		return apperr.NotFound("no users found for the given ids")
	}

	// Reject the whole batch before mutating anything.
	for _, user := range users {
		if user.ID == actor.ID {
			return apperr.BadRequest("you cannot deactivate your own account")
		}
		if s.holdsSuperAdmin(&user) {
			return apperr.BadRequest("a superadmin account cannot be deactivated")
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		for _, user := range users {
			hasHistory, err := s.audit.HasActions(txCtx, user.ID)
			if err != nil {
				return err
			}
			if err := s.audit.Record(txCtx, user.ID, model.EntityUser, model.ActionDelete, actor.ID); err != nil {
				return err
			}
			if hasHistory {
				if err := s.userRepo.SetActive(txCtx, user.ID, false); err != nil {
					return err
				}
				if err := s.userRepo.SetUserRolesActive(txCtx, user.ID, false); err != nil {
					return err
				}
				continue
			}
			// Never acted: nothing references the account, so it is removed
			// outright together with its role links.
			if err := s.userRepo.DeleteAllUserRoles(txCtx, user.ID); err != nil {
				return err
			}
			if err := s.userRepo.HardDelete(txCtx, user.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.internal(err, "failed to deactivate users")
	}
	return nil
}

func (s *userService) Reactivate(ctx context.Context, id string, actor Actor) (*UserResponse, error) {
	userID, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, s.internal(err, "failed to fetch user")
	}
	if user.IsActive {
		return nil, apperr.BadRequest("user is already active")
	}
	if err := s.checkEmailFree(ctx, user); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.SetActive(txCtx, user.ID, true); err != nil {
			return err
		}
		if err := s.userRepo.SetUserRolesActive(txCtx, user.ID, true); err != nil {
			return err
		}
		return s.audit.Record(txCtx, user.ID, model.EntityUser, model.ActionUpdate, actor.ID)
	})
	if err != nil {
		return nil, s.internal(err, "failed to reactivate user")
	}

	return s.FindOne(ctx, id)
}

func (s *userService) ReactivateAll(ctx context.Context, ids []string, actor Actor) error {
	userIDs, err := parseIDs(ids, "user")
	if err != nil {
		return err
	}

	users, err := s.userRepo.FindByIDs(ctx, userIDs)
	if err != nil {
		return s.internal(err, "failed to fetch users")
	}
	if len(users) == 0 {
		return apperr.NotFound("no users found for the given ids")
	}
	seen := make(map[string]bool, len(users))
	for _, user := range users {
		if user.ID == actor.ID {
			return apperr.BadRequest("you cannot reactivate your own account")
		}
		if s.holdsSuperAdmin(&user) {
			return apperr.BadRequest("a superadmin account cannot be modified")
		}
		if seen[user.Email] {
			return apperr.Conflict("an active account already holds this user's email")
		}
		seen[user.Email] = true
		if err := s.checkEmailFree(ctx, &user); err != nil {
			return err
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		for _, user := range users {
			if err := s.userRepo.SetActive(txCtx, user.ID, true); err != nil {
				return err
			}
			if err := s.userRepo.SetUserRolesActive(txCtx, user.ID, true); err != nil {
				return err
			}
			if err := s.audit.Record(txCtx, user.ID, model.EntityUser, model.ActionUpdate, actor.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.internal(err, "failed to reactivate users")
	}
	return nil
}

func (s *userService) FindAll(ctx context.Context, actor Actor) ([]UserResponse, error) {
	users, err := s.userRepo.List(ctx, !actor.IsSuperAdmin)
	if err != nil {
		return nil, s.internal(err, "failed to list users")
	}

	res := make([]UserResponse, 0, len(users))
	for _, u := range users {
		res = append(res, toUserResponse(u))
	}
	return res, nil
}

func (s *userService) FindOne(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, s.internal(err, "failed to fetch user")
	}

	resp := toUserResponse(*user)
	return &resp, nil
}

func (s *userService) SendNewPassword(ctx context.Context, email string, actor Actor) error {
	holders, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return s.internal(err, "failed to fetch user")
	}

	var target *model.User
	for i := range holders {
		if holders[i].IsActive {
			target = &holders[i]
			break
		}
	}
	if target == nil {
		return apperr.BadRequest("no active account with that email")
	}
	if target.ID == actor.ID {
		return apperr.BadRequest("you cannot reset your own password through this operation")
	}

	plain, err := password.GenerateTemp()
	if err != nil {
		return s.internal(err, "failed to generate temporary password")
	}
	hashed, err := password.Hash(plain)
	if err != nil {
		return s.internal(err, "failed to hash password")
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		err := s.userRepo.UpdateFields(txCtx, target.ID, map[string]interface{}{
			"password":             hashed,
			"must_change_password": true,
		})
		if err != nil {
			return err
		}

		ok, err := s.dispatcher.Dispatch(notifier.EventNewPassword, target.Email, map[string]string{
			"name":     target.Name,
			"password": plain,
		})
		if err != nil {
			return &apperr.Error{Kind: apperr.KindInternal, Message: "could not send password notification", Err: err}
		}
		if !ok {
			return &apperr.Error{Kind: apperr.KindInternal, Message: "could not send password notification"}
		}
		return nil
	})
	if err != nil {
		return s.internal(err, "failed to reset password")
	}
	return nil
}

func (s *userService) UpdatePasswordTemp(ctx context.Context, userID uuid.UUID, newPassword string) error {
	hashed, err := password.Hash(newPassword)
	if err != nil {
		return s.internal(err, "failed to hash password")
	}
	err = s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{
		"password":             hashed,
		"must_change_password": false,
	})
	if err != nil {
		return s.internal(err, "failed to update password")
	}
	return nil
}

func (s *userService) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	if err := s.userRepo.UpdateLastLogin(ctx, id, time.Now()); err != nil {
		return s.internal(err, "failed to update last login")
	}
	return nil
}

func (s *userService) VerifyCredentials(ctx context.Context, email, plain string) (*model.User, error) {
	holders, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.internal(err, "failed to fetch user")
	}

	for i := range holders {
		u := &holders[i]
		if !u.IsActive {
			continue
		}
		if password.Compare(u.Password, plain) == nil {
			return u, nil
		}
	}
	return nil, apperr.BadRequest("invalid email or password")
}

// BootstrapSuperAdmin creates the initial superadmin account when the given
// email is not registered yet. The generated password is logged exactly once.
func (s *userService) BootstrapSuperAdmin(ctx context.Context, email string) error {
	if email == "" {
		return nil
	}

	holders, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return s.internal(err, "failed to check superadmin email")
	}
	if len(holders) > 0 {
		return nil
	}

	role, err := s.roleRepo.FindActiveByName(ctx, model.SuperAdminRoleName)
	if err != nil {
		return s.internal(err, "superadmin role is not seeded")
	}

	plain, err := password.GenerateTemp()
	if err != nil {
		return s.internal(err, "failed to generate password")
	}
	hashed, err := password.Hash(plain)
	if err != nil {
		return s.internal(err, "failed to hash password")
	}

	user := &model.User{
		Name:               "Super Admin",
		Email:              email,
		Password:           hashed,
		IsSuperAdmin:       true,
		IsActive:           true,
		MustChangePassword: true,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Create(txCtx, user); err != nil {
			return err
		}
		return s.userRepo.CreateUserRoles(txCtx, []model.UserRole{
			{UserID: user.ID, RoleID: role.ID, IsActive: true},
		})
	})
	if err != nil {
		return s.internal(err, "failed to bootstrap superadmin")
	}

	s.log.Info().
		Str("email", email).
		Str("temporary_password", plain).
		Msg("superadmin account bootstrapped, change the password on first login")
	return nil
}

// --- Helpers ---

// validateAssignableRoles checks that every role exists, is active and is not
// the protected superadmin role.
func (s *userService) validateAssignableRoles(ctx context.Context, roleIDs []uuid.UUID) error {
	roles, err := s.roleRepo.FindByIDs(ctx, roleIDs)
	if err != nil {
		return s.internal(err, "failed to fetch roles")
	}
	if len(roles) != len(roleIDs) {
		return apperr.BadRequest("one or more roles do not exist")
	}
	for _, role := range roles {
		if !role.IsActive {
			return apperr.BadRequest("role '" + role.Name + "' is inactive")
		}
		if role.IsProtected() {
			return apperr.BadRequest("the superadmin role cannot be assigned")
		}
	}
	return nil
}

// holdsSuperAdmin reports whether the user is flagged superadmin or holds an
// active link to the protected role.
func (s *userService) holdsSuperAdmin(user *model.User) bool {
	if user.IsSuperAdmin {
		return true
	}
	for _, link := range user.Roles {
		if link.IsActive && link.Role.IsProtected() {
			return true
		}
	}
	return false
}

// checkEmailFree guards reactivation: while the account was inactive another
// account may have taken its email, and two active holders would break the
// active-email uniqueness rule.
func (s *userService) checkEmailFree(ctx context.Context, user *model.User) error {
	holders, err := s.userRepo.FindByEmail(ctx, user.Email)
	if err != nil {
		return s.internal(err, "failed to check email")
	}
	for _, holder := range holders {
		if holder.IsActive && holder.ID != user.ID {
			return apperr.Conflict("an active account already holds this user's email")
		}
	}
	return nil
}

func (s *userService) internal(err error, msg string) error {
	if kindErr, ok := apperr.As(err); ok && kindErr.Kind != apperr.KindInternal {
		return err
	}
	s.log.Error().Err(err).Msg(msg)
	if kindErr, ok := apperr.As(err); ok {
		return kindErr
	}
	return apperr.Internal(err)
}

func toUserResponse(u model.User) UserResponse {
	roles := make([]UserRoleResponse, 0, len(u.Roles))
	for _, link := range u.Roles {
		roles = append(roles, UserRoleResponse{
			LinkID:   link.ID.String(),
			RoleID:   link.RoleID.String(),
			RoleName: link.Role.Name,
			IsActive: link.IsActive,
		})
	}

	var lastLogin *string
	if u.LastLogin != nil {
		formatted := u.LastLogin.Format(timeLayout)
		lastLogin = &formatted
	}

	return UserResponse{
		ID:                 u.ID.String(),
		Name:               u.Name,
		Email:              u.Email,
		Phone:              u.Phone,
		IsSuperAdmin:       u.IsSuperAdmin,
		IsActive:           u.IsActive,
		MustChangePassword: u.MustChangePassword,
		LastLogin:          lastLogin,
		Roles:              roles,
		CreatedAt:          u.CreatedAt.Format(timeLayout),
	}
}
