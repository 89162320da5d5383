package service

import (
	"context"
	"errors"
	"testing"

	"atelier/internal/model"
	"atelier/internal/notifier"
	"atelier/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserServiceForTest(db *memDB) (UserService, *fakeAudit, *fakeDispatcher) {
	audit := newFakeAudit()
	dispatcher := newFakeDispatcher()
	svc := NewUserService(&fakeUserRepo{db: db}, &fakeRoleRepo{db: db}, audit, dispatcher, fakeTxManager{}, testLogger())
	return svc, audit, dispatcher
}

func TestUserCreateRequiresExistingActiveRoles(t *testing.T) {
	db := newMemDB()
	inactive := db.addRole("RETIRED", false)
	svc, _, _ := newUserServiceForTest(db)
	actor := Actor{ID: uuid.New()}

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Name:  "Ana",
		Email: "ana@example.com",
		Roles: []string{uuid.NewString()},
	}, actor)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = svc.Create(context.Background(), CreateUserRequest{
		Name:  "Ana",
		Email: "ana@example.com",
		Roles: []string{inactive.ID.String()},
	}, actor)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestUserCreateRejectsSuperAdminRole(t *testing.T) {
	db := newMemDB()
	super := db.addRole(model.SuperAdminRoleName, true)
	svc, _, _ := newUserServiceForTest(db)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Name:  "Ana",
		Email: "ana@example.com",
		Roles: []string{super.ID.String()},
	}, Actor{ID: uuid.New()})

	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestUserCreateSendsWelcomeAndAudits(t *testing.T) {
	db := newMemDB()
	sales := db.addRole("SALES", true)
	design := db.addRole("DESIGN", true)
	svc, audit, dispatcher := newUserServiceForTest(db)
	actor := Actor{ID: uuid.New()}

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Name:  "Ana",
		Email: "ana@example.com",
		Roles: []string{sales.ID.String(), design.ID.String()},
	}, actor)

	require.NoError(t, err)
	assert.True(t, user.MustChangePassword)
	require.Len(t, user.Roles, 2)

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, notifier.EventWelcome, dispatcher.calls[0].event)
	assert.Equal(t, "ana@example.com", dispatcher.calls[0].recipient)
	assert.NotEmpty(t, dispatcher.calls[0].payload["password"])

	// One record for the created user, regardless of how many roles it got.
	entries := audit.entriesFor(uuid.MustParse(user.ID))
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionCreate, entries[0].action)
}

func TestUserCreateRejectsActiveEmailHolder(t *testing.T) {
	db := newMemDB()
	role := db.addRole("SALES", true)
	db.addUser("ana@example.com", true)
	svc, _, _ := newUserServiceForTest(db)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Name:  "Ana",
		Email: "ana@example.com",
		Roles: []string{role.ID.String()},
	}, Actor{ID: uuid.New()})

	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestUserCreateSurfacesInactiveEmailHolder(t *testing.T) {
	db := newMemDB()
	role := db.addRole("SALES", true)
	ghost := db.addUser("ana@example.com", false)
	svc, _, _ := newUserServiceForTest(db)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Name:  "Ana",
		Email: "ana@example.com",
		Roles: []string{role.ID.String()},
	}, Actor{ID: uuid.New()})

	require.Error(t, err)
	kindErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, kindErr.Kind)

	data, ok := kindErr.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ghost.ID.String(), data["inactive_user_id"])
}

func TestUserCreateAbortsWhenWelcomeDispatchFails(t *testing.T) {
	db := newMemDB()
	role := db.addRole("SALES", true)
	svc, _, dispatcher := newUserServiceForTest(db)
	dispatcher.err = errors.New("smtp down")

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Name:  "Ana",
		Email: "ana@example.com",
		Roles: []string{role.ID.String()},
	}, Actor{ID: uuid.New()})

	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestUserUpdateDiffsRoleSet(t *testing.T) {
	db := newMemDB()
	keep := db.addRole("KEEP", true)
	drop := db.addRole("DROP", true)
	added := db.addRole("ADDED", true)
	user := db.addUser("ana@example.com", true, keep, drop)
	svc, audit, _ := newUserServiceForTest(db)

	roles := []string{keep.ID.String(), added.ID.String()}
	updated, err := svc.Update(context.Background(), user.ID.String(), UpdateUserRequest{Roles: &roles}, Actor{ID: uuid.New()})

	require.NoError(t, err)
	require.Len(t, updated.Roles, 2)
	gotRoles := map[string]bool{}
	for _, link := range updated.Roles {
		gotRoles[link.RoleID] = true
	}
	assert.True(t, gotRoles[keep.ID.String()])
	assert.True(t, gotRoles[added.ID.String()])
	assert.False(t, gotRoles[drop.ID.String()])

	entries := audit.entriesFor(user.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionUpdate, entries[0].action)
}

func TestUserRemoveRejectsSelf(t *testing.T) {
	db := newMemDB()
	user := db.addUser("ana@example.com", true)
	svc, _, _ := newUserServiceForTest(db)

	err := svc.Remove(context.Background(), user.ID.String(), Actor{ID: user.ID})

	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestUserRemoveRejectsSuperAdmin(t *testing.T) {
	db := newMemDB()
	user := db.addUser("root@example.com", true)
	user.IsSuperAdmin = true
	svc, _, _ := newUserServiceForTest(db)

	err := svc.Remove(context.Background(), user.ID.String(), Actor{ID: uuid.New()})

	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	assert.True(t, db.users[user.ID].IsActive)
}

func TestUserRemoveSoftDeactivatesUserAndLinks(t *testing.T) {
	db := newMemDB()
	role := db.addRole("SALES", true)
	user := db.addUser("ana@example.com", true, role)
	svc, audit, _ := newUserServiceForTest(db)

	require.NoError(t, svc.Remove(context.Background(), user.ID.String(), Actor{ID: uuid.New()}))

	stored := db.users[user.ID]
	assert.False(t, stored.IsActive)
	require.Len(t, stored.Roles, 1)
	assert.False(t, stored.Roles[0].IsActive)

	entries := audit.entriesFor(user.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionDelete, entries[0].action)
}

func TestUserDeactivateHardDeletesUserWithoutHistory(t *testing.T) {
	db := newMemDB()
	role := db.addRole("SALES", true)
	fresh := db.addUser("fresh@example.com", true, role)
	veteran := db.addUser("veteran@example.com", true, role)
	svc, audit, _ := newUserServiceForTest(db)
	audit.history[veteran.ID] = true

	err := svc.Deactivate(context.Background(), []string{fresh.ID.String(), veteran.ID.String()}, Actor{ID: uuid.New()})

	require.NoError(t, err)
	// No prior actions: removed outright.
	assert.NotContains(t, db.users, fresh.ID)
	// Has history: kept, deactivated.
	require.Contains(t, db.users, veteran.ID)
	assert.False(t, db.users[veteran.ID].IsActive)
	// One audit entry per user either way.
	assert.Len(t, audit.entriesFor(fresh.ID), 1)
	assert.Len(t, audit.entriesFor(veteran.ID), 1)
}

func TestUserDeactivateRejectsBatchContainingActor(t *testing.T) {
	db := newMemDB()
	other := db.addUser("other@example.com", true)
	actor := db.addUser("me@example.com", true)
	svc, audit, _ := newUserServiceForTest(db)

	err := svc.Deactivate(context.Background(), []string{other.ID.String(), actor.ID.String()}, Actor{ID: actor.ID})

	require.Error(t, err)
	assert.True(t, db.users[other.ID].IsActive)
	assert.Empty(t, audit.entries)
}

func TestUserReactivateRejectsAlreadyActive(t *testing.T) {
	db := newMemDB()
	user := db.addUser("ana@example.com", true)
	svc, _, _ := newUserServiceForTest(db)

	_, err := svc.Reactivate(context.Background(), user.ID.String(), Actor{ID: uuid.New()})

	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestUserReactivateRestoresUserAndLinks(t *testing.T) {
	db := newMemDB()
	role := db.addRole("SALES", true)
	user := db.addUser("ana@example.com", false, role)
	svc, _, _ := newUserServiceForTest(db)

	restored, err := svc.Reactivate(context.Background(), user.ID.String(), Actor{ID: uuid.New()})

	require.NoError(t, err)
	assert.True(t, restored.IsActive)
	require.Len(t, db.users[user.ID].Roles, 1)
	assert.True(t, db.users[user.ID].Roles[0].IsActive)
}

func TestUserReactivateRejectsEmailTakenWhileInactive(t *testing.T) {
	db := newMemDB()
	old := db.addUser("ana@example.com", false)
	db.addUser("ana@example.com", true)
	svc, audit, _ := newUserServiceForTest(db)

	_, err := svc.Reactivate(context.Background(), old.ID.String(), Actor{ID: uuid.New()})

	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.False(t, db.users[old.ID].IsActive)
	assert.Empty(t, audit.entries)
}

func TestUserReactivateAllRejectsEmailTakenWhileInactive(t *testing.T) {
	db := newMemDB()
	old := db.addUser("ana@example.com", false)
	db.addUser("ana@example.com", true)
	free := db.addUser("luis@example.com", false)
	svc, audit, _ := newUserServiceForTest(db)

	err := svc.ReactivateAll(context.Background(), []string{old.ID.String(), free.ID.String()}, Actor{ID: uuid.New()})

	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	// The conflicting email poisons the whole batch.
	assert.False(t, db.users[old.ID].IsActive)
	assert.False(t, db.users[free.ID].IsActive)
	assert.Empty(t, audit.entries)
}

func TestUserReactivateAllRejectsDuplicateEmailWithinBatch(t *testing.T) {
	db := newMemDB()
	first := db.addUser("ana@example.com", false)
	second := db.addUser("ana@example.com", false)
	svc, audit, _ := newUserServiceForTest(db)

	err := svc.ReactivateAll(context.Background(), []string{first.ID.String(), second.ID.String()}, Actor{ID: uuid.New()})

	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.False(t, db.users[first.ID].IsActive)
	assert.False(t, db.users[second.ID].IsActive)
	assert.Empty(t, audit.entries)
}

func TestUserFindAllFiltersInactiveForRegularActors(t *testing.T) {
	db := newMemDB()
	db.addUser("active@example.com", true)
	db.addUser("inactive@example.com", false)
	svc, _, _ := newUserServiceForTest(db)

	users, err := svc.FindAll(context.Background(), Actor{ID: uuid.New()})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	users, err = svc.FindAll(context.Background(), Actor{ID: uuid.New(), IsSuperAdmin: true})
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestUserSendNewPasswordRejectsSelf(t *testing.T) {
	db := newMemDB()
	user := db.addUser("me@example.com", true)
	svc, _, _ := newUserServiceForTest(db)

	err := svc.SendNewPassword(context.Background(), "me@example.com", Actor{ID: user.ID})

	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestUserSendNewPasswordResetsAndDispatches(t *testing.T) {
	db := newMemDB()
	user := db.addUser("ana@example.com", true)
	user.Password = "old-hash"
	svc, _, dispatcher := newUserServiceForTest(db)

	require.NoError(t, svc.SendNewPassword(context.Background(), "ana@example.com", Actor{ID: uuid.New()}))

	stored := db.users[user.ID]
	assert.NotEqual(t, "old-hash", stored.Password)
	assert.True(t, stored.MustChangePassword)

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, notifier.EventNewPassword, dispatcher.calls[0].event)
}

func TestUserSendNewPasswordRequiresActiveAccount(t *testing.T) {
	db := newMemDB()
	db.addUser("gone@example.com", false)
	svc, _, _ := newUserServiceForTest(db)

	err := svc.SendNewPassword(context.Background(), "gone@example.com", Actor{ID: uuid.New()})

	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestUserVerifyCredentials(t *testing.T) {
	db := newMemDB()
	role := db.addRole("SALES", true)
	svc, _, dispatcher := newUserServiceForTest(db)

	created, err := svc.Create(context.Background(), CreateUserRequest{
		Name:  "Ana",
		Email: "ana@example.com",
		Roles: []string{role.ID.String()},
	}, Actor{ID: uuid.New()})
	require.NoError(t, err)

	temp := dispatcher.calls[0].payload["password"]

	user, err := svc.VerifyCredentials(context.Background(), "ana@example.com", temp)
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID.String())

	_, err = svc.VerifyCredentials(context.Background(), "ana@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = svc.VerifyCredentials(context.Background(), "nobody@example.com", temp)
	require.Error(t, err)
}

func TestUserBootstrapSuperAdmin(t *testing.T) {
	db := newMemDB()
	db.addRole(model.SuperAdminRoleName, true)
	svc, audit, _ := newUserServiceForTest(db)

	require.NoError(t, svc.BootstrapSuperAdmin(context.Background(), "root@example.com"))

	var found *model.User
	for _, user := range db.users {
		if user.Email == "root@example.com" {
			found = user
		}
	}
	require.NotNil(t, found)
	assert.True(t, found.IsSuperAdmin)
	assert.True(t, found.MustChangePassword)
	require.Len(t, found.Roles, 1)

	// Bootstrap leaves no audit trail and never duplicates the account.
	assert.Empty(t, audit.entries)
	require.NoError(t, svc.BootstrapSuperAdmin(context.Background(), "root@example.com"))
	count := 0
	for _, user := range db.users {
		if user.Email == "root@example.com" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
