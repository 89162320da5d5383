package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"atelier/internal/model"
	"atelier/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// memDB is a shared in-memory store backing the per-interface fakes, so a
// test can wire several repositories over the same data.
type memDB struct {
	users   map[uuid.UUID]*model.User
	roles   map[uuid.UUID]*model.Role
	modules map[uuid.UUID]model.Module
	perms   map[uuid.UUID]model.Permission
	grants  map[uuid.UUID]*model.ModulePermission
	clients map[uuid.UUID]*model.Client
}

func newMemDB() *memDB {
	return &memDB{
		users:   make(map[uuid.UUID]*model.User),
		roles:   make(map[uuid.UUID]*model.Role),
		modules: make(map[uuid.UUID]model.Module),
		perms:   make(map[uuid.UUID]model.Permission),
		grants:  make(map[uuid.UUID]*model.ModulePermission),
		clients: make(map[uuid.UUID]*model.Client),
	}
}

func (db *memDB) addRole(name string, active bool) *model.Role {
	role := &model.Role{ID: uuid.New(), Name: name, IsActive: active, CreatedAt: time.Now()}
	db.roles[role.ID] = role
	return role
}

func (db *memDB) addGrant(moduleCode, permCode string) *model.ModulePermission {
	mp := &model.ModulePermission{
		ID:         uuid.New(),
		Module:     model.Module{ID: uuid.New(), Code: moduleCode, Name: moduleCode},
		Permission: model.Permission{ID: uuid.New(), Code: permCode, Name: permCode},
	}
	mp.ModuleID = mp.Module.ID
	mp.PermissionID = mp.Permission.ID
	db.modules[mp.ModuleID] = mp.Module
	db.perms[mp.PermissionID] = mp.Permission
	db.grants[mp.ID] = mp
	return mp
}

func (db *memDB) addUser(email string, active bool, roles ...*model.Role) *model.User {
	user := &model.User{
		ID:        uuid.New(),
		Name:      email,
		Email:     email,
		IsActive:  active,
		CreatedAt: time.Now(),
	}
	for _, role := range roles {
		user.Roles = append(user.Roles, model.UserRole{
			ID:       uuid.New(),
			UserID:   user.ID,
			RoleID:   role.ID,
			IsActive: active,
		})
	}
	db.users[user.ID] = user
	return user
}

func (db *memDB) addClient(rucDni string, active bool) *model.Client {
	client := &model.Client{
		ID:        uuid.New(),
		Name:      "client " + rucDni,
		RucDni:    rucDni,
		IsActive:  active,
		CreatedAt: time.Now(),
	}
	db.clients[client.ID] = client
	return client
}

// --- Transaction manager ---

type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- User repository ---

type fakeUserRepo struct {
	db *memDB
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	stored := *user
	r.db.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := r.db.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.withRoles(user), nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) ([]model.User, error) {
	var res []model.User
	for _, user := range r.db.users {
		if user.Email == email {
			res = append(res, *r.withRoles(user))
		}
	}
	return res, nil
}

func (r *fakeUserRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.User, error) {
	var res []model.User
	for _, id := range ids {
		if user, ok := r.db.users[id]; ok {
			res = append(res, *r.withRoles(user))
		}
	}
	return res, nil
}

func (r *fakeUserRepo) List(_ context.Context, onlyActive bool) ([]model.User, error) {
	var res []model.User
	for _, user := range r.db.users {
		if onlyActive && !user.IsActive {
			continue
		}
		res = append(res, *r.withRoles(user))
	}
	return res, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	stored, ok := r.db.users[user.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Name = user.Name
	stored.Email = user.Email
	stored.Phone = user.Phone
	stored.IsActive = user.IsActive
	stored.MustChangePassword = user.MustChangePassword
	return nil
}

func (r *fakeUserRepo) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	stored, ok := r.db.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := fields["password"].(string); ok {
		stored.Password = v
	}
	if v, ok := fields["must_change_password"].(bool); ok {
		stored.MustChangePassword = v
	}
	return nil
}

func (r *fakeUserRepo) HardDelete(_ context.Context, id uuid.UUID) error {
	delete(r.db.users, id)
	return nil
}

func (r *fakeUserRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	if user, ok := r.db.users[id]; ok {
		user.IsActive = active
	}
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	if user, ok := r.db.users[id]; ok {
		user.LastLogin = &at
	}
	return nil
}

func (r *fakeUserRepo) CreateUserRoles(_ context.Context, links []model.UserRole) error {
	for _, link := range links {
		user, ok := r.db.users[link.UserID]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		link.ID = uuid.New()
		user.Roles = append(user.Roles, link)
	}
	return nil
}

func (r *fakeUserRepo) DeleteUserRoles(_ context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	user, ok := r.db.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	kept := user.Roles[:0]
	for _, link := range user.Roles {
		remove := false
		for _, rid := range roleIDs {
			if link.RoleID == rid {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, link)
		}
	}
	user.Roles = kept
	return nil
}

func (r *fakeUserRepo) DeleteAllUserRoles(_ context.Context, userID uuid.UUID) error {
	if user, ok := r.db.users[userID]; ok {
		user.Roles = nil
	}
	return nil
}

func (r *fakeUserRepo) SetUserRolesActive(_ context.Context, userID uuid.UUID, active bool) error {
	if user, ok := r.db.users[userID]; ok {
		for i := range user.Roles {
			user.Roles[i].IsActive = active
		}
	}
	return nil
}

func (r *fakeUserRepo) withRoles(user *model.User) *model.User {
	cp := *user
	cp.Roles = make([]model.UserRole, len(user.Roles))
	copy(cp.Roles, user.Roles)
	for i := range cp.Roles {
		if role, ok := r.db.roles[cp.Roles[i].RoleID]; ok {
			cp.Roles[i].Role = *role
		}
	}
	return &cp
}

// --- Role repository ---

type fakeRoleRepo struct {
	db *memDB
}

func (r *fakeRoleRepo) Create(_ context.Context, role *model.Role) error {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	role.CreatedAt = time.Now()
	for i := range role.Permissions {
		role.Permissions[i].ID = uuid.New()
		role.Permissions[i].RoleID = role.ID
	}
	stored := *role
	r.db.roles[role.ID] = &stored
	return nil
}

func (r *fakeRoleRepo) Save(_ context.Context, role *model.Role) error {
	stored, ok := r.db.roles[role.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Name = role.Name
	stored.Description = role.Description
	stored.IsActive = role.IsActive
	return nil
}

func (r *fakeRoleRepo) HardDelete(_ context.Context, id uuid.UUID) error {
	delete(r.db.roles, id)
	return nil
}

func (r *fakeRoleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Role, error) {
	role, ok := r.db.roles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.withGrants(role), nil
}

func (r *fakeRoleRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.Role, error) {
	var res []model.Role
	for _, id := range ids {
		if role, ok := r.db.roles[id]; ok {
			res = append(res, *r.withGrants(role))
		}
	}
	return res, nil
}

func (r *fakeRoleRepo) FindActiveByName(_ context.Context, name string) (*model.Role, error) {
	for _, role := range r.db.roles {
		if role.Name == name && role.IsActive {
			return r.withGrants(role), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRoleRepo) List(_ context.Context, onlyActive bool) ([]model.Role, error) {
	var res []model.Role
	for _, role := range r.db.roles {
		if onlyActive && !role.IsActive {
			continue
		}
		res = append(res, *r.withGrants(role))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (r *fakeRoleRepo) ReplaceGrants(_ context.Context, roleID uuid.UUID, grantIDs []uuid.UUID) error {
	role, ok := r.db.roles[roleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	role.Permissions = nil
	for _, gid := range grantIDs {
		role.Permissions = append(role.Permissions, model.RoleModulePermission{
			ID:                 uuid.New(),
			RoleID:             roleID,
			ModulePermissionID: gid,
			IsActive:           true,
		})
	}
	return nil
}

func (r *fakeRoleRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	role, ok := r.db.roles[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	role.IsActive = active
	for i := range role.Permissions {
		role.Permissions[i].IsActive = active
	}
	return nil
}

func (r *fakeRoleRepo) CountUsersWithRole(_ context.Context, roleID uuid.UUID, onlyActiveUsers bool) (int64, error) {
	var count int64
	for _, user := range r.db.users {
		if onlyActiveUsers && !user.IsActive {
			continue
		}
		for _, link := range user.Roles {
			if link.RoleID == roleID {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *fakeRoleRepo) withGrants(role *model.Role) *model.Role {
	cp := *role
	cp.Permissions = make([]model.RoleModulePermission, len(role.Permissions))
	copy(cp.Permissions, role.Permissions)
	for i := range cp.Permissions {
		if mp, ok := r.db.grants[cp.Permissions[i].ModulePermissionID]; ok {
			cp.Permissions[i].ModulePermission = *mp
		}
	}
	return &cp
}

// --- Catalog repository ---

type fakeCatalogRepo struct {
	db *memDB
}

func (r *fakeCatalogRepo) ListModulePermissions(_ context.Context) ([]model.ModulePermission, error) {
	var res []model.ModulePermission
	for _, mp := range r.db.grants {
		res = append(res, *mp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Module.Code < res[j].Module.Code })
	return res, nil
}

func (r *fakeCatalogRepo) FindModulePermissionsByIDs(_ context.Context, ids []uuid.UUID) ([]model.ModulePermission, error) {
	var res []model.ModulePermission
	for _, id := range ids {
		if mp, ok := r.db.grants[id]; ok {
			res = append(res, *mp)
		}
	}
	return res, nil
}

func (r *fakeCatalogRepo) FindOrCreateModule(_ context.Context, mod *model.Module) error {
	for _, existing := range r.db.modules {
		if existing.Code == mod.Code {
			*mod = existing
			return nil
		}
	}
	if mod.ID == uuid.Nil {
		mod.ID = uuid.New()
	}
	r.db.modules[mod.ID] = *mod
	return nil
}

func (r *fakeCatalogRepo) FindOrCreatePermission(_ context.Context, perm *model.Permission) error {
	for _, existing := range r.db.perms {
		if existing.Code == perm.Code {
			*perm = existing
			return nil
		}
	}
	if perm.ID == uuid.Nil {
		perm.ID = uuid.New()
	}
	r.db.perms[perm.ID] = *perm
	return nil
}

func (r *fakeCatalogRepo) FindOrCreateModulePermission(_ context.Context, mp *model.ModulePermission) error {
	for _, existing := range r.db.grants {
		if existing.ModuleID == mp.ModuleID && existing.PermissionID == mp.PermissionID {
			*mp = *existing
			return nil
		}
	}
	if mp.ID == uuid.Nil {
		mp.ID = uuid.New()
	}
	mp.Module = r.db.modules[mp.ModuleID]
	mp.Permission = r.db.perms[mp.PermissionID]
	stored := *mp
	r.db.grants[mp.ID] = &stored
	return nil
}

// --- Client repository ---

type fakeClientRepo struct {
	db *memDB
}

func (r *fakeClientRepo) Create(_ context.Context, client *model.Client) error {
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	client.CreatedAt = time.Now()
	stored := *client
	r.db.clients[client.ID] = &stored
	return nil
}

func (r *fakeClientRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Client, error) {
	client, ok := r.db.clients[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *client
	return &cp, nil
}

func (r *fakeClientRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.Client, error) {
	var res []model.Client
	for _, id := range ids {
		if client, ok := r.db.clients[id]; ok {
			res = append(res, *client)
		}
	}
	return res, nil
}

func (r *fakeClientRepo) FindByRucDni(_ context.Context, rucDni string) ([]model.Client, error) {
	var res []model.Client
	for _, client := range r.db.clients {
		if client.RucDni == rucDni {
			res = append(res, *client)
		}
	}
	return res, nil
}

func (r *fakeClientRepo) List(_ context.Context, onlyActive bool) ([]model.Client, error) {
	var res []model.Client
	for _, client := range r.db.clients {
		if onlyActive && !client.IsActive {
			continue
		}
		res = append(res, *client)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (r *fakeClientRepo) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	client, ok := r.db.clients[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := fields["name"].(string); ok {
		client.Name = v
	}
	if v, ok := fields["address"].(string); ok {
		client.Address = v
	}
	if v, ok := fields["phone"].(string); ok {
		client.Phone = v
	}
	if v, ok := fields["province"].(string); ok {
		client.Province = v
	}
	if v, ok := fields["department"].(string); ok {
		client.Department = v
	}
	if v, ok := fields["ruc_dni"].(string); ok {
		client.RucDni = v
	}
	client.UpdatedAt = time.Now()
	return nil
}

func (r *fakeClientRepo) HardDelete(_ context.Context, id uuid.UUID) error {
	delete(r.db.clients, id)
	return nil
}

func (r *fakeClientRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	if client, ok := r.db.clients[id]; ok {
		client.IsActive = active
	}
	return nil
}

// --- Project repository ---

type fakeProjectRepo struct {
	projects   map[uuid.UUID]*model.Project
	quotations map[uuid.UUID]*model.Quotation
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{
		projects:   make(map[uuid.UUID]*model.Project),
		quotations: make(map[uuid.UUID]*model.Quotation),
	}
}

func (r *fakeProjectRepo) Create(_ context.Context, project *model.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	project.CreatedAt = time.Now()
	stored := *project
	r.projects[project.ID] = &stored
	return nil
}

func (r *fakeProjectRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Project, error) {
	project, ok := r.projects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *project
	return &cp, nil
}

func (r *fakeProjectRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.Project, error) {
	var res []model.Project
	for _, id := range ids {
		if project, ok := r.projects[id]; ok {
			res = append(res, *project)
		}
	}
	return res, nil
}

func (r *fakeProjectRepo) List(_ context.Context, onlyActive bool, page, limit int) ([]model.Project, int64, error) {
	var all []model.Project
	for _, project := range r.projects {
		if onlyActive && !project.IsActive {
			continue
		}
		all = append(all, *project)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakeProjectRepo) Save(_ context.Context, project *model.Project) error {
	stored, ok := r.projects[project.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Name = project.Name
	stored.Description = project.Description
	stored.Status = project.Status
	stored.IsActive = project.IsActive
	return nil
}

func (r *fakeProjectRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	if project, ok := r.projects[id]; ok {
		project.IsActive = active
	}
	return nil
}

func (r *fakeProjectRepo) CreateQuotation(_ context.Context, q *model.Quotation) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	q.CreatedAt = time.Now()
	stored := *q
	r.quotations[q.ID] = &stored
	return nil
}

func (r *fakeProjectRepo) FindQuotationByID(_ context.Context, id uuid.UUID) (*model.Quotation, error) {
	q, ok := r.quotations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *q
	return &cp, nil
}

func (r *fakeProjectRepo) ListQuotationsByProject(_ context.Context, projectID uuid.UUID) ([]model.Quotation, error) {
	var res []model.Quotation
	for _, q := range r.quotations {
		if q.ProjectID == projectID {
			res = append(res, *q)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (r *fakeProjectRepo) SaveQuotation(_ context.Context, q *model.Quotation) error {
	stored, ok := r.quotations[q.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Status = q.Status
	stored.Amount = q.Amount
	stored.IsActive = q.IsActive
	return nil
}

// --- Audit service ---

type auditEntry struct {
	entityID    uuid.UUID
	entityType  string
	action      string
	performedBy uuid.UUID
}

// fakeAudit implements AuditService. failRecord injects a failure into the
// next Record call; history pre-marks users as having prior actions.
type fakeAudit struct {
	entries    []auditEntry
	history    map[uuid.UUID]bool
	failRecord bool
	recordErr  error
}

func newFakeAudit() *fakeAudit {
	return &fakeAudit{history: make(map[uuid.UUID]bool)}
}

func (a *fakeAudit) Record(_ context.Context, entityID uuid.UUID, entityType, action string, performedBy uuid.UUID) error {
	if a.recordErr != nil {
		err := a.recordErr
		a.recordErr = nil
		return err
	}
	if a.failRecord {
		a.failRecord = false
		return errors.New("audit store unavailable")
	}
	a.entries = append(a.entries, auditEntry{entityID, entityType, action, performedBy})
	return nil
}

func (a *fakeAudit) HasActions(_ context.Context, userID uuid.UUID) (bool, error) {
	if a.history[userID] {
		return true, nil
	}
	for _, e := range a.entries {
		if e.performedBy == userID {
			return true, nil
		}
	}
	return false, nil
}

func (a *fakeAudit) List(_ context.Context, page, limit int) ([]AuditResponse, int64, error) {
	return nil, int64(len(a.entries)), nil
}

func (a *fakeAudit) entriesFor(entityID uuid.UUID) []auditEntry {
	var res []auditEntry
	for _, e := range a.entries {
		if e.entityID == entityID {
			res = append(res, e)
		}
	}
	return res
}

// --- Notification dispatcher ---

type dispatchCall struct {
	event     string
	recipient string
	payload   map[string]string
}

type fakeDispatcher struct {
	calls []dispatchCall
	ok    bool
	err   error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{ok: true}
}

func (d *fakeDispatcher) Dispatch(event, recipient string, payload map[string]string) (bool, error) {
	d.calls = append(d.calls, dispatchCall{event, recipient, payload})
	if d.err != nil {
		return false, d.err
	}
	return d.ok, nil
}

// --- Shared helpers ---

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "test", Level: "error"})
}
