package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/repository"
)

type failingRoles struct{ err error }

func (f failingRoles) GetSnapshot(context.Context, int) (*entity.RoleSnapshot, error) {
	return nil, f.err
}

type failingHierarchy struct{ err error }

func (f failingHierarchy) ManagerOf(context.Context, uuid.UUID) (*uuid.UUID, error) {
	return nil, f.err
}

func newTestEngine(forest ManagerForest) *PermissionEngine {
	return NewPermissionEngine(newRoleTable(adminRole(), managerRole(), employeeRole()), forest, 0)
}

func intPtr(v int) *int { return &v }

// ==================== HasPermission Tests ====================

func TestHasPermission_OptionsAlwaysPasses(t *testing.T) {
	engine := newTestEngine(nil)

	allowed, err := engine.HasPermission(context.Background(), nil, http.MethodOptions, entity.ResourceUser, nil)

	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestHasPermission_Superuser(t *testing.T) {
	engine := NewPermissionEngine(failingRoles{err: errors.New("must not be called")}, nil, 0)
	admin := &entity.User{ID: uuid.New(), IsSuperuser: true}

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		allowed, err := engine.HasPermission(context.Background(), admin, method, entity.ResourceUser, nil)
		require.NoError(t, err)
		assert.True(t, allowed, method)
	}
}

func TestHasPermission_DeniesAnonymousAndRoleless(t *testing.T) {
	engine := newTestEngine(nil)
	ctx := context.Background()

	allowed, err := engine.HasPermission(ctx, nil, http.MethodGet, entity.ResourceUser, nil)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = engine.HasPermission(ctx, &entity.User{ID: uuid.New()}, http.MethodGet, entity.ResourceUser, nil)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestHasPermission_CapabilityFlags(t *testing.T) {
	editor := &entity.Role{ID: 10, Name: "Editor", Level: 5, Content: entity.ResourceUser, CanEdit: true}
	viewer := &entity.Role{ID: 11, Name: "Viewer", Level: 5, Content: entity.ResourceUser, CanViewAll: true}
	remover := &entity.Role{ID: 12, Name: "Remover", Level: 5, Content: entity.ResourceUser, CanDelete: true}
	engine := NewPermissionEngine(newRoleTable(editor, viewer, remover), ManagerForest{}, 0)

	tests := []struct {
		name    string
		role    int
		method  string
		allowed bool
	}{
		{"viewer GET", viewer.ID, http.MethodGet, true},
		{"viewer HEAD", viewer.ID, http.MethodHead, true},
		{"viewer PUT", viewer.ID, http.MethodPut, false},
		{"editor PUT", editor.ID, http.MethodPut, true},
		{"editor PATCH", editor.ID, http.MethodPatch, true},
		{"editor GET", editor.ID, http.MethodGet, false},
		{"editor DELETE", editor.ID, http.MethodDelete, false},
		{"remover DELETE", remover.ID, http.MethodDelete, true},
		{"unknown method", viewer.ID, "TRACE", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal := &entity.User{ID: uuid.New(), RoleIDs: []int{tt.role}}

			allowed, err := engine.HasPermission(context.Background(), principal, tt.method, entity.ResourceUser, nil)

			require.NoError(t, err)
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestHasPermission_SkipsRolesForOtherResources(t *testing.T) {
	// Arrange
	projects := &entity.Role{ID: 20, Name: "Project admin", Level: 1, Content: "project",
		CanAdd: true, CanEdit: true, CanViewAll: true, CanDelete: true}
	engine := NewPermissionEngine(newRoleTable(projects), ManagerForest{}, 0)
	principal := &entity.User{ID: uuid.New(), RoleIDs: []int{projects.ID}}

	// Act
	allowed, err := engine.HasPermission(context.Background(), principal, http.MethodGet, entity.ResourceUser, nil)

	// Assert
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestHasPermission_PostComparesTargetLevel(t *testing.T) {
	engine := newTestEngine(nil)
	manager := &entity.User{ID: uuid.New(), RoleIDs: []int{managerRoleID}}

	tests := []struct {
		name    string
		target  *int
		allowed bool
	}{
		{"weaker role", intPtr(employeeRoleID), true},
		{"stronger role", intPtr(adminRoleID), false},
		{"same level", intPtr(managerRoleID), false},
		{"no target role", nil, false},
		{"unknown target role", intPtr(404), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, err := engine.HasPermission(context.Background(), manager, http.MethodPost, entity.ResourceUser, tt.target)

			require.NoError(t, err)
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestHasPermission_PostWithoutCanAdd(t *testing.T) {
	engine := newTestEngine(nil)
	employee := &entity.User{ID: uuid.New(), RoleIDs: []int{employeeRoleID}}

	allowed, err := engine.HasPermission(context.Background(), employee, http.MethodPost, entity.ResourceUser, intPtr(employeeRoleID))

	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestHasPermission_AnyHeldRoleGrants(t *testing.T) {
	// Arrange: первая роль права не даёт, вторая даёт
	engine := newTestEngine(nil)
	principal := &entity.User{ID: uuid.New(), RoleIDs: []int{employeeRoleID, managerRoleID}}

	// Act
	allowed, err := engine.HasPermission(context.Background(), principal, http.MethodPost, entity.ResourceUser, intPtr(employeeRoleID))

	// Assert
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestHasPermission_DeletedRoleGrantsNothing(t *testing.T) {
	engine := newTestEngine(nil)
	principal := &entity.User{ID: uuid.New(), RoleIDs: []int{404}}

	allowed, err := engine.HasPermission(context.Background(), principal, http.MethodGet, entity.ResourceUser, nil)

	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestHasPermission_RoleSourceErrorDenies(t *testing.T) {
	// Arrange
	engine := NewPermissionEngine(failingRoles{err: transient("load role", errors.New("connection refused"))}, ManagerForest{}, 0)
	principal := &entity.User{ID: uuid.New(), RoleIDs: []int{managerRoleID}}

	// Act
	allowed, err := engine.HasPermission(context.Background(), principal, http.MethodGet, entity.ResourceUser, nil)

	// Assert
	assert.False(t, allowed)
	assert.ErrorIs(t, err, ErrTransientDependency)
}

// ==================== HasObjectPermission Tests ====================

func TestHasObjectPermission_SafeMethods(t *testing.T) {
	engine := newTestEngine(ManagerForest{})
	stranger := &entity.User{ID: uuid.New()}
	resource := &entity.User{ID: uuid.New()}

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		allowed, err := engine.HasObjectPermission(context.Background(), stranger, method, resource)
		require.NoError(t, err)
		assert.True(t, allowed, method)
	}
}

func TestHasObjectPermission_SuperuserMutates(t *testing.T) {
	engine := newTestEngine(ManagerForest{})
	admin := &entity.User{ID: uuid.New(), IsSuperuser: true}

	allowed, err := engine.HasObjectPermission(context.Background(), admin, http.MethodDelete, &entity.User{ID: uuid.New()})

	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestHasObjectPermission_MutationRequiresManagerChain(t *testing.T) {
	// Arrange: employee -> lead -> head
	head, lead, employee, stranger := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	forest := ManagerForest{employee: lead, lead: head}
	engine := newTestEngine(forest)
	resource := &entity.User{ID: employee, ManagerID: &lead}

	tests := []struct {
		name      string
		principal uuid.UUID
		allowed   bool
	}{
		{"direct manager", lead, true},
		{"transitive manager", head, true},
		{"unrelated user", stranger, false},
		{"the user itself", employee, false},
	}

	for _, tt := range tests {
		for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
			t.Run(tt.name+" "+method, func(t *testing.T) {
				// Act
				allowed, err := engine.HasObjectPermission(context.Background(), &entity.User{ID: tt.principal}, method, resource)

				// Assert
				require.NoError(t, err)
				assert.Equal(t, tt.allowed, allowed)
			})
		}
	}
}

func TestHasObjectPermission_UnknownMethodDenied(t *testing.T) {
	lead := uuid.New()
	engine := newTestEngine(ManagerForest{})

	allowed, err := engine.HasObjectPermission(context.Background(), &entity.User{ID: lead}, http.MethodPost, &entity.User{ID: uuid.New(), ManagerID: &lead})

	require.NoError(t, err)
	assert.False(t, allowed)
}

// ==================== IsUnderManager Tests ====================

func TestIsUnderManager_WholeChain(t *testing.T) {
	// Arrange: P -> M1 -> M2 -> ... -> M5
	chain := make([]uuid.UUID, 6)
	for i := range chain {
		chain[i] = uuid.New()
	}
	forest := ManagerForest{}
	for i := 0; i < len(chain)-1; i++ {
		forest[chain[i]] = chain[i+1]
	}
	engine := newTestEngine(forest)
	resource := &entity.User{ID: chain[0], ManagerID: &chain[1]}

	// Act & Assert
	for i := 1; i < len(chain); i++ {
		under, err := engine.IsUnderManager(context.Background(), chain[i], resource)
		require.NoError(t, err)
		assert.True(t, under, "manager at depth %d", i)
	}

	under, err := engine.IsUnderManager(context.Background(), uuid.New(), resource)
	require.NoError(t, err)
	assert.False(t, under)
}

func TestIsUnderManager_RootHasNoManagers(t *testing.T) {
	engine := newTestEngine(ManagerForest{})

	under, err := engine.IsUnderManager(context.Background(), uuid.New(), &entity.User{ID: uuid.New()})

	require.NoError(t, err)
	assert.False(t, under)
}

func TestIsUnderManager_CycleTerminatesAndDenies(t *testing.T) {
	// Arrange: испорченные данные a -> b -> a
	a, b, resourceID := uuid.New(), uuid.New(), uuid.New()
	forest := ManagerForest{resourceID: a, a: b, b: a}
	engine := newTestEngine(forest)

	// Act
	under, err := engine.IsUnderManager(context.Background(), uuid.New(), &entity.User{ID: resourceID, ManagerID: &a})

	// Assert
	require.NoError(t, err)
	assert.False(t, under)
}

func TestIsUnderManager_SelfManagedResource(t *testing.T) {
	id := uuid.New()
	engine := newTestEngine(ManagerForest{id: id})

	under, err := engine.IsUnderManager(context.Background(), uuid.New(), &entity.User{ID: id, ManagerID: &id})

	require.NoError(t, err)
	assert.False(t, under)
}

func TestIsUnderManager_DepthLimit(t *testing.T) {
	// Arrange: цепочка длиннее лимита
	chain := make([]uuid.UUID, 20)
	for i := range chain {
		chain[i] = uuid.New()
	}
	forest := ManagerForest{}
	for i := 0; i < len(chain)-1; i++ {
		forest[chain[i]] = chain[i+1]
	}
	engine := NewPermissionEngine(newRoleTable(), forest, 5)
	resource := &entity.User{ID: chain[0], ManagerID: &chain[1]}

	// Act
	near, err := engine.IsUnderManager(context.Background(), chain[3], resource)
	require.NoError(t, err)
	far, err := engine.IsUnderManager(context.Background(), chain[19], resource)
	require.NoError(t, err)

	// Assert
	assert.True(t, near)
	assert.False(t, far)
}

func TestIsUnderManager_DanglingReferenceDenies(t *testing.T) {
	missing := uuid.New()
	engine := NewPermissionEngine(newRoleTable(), failingHierarchy{err: repository.ErrNotFound}, 0)

	under, err := engine.IsUnderManager(context.Background(), uuid.New(), &entity.User{ID: uuid.New(), ManagerID: &missing})

	require.NoError(t, err)
	assert.False(t, under)
}

func TestIsUnderManager_StoreErrorIsTransient(t *testing.T) {
	manager := uuid.New()
	engine := NewPermissionEngine(newRoleTable(), failingHierarchy{err: errors.New("connection reset")}, 0)

	under, err := engine.IsUnderManager(context.Background(), uuid.New(), &entity.User{ID: uuid.New(), ManagerID: &manager})

	assert.False(t, under)
	assert.ErrorIs(t, err, ErrTransientDependency)
}

// ==================== WouldCreateCycle Tests ====================

func TestWouldCreateCycle(t *testing.T) {
	// Arrange: employee -> lead -> head
	head, lead, employee, other := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	engine := newTestEngine(ManagerForest{employee: lead, lead: head})
	ctx := context.Background()

	tests := []struct {
		name       string
		user       uuid.UUID
		newManager uuid.UUID
		cycle      bool
	}{
		{"self", lead, lead, true},
		{"direct report becomes manager", lead, employee, true},
		{"indirect report becomes manager", head, employee, true},
		{"unrelated manager", employee, other, false},
		{"move up the chain", employee, head, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			cycle, err := engine.WouldCreateCycle(ctx, tt.user, tt.newManager)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.cycle, cycle)
		})
	}
}
