package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/repository"
	"staffdesk/account-service/internal/app/accounts/util"
)

// Хелперы для создания тестовых данных

var testEnvelopeKey = []byte("0123456789abcdef0123456789abcdef")

const (
	adminRoleID    = 1
	managerRoleID  = 2
	employeeRoleID = 3
)

func adminRole() *entity.Role {
	return &entity.Role{ID: adminRoleID, Name: entity.RoleAdmin, Level: 1, Content: entity.ResourceUser,
		CanAdd: true, CanEdit: true, CanViewAll: true, CanDelete: true}
}

func managerRole() *entity.Role {
	return &entity.Role{ID: managerRoleID, Name: entity.RoleManager, Level: 2, Content: entity.ResourceUser,
		CanAdd: true, CanEdit: true, CanViewAll: true, CanDelete: true}
}

func employeeRole() *entity.Role {
	return &entity.Role{ID: employeeRoleID, Name: entity.RoleEmployee, Level: 999, Content: entity.ResourceUser}
}

func newTestUser(username string, roleIDs ...int) *entity.User {
	hash, _ := util.HashPassword("password123")
	return &entity.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   true,
		RoleIDs:      roleIDs,
		CreatedAt:    time.Now().UTC(),
	}
}

// newUserRecord совпадает с пользователем, которому сервис уже присвоил id и время создания
func newUserRecord() interface{} {
	return mock.MatchedBy(func(u *entity.User) bool {
		return u.ID != uuid.Nil && !u.CreatedAt.IsZero()
	})
}

func newTestSessions(t *testing.T, tokens repository.TokenRepository, users UserLookup) *SessionService {
	t.Helper()
	envelope, err := util.NewEnvelope(testEnvelopeKey)
	require.NoError(t, err)
	jwtManager := util.NewJWTManager("test-secret-key", 15*time.Minute, 15*24*time.Hour)
	return NewSessionService(jwtManager, envelope, tokens, users)
}

func newRedisTokens(t *testing.T) (repository.TokenRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewRedisTokenRepository(client), mr
}

// roleTable - роли в памяти: RoleSource для движка прав и RoleLookup для справочника пользователей
type roleTable map[int]*entity.Role

func newRoleTable(roles ...*entity.Role) roleTable {
	table := roleTable{}
	for _, r := range roles {
		table[r.ID] = r
	}
	return table
}

func (t roleTable) GetSnapshot(_ context.Context, id int) (*entity.RoleSnapshot, error) {
	role, ok := t[id]
	if !ok {
		return nil, ErrRoleNotFound
	}
	snapshot := role.Snapshot()
	return &snapshot, nil
}

func (t roleTable) Get(_ context.Context, id int) (*entity.Role, error) {
	role, ok := t[id]
	if !ok {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

func (t roleTable) GetByName(_ context.Context, name string) (*entity.Role, error) {
	for _, role := range t {
		if role.Name == name {
			return role, nil
		}
	}
	return nil, ErrRoleNotFound
}

// userDirectory - UserLookup в памяти
type userDirectory map[uuid.UUID]*entity.User

func (d userDirectory) GetByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	user, ok := d[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []entity.NotificationJob
}

func (n *recordingNotifier) Enqueue(_ context.Context, job entity.NotificationJob) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
}

func (n *recordingNotifier) Jobs() []entity.NotificationJob {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]entity.NotificationJob(nil), n.jobs...)
}

type fakeIdentityProvider struct {
	identity *entity.GoogleIdentity
	err      error
	codes    []string
}

func (p *fakeIdentityProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.test/o/oauth2/auth?state=" + state
}

func (p *fakeIdentityProvider) Exchange(_ context.Context, code string) (*entity.GoogleIdentity, error) {
	p.codes = append(p.codes, code)
	if p.err != nil {
		return nil, p.err
	}
	return p.identity, nil
}

type recordingRevoker struct {
	revoked []uuid.UUID
	err     error
}

func (r *recordingRevoker) RevokeAll(_ context.Context, userID uuid.UUID) (int, error) {
	r.revoked = append(r.revoked, userID)
	return 1, r.err
}
