package seed

import (
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/repository"
)

func TestSeed(t *testing.T) {
	repo := repository.NewRepository(clockwork.NewFakeClockAt(time.Date(2026, 5, 15, 9, 0, 0, 0, time.UTC)))

	err := Seed(repo, Options{
		Password:        "password",
		RandomEmployees: 6,
		LeavesPerPerson: 2,
		Cost:            bcrypt.MinCost,
		Rand:            rand.New(rand.NewSource(42)),
	})
	require.NoError(t, err)

	assert.Len(t, repo.GetAllDepartments(), len(Departments))
	employees := repo.GetAllEmployees()
	assert.Len(t, employees, len(Accounts)+6)

	for _, account := range Accounts {
		e, err := repo.GetEmployeeByEmail(account.Email)
		require.NoError(t, err, account.Email)
		assert.Equal(t, string(account.Role), e.RoleName)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte("password")))
	}

	manager, err := repo.GetEmployeeByEmail("manager@" + EmailDomain)
	require.NoError(t, err)
	employee, err := repo.GetEmployeeByEmail("employee@" + EmailDomain)
	require.NoError(t, err)
	require.NotNil(t, employee.ManagerID)
	assert.Equal(t, manager.ID, *employee.ManagerID)

	leaves := repo.GetAllLeaveRequests()
	assert.Len(t, leaves, 2*len(employees))
	for _, lr := range leaves {
		assert.Contains(t, []domain.LeaveStatus{domain.LeaveStatusPending, domain.LeaveStatusApproved, domain.LeaveStatusRejected}, lr.Status)
	}
}

func TestSeedRequiresPassword(t *testing.T) {
	err := Seed(repository.NewRepository(nil), Options{})
	assert.Error(t, err)
}
