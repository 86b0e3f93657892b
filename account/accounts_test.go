package account_test

import (
	"context"
	"testing"

	"caseflow/account"
	"caseflow/authority"
	"caseflow/bizerror"
	"caseflow/persistence"
	"caseflow/session"
	"caseflow/testinfra"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func accountTestSetup(t *testing.T, testDatabase **testinfra.TestDatabase) {
	db := testinfra.StartMysqlTestDatabase("caseflow")
	*testDatabase = db
	persistence.ActiveDataSourceManager = db.DS
	Expect(db.DS.GormDB(context.TODO()).AutoMigrate(&account.User{}, &account.RoleBinding{}).Error).To(BeNil())
}

func accountTestTeardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
}

func adminSession() *session.Session {
	return &session.Session{Identity: session.Identity{ID: 1, Name: "admin"},
		Perms: authority.Permissions{authority.SystemAdminRole}, Context: context.TODO()}
}

func TestCreateUser(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("only system admin can create users", func(t *testing.T) {
		defer accountTestTeardown(t, testDatabase)
		accountTestSetup(t, &testDatabase)

		plain := &session.Session{Identity: session.Identity{ID: 10, Name: "ann"},
			Perms: authority.Permissions{"Applicant_Expense"}, Context: context.TODO()}
		_, err := account.CreateUser(&account.UserCreation{Name: "bob", Secret: "bob123456"}, plain)
		Expect(err).To(Equal(bizerror.ErrForbidden))
	})

	t.Run("should create user with hashed secret", func(t *testing.T) {
		defer accountTestTeardown(t, testDatabase)
		accountTestSetup(t, &testDatabase)

		info, err := account.CreateUser(&account.UserCreation{Name: "bob", Secret: "bob123456", Nickname: "Bob"}, adminSession())
		Expect(err).To(BeNil())
		Expect(info.Name).To(Equal("bob"))
		Expect(info.Nickname).To(Equal("Bob"))
		Expect(info.ID).ToNot(BeZero())

		user := account.User{}
		db := testDatabase.DS.GormDB(context.TODO())
		Expect(db.Where(&account.User{Name: "bob"}).First(&user).Error).To(BeNil())
		Expect(user.Secret).To(Equal(account.HashSha256("bob123456")))
	})
}

func TestUpdateBasicAuthSecret(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should reject wrong original secret", func(t *testing.T) {
		defer accountTestTeardown(t, testDatabase)
		accountTestSetup(t, &testDatabase)

		info, err := account.CreateUser(&account.UserCreation{Name: "bob", Secret: "bob123456"}, adminSession())
		Expect(err).To(BeNil())

		bob := &session.Session{Identity: session.Identity{ID: info.ID, Name: "bob"}, Context: context.TODO()}
		err = account.UpdateBasicAuthSecret(&account.BasicAuthUpdating{
			OriginalSecret: "wrong", NewSecret: "new123456"}, bob)
		Expect(err).To(Equal(bizerror.ErrInvalidPassword))
	})

	t.Run("should update secret when original matches", func(t *testing.T) {
		defer accountTestTeardown(t, testDatabase)
		accountTestSetup(t, &testDatabase)

		info, err := account.CreateUser(&account.UserCreation{Name: "bob", Secret: "bob123456"}, adminSession())
		Expect(err).To(BeNil())

		bob := &session.Session{Identity: session.Identity{ID: info.ID, Name: "bob"}, Context: context.TODO()}
		Expect(account.UpdateBasicAuthSecret(&account.BasicAuthUpdating{
			OriginalSecret: "bob123456", NewSecret: "new123456"}, bob)).To(BeNil())

		user := account.User{}
		db := testDatabase.DS.GormDB(context.TODO())
		Expect(db.Where(&account.User{ID: info.ID}).First(&user).Error).To(BeNil())
		Expect(user.Secret).To(Equal(account.HashSha256("new123456")))
	})
}

func TestQueryUsers(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should list users without secrets", func(t *testing.T) {
		defer accountTestTeardown(t, testDatabase)
		accountTestSetup(t, &testDatabase)

		_, err := account.CreateUser(&account.UserCreation{Name: "bob", Secret: "bob123456", Nickname: "Bob"}, adminSession())
		Expect(err).To(BeNil())
		_, err = account.CreateUser(&account.UserCreation{Name: "ann", Secret: "ann123456"}, adminSession())
		Expect(err).To(BeNil())

		users, err := account.QueryUsers(adminSession())
		Expect(err).To(BeNil())
		Expect(len(*users)).To(Equal(2))
	})
}

func TestQueryAccountNames(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should map ids to display names", func(t *testing.T) {
		defer accountTestTeardown(t, testDatabase)
		accountTestSetup(t, &testDatabase)

		bob, err := account.CreateUser(&account.UserCreation{Name: "bob", Secret: "bob123456", Nickname: "Bob"}, adminSession())
		Expect(err).To(BeNil())
		ann, err := account.CreateUser(&account.UserCreation{Name: "ann", Secret: "ann123456"}, adminSession())
		Expect(err).To(BeNil())

		names, err := account.QueryAccountNames([]types.ID{bob.ID, ann.ID})
		Expect(err).To(BeNil())
		Expect(names).To(Equal(map[types.ID]string{bob.ID: "Bob", ann.ID: "ann"}))

		names, err = account.QueryAccountNames([]types.ID{})
		Expect(err).To(BeNil())
		Expect(names).To(Equal(map[types.ID]string{}))
	})
}
