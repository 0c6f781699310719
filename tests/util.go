package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/storage/database"
)

// NewConfig returns a test configuration on an in-memory sqlite database.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:                   "Darasa",
		Env:                       "TEST",
		TestMode:                  true,
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:8080",
		DefaultFromEmailName:      "Darasa",
		DefaultFromEmailAddress:   "noreply@darasa.test",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			Address:                   ":8000",
			Host:                      "localhost",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			ShutdownTimeout:           time.Second,
		},
		Database: core.DatabaseConfig{Engine: database.SQLite, Path: ":memory:"},
		Enrollment: core.EnrollmentConfig{
			MaxImportRows:  100,
			MaxImportBytes: 64 << 10,
		},
	}
}

// PrepareDB opens a fresh migrated database, closed at the end of the test.
func PrepareDB(t *testing.T, conf ...*core.Config) *sqlx.DB {
	c := NewConfig()
	if len(conf) > 0 {
		c = conf[0]
	}
	db, err := database.Open(c)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, database.MigrateUp); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		ID:        core.NewID(),
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	ctx := context.Background()
	if err := repo.CreateUser(ctx, usr); err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	if err := repo.CreateProfile(ctx, user.Profile{UserID: usr.ID, CreatedAt: tstamp}); err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateCourse creates a course, with its owner enrolled as instructor.
func CreateCourse(t *testing.T, repo course.Repository, owner user.User, code, typ string, published bool) course.Course {
	now := core.Now()
	c := course.Course{
		ID:        core.NewID(),
		OwnerID:   owner.ID,
		Title:     "Course " + code,
		Code:      code,
		Type:      typ,
		Published: published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ctx := context.Background()
	if err := repo.CreateCourse(ctx, c); err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	Enroll(t, repo, c.ID, owner.ID, course.RoleInstructor, course.StatusEnrolled)
	return c
}

func Enroll(t *testing.T, repo course.Repository, courseID, userID, role, status string) course.CourseHistory {
	now := core.Now()
	h := course.CourseHistory{
		ID:        core.NewID(),
		CourseID:  courseID,
		UserID:    userID,
		Role:      role,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateCourseHistory(context.Background(), h); err != nil {
		t.Fatalf("enroll() failed: %v", err)
	}
	return h
}
