package directory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spec-kit/campus-desk/internal/auth"
	"github.com/spec-kit/campus-desk/internal/domain"
	"github.com/spec-kit/campus-desk/internal/repository"
)

const sample = `
users:
  - id: "1"
    name: Rahul Sharma
    student_id: 21CS104
    department: Computer Science
    email: student@college.edu
    role: Student
    password: student
  - id: accounts
    name: Accounts Office
    email: accounts@college.edu
    role: Accounts
    password: acc
`

func TestParse_Validates(t *testing.T) {
	entries, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[1].Role != domain.RoleAccounts {
		t.Fatalf("unexpected entries %+v", entries)
	}

	bad := map[string]string{
		"unknown role":  "users:\n  - {id: x, email: x@y.z, role: Dean}\n",
		"missing id":    "users:\n  - {email: x@y.z, role: Admin}\n",
		"duplicate id":  "users:\n  - {id: a, email: a@y.z, role: IT}\n  - {id: a, email: b@y.z, role: IT}\n",
		"unknown field": "users:\n  - {id: a, email: a@y.z, role: IT, shoe: 9}\n",
	}
	for name, doc := range bad {
		if _, err := Parse(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSeed_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	repo := repository.NewMemoryUserRepository()
	ctx := context.Background()

	n, err := Seed(ctx, repo, path, 4, nil)
	if err != nil || n != 2 {
		t.Fatalf("first seed: n=%d err=%v", n, err)
	}
	n, err = Seed(ctx, repo, path, 4, nil)
	if err != nil || n != 0 {
		t.Fatalf("second seed: n=%d err=%v", n, err)
	}

	user, err := repo.GetByEmail(ctx, "accounts@college.edu")
	if err != nil {
		t.Fatal(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, "acc"); err != nil {
		t.Fatalf("seeded password not hashed correctly: %v", err)
	}
}

func TestSeed_MissingFile(t *testing.T) {
	n, err := Seed(context.Background(), repository.NewMemoryUserRepository(), filepath.Join(t.TempDir(), "none.yaml"), 4, nil)
	if err != nil || n != 0 {
		t.Fatalf("missing file should seed nothing: n=%d err=%v", n, err)
	}
}
