package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type fakeMigrations struct {
	url     string
	steps   int
	upCalls int
	version uint
	dirty   bool
	err     error
}

func (f *fakeMigrations) runner() migrateRunner {
	return migrateRunner{
		up: func(url string) error {
			f.url = url
			f.upCalls++
			f.version = 2
			return f.err
		},
		down: func(url string, steps int) error {
			f.url, f.steps = url, steps
			f.version -= uint(steps)
			return f.err
		},
		version: func(url string) (uint, bool, error) {
			return f.version, f.dirty, nil
		},
	}
}

func runMigrate(t *testing.T, fake *fakeMigrations, args ...string) (string, error) {
	t.Helper()
	cmd := newMigrateCommandWith(&rootOptions{}, fake.runner())
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestMigrateUp(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/coachbook")
	fake := &fakeMigrations{}

	out, err := runMigrate(t, fake, "up")
	if err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if fake.upCalls != 1 || fake.url != "postgres://env/coachbook" {
		t.Errorf("unexpected call: %+v", fake)
	}
	if !strings.Contains(out, "schema version 2") {
		t.Errorf("expected version output, got %q", out)
	}
}

func TestMigrateDown(t *testing.T) {
	fake := &fakeMigrations{version: 2}

	out, err := runMigrate(t, fake, "down", "--steps", "1", "--database-url", "postgres://flag/coachbook")
	if err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	if fake.steps != 1 || fake.url != "postgres://flag/coachbook" {
		t.Errorf("unexpected call: %+v", fake)
	}
	if !strings.Contains(out, "schema version 1") {
		t.Errorf("expected version output, got %q", out)
	}
}

func TestMigrateDown_RejectsNonPositiveSteps(t *testing.T) {
	fake := &fakeMigrations{version: 2}

	if _, err := runMigrate(t, fake, "down", "--steps", "0", "--database-url", "postgres://x"); err == nil {
		t.Fatal("expected error for zero steps")
	}
	if fake.steps != 0 {
		t.Error("down should not run")
	}
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := runMigrate(t, &fakeMigrations{}, "version")
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestMigrateUp_PropagatesError(t *testing.T) {
	fake := &fakeMigrations{err: errors.New("boom")}

	if _, err := runMigrate(t, fake, "up", "--database-url", "postgres://x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMigrateVersion_Dirty(t *testing.T) {
	fake := &fakeMigrations{version: 2, dirty: true}

	out, err := runMigrate(t, fake, "version", "--database-url", "postgres://x")
	if err != nil {
		t.Fatalf("migrate version: %v", err)
	}
	if !strings.Contains(out, "(dirty)") {
		t.Errorf("expected dirty marker, got %q", out)
	}
}
