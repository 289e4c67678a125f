package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/enrollment"
	emailsvc "github.com/trezcool/kozi/services/email"
	dummydb "github.com/trezcool/kozi/storage/database/dummy"
	testutil "github.com/trezcool/kozi/tests"
)

func setup(t *testing.T) (*commandLine, *enrollment.Service, course.Repository) {
	testutil.Setup()
	emailsvc.ClearSentMessages()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	courseRepo := dummydb.NewCourseRepository(db)
	courseSvc := course.NewService(courseRepo)
	enrSvc := enrollment.NewService(dummydb.NewEnrollmentRepository(db), courseSvc, emailsvc.NewConsoleServiceMock(), testutil.NewLogger())

	cli := &commandLine{
		db:     &sqlx.DB{},
		enrSvc: enrSvc,
	}
	return cli, enrSvc, courseRepo
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "enrollment", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_grantAccess(t *testing.T) {
	cli, enrSvc, courseRepo := setup(t)
	crs := testutil.CreateCourse(t, courseRepo, testutil.NewHierarchicalCourse("crs-1", 2))

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"grantaccess"}, wantErr: errHelp},
		{name: "user but no course", args: []string{"grantaccess", "-user", "usr-1"}, wantErr: errHelp},
		{name: "grant", args: []string{"grantaccess", "-user", "usr-1", "-course", crs.ID}},
		{name: "grant is idempotent", args: []string{"grantaccess", "-user", "usr-1", "-course", crs.ID}},
		{name: "unknown course still grants", args: []string{"grantaccess", "-user", "usr-1", "-course", "ghost"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(tt.args) > 0 {
				courseID := tt.args[len(tt.args)-1]
				status, sErr := enrSvc.CheckAccess(context.Background(), "usr-1", courseID)
				if sErr != nil {
					t.Fatalf("CheckAccess() failed: %v", sErr)
				}
				if status != enrollment.StatusGranted {
					t.Errorf("CheckAccess() = %v, want %v", status, enrollment.StatusGranted)
				}
			}
		})
	}
}
