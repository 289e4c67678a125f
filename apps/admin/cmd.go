package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/kozi/core/enrollment"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *sqlx.DB
	enrSvc *enrollment.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
	fmt.Println("  grantaccess -user USER_ID -course COURSE_ID - grant a user access to a course")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	grantCmd := flag.NewFlagSet("grantaccess", flag.ExitOnError)
	grantUser := grantCmd.String("user", "", "The user's ID.")
	grantCourse := grantCmd.String("course", "", "The course's ID.")
	grantEmail := grantCmd.String("email", "", "Optional; the user's email for the confirmation message.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "grantaccess":
		if err := grantCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *grantUser == "" || *grantCourse == "" {
			grantCmd.Usage()
			return errHelp
		}
		return cli.grantAccess(*grantUser, *grantCourse, *grantEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) grantAccess(userID, courseID, email string) error {
	_, created, err := cli.enrSvc.GrantAccess(context.Background(), enrollment.Grant{
		UserID:    userID,
		CourseID:  courseID,
		Origin:    enrollment.OriginDirect,
		UserEmail: email,
	})
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("access granted: user=%s course=%s\n", userID, courseID)
	} else {
		fmt.Printf("already granted: user=%s course=%s\n", userID, courseID)
	}
	return nil
}
