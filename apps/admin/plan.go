package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	echoapi "github.com/mohamed-arabi16/studybuddy-bright-sub000/apps/api/echo"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/plan"
)

// seed stores the fixture's courses, topics and preferences for the user in one transaction.
func (cli *commandLine) seed(userID, path string) error {
	fx, err := loadFixture(path)
	if err != nil {
		return err
	}
	userID = core.CleanString(userID)

	ctx := context.Background()
	err = cli.repo.RunInTx(ctx, func(tx plan.Repository) error {
		for _, c := range fx.courses() {
			if err := tx.SaveCourse(ctx, userID, c); err != nil {
				return err
			}
		}
		for _, t := range fx.topics() {
			if err := tx.SaveTopic(ctx, userID, t); err != nil {
				return err
			}
		}
		return tx.SavePreferences(ctx, userID, fx.Preferences)
	})
	if err != nil {
		return errors.Wrap(err, "seeding")
	}
	fmt.Fprintf(cli.out, "seeded %d courses and %d topics for %s\n", len(fx.Courses), len(fx.topics()), userID)
	return nil
}

func (cli *commandLine) generate(userID string) error {
	out, err := cli.planSvc.Generate(context.Background(), core.CleanString(userID))
	if err != nil {
		return err
	}
	printOutcome(cli.out, out)
	return nil
}

func (cli *commandLine) recreate(userID string) error {
	out, err := cli.planSvc.Recreate(context.Background(), core.CleanString(userID))
	if err != nil {
		return err
	}
	printOutcome(cli.out, out)
	return nil
}

func (cli *commandLine) token(userID string, ttl time.Duration) error {
	token, err := echoapi.GenerateToken(cli.conf, core.CleanString(userID), ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
