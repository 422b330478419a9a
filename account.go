package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Sign in to Google (replaces any stored token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				tokenFile := a.cfg.Google.TokenFile
				if _, err := os.Stat(tokenFile); err == nil {
					a.log.Infof("Removing existing token file at '%s'", tokenFile)
					if err := os.Remove(tokenFile); err != nil {
						return fmt.Errorf("could not delete token file '%s', error %v. Please delete it manually", tokenFile, err)
					}
				} else if !errors.Is(err, os.ErrNotExist) {
					a.log.Warnf("Warning: could not check token file '%s': %v", tokenFile, err)
				}

				if _, err := a.auth.AcquireToken(ctx, true); err != nil {
					return fmt.Errorf("authentication failed: %w", err)
				}
				id, err := a.auth.CurrentIdentity(ctx)
				if err != nil {
					fmt.Printf("Authentication successful! Token saved to %s\n", tokenFile)
					return nil
				}
				fmt.Printf("Signed in as %s. Token saved to %s\n", id.Email, tokenFile)
				return nil
			})
		},
	}
}

func signOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Revoke and remove the stored Google token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if err := a.auth.SignOut(ctx); err != nil {
					return err
				}
				fmt.Println("Signed out.")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in Google account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				id, err := a.auth.CurrentIdentity(ctx)
				if err != nil {
					return err
				}
				if id.Name != "" {
					fmt.Printf("%s <%s>\n", id.Name, id.Email)
				} else {
					fmt.Println(id.Email)
				}
				return nil
			})
		},
	}
}

func calendarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List Google calendars (use the id as selectedCalendarId)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				cals, err := a.google.ListCalendars(ctx)
				if err != nil {
					return err
				}
				for _, c := range cals {
					marker := " "
					if c.Primary {
						marker = "*"
					}
					fmt.Printf("%s %-40s %s (%s)\n", marker, c.ID, c.Summary, c.AccessRole)
				}
				return nil
			})
		},
	}
}

func taskListsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasklists",
		Short: "List Google task lists (use the id as selectedTaskListId)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				lists, err := a.google.ListTaskLists(ctx)
				if err != nil {
					return err
				}
				for _, l := range lists {
					fmt.Printf("%-40s %s\n", l.ID, l.Title)
				}
				return nil
			})
		},
	}
}
