package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"freeroom/internal/booking"
	"freeroom/internal/login"
)

func newLoginCmd(a *app) *cobra.Command {
	var username string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through SSO in a headless browser and save the session cookie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				username = a.cfg.Booking.Username
			}
			if username == "" {
				return errors.New("no username: pass --username or set booking.username")
			}

			password, err := login.PromptPassword(os.Stdin, cmd.ErrOrStderr(), "Password for "+username+": ")
			if err != nil {
				return err
			}

			cookie, err := login.Session(cmd.Context(), login.Options{
				LoginURL:   a.cfg.Booking.LoginURL,
				SSOPrefix:  a.cfg.Booking.SSOPrefix,
				Username:   username,
				Password:   password,
				CookieName: booking.SessionCookie,
				Timeout:    timeout,
			})
			if err != nil {
				return err
			}
			if err := login.SaveCookie(a.cfg.CookieFile, cookie); err != nil {
				return fmt.Errorf("save cookie: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session saved to %s\n", a.cfg.CookieFile)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "SSO username (default booking.username)")
	cmd.Flags().DurationVar(&timeout, "timeout", login.DefaultTimeout, "Give up after this long")
	return cmd
}
