package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stemflow/stemflow/internal/auth"
	"github.com/stemflow/stemflow/internal/config"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/internal/store/model"
)

var (
	tokenUserID   string
	tokenUsername string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Create the user if needed and print a signed token for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUserID == "" {
			return errors.New("--user is required")
		}

		cfg, err := config.New()
		if err != nil {
			return err
		}

		cleanup := setupLogging(cfg)
		defer cleanup()

		db, err := store.InitDB(cfg)
		if err != nil {
			return err
		}
		s := store.NewStore(db)
		defer s.Close()

		if _, err := s.User().Get(cmd.Context(), tokenUserID); errors.Is(err, store.ErrRecordNotFound) {
			username := tokenUsername
			if username == "" {
				username = tokenUserID
			}
			if _, err := s.User().Create(cmd.Context(), model.User{ID: tokenUserID, Username: username}); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		token, err := auth.GenerateToken(cfg.Auth.JWTSecret, tokenUserID, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "user id written into the token subject")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "username used when the user has to be created")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
