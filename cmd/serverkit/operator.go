package main

import (
	"fmt"

	"github.com/reedfamily/serverkit/internal/auth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func operatorCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage API operators",
	}
	cmd.AddCommand(operatorAddCmd(v))
	return cmd
}

func operatorAddCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an operator account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				return fmt.Errorf("--password is required")
			}

			_, log, database, err := setup(v)
			if err != nil {
				return err
			}
			defer database.Close()
			defer log.Sync() //nolint:errcheck

			op, err := auth.NewService(database).CreateOperator(args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created operator %s (id %d)\n", op.Username, op.ID)
			return nil
		},
	}
	cmd.Flags().String("password", "", "Password for the new operator")
	return cmd
}
