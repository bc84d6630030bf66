package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erazemk/garderoba/internal/ledger"
	"github.com/erazemk/garderoba/internal/staff"
	"github.com/erazemk/garderoba/internal/store"
)

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage staff accounts",
}

var userFullName string

var userAddCmd = &cobra.Command{
	Use:   "add <username> <role>",
	Short: "Create a staff account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		svc := staff.NewService(e.db, e.matrix, nil, nil)
		u, err := svc.Provision(cmd.Context(), args[0], userFullName, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Created %s (%s)\n", u.Username, u.Role)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staff accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		users, err := staff.NewService(e.db, e.matrix, nil, nil).ListAll(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "USERNAME\tROLE\tNAME\tBLOCKED")
		for _, u := range users {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", u.Username, u.Role, u.FullName, u.IsBlocked)
		}
		return tw.Flush()
	},
}

func blockCommand(use, short string, blocked bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			svc := staff.NewService(e.db, e.matrix, nil, nil)
			if err := svc.SetBlockedDirect(cmd.Context(), args[0], blocked); err != nil {
				return err
			}
			fmt.Printf("%s: blocked=%t\n", args[0], blocked)
			return nil
		},
	}
}

var userRoleCmd = &cobra.Command{
	Use:   "role <username> <role>",
	Short: "Change the role of a staff account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		svc := staff.NewService(e.db, e.matrix, nil, nil)
		if err := svc.SetRoleDirect(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s: role=%s\n", args[0], args[1])
		return nil
	},
}

// client command
var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Inspect the client registry",
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered clients",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		clients, err := store.ListClients(cmd.Context(), e.db)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PHONE\tNAME\tEMAIL\tBONUS")
		for _, c := range clients {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.Phone, c.Name, c.Email, c.BonusPoints)
		}
		return tw.Flush()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show department occupancy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		limits, err := e.cfg.DepartmentLimits()
		if err != nil {
			return err
		}
		lg, err := ledger.New(e.db, e.matrix, ledger.WithLimits(limits))
		if err != nil {
			return err
		}
		occ, err := lg.Snapshot(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DEPARTMENT\tACTIVE\tLIMIT")
		for _, o := range occ {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", o.Department, o.Active, o.Limit)
		}
		return tw.Flush()
	},
}

func init() {
	userAddCmd.Flags().StringVarP(&userFullName, "name", "n", "", "full name")

	userCmd.AddCommand(userAddCmd, userListCmd, userRoleCmd,
		blockCommand("block", "Block a staff account", true),
		blockCommand("unblock", "Unblock a staff account", false),
	)
	clientCmd.AddCommand(clientListCmd)
	rootCmd.AddCommand(userCmd, clientCmd, statusCmd)
}
