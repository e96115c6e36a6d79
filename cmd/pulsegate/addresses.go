package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"pulsegate/pkg/config"
	"pulsegate/pkg/control"
)

func newAddressesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addresses",
		Short: "Manage the Redis-backed address sets",
	}

	edit := func(use, short string, op control.Op) *cobra.Command {
		return &cobra.Command{
			Use:   use + " dev|funder ADDRESS",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				kind, err := control.ParseKind(args[0])
				if err != nil {
					return err
				}
				addr := args[1]
				if !config.ValidAddress(addr) {
					a.logger.Warn("Address is not a valid Solana public key", "address", addr)
				}

				w, closeFn := a.watcher()
				defer closeFn()
				if op == control.OpAdd {
					err = w.AddAddress(cmd.Context(), kind, addr)
				} else {
					err = w.RemoveAddress(cmd.Context(), kind, addr)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", op, kind, addr)
				return nil
			},
		}
	}

	list := &cobra.Command{
		Use:   "list dev|funder",
		Short: "Print the addresses stored in Redis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := control.ParseKind(args[0])
			if err != nil {
				return err
			}
			w, closeFn := a.watcher()
			defer closeFn()

			members, err := w.Members(cmd.Context(), kind)
			if err != nil {
				return err
			}
			sort.Strings(members)
			for _, m := range members {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}

	cmd.AddCommand(
		edit("add", "Add an address and notify running proxies", control.OpAdd),
		edit("remove", "Remove an address and notify running proxies", control.OpRemove),
		list,
	)
	return cmd
}

func (a *app) watcher() (*control.Watcher, func()) {
	rdb := control.NewClient(a.cfg.Redis)
	return control.NewWatcher(rdb, a.cfg.Redis, &a.cfg.Filter, a.logger), func() { rdb.Close() }
}
