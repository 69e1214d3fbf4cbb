package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func checkCmd(a *app) *cobra.Command {
	var (
		rules []string
		list  bool
	)

	cmd := &cobra.Command{
		Use:   "check [address...]",
		Short: "Test addresses against a block list",
		Long: `Build a block list from TCPNET_BLOCK and --rule and report whether
each address is blocked.

Rules take the forms:
  10.0.0.1                 single address
  10.0.0.0-10.0.0.255      inclusive range
  10.0.0.0/8               subnet

Examples:
  tcpnet check --rule 10.0.0.0/8 10.1.2.3 192.168.0.1
  TCPNET_BLOCK=::1 tcpnet check ::1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bl, err := buildBlockList(append(a.cfg.Block, rules...))
			if err != nil {
				return err
			}

			if list {
				for _, r := range bl.Rules() {
					info("%s", r)
				}
			}

			blocked := 0
			for _, addr := range args {
				fam, err := familyOf(addr)
				if err != nil {
					errorMsg("%s", err)
					continue
				}
				if bl.Check(addr, fam) {
					blocked++
					fmt.Printf("%s %s\n", errorStyle.Render("blocked"), addr)
				} else {
					fmt.Printf("%s %s\n", successStyle.Render("allowed"), addr)
				}
			}
			if blocked > 0 {
				return fmt.Errorf("%d of %d addresses blocked", blocked, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&rules, "rule", "r", nil, "Block rule (repeatable)")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "Print the rules before checking")

	return cmd
}
