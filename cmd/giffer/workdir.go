package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var workdirCmd = &cobra.Command{
	Use:   "workdir",
	Short: "Create and print the working directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices()
		if err != nil {
			return err
		}
		defer svc.close()

		dir, err := svc.provisioner.Provision(context.Background(), svc.config.WorkDir.Path)
		if err != nil {
			return err
		}
		fmt.Println(dir)

		open, _ := cmd.Flags().GetBool("open")
		if open {
			return svc.platform.Open(context.Background(), dir)
		}
		return nil
	},
}

func init() {
	workdirCmd.Flags().Bool("open", false, "Open the directory in the file manager")
}
