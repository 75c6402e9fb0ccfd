package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aouyang1/inkframe/api/client"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle <linkname> <on|off>",
	Short: "Switch an external event on or off",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		linkName, action := args[0], args[1]

		if serverURL != "" {
			resp, err := client.NewFrameClient(serverURL).Toggle(linkName, action)
			if err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		}

		svc, db, err := openServices()
		if err != nil {
			return err
		}
		defer db.Close()

		outcome, err := svc.Engine.Toggle(linkName, action)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", linkName, outcome)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toggleCmd)
}
