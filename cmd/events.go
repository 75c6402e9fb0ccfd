package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Work with calendar and external events",
}

var eventsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Apply calendar events that start or end today",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, db, err := openServices()
		if err != nil {
			return err
		}
		defer db.Close()

		changes, err := svc.Engine.CheckEvents(svc.Clock.Now())
		for _, ch := range changes {
			fmt.Printf("%s %s: %s\n", ch.Action, ch.Event, strings.Join(ch.Frames, ","))
		}
		if len(changes) == 0 && err == nil {
			fmt.Println("no events to apply")
		}
		return err
	},
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List calendar and external events",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openServices()
		if err != nil {
			return err
		}
		defer db.Close()

		events, err := db.ListEvents()
		if err != nil {
			return err
		}
		for _, ev := range events {
			end := "-"
			if ev.End != nil {
				end = ev.End.String()
			}
			fmt.Printf("%-20s %s..%s  hours %s\n", ev.Name, ev.Start, end, ev.WakeTimes)
		}

		external, err := db.ListExternalEvents()
		if err != nil {
			return err
		}
		for _, ev := range external {
			fmt.Printf("%-20s link %s  hours %s\n", ev.Name, ev.LinkName, ev.WakeTimes)
		}
		return nil
	},
}

func init() {
	eventsCmd.AddCommand(eventsCheckCmd, eventsListCmd)
	rootCmd.AddCommand(eventsCmd)
}
