package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/scheduler"
)

func newSlotsCmd(state *cliState) *cobra.Command {
	var query application.SlotQuery
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the free start times and suggested slot for a room and date",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), state.cfg, state.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			starts, err := a.service.ListAvailableStartSlots(cmd.Context(), query)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "start slots: %s\n", joinTimes(starts))

			suggestion, err := a.service.SuggestSlot(cmd.Context(), query)
			if err != nil {
				if application.ErrorKind(err) != "validation" {
					return err
				}
				fmt.Fprintln(out, "suggestion: none")
				return nil
			}
			fmt.Fprintf(out, "suggestion: %s-%s\n", suggestion.Start, suggestion.End)
			return nil
		},
	}
	cmd.Flags().StringVar(&query.RoomID, "room", "", "Room ID")
	cmd.Flags().StringVar(&query.Date, "date", "", "Date as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func joinTimes(times []scheduler.TimeOfDay) string {
	if len(times) == 0 {
		return "none"
	}
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}
