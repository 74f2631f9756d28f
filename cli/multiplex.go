package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sanchitsharma77/airweave-sub002/multiplex"
)

var forkReplay bool

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "manage a sync's destination slots",
}

var slotsListCmd = &cobra.Command{
	Use:   "list [sync-id]",
	Short: "list slots ordered by role and age",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		m := multiplex.NewMultiplexer(app.SlotStore, nil, app.Logger)
		slots, err := m.List(ctx, args[0])
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(slots)
	},
}

var slotsForkCmd = &cobra.Command{
	Use:   "fork [sync-id] [connection-id]",
	Short: "add a shadow slot for a destination connection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		m := multiplex.NewMultiplexer(app.SlotStore, nil, app.Logger)
		slot, jobID, err := m.Fork(ctx, args[0], args[1], forkReplay)
		if err != nil {
			return err
		}
		app.Logger.WithFields(map[string]interface{}{
			"slot_id": slot.ID, "replay_job": jobID,
		}).Info("forked shadow slot")
		return nil
	},
}

var slotsSwitchCmd = &cobra.Command{
	Use:   "switch [sync-id] [slot-id]",
	Short: "promote a slot to active, demoting the current active",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		m := multiplex.NewMultiplexer(app.SlotStore, nil, app.Logger)
		return m.Switch(ctx, args[0], args[1])
	},
}

func init() {
	slotsForkCmd.Flags().BoolVar(&forkReplay, "replay", false, "schedule an archive replay into the new slot")
	slotsCmd.AddCommand(slotsListCmd, slotsForkCmd, slotsSwitchCmd)
	RootCmd.AddCommand(slotsCmd)
}
