package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/DoyleJ11/operator-board/internal/board"
	"github.com/DoyleJ11/operator-board/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var teamsProfile string

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "Inspect or clear persisted team state",
	Long: `Acts directly on the configured store. Subcommands:
  export - print the persisted team state as JSON
  clear  - reset every slot and persist the empty board`,
}

var teamsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the persisted team state",
	Args:  cobra.NoArgs,
	RunE:  runTeamsExport,
}

var teamsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset every slot of a profile",
	Args:  cobra.NoArgs,
	RunE:  runTeamsClear,
}

func teamsStore(ctx context.Context) (store.KV, func(), error) {
	kv, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, nil, err
	}
	profile := teamsProfile
	if profile == "" {
		profile = cfg.DefaultProfile
	}
	return store.Namespace(kv, profile), func() { _ = kv.Close() }, nil
}

// runTeamsExport prints the normalized persisted form. An absent or
// unreadable entry prints the empty board; unreadable entries are reported
// but left in place.
func runTeamsExport(cmd *cobra.Command, args []string) error {
	kv, closeFn, err := teamsStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	b := board.New(nil)
	data, err := kv.Get(cmd.Context(), board.StorageKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	default:
		if b, err = board.Deserialize(data, nil); err != nil {
			logger.Warn("persisted team state is unreadable", zap.Error(err))
		}
	}

	out, err := b.Serialize()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runTeamsClear(cmd *cobra.Command, args []string) error {
	kv, closeFn, err := teamsStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	b := board.New(board.SaverFunc(func(ctx context.Context, data []byte) error {
		return kv.Set(ctx, board.StorageKey, data)
	}))
	if err := b.Reset(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Cleared all teams.")
	return nil
}
