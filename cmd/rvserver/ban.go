package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rvchat/rvserver/internal/moderation"
)

var banCmd = &cobra.Command{
	Use:   "ban",
	Short: "Ban database management tools",
}

var banListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists every banned account",
	Args:  cobra.NoArgs,
	Run:   BanListCommand,
}

var banAddCmd = &cobra.Command{
	Use:   "add <name>...",
	Short: "Bans accounts from logging in",
	Args:  cobra.MinimumNArgs(1),
	Run:   BanAddCommand,
}

var banRemoveCmd = &cobra.Command{
	Use:   "remove <name>...",
	Short: "Lifts bans on accounts",
	Args:  cobra.MinimumNArgs(1),
	Run:   BanRemoveCommand,
}

var BannedByFlag string

func openStore() *moderation.Store {
	store, err := moderation.Open(loadConfig())
	if err != nil {
		fmt.Println("error opening ban database:", err)
		os.Exit(1)
	}
	return store
}

func BanListCommand(cmd *cobra.Command, args []string) {
	store := openStore()
	defer store.Close()

	bans, err := store.List(context.Background())
	if err != nil {
		fmt.Println("error listing bans:", err)
		return
	}
	if len(bans) == 0 {
		fmt.Println("no accounts are banned")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBANNED BY\tSINCE")
	for _, ban := range bans {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ban.DisplayName, ban.BannedBy, ban.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func BanAddCommand(cmd *cobra.Command, args []string) {
	store := openStore()
	defer store.Close()

	for _, name := range args {
		if err := store.Ban(context.Background(), name, BannedByFlag); err != nil {
			fmt.Printf("error banning '%s': %v\n", name, err)
			continue
		}
		fmt.Printf("banned '%s'\n", name)
	}
}

func BanRemoveCommand(cmd *cobra.Command, args []string) {
	store := openStore()
	defer store.Close()

	for _, name := range args {
		removed, err := store.Unban(context.Background(), name)
		switch {
		case err != nil:
			fmt.Printf("error unbanning '%s': %v\n", name, err)
		case !removed:
			fmt.Printf("'%s' is not banned; skipping\n", name)
		default:
			fmt.Printf("unbanned '%s'\n", name)
		}
	}
}
