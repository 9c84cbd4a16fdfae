// The rvserver command runs the chat server and provides a few maintenance
// tools for its ban database.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var ConfigFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "rvserver",
		Short: "rvserver chat server and related tools",
		Run:   ServerCommand,
	}
	rootCmd.PersistentFlags().SetNormalizeFunc(wordSepNormalizeFunc)
	rootCmd.PersistentFlags().StringVarP(&ConfigFlag, "config", "c", "./", "Path to the directory containing the server config file")

	banCmd.AddCommand(banListCmd)
	banCmd.AddCommand(banAddCmd)
	banCmd.AddCommand(banRemoveCmd)
	banAddCmd.Flags().SetNormalizeFunc(wordSepNormalizeFunc)
	banAddCmd.Flags().StringVar(&BannedByFlag, "banned-by", "console", "Name recorded as the moderator responsible for the ban")

	rootCmd.AddCommand(banCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// wordSepNormalizeFunc accepts underscores in flag names so that flags can be
// spelled the same way as the config keys.
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}
