// Command jlscopy rewrites one Log file into another, replaying every
// source, signal, and recorded sample through a fresh Writer.
package main

import (
	"fmt"
	"os"

	"github.com/em-foundation/jls"
	"github.com/spf13/cobra"
)

var allowRecovery bool

var rootCmd = &cobra.Command{
	Use:   "jlscopy <src> <dst>",
	Short: "Copy a Log file, replaying every signal into a fresh file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, dst := args[0], args[1]
		err := jls.Copy(src, dst, jls.CopyOptions{
			ReaderOptions: jls.ReaderOptions{AllowRecovery: allowRecovery},
			Progress: func(fraction float64) {
				fmt.Fprintf(os.Stderr, "\rcopying... %3.0f%%", fraction*100)
			},
			Message: func(msg string) {
				fmt.Fprintln(os.Stderr, msg)
			},
		})
		fmt.Fprintln(os.Stderr)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&allowRecovery, "allow-recovery", false,
		"fall back to a forward scan if src's root index is missing or corrupt")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jlscopy:", err)
		os.Exit(1)
	}
}
