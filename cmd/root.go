package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "course-shop",
	Short: "Course shop Telegram bot",
	Long:  "A Telegram bot that sells courses through native invoices and YooKassa payment links and grants access once a payment succeeds.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
