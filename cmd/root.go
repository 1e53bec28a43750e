package cmd

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "bundler",
	Short: "A tool for generating makers and volume on Solana through Jito bundles",
}
