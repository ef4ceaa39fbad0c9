package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/peerbeam/internal/ui"
	"github.com/BioHazard786/peerbeam/internal/version"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "peerbeam",
	Short:   "Peer-to-peer file sharing through named rooms",
	Long: `PeerBeam moves files directly between peers over a WebRTC data channel.
A small coordination server only brokers the introduction: peers meet in a
named room, learn each other's identity and nickname, and everything after
that flows peer to peer.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
