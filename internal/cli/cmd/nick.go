package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/peerbeam/internal/config"
	"github.com/BioHazard786/peerbeam/internal/protocol"
	"github.com/BioHazard786/peerbeam/internal/ui"
)

var flagNickServer string

var nickCmd = &cobra.Command{
	Use:   "nick",
	Short: "Ask the coordinator for a nickname",
	Long: `Connect to the coordination server and request the nickname it would
assign this client. Mostly useful for checking connectivity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return requestNickname()
	},
}

func init() {
	nickCmd.Flags().StringVar(&flagNickServer, "server", "", "coordinator websocket URL")
	rootCmd.AddCommand(nickCmd)
}

func requestNickname() error {
	cfg, err := LoadConfig(config.Options{ServerURL: flagNickServer})
	if err != nil {
		return err
	}

	ctx, err := NewConnectionContext(cfg)
	if err != nil {
		return err
	}
	defer ctx.Close()

	stopSpinner := ui.RunSpinner("Requesting a nickname...")
	ctx.Client.SendMessage(&protocol.Message{
		Type:   protocol.TypeRequestNickname,
		PeerID: ctx.PeerID,
	})
	nickname, err := ctx.AwaitNickname()
	stopSpinner()
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", ui.BoldStyle.Render("Nickname:"), ui.TitleStyle.Render(nickname))
	return nil
}
