package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/peerbeam/internal/config"
	"github.com/BioHazard786/peerbeam/internal/peerconn"
	"github.com/BioHazard786/peerbeam/internal/protocol"
	"github.com/BioHazard786/peerbeam/internal/transfer"
	"github.com/BioHazard786/peerbeam/internal/ui"
	"github.com/BioHazard786/peerbeam/internal/utils"
)

var (
	flagSendServer    string
	flagSendSTUN      string
	flagSendTURN      string
	flagSendTURNUser  string
	flagSendTURNPass  string
	flagSendChunkSize int
	flagSendReceivers int
)

var sendCmd = &cobra.Command{
	Use:     "send <room-id> <files...>",
	Aliases: []string{"s"},
	Short:   "Create a room and send files to everyone who joins",
	Long: `Create a room on the coordination server and stream files directly to
each peer that joins it.

Examples:
  peerbeam send beach-trip photos.zip
  peerbeam send beach-trip a.txt b.pdf --receivers 2
  peerbeam send beach-trip big.iso --server ws://example.com:8080/ws`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendFiles(args[0], args[1:])
	},
}

func init() {
	sendCmd.Flags().StringVar(&flagSendServer, "server", "", "coordinator websocket URL")
	sendCmd.Flags().StringVar(&flagSendSTUN, "stun", "", "STUN server URL")
	sendCmd.Flags().StringVar(&flagSendTURN, "turn", "", "TURN server host")
	sendCmd.Flags().StringVar(&flagSendTURNUser, "turn-user", "", "TURN username")
	sendCmd.Flags().StringVar(&flagSendTURNPass, "turn-pass", "", "TURN password")
	sendCmd.Flags().IntVar(&flagSendChunkSize, "chunk-size", 0, "transfer chunk size in bytes")
	sendCmd.Flags().IntVar(&flagSendReceivers, "receivers", 1, "number of receivers to wait for")
	rootCmd.AddCommand(sendCmd)
}

type outgoingFile struct {
	path string
	name string
	size int64
}

func sendFiles(roomID string, paths []string) error {
	files, err := validateFiles(paths)
	if err != nil {
		return err
	}

	cfg, err := LoadConfig(config.Options{
		ServerURL:  flagSendServer,
		STUNServer: flagSendSTUN,
		TURNServer: flagSendTURN,
		TURNUser:   flagSendTURNUser,
		TURNPass:   flagSendTURNPass,
		ChunkSize:  flagSendChunkSize,
	})
	if err != nil {
		return err
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to server...")
	ctx, err := NewConnectionContext(cfg)
	if err != nil {
		stopSpinner()
		return err
	}
	defer ctx.Close()
	stopSpinner()

	if err := ctx.CreateRoom(roomID); err != nil {
		return err
	}
	nickname, err := ctx.AwaitNickname()
	if err != nil {
		return err
	}
	ui.RenderRoomInfo(roomID, nickname)
	displayFileTable(files)

	receivers, err := waitForReceivers(ctx, flagSendReceivers)
	if err != nil {
		return err
	}

	recipients, cleanups, err := dialReceivers(ctx, receivers)
	defer func() {
		for _, cleanup := range cleanups {
			cleanup()
		}
	}()
	if err != nil {
		return err
	}

	announceFiles(ctx, files)

	return streamFiles(ctx, files, receivers, recipients)
}

func validateFiles(paths []string) ([]outgoingFile, error) {
	files := make([]outgoingFile, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("invalid file %s: %w", path, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("invalid file %s: is a directory", path)
		}
		files = append(files, outgoingFile{path: path, name: filepath.Base(path), size: info.Size()})
	}
	return files, nil
}

func displayFileTable(files []outgoingFile) {
	items := make([]ui.FileTableItem, len(files))
	for i, f := range files {
		items[i] = ui.FileTableItem{Index: i + 1, Name: f.name, Size: f.size}
	}
	fmt.Println()
	ui.RenderFileTable(items)
}

// waitForReceivers blocks until `count` peers have joined the room.
func waitForReceivers(ctx *ConnectionContext, count int) ([]protocol.PeerInfo, error) {
	stopSpinner := ui.RunWaitingSpinner(fmt.Sprintf("Waiting for %d peer(s) to join...", count))
	defer stopSpinner()

	var receivers []protocol.PeerInfo
	for len(receivers) < count {
		select {
		case peer := <-ctx.Handler.NewPeer:
			receivers = append(receivers, peer)
		case roomID := <-ctx.Handler.RoomCleared:
			return nil, fmt.Errorf("room %s was cleared due to inactivity", roomID)
		case msg := <-ctx.Handler.Errors:
			return nil, fmt.Errorf("server error: %s", msg)
		}
	}
	return receivers, nil
}

func dialReceivers(ctx *ConnectionContext, receivers []protocol.PeerInfo) (map[string]*peerconn.Channel, []func(), error) {
	channels := make(map[string]*peerconn.Channel, len(receivers))
	var cleanups []func()

	stopSpinner := ui.RunConnectionSpinner("Establishing peer connections...")
	defer stopSpinner()

	for _, peer := range receivers {
		ch, cleanup, err := ctx.DialPeer(peer.ID)
		if err != nil {
			return nil, cleanups, err
		}
		channels[peer.ID] = ch
		cleanups = append(cleanups, cleanup)
	}
	return channels, cleanups, nil
}

// announceFiles relays the upcoming file list so receivers can size their
// progress display before the first chunk lands.
func announceFiles(ctx *ConnectionContext, files []outgoingFile) {
	metas := make([]protocol.FileMeta, len(files))
	for i, f := range files {
		metas[i] = protocol.FileMeta{Name: f.name, Size: f.size}
	}
	ctx.SendHint(&protocol.Hint{
		Kind: protocol.HintFileMeta,
		Data: protocol.MarshalPayload(metas),
	})
}

func streamFiles(ctx *ConnectionContext, files []outgoingFile, receivers []protocol.PeerInfo, channels map[string]*peerconn.Channel) error {
	// One progress row per (file, receiver) sequence.
	rows := make([]string, 0, len(files)*len(receivers))
	rowIndex := make(map[string]int)
	for _, f := range files {
		for _, r := range receivers {
			rowIndex[f.name+"\x00"+r.ID] = len(rows)
			rows = append(rows, fmt.Sprintf("%s → %s", f.name, r.Nickname))
		}
	}
	model := ui.NewProgressModel(rows)

	done := make(chan struct{})
	go ui.RunProgressLoop(done, len(rows), model.View)

	recipients := make([]transfer.Recipient, 0, len(channels))
	for id, ch := range channels {
		recipients = append(recipients, transfer.Recipient{ID: id, Channel: ch})
	}

	start := time.Now()
	var totalSize int64
	var sendErr error
	for _, f := range files {
		totalSize += f.size
		err := transfer.SendFileToAll(recipients, func() (io.ReadCloser, error) {
			return os.Open(f.path)
		}, f.name, f.size, ctx.Config.ChunkSize, func(recipientID string, pct int) {
			model.SetPercent(rowIndex[f.name+"\x00"+recipientID], pct)
		})
		if err != nil {
			sendErr = err
			break
		}
	}

	for _, ch := range channels {
		ch.WaitForDrain()
	}
	close(done)
	time.Sleep(150 * time.Millisecond) // let the progress loop paint its final frame

	if sendErr != nil {
		return sendErr
	}

	duration := time.Since(start)
	fmt.Println()
	ui.RenderTransferSummary(ui.TransferSummary{
		Status:    "Complete",
		Files:     len(files),
		TotalSize: utils.FormatSize(totalSize),
		Duration:  utils.FormatTimeDuration(duration),
		Speed:     utils.FormatSpeed(float64(totalSize) / duration.Seconds()),
	})

	ctx.Leave()
	return nil
}
