package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/BioHazard786/peerbeam/internal/config"
	"github.com/BioHazard786/peerbeam/internal/protocol"
	"github.com/BioHazard786/peerbeam/internal/transfer"
	"github.com/BioHazard786/peerbeam/internal/ui"
	"github.com/BioHazard786/peerbeam/internal/utils"
)

var (
	flagRecvServer   string
	flagRecvSTUN     string
	flagRecvTURN     string
	flagRecvTURNUser string
	flagRecvTURNPass string
	flagRecvOut      string
)

var receiveCmd = &cobra.Command{
	Use:     "receive <room-id>",
	Aliases: []string{"r"},
	Short:   "Join a room and receive files",
	Long: `Join an existing room and receive every file its sender streams to you.

Examples:
  peerbeam receive beach-trip
  peerbeam receive beach-trip --out ~/Downloads`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return receiveFiles(args[0])
	},
}

func init() {
	receiveCmd.Flags().StringVar(&flagRecvServer, "server", "", "coordinator websocket URL")
	receiveCmd.Flags().StringVar(&flagRecvSTUN, "stun", "", "STUN server URL")
	receiveCmd.Flags().StringVar(&flagRecvTURN, "turn", "", "TURN server host")
	receiveCmd.Flags().StringVar(&flagRecvTURNUser, "turn-user", "", "TURN username")
	receiveCmd.Flags().StringVar(&flagRecvTURNPass, "turn-pass", "", "TURN password")
	receiveCmd.Flags().StringVar(&flagRecvOut, "out", "", "output directory for received files")
	rootCmd.AddCommand(receiveCmd)
}

// incoming is one finished (or failed) file handed off by a data channel
// callback.
type incoming struct {
	name string
	path string
	size int64
	err  error
}

func receiveFiles(roomID string) error {
	cfg, err := LoadConfig(config.Options{
		ServerURL:  flagRecvServer,
		STUNServer: flagRecvSTUN,
		TURNServer: flagRecvTURN,
		TURNUser:   flagRecvTURNUser,
		TURNPass:   flagRecvTURNPass,
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

	if err := ctx.JoinRoom(roomID); err != nil {
		return err
	}
	nickname, err := ctx.AwaitNickname()
	if err != nil {
		return err
	}
	ui.RenderRoomInfo(roomID, nickname)

	if peers := awaitMembership(ctx); len(peers) > 0 {
		displayPeerTable(peers)
	}
	if flagRecvOut != "" {
		ui.PrintInfo("Saving files to " + flagRecvOut)
	}

	return receiveLoop(ctx)
}

// awaitMembership grabs the membership snapshot the coordinator sends right
// after a join.
func awaitMembership(ctx *ConnectionContext) []protocol.PeerInfo {
	select {
	case peers := <-ctx.Handler.AllPeers:
		return peers
	case <-time.After(2 * time.Second):
		return nil
	}
}

func displayPeerTable(peers []protocol.PeerInfo) {
	rows := make([]ui.PeerRow, len(peers))
	for i, p := range peers {
		rows[i] = ui.PeerRow{Nickname: p.Nickname, ID: p.ID}
	}
	ui.RenderPeerTable(rows)
}

func receiveLoop(ctx *ConnectionContext) error {
	results := make(chan incoming, 16)
	assemblers := make(map[string]*transfer.Assembler)
	var pcs []*pion.PeerConnection
	defer func() {
		for _, pc := range pcs {
			pc.Close()
		}
	}()

	var (
		model     *ui.ProgressModel
		metaIndex map[string]int
		expected  int
		received  int
		totalSize int64
		progDone  chan struct{}
	)
	start := time.Now()

	stopSpinner := ui.RunWaitingSpinner("Waiting for the sender...")
	waiting := true

	for {
		select {
		case hint := <-ctx.FileMeta:
			var metas []protocol.FileMeta
			if err := json.Unmarshal(hint.Data, &metas); err != nil || len(metas) == 0 {
				continue
			}
			if waiting {
				stopSpinner()
				waiting = false
			}
			names := make([]string, len(metas))
			metaIndex = make(map[string]int, len(metas))
			for i, m := range metas {
				names[i] = m.Name
				metaIndex[m.Name] = i
			}
			expected = len(metas)
			start = time.Now()
			model = ui.NewProgressModel(names)
			progDone = make(chan struct{})
			go ui.RunProgressLoop(progDone, len(names), model.View)

		case hint := <-ctx.Offers:
			asm := transfer.NewAssembler()
			assemblers[hint.From] = asm
			asm.SetProgressFunc(func(fileName string, pct int) {
				if model != nil {
					if idx, ok := metaIndex[fileName]; ok {
						model.SetPercent(idx, pct)
					}
				}
			})
			pc, err := ctx.AnswerPeer(hint.From, hint.Data, func(dc *pion.DataChannel) {
				wireDataChannel(dc, asm, results)
			})
			if err != nil {
				return err
			}
			pcs = append(pcs, pc)

		case res := <-results:
			if res.err != nil {
				if model != nil {
					if idx, ok := metaIndex[res.name]; ok {
						model.MarkError(idx, res.err.Error())
					}
				}
				ui.PrintError(res.err.Error())
				continue
			}
			received++
			totalSize += res.size
			if model != nil {
				if idx, ok := metaIndex[res.name]; ok {
					model.MarkComplete(idx)
				}
			}
			if expected > 0 && received >= expected {
				close(progDone)
				time.Sleep(150 * time.Millisecond)
				finishReceive(ctx, received, totalSize, time.Since(start))
				return nil
			}

		case roomID := <-ctx.Handler.RoomCleared:
			if waiting {
				stopSpinner()
			}
			return fmt.Errorf("room %s was cleared due to inactivity", roomID)

		case peer := <-ctx.Handler.PeerLeft:
			// A sender leaving mid-transfer abandons its sessions.
			if asm, ok := assemblers[peer.ID]; ok && asm.Pending() > 0 {
				asm.Discard()
				return fmt.Errorf("peer %s left before the transfer finished", peer.Nickname)
			}

		case msg := <-ctx.Handler.Errors:
			if waiting {
				stopSpinner()
			}
			return fmt.Errorf("server error: %s", msg)
		}
	}
}

// wireDataChannel feeds every channel message into the assembler and writes
// completed files to disk.
func wireDataChannel(dc *pion.DataChannel, asm *transfer.Assembler, results chan<- incoming) {
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		file, err := asm.HandleMessage(msg.Data)
		if err != nil {
			results <- incoming{err: err}
			return
		}
		if file == nil {
			return
		}
		path, err := transfer.WriteFile(file, flagRecvOut)
		if err != nil {
			results <- incoming{name: file.Name, err: err}
			return
		}
		results <- incoming{name: file.Name, path: path, size: int64(len(file.Data))}
	})
	dc.OnClose(func() {
		asm.Discard()
	})
}

func finishReceive(ctx *ConnectionContext, files int, totalSize int64, duration time.Duration) {
	fmt.Println()
	ui.PrintSuccess(fmt.Sprintf("Received %d file(s)", files))
	ui.RenderTransferSummary(ui.TransferSummary{
		Status:    "Complete",
		Files:     files,
		TotalSize: utils.FormatSize(totalSize),
		Duration:  utils.FormatTimeDuration(duration),
		Speed:     utils.FormatSpeed(float64(totalSize) / duration.Seconds()),
	})
	ctx.Leave()
}
