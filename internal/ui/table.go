package ui

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/peerbeam/internal/utils"
)

// FileTableItem represents a file in the table.
type FileTableItem struct {
	Index int
	Name  string
	Size  int64
}

// RenderFileTable prints the files queued for transfer.
func RenderFileTable(items []FileTableItem) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Name", "Size"})
	for _, item := range items {
		t.AppendRow(table.Row{item.Index, utils.TruncateString(item.Name, 50), utils.FormatSize(item.Size)})
	}
	t.Render()
}

// PeerRow is one room member in the membership table.
type PeerRow struct {
	Nickname string
	ID       string
}

// RenderPeerTable prints the current room membership snapshot.
func RenderPeerTable(rows []PeerRow) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Nickname", "Peer ID"})
	for _, row := range rows {
		t.AppendRow(table.Row{row.Nickname, row.ID})
	}
	t.Render()
}

// TransferSummary holds final stats for one transfer run.
type TransferSummary struct {
	Status    string
	Files     int
	TotalSize string
	Duration  string
	Speed     string
}

// RenderTransferSummary prints the post-transfer stats table.
func RenderTransferSummary(s TransferSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})
	t.AppendRow(table.Row{"Status", s.Status})
	t.AppendRow(table.Row{"Files", s.Files})
	t.AppendRow(table.Row{"Total size", s.TotalSize})
	t.AppendRow(table.Row{"Duration", s.Duration})
	t.AppendRow(table.Row{"Speed", s.Speed})
	t.Render()
}
