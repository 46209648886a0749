package commands

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rob-gra/rvpf-protocol-core/rvpfconfig"
)

var assocCmd = &cobra.Command{
	Use:   "assoc",
	Short: "Inspect the association and engine settings a config file describes",
}

var assocListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the loaded association, link, application, and CIP settings",
	RunE:  runAssocList,
}

func init() {
	assocCmd.AddCommand(assocListCmd)
}

func runAssocList(cmd *cobra.Command, args []string) error {
	settings, err := rvpfconfig.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Setting", "Value"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	table.Append([]string{"association.local_addr", fmt.Sprintf("%d", settings.Association.LocalAddr)})
	table.Append([]string{"association.remote_addr", fmt.Sprintf("%d", settings.Association.RemoteAddr)})
	table.Append([]string{"link.timeout", settings.Link.LinkTimeout.String()})
	table.Append([]string{"link.keepalive", settings.Link.KeepaliveTimeout.String()})
	table.Append([]string{"link.retries", fmt.Sprintf("%d", settings.Link.Retries)})
	table.Append([]string{"application.timeout", settings.Application.RequestTimeout.String()})
	table.Append([]string{"application.max_fragment_size", fmt.Sprintf("%d", settings.Application.MaxFragmentSize)})
	table.Append([]string{"cip.tcp_port", fmt.Sprintf("%d", settings.CIP.TCPPort)})
	table.Append([]string{"cip.slot", fmt.Sprintf("%d", settings.CIP.Slot)})
	table.Append([]string{"cip.timeout", settings.CIP.Timeout.String()})

	table.Render()
	return nil
}
