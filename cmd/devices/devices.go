// Package devices implements the devices command.
package devices

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	acqdevices "github.com/eegstream/eegstream-go/internal/acqcore/devices"
	"github.com/eegstream/eegstream-go/internal/conf"
)

// Command creates the devices command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List device types and audio capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Device types: %s (configured: %s)\n\n",
				strings.Join(acqdevices.Types(), ", "), settings.Device.Type)

			capture, err := acqdevices.ListDevices()
			if err != nil {
				fmt.Fprintf(out, "Capture devices unavailable: %v\n", err)
				return nil
			}
			if len(capture) == 0 {
				fmt.Fprintln(out, "No capture devices found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tNAME\tID")
			for _, d := range capture {
				fmt.Fprintf(w, "%d\t%s\t%s\n", d.Index, d.Name, d.ID)
			}
			return w.Flush()
		},
	}
}
