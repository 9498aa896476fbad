package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/prn-tf/alexander-azblob/internal/auth"
	"github.com/prn-tf/alexander-azblob/internal/service"
)

func newURLCommand(a *app) *cobra.Command {
	var expiry time.Duration
	cmd := &cobra.Command{
		Use:   "url <path>",
		Short: "Print the URL of a file; with --expiry, a signed read-only URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := a.blobs.URL(args[0])
			if expiry > 0 {
				var err error
				if link, err = a.blobs.TemporaryURL(args[0], expiry); err != nil {
					return err
				}
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), link)
			return err
		},
	}
	cmd.Flags().DurationVarP(&expiry, "expiry", "e", 0, "issue a signed URL valid for this long")
	return cmd
}

// sasFlags are shared by the sas subcommands.
type sasFlags struct {
	permissions string
	expiry      time.Duration
	start       string
	ipRange     string
	protocol    string
	tokenOnly   bool
}

func (f *sasFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.permissions, "permissions", "p", "", "permission letters from racwdl (default from config)")
	flags.DurationVarP(&f.expiry, "expiry", "e", 0, "lifetime of the grant (default from config)")
	flags.StringVar(&f.start, "start", "", "start time, "+auth.SASTimeFormat)
	flags.StringVar(&f.ipRange, "ip", "", "allowed client IP or range, e.g. 10.0.0.1-10.0.0.9")
	flags.StringVar(&f.protocol, "protocol", "", "https or https,http (default from config)")
	flags.BoolVar(&f.tokenOnly, "token-only", false, "print only the query string")
}

func (f *sasFlags) input(path string) (service.PresignInput, error) {
	input := service.PresignInput{
		Path:        path,
		Permissions: f.permissions,
		Expiry:      f.expiry,
		IPRange:     f.ipRange,
		Protocol:    f.protocol,
	}
	if f.start != "" {
		start, err := time.Parse(auth.SASTimeFormat, f.start)
		if err != nil {
			return service.PresignInput{}, fmt.Errorf("invalid --start: %w", err)
		}
		input.Start = start
	}
	return input, nil
}

func (f *sasFlags) print(cmd *cobra.Command, out *service.PresignOutput) error {
	text := out.URL
	if f.tokenOnly {
		text = out.Token
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}

func newSASCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sas",
		Short: "Issue shared access signatures",
	}

	var blobFlags sasFlags
	blobCmd := &cobra.Command{
		Use:   "blob <path>",
		Short: "Issue a grant for one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := blobFlags.input(args[0])
			if err != nil {
				return err
			}
			out, err := a.presign.BlobSAS(input)
			if err != nil {
				return err
			}
			return blobFlags.print(cmd, out)
		},
	}
	blobFlags.register(blobCmd.Flags())

	var containerFlags sasFlags
	containerCmd := &cobra.Command{
		Use:   "container",
		Short: "Issue a grant for the whole container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, err := containerFlags.input("")
			if err != nil {
				return err
			}
			out, err := a.presign.ContainerSAS(input)
			if err != nil {
				return err
			}
			return containerFlags.print(cmd, out)
		},
	}
	containerFlags.register(containerCmd.Flags())

	cmd.AddCommand(blobCmd, containerCmd)
	return cmd
}
