package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/prn-tf/alexander-azblob/internal/domain"
	"github.com/prn-tf/alexander-azblob/internal/storage"
)

// stdio is the path argument that selects standard input or output.
const stdio = "-"

// =============================================================================
// Transfer Commands
// =============================================================================

func newPutCommand(a *app) *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "put <local-file|-> <path>",
		Short: "Upload a local file or standard input",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]

			var r io.Reader = cmd.InOrStdin()
			if src != stdio {
				f, err := os.Open(src)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			counter := &countingReader{r: r}
			if err := a.blobs.WriteStream(cmd.Context(), dst, counter, contentType); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%s)\n", storage.NormalizeKey(dst), humanize.IBytes(uint64(counter.n)))
			return err
		},
	}
	cmd.Flags().StringVarP(&contentType, "content-type", "t", "", "content type (default guessed from the extension)")
	return cmd
}

func newGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path> [local-file|-]",
		Short: "Download a file to standard output or a local file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.blobs.Read(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if len(args) == 1 || args[1] == stdio {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(args[1], data, 0o644)
		},
	}
}

func newRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <path>...",
		Aliases: []string{"delete"},
		Short:   "Delete files; missing files are ignored",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := a.blobs.Delete(cmd.Context(), path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newRemoveDirCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <dir>",
		Short: "Delete every file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.blobs.DeleteDirectory(cmd.Context(), args[0])
		},
	}
}

func newCopyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cp <source> <destination>",
		Short: "Copy a file on the server side",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.blobs.Copy(cmd.Context(), args[0], args[1])
		},
	}
}

func newMoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <source> <destination>",
		Short: "Move a file (copy, then delete the source)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.blobs.Move(cmd.Context(), args[0], args[1])
		},
	}
}

// =============================================================================
// Inspection Commands
// =============================================================================

func newListCommand(a *app) *cobra.Command {
	var deep, long bool
	cmd := &cobra.Command{
		Use:     "ls [dir]",
		Aliases: []string{"list"},
		Short:   "List files and directories",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}

			entries, err := a.blobs.ListContents(cmd.Context(), dir, deep)
			if err != nil {
				return err
			}
			return writeEntries(cmd.OutOrStdout(), entries, long)
		},
	}
	cmd.Flags().BoolVarP(&deep, "deep", "r", false, "list every file below dir instead of one level")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show size and age")
	return cmd
}

func newStatCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "stat <path>",
		Short: "Show the properties of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}

			props, err := a.blobs.Properties(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			visibility, err := a.blobs.Visibility(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return writeStat(cmd.OutOrStdout(), format, newFileStat(storage.NormalizeKey(args[0]), a.blobs.URL(args[0]), visibility, props))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", string(outputText), "output format (text|yaml|json)")
	return cmd
}

func newExistsCommand(a *app) *cobra.Command {
	var dir bool
	cmd := &cobra.Command{
		Use:   "exists <path>",
		Short: "Report whether a file (or with --dir, a directory) exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				exists bool
				err    error
			)
			if dir {
				exists, err = a.blobs.DirectoryExists(cmd.Context(), args[0])
			} else {
				exists, err = a.blobs.FileExists(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), exists)
			return err
		},
	}
	cmd.Flags().BoolVarP(&dir, "dir", "d", false, "test for a directory")
	return cmd
}

// =============================================================================
// Container Access Commands
// =============================================================================

func newACLCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acl",
		Short: "Read or change the container's anonymous access level",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the access level (private|blob|container)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, err := a.access.Get(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), level)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <private|blob|container>",
		Short: "Change the access level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := domain.ParseAccessLevel(args[0])
			if err != nil {
				return err
			}
			return a.access.Set(cmd.Context(), level)
		},
	})

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoClient: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "azblob %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
			return err
		},
	}
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
