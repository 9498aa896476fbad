package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/prn-tf/alexander-azblob/internal/domain"
)

type outputFormat string

const (
	outputText outputFormat = "text"
	outputYAML outputFormat = "yaml"
	outputJSON outputFormat = "json"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(s); f {
	case outputText, outputYAML, outputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, yaml or json)", s)
	}
}

// fileStat is the document printed by stat.
type fileStat struct {
	Path         string    `json:"path" yaml:"path"`
	URL          string    `json:"url" yaml:"url"`
	Size         int64     `json:"size" yaml:"size"`
	ContentType  string    `json:"content_type" yaml:"content_type"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
	ETag         string    `json:"etag,omitempty" yaml:"etag,omitempty"`
	Visibility   string    `json:"visibility" yaml:"visibility"`
}

func newFileStat(path, url, visibility string, props *domain.BlobProperties) fileStat {
	return fileStat{
		Path:         path,
		URL:          url,
		Size:         props.ContentLength,
		ContentType:  props.ContentType,
		LastModified: props.LastModified,
		ETag:         props.ETag,
		Visibility:   visibility,
	}
}

func writeStat(w io.Writer, format outputFormat, st fileStat) error {
	switch format {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(st); err != nil {
			return err
		}
		return enc.Close()
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Path:\t%s\n", st.Path)
	fmt.Fprintf(tw, "URL:\t%s\n", st.URL)
	fmt.Fprintf(tw, "Size:\t%s (%d bytes)\n", humanize.IBytes(uint64(st.Size)), st.Size)
	fmt.Fprintf(tw, "Content-Type:\t%s\n", st.ContentType)
	fmt.Fprintf(tw, "Last-Modified:\t%s (%s)\n", st.LastModified.UTC().Format(time.RFC3339), humanize.Time(st.LastModified))
	if st.ETag != "" {
		fmt.Fprintf(tw, "ETag:\t%s\n", st.ETag)
	}
	fmt.Fprintf(tw, "Visibility:\t%s\n", st.Visibility)
	return tw.Flush()
}

// writeEntries prints one entry per line. Directories carry a trailing "/".
func writeEntries(w io.Writer, entries []domain.Entry, long bool) error {
	if !long {
		for _, e := range entries {
			if _, err := fmt.Fprintln(w, entryName(e)); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(tw, "-\t-\t %s\n", entryName(e))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t %s\n", humanize.IBytes(uint64(e.Size)), humanize.Time(e.LastModified), entryName(e))
	}
	return tw.Flush()
}

func entryName(e domain.Entry) string {
	if e.IsDir() {
		return e.Path + "/"
	}
	return e.Path
}
