package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	slidepreview "github.com/VantageDataChat/SlidePreview"
)

func newInspectCmd() *cobra.Command {
	var serviceURL string
	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Summarize the slides, elements and fonts of a deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := loadEnv()
			if serviceURL != "" {
				e.ServiceURL = serviceURL
			}
			logger := loggerFromContext(cmd.Context())
			doc, err := readDeck(cmd.Context(), newPipeline(e, logger), args[0])
			if err != nil {
				return err
			}
			printDocument(cmd.OutOrStdout(), doc)
			return nil
		},
	}
	cmd.Flags().StringVar(&serviceURL, "service-url", "", "delegate decoding to a parsing service at this URL")
	return cmd
}

func printDocument(w io.Writer, doc *slidepreview.Document) {
	fmt.Fprintln(w, styleTitle.Render(doc.Title))
	printKeyValue(w, "author", doc.Author)
	if doc.Application != "" {
		printKeyValue(w, "application", doc.Application)
	}
	if !doc.Modified.IsZero() {
		printKeyValue(w, "modified", doc.Modified.Format("2006-01-02 15:04"))
	}
	printKeyValue(w, "slides", styleNumber.Render(fmt.Sprint(doc.SlideCount())))

	counts := make(map[slidepreview.ElementKind]int)
	for _, s := range doc.Slides {
		slidepreview.WalkElements(s.Elements, func(e slidepreview.Element) bool {
			counts[e.Kind()]++
			return true
		})
	}
	kinds := make([]string, 0, len(counts))
	for k, n := range counts {
		kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
	}
	sort.Strings(kinds)
	printKeyValue(w, "elements", strings.Join(kinds, " "))

	fonts := make([]string, 0, len(doc.Fonts))
	for _, f := range doc.Fonts {
		name := f.Family
		if f.Weight != slidepreview.WeightNormal && f.Weight != "" {
			name += " " + string(f.Weight)
		}
		if f.Embedded {
			name += " (embedded)"
		}
		fonts = append(fonts, name)
	}
	printKeyValue(w, "fonts", strings.Join(fonts, ", "))

	for _, s := range doc.Slides {
		line := fmt.Sprintf("%s %s %gx%g, %d elements", iconInfo, s.ID, s.Width, s.Height, len(s.Elements))
		if s.Placeholder {
			line += styleWarning.Render(" (not decoded)")
		}
		fmt.Fprintln(w, line)
		for _, msg := range s.Warnings {
			fmt.Fprintf(w, "    %s %s\n", styleWarning.Render(iconWarning), msg)
		}
	}
}
