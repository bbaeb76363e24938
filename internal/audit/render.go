package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by Render.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Render writes the report to w in the given format.
func Render(w io.Writer, r *Report, format string) error {
	switch format {
	case FormatText, "":
		return renderText(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(r), "audit: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "audit: encode yaml")
		}
		return eris.Wrap(enc.Close(), "audit: close yaml encoder")
	default:
		return eris.Errorf("audit: unknown format %q", format)
	}
}

func renderText(out io.Writer, r *Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ADDRESS\tCITY\tSIZE\tAVG_SIM\tCATEGORIES\tVERDICT\tISSUES")
	_, _ = fmt.Fprintln(w, "-------\t----\t----\t-------\t----------\t-------\t------")

	for _, v := range r.Verdicts {
		verdict := "suspicious"
		if v.IsLegitimateMultiTenant {
			verdict = "legitimate"
		}
		address := v.Address
		if runes := []rune(address); len(runes) > 40 {
			address = string(runes[:37]) + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%d\t%s\t%s\n",
			address,
			v.City,
			len(v.BusinessIDs),
			v.AverageSimilarity,
			v.CategoryDiversity,
			verdict,
			strings.Join(v.Issues, ", "),
		)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Clusters:\t%d\n", r.Clusters)
	_, _ = fmt.Fprintf(w, "Legitimate:\t%d\n", r.Legitimate)
	_, _ = fmt.Fprintf(w, "Suspicious:\t%d\n", r.Suspicious)
	_, _ = fmt.Fprintf(w, "Annotated:\t%d\n", r.Annotated)
	return w.Flush()
}
