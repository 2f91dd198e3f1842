package exporter

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// PrintEntries 以类似 git ls-tree 的格式打印 List 的结果
func PrintEntries(entries []Entry, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "HASH\tSIZE\tNAME\n")
	for _, e := range entries {
		size := fmtSize(e.Size)
		if e.Dangling {
			size = "dangling"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Target.Short(), size, e.Pointer)
	}
	return tw.Flush()
}

func fmtSize(s int64) string {
	if s == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", s)
}
