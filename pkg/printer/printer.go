// Package printer 负责所有面向人的输出
package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"dpmserver/pkg/descriptor"
	"dpmserver/pkg/logging"
	"dpmserver/pkg/registry"
	"dpmserver/pkg/types"
)

// Arrow 是 hash 进度行中路径与摘要之间的分隔符
const Arrow = "===>"

// HashLine 打印一行进度：<n> <path> ===> <digest>
func HashLine(w io.Writer, n int, path string, hash types.Hash) {
	fmt.Fprintf(w, "%d %s %s %s\n",
		n,
		logging.PathStyle.Render(path),
		logging.ArrowStyle.Render(Arrow),
		logging.HashStyle.Render(hash.String()),
	)
}

// Row 是 list 输出的一行
type Row struct {
	Name  types.PackageName
	Entry registry.Entry
}

// PrintList 以表格形式打印注册表记录 (调用者负责排序)
func PrintList(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No packages.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "NAME\tVERSION\tHASH\tDEPENDENCIES\n")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Entry.Version, r.Entry.Hash.Short(), fmtDeps(r.Entry.Dependencies))
	}
	return tw.Flush()
}

// PrintPackage 打印一个包的描述文件和注册表记录
// 任一部分为 nil 时显示为未找到
func PrintPackage(w io.Writer, name types.PackageName, d *descriptor.Descriptor, e *registry.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Package:\t%s\n", name)
	fmt.Fprintf(tw, "\t\n")

	fmt.Fprintf(tw, "[source]\t\n")
	if d == nil {
		fmt.Fprintf(tw, "  (not found)\t\n")
	} else {
		fmt.Fprintf(tw, "  Entry:\t%s\n", d.FileName)
		fmt.Fprintf(tw, "  Version:\t%s\n", d.Version)
		fmt.Fprintf(tw, "  Description:\t%s\n", d.Description)
		fmt.Fprintf(tw, "  Ledger hash:\t%s\n", d.Hash)
		fmt.Fprintf(tw, "  Dependencies:\t%s\n", fmtDeps(d.Dependencies))
	}
	fmt.Fprintf(tw, "\t\n")

	fmt.Fprintf(tw, "[registry]\t\n")
	if e == nil {
		fmt.Fprintf(tw, "  (not registered)\t\n")
	} else {
		fmt.Fprintf(tw, "  File:\t%s\n", e.FileName)
		fmt.Fprintf(tw, "  Version:\t%s\n", e.Version)
		fmt.Fprintf(tw, "  Archive hash:\t%s\n", e.Hash)
		fmt.Fprintf(tw, "  URL:\t%s\n", e.URL)
		fmt.Fprintf(tw, "  Dependencies:\t%s\n", fmtDeps(e.Dependencies))
	}
	return tw.Flush()
}

func fmtDeps(deps []string) string {
	if len(deps) == 0 {
		return "-"
	}
	return strings.Join(deps, ", ")
}
