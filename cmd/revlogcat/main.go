// Command revlogcat walks a revlog and prints one line per revision,
// plus a unified diff against the previous revision whenever both look
// like text. It exists to exercise the Inspector API end-to-end; it knows
// nothing about what a Mercurial changelog, manifest, or file revision
// actually means — it just prints the bytes it is handed.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"unicode/utf8"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/hgcore/revlog"
)

func main() {
	indexPath := flag.String("index", "", "path to a revlog .i file")
	start := flag.Int("start", 0, "first revision to visit")
	end := flag.Int("end", revlog.TIP, "last revision to visit (-1 for tip)")
	flag.Parse()

	if *indexPath == "" {
		fmt.Fprintln(os.Stderr, "usage: revlogcat -index path/to/file.i")
		os.Exit(2)
	}

	provider := revlog.NewMmapProvider(32)
	h, err := revlog.Open(provider, *indexPath)
	if err != nil {
		log.Fatalf("open %s: %v", *indexPath, err)
	}
	defer h.Close()

	fmt.Printf("%s: %d revisions, inline=%v\n", *indexPath, h.Count(), h.Inline())

	insp := &catInspector{}
	if err := h.IterateRange(*start, *end, true, insp); err != nil {
		log.Fatalf("iterate: %v", err)
	}
}

// catInspector prints a one-line summary per revision and a unified diff
// against the previous revision whenever both sides decode as UTF-8 text.
type catInspector struct {
	havePrev bool
	prevName string
	prevText string
}

func (c *catInspector) Next(ri, actualLen, baseRev, linkRev, p1, p2 int, node revlog.NodeID, data revlog.PayloadSource) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}

	fmt.Printf("rev %d  node=%s  base=%d link=%d p1=%d p2=%d len=%d\n",
		ri, node, baseRev, linkRev, p1, p2, actualLen)

	name := fmt.Sprintf("rev%d", ri)
	if !utf8.Valid(buf) {
		c.havePrev = false
		return nil
	}
	text := string(buf)

	if c.havePrev && text != c.prevText {
		edits := myers.ComputeEdits(span.URIFromPath(c.prevName), c.prevText, text)
		unified := gotextdiff.ToUnified(c.prevName, name, c.prevText, edits)
		fmt.Fprint(os.Stdout, unified)
	}

	c.havePrev = true
	c.prevName = name
	c.prevText = text
	return nil
}
