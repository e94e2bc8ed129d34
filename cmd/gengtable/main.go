// gengtable is a one-time offline step that produces the two binary
// files (gtable_x.bin, gtable_y.bin) the GPU derivation back-end loads
// at startup. It never runs as part of a search.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"keysearch/gpu/gtable"
)

func main() {
	outDir := flag.String("out", ".", "directory to write gtable_x.bin and gtable_y.bin into")
	flag.Parse()

	fmt.Printf("generating %d-chunk secp256k1 GTable (%d points, ~%dMB)...\n",
		gtable.ChunkCount, gtable.ChunkCount*gtable.ChunkSize, 2*gtable.ChunkCount*gtable.ChunkSize*gtable.PointBytes/(1<<20))

	start := time.Now()
	table, err := gtable.Generate(func(chunk int) {
		fmt.Printf("\r  chunk %d/%d", chunk+1, gtable.ChunkCount)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "\ngenerate: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\r  chunk %d/%d, done in %s\n", gtable.ChunkCount, gtable.ChunkCount, time.Since(start).Round(time.Millisecond))

	if err := table.Verify(); err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		os.Exit(1)
	}

	xPath := filepath.Join(*outDir, "gtable_x.bin")
	yPath := filepath.Join(*outDir, "gtable_y.bin")
	if err := table.Save(xPath, yPath); err != nil {
		fmt.Fprintf(os.Stderr, "save: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s and %s (%d bytes each)\n", xPath, yPath, len(table.X))
}
