// Command maskinfo prints the level structure of a pyramidal mask TIFF.
package main

import (
	"flag"
	"fmt"
	"os"

	"slidemask/internal/pyramid"
)

func main() {
	path := flag.String("in", "", "Path to a pyramidal mask TIFF")
	flag.Parse()

	if *path == "" {
		fmt.Println("Usage: maskinfo -in <mask.tiff>")
		os.Exit(1)
	}

	r, err := pyramid.Open(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open mask: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	fmt.Printf("File: %s\n", *path)
	fmt.Printf("Levels: %d\n", len(r.Levels))
	if r.Description != "" {
		fmt.Printf("Description: %s\n", r.Description)
	}

	fmt.Printf("\n%-6s %10s %10s %10s %8s %8s\n",
		"Level", "Width", "Height", "Tile", "Tiles", "Reduced")
	for i, lv := range r.Levels {
		fmt.Printf("%-6d %10d %10d %6dx%-3d %8d %8v\n",
			i, lv.Width, lv.Height, lv.TileWidth, lv.TileHeight,
			lv.TilesAcross()*lv.TilesDown(), lv.Reduced)
	}
}
