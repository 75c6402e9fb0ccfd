package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/aouyang1/inkframe/api/client"
	"github.com/aouyang1/inkframe/imageindex"
	"github.com/aouyang1/inkframe/util"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect or rebuild the image index",
}

func localCache() *imageindex.Cache {
	clock := util.RealClock{Location: cfg.Location()}
	indexer := imageindex.NewIndexer(cfg.SharedImagesPath, cfg.LocalImagesPath)
	return imageindex.NewCache(cfg.CachePath, cfg.CacheMaxAge.Duration, indexer, clock)
}

var indexRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rescan the image trees and rewrite the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serverURL != "" {
			resp, err := client.NewFrameClient(serverURL).RefreshImages()
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d folders, %d images\n", resp.Message, resp.Folders, resp.Images)
			return nil
		}

		doc, err := localCache().Refresh()
		if err != nil {
			return err
		}
		images := 0
		for _, imgs := range doc.Folders {
			images += len(imgs)
		}
		fmt.Printf("Image index refreshed: %d folders, %d images\n", len(doc.Folders), images)
		return nil
	},
}

var indexShowCmd = &cobra.Command{
	Use:   "show [folder]",
	Short: "List indexed folders, or the images of one folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if serverURL != "" && len(args) == 0 {
			folders, err := client.NewFrameClient(serverURL).Folders()
			if err != nil {
				return err
			}
			for _, label := range folders {
				fmt.Println(label)
			}
			return nil
		}

		doc := localCache().Load()

		if len(args) == 0 {
			fmt.Printf("indexed at %s\n", doc.IndexedAt.Format("2006-01-02 15:04:05"))
			for _, label := range doc.Folders.Labels() {
				fmt.Printf("%s (%d)\n", label, len(doc.Folders[label]))
			}
			return nil
		}

		images, ok := doc.Folders[args[0]]
		if !ok {
			return fmt.Errorf("folder %q is not in the index", args[0])
		}
		sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
		for _, img := range images {
			orientation := string(img.Orientation)
			if img.Orientation == imageindex.Any {
				orientation = "-"
			}
			fmt.Printf("%-10s %s\n", orientation, img.Name)
		}
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexRefreshCmd, indexShowCmd)
	rootCmd.AddCommand(indexCmd)
}
