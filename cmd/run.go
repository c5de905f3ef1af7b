package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streetsignal/streetsignal/internal/job"
	"github.com/streetsignal/streetsignal/internal/model"
	"github.com/streetsignal/streetsignal/internal/overpass"
	"github.com/streetsignal/streetsignal/internal/preset"
)

var (
	runPreset     string
	runRadius     int
	runMaxAssign  float64
	runOut        string
	runAllShops   bool
	runShopTypes  []string
	runAmenities  []string
	runSelectors  []string
	runAllStreets bool
)

var runCmd = &cobra.Command{
	Use:   "run [districts...]",
	Short: "Process districts and export ranked streets",
	Long:  "Processes each district in order: geocode, fetch POIs and streets, attribute, rank. Writes a CSV or XLSX report when --out is set.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		env, err := initStack(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		opts := searchOptions(runRadius, runMaxAssign)
		if runPreset != preset.Custom {
			opts.Query = preset.Get(runPreset).QueryOptions()
		} else {
			opts.Query = overpass.POIQueryOptions{
				IncludeAllShops:   runAllShops,
				ShopTypes:         runShopTypes,
				Amenities:         runAmenities,
				PropertySelectors: runSelectors,
			}
		}

		districts := job.ParseDistricts(strings.Join(args, ","))
		if len(districts) == 0 {
			return eris.New("no valid districts provided")
		}

		results := make([]model.DistrictResult, 0, len(districts))
		for i, district := range districts {
			zap.L().Info("processing district",
				zap.String("district", district),
				zap.Int("index", i+1),
				zap.Int("total", len(districts)),
			)
			result := env.Processor.Process(cmd.Context(), district, opts)
			results = append(results, result)
			printResult(cmd, result)
		}

		if runOut != "" {
			if err := writeReport(runOut, results); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", runOut)
		}
		return nil
	},
}

func printResult(cmd *cobra.Command, res model.DistrictResult) {
	if !res.Success {
		cmd.Printf("%s: FAILED (%s)\n", res.District, res.Error)
		return
	}
	cmd.Printf("%s: %d POIs across %d streets\n", res.District, res.TotalPOIs, res.TotalStreets)
	for i, sc := range res.Top {
		if sc.Name == "" {
			continue
		}
		cmd.Printf("  %d. %s (%d)\n", i+1, sc.Name, sc.POICount)
	}
	if runAllStreets {
		for _, sc := range res.AllStreets {
			cmd.Printf("     %s: %d\n", sc.Name, sc.POICount)
		}
	}
}

func writeReport(path string, results []model.DistrictResult) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if strings.HasSuffix(path, ".xlsx") {
		return job.WriteXLSX(f, results)
	}
	return job.WriteCSV(f, results)
}

func init() {
	runCmd.Flags().StringVar(&runPreset, "preset", preset.Custom,
		fmt.Sprintf("filter preset (%s)", strings.Join(preset.Names(), ", ")))
	runCmd.Flags().IntVar(&runRadius, "radius", 0, "search radius in meters (default from config)")
	runCmd.Flags().Float64Var(&runMaxAssign, "max-assign", 0, "max POI-to-street distance in meters (default from config)")
	runCmd.Flags().StringVar(&runOut, "out", "", "output file (.csv or .xlsx)")
	runCmd.Flags().BoolVar(&runAllShops, "all-shops", false, "include every shop (custom preset only)")
	runCmd.Flags().StringSliceVar(&runShopTypes, "shop-type", nil, "shop type filter (custom preset only)")
	runCmd.Flags().StringSliceVar(&runAmenities, "amenity", nil, "amenity filter (custom preset only)")
	runCmd.Flags().StringSliceVar(&runSelectors, "selector", nil, "key=value property selector (custom preset only)")
	runCmd.Flags().BoolVar(&runAllStreets, "all-streets", false, "print the full ranked street list")
	rootCmd.AddCommand(runCmd)
}
