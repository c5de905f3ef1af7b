package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/streetsignal/streetsignal/internal/model"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolve districts and streets to coordinates",
}

var geocodeDistrictCmd = &cobra.Command{
	Use:   "district <code>",
	Short: "Resolve a postcode district to its centroid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		env, err := initStack(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		district := model.NormalizeDistrict(args[0])
		coord, ok, err := env.Geocoder.ResolveDistrict(cmd.Context(), district)
		if err != nil {
			return err
		}

		out := map[string]any{"district": district, "found": ok}
		if ok {
			out["lat"] = coord.Lat
			out["lon"] = coord.Lon
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
	},
}

var geocodeStreetCmd = &cobra.Command{
	Use:   "street <postcode> <street>",
	Short: "Resolve a street to coordinates and an area label",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		env, err := initStack(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Geocoder.AreaAndCoords(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		out := map[string]any{
			"postcode": model.NormalizeDistrict(args[0]),
			"street":   args[1],
			"found":    res.Found,
		}
		if res.Found {
			out["area"] = res.Area
			out["lat"] = res.Coord.Lat
			out["lon"] = res.Coord.Lon
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
	},
}

func init() {
	geocodeCmd.AddCommand(geocodeDistrictCmd)
	geocodeCmd.AddCommand(geocodeStreetCmd)
	rootCmd.AddCommand(geocodeCmd)
}
