package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"parcel-locator/internal/app"
	"parcel-locator/internal/domain/locate"
	"parcel-locator/internal/export"
	"parcel-locator/internal/vision"
)

func createRunCmd() *cobra.Command {
	var (
		lat, lng, radius float64
		postalCodes      []string
		communes         []string
		city, postalCode string
		propertyType     string
		pool             bool
		poolShape        string
		facing           string
		price, surface   float64
		output           string
	)

	cmd := &cobra.Command{
		Use:   "run [photo]",
		Short: "Match a photo against the parcels of a zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read photo: %w", err)
			}

			database, err := openDatabase(false)
			if err != nil {
				return err
			}
			components, err := app.Build(cmd.Context(), cfg, database, appLog)
			if err != nil {
				return err
			}

			req := locate.LocateRequest{
				Image:    image,
				Filename: filepath.Base(args[0]),
				Zone: locate.SearchZone{
					Center:       locate.LatLng{Lat: lat, Lng: lng},
					RadiusMeters: radius,
					Constraints:  locate.ZoneConstraints{PostalCodes: postalCodes, Communes: communes},
				},
				Context:      locate.Context{City: city, PostalCode: postalCode},
				PropertyType: locate.PropertyType(propertyType),
			}
			if price > 0 || surface > 0 {
				req.Listing = &locate.ListingMetadata{Price: price, Surface: surface}
			}
			if cmd.Flags().Changed("pool") || poolShape != "" || facing != "" {
				req.Hints = &locate.ImageFeatures{
					HasPool:     pool || poolShape != "",
					PoolShape:   vision.NormalizePoolShape(poolShape),
					Orientation: locate.ParseOrientation(facing),
				}
			}

			result, err := components.Service.Locate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeResult(result, output)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "zone centre latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "zone centre longitude")
	cmd.Flags().Float64Var(&radius, "radius", 500, "zone radius in metres")
	cmd.Flags().StringSliceVar(&postalCodes, "postal-code", nil, "restrict the zone to these postal codes")
	cmd.Flags().StringSliceVar(&communes, "commune", nil, "restrict the zone to these communes")
	cmd.Flags().StringVar(&city, "city", "", "city hint for address generation")
	cmd.Flags().StringVar(&postalCode, "context-postal-code", "", "postal code hint for address generation")
	cmd.Flags().StringVar(&propertyType, "type", "", "property type: house or apartment")
	cmd.Flags().BoolVar(&pool, "pool", false, "the photo shows a pool")
	cmd.Flags().StringVar(&poolShape, "pool-shape", "", "pool shape seen in the photo")
	cmd.Flags().StringVar(&facing, "facing", "", "facade orientation (N, NE, E, ...)")
	cmd.Flags().Float64Var(&price, "price", 0, "listing price")
	cmd.Flags().Float64Var(&surface, "surface", 0, "listing surface in square metres")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result to a .json or .xlsx file instead of stdout")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	return cmd
}

func writeResult(result *locate.LocateResult, output string) error {
	if output == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(output), ".xlsx") {
		if err := export.WriteSearch(f, result); err != nil {
			return err
		}
	} else {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
	}

	appLog.Info().
		Str("output", output).
		Int("candidates", len(result.Candidates)).
		Bool("partial", result.Partial).
		Msg("search written")
	return nil
}
