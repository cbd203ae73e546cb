package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"parcel-locator/internal/app"
	"parcel-locator/internal/domain/locate"
)

func createAddressCmd() *cobra.Command {
	var (
		city, postalCode string
		geocode          bool
	)

	cmd := &cobra.Command{
		Use:   "address [text]",
		Short: "Generate, and optionally geocode, address hypotheses from free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := app.Build(cmd.Context(), cfg, nil, appLog)
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			ctx := locate.Context{City: city, PostalCode: postalCode}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if geocode {
				geocoded, err := components.Service.GeocodeText(cmd.Context(), text, ctx)
				if err != nil {
					return err
				}
				return enc.Encode(geocoded)
			}

			candidates, err := components.Service.AddressCandidates(text, ctx)
			if err != nil {
				return err
			}
			return enc.Encode(candidates)
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "city context")
	cmd.Flags().StringVar(&postalCode, "postal-code", "", "postal code context")
	cmd.Flags().BoolVar(&geocode, "geocode", false, "geocode and rank the hypotheses")

	return cmd
}
