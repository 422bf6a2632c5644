package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"co2nex/carbon-audit/audit-backend/internal/revenue"
)

func newEstimateCmd() *cobra.Command {
	var (
		req    revenue.Request
		unit   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate landowner carbon revenue",
		Long: `Estimates sequestration and revenue from land area, land type, project
duration and credit price.

Example:
  auditctl estimate --area 100 --unit ha --land-type forest --years 10 --price 15`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.AreaUnit = revenue.AreaUnit(unit)
			est, err := revenue.NewCalculator(revenue.NewRegistry()).Estimate(req)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(est)
			}
			return writeEstimateTable(cmd.OutOrStdout(), est)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&req.LandArea, "area", 0, "land area")
	f.StringVar(&unit, "unit", string(revenue.UnitHectares), "area unit: ha or acres")
	f.StringVar(&req.LandType, "land-type", revenue.DefaultLandType, "land type code")
	f.Float64Var(&req.DurationYears, "years", 10, "project duration in years")
	f.Float64Var(&req.PricePerTonne, "price", 15, "credit price per tonne CO2e")
	f.BoolVar(&asJSON, "json", false, "print the full estimate as JSON")
	_ = cmd.MarkFlagRequired("area")
	return cmd
}

func writeEstimateTable(w io.Writer, est *revenue.Estimate) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	landType := est.LandType.Name
	if est.LandTypeFallback {
		landType += " (fallback)"
	}
	fmt.Fprintf(tw, "Land type:\t%s\n", landType)
	fmt.Fprintf(tw, "Area:\t%.2f ha\n", est.AreaHectares)
	fmt.Fprintf(tw, "Annual sequestration:\t%.2f tCO2e\n", est.AnnualSequestration)
	fmt.Fprintf(tw, "Total sequestration:\t%.2f tCO2e\n", est.TotalSequestration)
	fmt.Fprintf(tw, "Annual revenue:\t$%.2f\n", est.AnnualRevenue)
	fmt.Fprintf(tw, "Total revenue:\t$%.2f\n", est.TotalRevenue)
	fmt.Fprintf(tw, "Pools (biomass/soil/litter):\t%.2f / %.2f / %.2f tCO2e\n", est.Pools.Biomass, est.Pools.Soil, est.Pools.Litter)
	fmt.Fprintf(tw, "Cars removed:\t%d\n", est.Equivalencies.CarsRemoved)
	fmt.Fprintf(tw, "Trees planted:\t%d\n", est.Equivalencies.TreesPlanted)
	fmt.Fprintf(tw, "Coal avoided:\t%d lbs\n", est.Equivalencies.CoalAvoided)
	fmt.Fprintf(tw, "Homes powered:\t%d\n", est.Equivalencies.HomesPowered)
	fmt.Fprintf(tw, "\n%s\n", est.Disclaimer)
	return tw.Flush()
}
