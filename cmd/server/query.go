package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/atharv3903/towdispatch/internal/api"
)

var (
	orderID              int64
	areaID, srcID, dstID int64
)

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Find the nearest available tow truck for one order",
	RunE:  runNearest,
}

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Print the road distance between two nodes of an area",
	RunE:  runDistance,
}

func init() {
	nearestCmd.Flags().Int64Var(&orderID, "order", 0, "order id")
	_ = nearestCmd.MarkFlagRequired("order")

	distanceCmd.Flags().Int64Var(&areaID, "area", 0, "area id")
	distanceCmd.Flags().Int64Var(&srcID, "src", 0, "source node id")
	distanceCmd.Flags().Int64Var(&dstID, "dst", 0, "destination node id")
	for _, f := range []string{"area", "src", "dst"} {
		_ = distanceCmd.MarkFlagRequired(f)
	}

	rootCmd.AddCommand(nearestCmd, distanceCmd)
}

func runNearest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), "nearest")
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.selector.NearestAvailable(cmd.Context(), orderID)
	if err != nil {
		return err
	}
	return printJSON(api.NearestResponse(res))
}

func runDistance(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), "distance")
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.selector.Distance(cmd.Context(), areaID, srcID, dstID)
	if err != nil {
		return err
	}
	return printJSON(api.DistanceResponse(areaID, srcID, dstID, d))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
