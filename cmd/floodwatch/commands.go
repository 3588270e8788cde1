package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/floodwatch/internal/domain"
	"github.com/couchcryptid/floodwatch/internal/session"
	"github.com/couchcryptid/floodwatch/internal/view"
	"github.com/spf13/cobra"
)

func newRegionsCmd(a *app) *cobra.Command {
	var withCounts bool

	cmd := &cobra.Command{
		Use:   "regions",
		Short: "List the known regions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !withCounts {
				return view.RenderRegions(cmd.OutOrStdout(), a.regions)
			}
			counts := session.CountWarnings(cmd.Context(), a.client, a.regions, a.logger)
			return view.RenderCounts(cmd.OutOrStdout(), counts)
		},
	}
	cmd.Flags().BoolVarP(&withCounts, "counts", "c", false, "Show the number of active warnings per region")
	return cmd
}

func newWarningsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "warnings [REGION]",
		Short: "List active flood warnings for a region, newest first",
		Long: `List active flood warnings for a region, newest first. Without a region
the one containing HOME_LAT/HOME_LNG is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			region, err := a.regionFromArgs(ctx, args)
			if err != nil {
				return err
			}

			sess := a.newSession()
			defer sess.Close()

			if err := sess.SelectRegion(ctx, region); err != nil {
				a.logger.Error("failed to list warnings", "region", region, "error", err)
			} else {
				a.waitForDetails(ctx, sess)
			}
			return view.RenderList(cmd.OutOrStdout(), sess.View(), a.regions)
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one warning bulletin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := domain.WarningID(args[0])

			if region == "" {
				raw, err := a.client.WarningDetail(ctx, id)
				if err != nil {
					return fmt.Errorf("fetch warning %s: %w", id, err)
				}
				w := a.parsers.Parse(raw, id)
				return view.RenderDetail(cmd.OutOrStdout(), &w)
			}

			code, err := lookupRegion(a.regions, region)
			if err != nil {
				return err
			}
			sess := a.newSession()
			defer sess.Close()

			if err := sess.SelectRegion(ctx, code); err != nil {
				return err
			}
			// Listed warnings resolve in the background; opening one afterwards
			// is served from the region cache.
			a.waitForDetails(ctx, sess)
			w, err := sess.OpenWarning(ctx, id)
			if err != nil {
				return err
			}
			return view.RenderDetail(cmd.OutOrStdout(), &w)
		},
	}
	cmd.Flags().StringVarP(&region, "region", "r", "", "Open the warning within this region's session")
	return cmd
}

func newLocateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "locate LAT LNG",
		Short: "Resolve a position to the region containing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parseCoordinates(args[0], args[1])
			if err != nil {
				return err
			}
			code, ok := a.resolver.Resolve(pos.Lat, pos.Lng)
			if !ok {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No region contains that position.")
				return err
			}
			r, _ := domain.FindRegion(a.regions, code)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Code, r.Name)
			return err
		},
	}
}

// waitForDetails blocks until the session's background fetches finish or
// FETCH_WAIT elapses, whichever is first.
func (a *app) waitForDetails(ctx context.Context, sess *session.Session) {
	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.FetchWait)
	defer cancel()
	if err := sess.Wait(waitCtx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("warning details still loading", "wait", a.cfg.FetchWait, "error", err)
	}
}

func lookupRegion(regions []domain.Region, arg string) (string, error) {
	r, ok := domain.FindRegion(regions, arg)
	if !ok {
		return "", fmt.Errorf("unknown region %q; expected one of %s", arg, regionCodes(regions))
	}
	return r.Code, nil
}

func regionCodes(regions []domain.Region) string {
	codes := make([]string, len(regions))
	for i, r := range regions {
		codes[i] = r.Code
	}
	return strings.Join(codes, ", ")
}

func parseCoordinates(latArg, lngArg string) (domain.Coordinates, error) {
	lat, err := strconv.ParseFloat(latArg, 64)
	if err != nil || lat < -90 || lat > 90 {
		return domain.Coordinates{}, fmt.Errorf("invalid latitude %q", latArg)
	}
	lng, err := strconv.ParseFloat(lngArg, 64)
	if err != nil || lng < -180 || lng > 180 {
		return domain.Coordinates{}, fmt.Errorf("invalid longitude %q", lngArg)
	}
	return domain.Coordinates{Lat: lat, Lng: lng}, nil
}
