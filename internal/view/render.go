// Package view renders session state as plain terminal text.
package view

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/floodwatch/internal/domain"
	"github.com/couchcryptid/floodwatch/internal/session"
)

const (
	issuedLayout = "02 Jan 2006 15:04 MST"
	unknownTime  = "unknown"
)

// FormatIssued returns the issue time of w for display, or "unknown" when
// it cannot be parsed.
func FormatIssued(w domain.ParsedWarning) string {
	return formatTimestamp(w.IssuedAt)
}

func formatTimestamp(s string) string {
	t, ok := domain.ParseTimestamp(s)
	if !ok {
		return unknownTime
	}
	return t.UTC().Format(issuedLayout)
}

// RenderList writes the warning list of v, one row per ID in display order.
// Warnings still loading or whose fetch failed are shown by ID only.
func RenderList(w io.Writer, v session.View, regions []domain.Region) error {
	if v.RegionCode == "" {
		_, err := fmt.Fprintln(w, "No region selected.")
		return err
	}

	name := v.RegionCode
	if r, ok := domain.FindRegion(regions, v.RegionCode); ok && r.Name != "" {
		name = fmt.Sprintf("%s (%s)", r.Name, r.Code)
	}
	if _, err := fmt.Fprintf(w, "Flood warnings for %s\n", name); err != nil {
		return err
	}

	if v.ListErr != nil {
		_, err := fmt.Fprintf(w, "Could not load warnings: %v\n", v.ListErr)
		return err
	}
	if !v.Loaded {
		_, err := fmt.Fprintln(w, "Loading...")
		return err
	}
	if len(v.WarningIDs) == 0 {
		_, err := fmt.Fprintln(w, "No active flood warnings.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, id := range v.WarningIDs {
		if pw, ok := v.Warnings[id]; ok {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", id, FormatIssued(pw), pw.Headline)
			continue
		}
		if err, ok := v.FetchErrors[id]; ok {
			fmt.Fprintf(tw, "%s\t%s\t(failed: %v)\n", id, unknownTime, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t(loading)\n", id, unknownTime)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if v.Pending > 0 {
		if _, err := fmt.Fprintf(w, "%d warning(s) still loading.\n", v.Pending); err != nil {
			return err
		}
	}
	return nil
}

// RenderDetail writes the detail view of one warning. A nil warning renders
// nothing.
func RenderDetail(w io.Writer, pw *domain.ParsedWarning) error {
	if pw == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", pw.Headline)
	fmt.Fprintf(&b, "Issued: %s\n", FormatIssued(*pw))
	if pw.ExpiryTime != "" {
		fmt.Fprintf(&b, "Expires: %s\n", formatTimestamp(pw.ExpiryTime))
	}
	fmt.Fprintf(&b, "ID: %s\n", pw.ID)
	if pw.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", pw.Description)
	}
	if pw.FullText != "" {
		fmt.Fprintf(&b, "\n--- Full bulletin ---\n%s\n", strings.TrimRight(pw.FullText, "\n"))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderRegions writes the known regions and their marker positions.
func RenderRegions(w io.Writer, regions []domain.Region) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range regions {
		marker := "-"
		if r.Marker != nil {
			marker = fmt.Sprintf("%.4f,%.4f", r.Marker.Lat, r.Marker.Lng)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Code, r.Name, marker)
	}
	return tw.Flush()
}

// RenderCounts writes the per-region warning counts; unknown counts show "?".
func RenderCounts(w io.Writer, counts []session.RegionCount) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range counts {
		n := "?"
		if c.Count >= 0 {
			n = fmt.Sprint(c.Count)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Region.Code, c.Region.Name, n)
	}
	return tw.Flush()
}

// RenderRefresh writes a one-line summary of a watch-mode refresh.
func RenderRefresh(w io.Writer, at time.Time, v session.View) error {
	_, err := fmt.Fprintf(w, "[%s] %s: %d warning(s), %d loading, %d failed\n",
		at.UTC().Format(time.RFC3339), v.RegionCode, len(v.WarningIDs), v.Pending, len(v.FetchErrors))
	return err
}
