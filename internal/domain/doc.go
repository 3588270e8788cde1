// Package domain models Australian flood-warning bulletins and the region
// reference data used to query them.
//
// # Data Source
//
// The warning service exposes two reads: a list of active warning IDs per
// state ("?state=QLD") and a detail document per ID ("/warning/IDQ10090").
// Detail documents carry the bulletin as one free-text field plus issue and
// expiry stamps:
//
//	{"productType":"...","service":"...","issueTimeUtc":"2024-01-01T02:00:00Z",
//	 "expiryTime":"...","text":"IDQ10090\n...\nHeadline\n..."}
//
// # Bulletin Layout
//
// Bulletins begin with four lines of product header (ID, issuing office,
// product name, blank). Line 4 carries the headline. It is followed by an
// optional preamble before the body:
//
//	12:00pm Monday on Monday 1 January 2024   issue stamp
//	Forecast for South East Coast             forecast header
//	Fire Danger: High                         fire danger rating
//	Sun protection recommended from ...       UV advice
//
// [ParseBulletin] skips those to find the description. Bulletins that do not
// follow the layout fall back to "first line is the headline"; the parser
// never fails, so a malformed bulletin still renders. Product types with a
// different layout can register their own parser in [Parsers].
//
// # Ordering
//
// Warnings display newest first by issue time. Unknown or unparseable issue
// times rank behind every dated warning, and ties keep
// the order the service listed them in. See [Order].
//
// # Regions
//
// The eight states and territories ship as embedded YAML with approximate
// bounding boxes. Boxes overlap near borders, so [RegionResolver] tests the
// smallest box first.
package domain
