package domain

import (
	"context"
	"log/slog"
	"strings"
)

// Address is a street address resolved for a coordinate.
type Address struct {
	Full     string `json:"full"`
	Street   string `json:"street,omitempty"`
	Place    string `json:"place,omitempty"`
	Region   string `json:"region,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// AddressResolver looks up the street address nearest to a position.
// An empty Address with a nil error means nothing was found.
type AddressResolver interface {
	ResolveAddress(ctx context.Context, pos Position) (Address, error)
}

// addressOf joins the postal address columns of a row, e.g.
// "1 Main St, Albany, NY 12207". Returns "" when the street is absent.
func addressOf(row Row) string {
	street, ok := Pick(row, "Address")
	if !ok {
		return ""
	}
	parts := []string{street}
	if city, ok := Pick(row, "City"); ok {
		parts = append(parts, city)
	}
	state, hasState := Pick(row, "State")
	zip, hasZip := Pick(row, "postalCode")
	switch {
	case hasState && hasZip:
		parts = append(parts, state+" "+zip)
	case hasState:
		parts = append(parts, state)
	case hasZip:
		parts = append(parts, zip)
	}
	return strings.Join(parts, ", ")
}

// resolveAddress falls back to the resolver when the row carries no street
// address. Lookup failures degrade to an empty address.
func resolveAddress(ctx context.Context, row Row, pos Position, resolver AddressResolver, logger *slog.Logger) string {
	if addr := addressOf(row); addr != "" {
		return addr
	}
	if resolver == nil {
		return ""
	}
	addr, err := resolver.ResolveAddress(ctx, pos)
	if err != nil {
		logger.Warn("address lookup failed",
			"lat", pos.Lat,
			"lon", pos.Lon,
			"error", err,
		)
		return ""
	}
	return addr.Full
}
