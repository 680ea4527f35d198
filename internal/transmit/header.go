// Package transmit disseminates formatted climate products: NWWS products go
// to the local text archive or the OUP spool, NWR products are copied to the
// radio console directory, and every sent product is recorded.
package transmit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultNode is the AFOS routing node used when a header names none.
const DefaultNode = "DEF"

// ErrBadHeader reports a product whose communication header cannot be parsed.
var ErrBadHeader = errors.New("transmit: communication header has a wrong format")

// Header is the communication header line of an NWWS product, e.g.
//
//	OMACLMOAX 000 CDUS43 KOAX 011200
type Header struct {
	AFOSID string
	Node   string
	TTAAII string
	CCCC   string
	DDHHMM string
}

// IsLocal reports whether the product is for local use only and is stored
// instead of disseminated.
func (h Header) IsLocal() bool {
	return h.Node == "000" || h.Node == "LOC"
}

// Origin returns the AFOS originating site (CCC).
func (h Header) Origin() string {
	if len(h.AFOSID) < 3 {
		return h.AFOSID
	}
	return h.AFOSID[:3]
}

// ParseProduct splits product text into its communication header and the
// remaining body.
func ParseProduct(text string) (Header, string, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	first, body, _ := strings.Cut(text, "\n")
	h, err := ParseHeader(first)
	if err != nil {
		return Header{}, "", err
	}
	return h, body, nil
}

// ParseHeader parses a communication header line. The AFOS node may be
// separated from the nine character AFOS ID by a space or run on directly;
// the WMO TTAAII may also run on after the node.
func ParseHeader(line string) (Header, error) {
	f := strings.Fields(strings.ToUpper(line))
	if len(f) < 3 {
		return Header{}, fmt.Errorf("%w: %q", ErrBadHeader, line)
	}
	var h Header
	h.DDHHMM = f[len(f)-1]

	rest := f[1:]
	switch id := f[0]; {
	case len(id) > 12:
		// OMACLMOAX000CDUS43 KOAX 011200
		h.AFOSID, h.Node, h.TTAAII = id[:9], id[9:12], id[12:min(len(id), 18)]
		h.CCCC = rest[0]
	case len(id) > 9:
		h.AFOSID, h.Node = id[:9], id[9:]
		h.TTAAII, h.CCCC = wmo(rest)
	default:
		h.AFOSID = id
		if len(rest[0]) <= 3 && len(rest) >= 2 {
			h.Node = rest[0]
			rest = rest[1:]
		}
		h.TTAAII, h.CCCC = wmo(rest)
	}
	if len(h.AFOSID) < 4 {
		return Header{}, fmt.Errorf("%w: %q", ErrBadHeader, line)
	}
	if h.Node == "" {
		h.Node = DefaultNode
	}
	return h, nil
}

func wmo(f []string) (string, string) {
	if len(f) >= 3 {
		return f[0], f[1]
	}
	return "", ""
}

// LocalText prepends the AFOS message header stored with local products.
func LocalText(h Header, site, body string, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", h.AFOSID, h.Node)
	fmt.Fprintf(&sb, "TTAA00 %s %s\n", site, now.UTC().Format("021504"))
	sb.WriteString(body)
	return sb.String()
}
