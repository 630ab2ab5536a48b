package lnurl

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/routing/route"
)

// HttpsURL is a URL that a wallet may safely fetch: it must use the https
// scheme, except for Tor hidden services (.onion hosts) which may use plain
// http since the transport is already encrypted end to end.
type HttpsURL string

// NewHttpsURL validates rawurl and returns it as an HttpsURL.
func NewHttpsURL(rawurl string) (HttpsURL, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", &ValidationError{
			Field:  "url",
			Reason: err.Error(),
		}
	}

	if u.Host == "" {
		return "", &ValidationError{
			Field:  "url",
			Reason: "missing host",
		}
	}

	switch u.Scheme {
	case "https":

	case "http":
		if !strings.HasSuffix(u.Hostname(), ".onion") {
			return "", &ValidationError{
				Field:  "url",
				Reason: "http is only allowed for .onion hosts",
			}
		}

	default:
		return "", &ValidationError{
			Field: "url",
			Reason: fmt.Sprintf("unsupported scheme '%s'",
				u.Scheme),
		}
	}

	return HttpsURL(rawurl), nil
}

func (h HttpsURL) String() string {
	return string(h)
}

func (h *HttpsURL) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	validated, err := NewHttpsURL(s)
	if err != nil {
		return err
	}

	*h = validated
	return nil
}

// Invoice is a BOLT-11 payment request. Construction only checks the
// structure of the encoding (a valid bech32 string with an 'ln' prefixed
// human-readable part); it does not verify the embedded signature. Callers
// that need the full invoice contents should decode it with zpay32.
type Invoice string

// NewInvoice validates pr and returns it as an Invoice.
func NewInvoice(pr string) (Invoice, error) {
	hrp, _, err := bech32.DecodeNoLimit(pr)
	if err != nil {
		return "", &ValidationError{
			Field:  "pr",
			Reason: err.Error(),
		}
	}

	if !strings.HasPrefix(hrp, "ln") {
		return "", &ValidationError{
			Field: "pr",
			Reason: fmt.Sprintf("'%s' is not a lightning "+
				"invoice prefix", hrp),
		}
	}

	return Invoice(pr), nil
}

func (i Invoice) String() string {
	return string(i)
}

func (i *Invoice) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	validated, err := NewInvoice(s)
	if err != nil {
		return err
	}

	*i = validated
	return nil
}

// NodeURI is the connection string of a lightning node, of the form
// <33-byte-hex-pubkey>@<host>:<port>.
type NodeURI struct {
	PubKey route.Vertex
	Host   string
	Port   int
}

// NewNodeURI parses and validates a node connection string.
func NewNodeURI(s string) (NodeURI, error) {
	parts := strings.SplitN(s, "@", 2)
	if len(parts) != 2 {
		return NodeURI{}, &ValidationError{
			Field:  "uri",
			Reason: "expected the form <pubkey>@<host>:<port>",
		}
	}

	pubKey, err := route.NewVertexFromStr(parts[0])
	if err != nil {
		return NodeURI{}, &ValidationError{
			Field:  "uri",
			Reason: fmt.Sprintf("invalid node pubkey: %v", err),
		}
	}

	host, portStr, err := net.SplitHostPort(parts[1])
	if err != nil {
		return NodeURI{}, &ValidationError{
			Field:  "uri",
			Reason: err.Error(),
		}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return NodeURI{}, &ValidationError{
			Field:  "uri",
			Reason: fmt.Sprintf("invalid port '%s'", portStr),
		}
	}

	return NodeURI{
		PubKey: pubKey,
		Host:   host,
		Port:   port,
	}, nil
}

func (n NodeURI) String() string {
	return fmt.Sprintf(
		"%s@%s", n.PubKey,
		net.JoinHostPort(n.Host, strconv.Itoa(n.Port)),
	)
}

func (n NodeURI) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

func (n *NodeURI) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	uri, err := NewNodeURI(s)
	if err != nil {
		return err
	}

	*n = uri
	return nil
}

// Metadata is the raw metadata string of a payRequest: a JSON encoded array
// of [type, content] pairs. It is kept in its raw string form since the
// invoice returned by the service commits to the sha256 hash of these exact
// bytes.
type Metadata string

// NewMetadata validates s and returns it as Metadata. At least one
// text/plain entry must be present.
func NewMetadata(s string) (Metadata, error) {
	var entries [][2]string
	if err := json.Unmarshal([]byte(s), &entries); err != nil {
		return "", &ValidationError{
			Field:  "metadata",
			Reason: err.Error(),
		}
	}

	for _, entry := range entries {
		if entry[0] == "text/plain" {
			return Metadata(s), nil
		}
	}

	return "", &ValidationError{
		Field:  "metadata",
		Reason: "missing required text/plain entry",
	}
}

// List returns the metadata as [type, content] pairs.
func (m Metadata) List() [][2]string {
	// The string was validated at construction.
	var entries [][2]string
	_ = json.Unmarshal([]byte(m), &entries)

	return entries
}

// Text returns the content of the first text/plain entry.
func (m Metadata) Text() string {
	for _, entry := range m.List() {
		if entry[0] == "text/plain" {
			return entry[1]
		}
	}

	return ""
}

// Hash returns the sha256 hash of the raw metadata string. A pay invoice is
// valid only if its description hash equals this value.
func (m Metadata) Hash() lntypes.Hash {
	return lntypes.Hash(sha256.Sum256([]byte(m)))
}

func (m Metadata) String() string {
	return string(m)
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	validated, err := NewMetadata(s)
	if err != nil {
		return err
	}

	*m = validated
	return nil
}
