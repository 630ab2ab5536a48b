package lnurl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
)

// Tag identifies the LNURL sub-protocol a tagged response belongs to.
type Tag string

const (
	TagAuth          Tag = "login"
	TagChannel       Tag = "channelRequest"
	TagHostedChannel Tag = "hostedChannelRequest"
	TagPay           Tag = "payRequest"
	TagWithdraw      Tag = "withdrawRequest"
)

const (
	statusOK    = "OK"
	statusError = "ERROR"
)

// Response is one variant of the closed set of LNURL response payloads.
// Every variant serializes with the protocol's camelCase field names.
type Response interface {
	// OK reports whether the response is a non-error response. It is
	// false exactly for the ErrorResponse variant.
	OK() bool
}

// ErrorResponse reports a failed request.
type ErrorResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// NewErrorResponse constructs an ErrorResponse with the given reason.
func NewErrorResponse(reason string) *ErrorResponse {
	return &ErrorResponse{
		Status: statusError,
		Reason: reason,
	}
}

func (r *ErrorResponse) OK() bool {
	return false
}

// ErrorMsg returns the service supplied failure reason.
func (r *ErrorResponse) ErrorMsg() string {
	return r.Reason
}

// SuccessResponse is the bare acknowledgement payload.
type SuccessResponse struct {
	Status string `json:"status"`
}

// NewSuccessResponse constructs the bare {"status":"OK"} response.
func NewSuccessResponse() *SuccessResponse {
	return &SuccessResponse{Status: statusOK}
}

func (r *SuccessResponse) OK() bool {
	return true
}

// AuthResponse is the LNURL-auth payload. Note that auth parameters are
// normally carried in the query string of the decoded URL rather than in a
// JSON body, so Classify never produces this variant; it exists for callers
// constructing or emitting auth responses directly.
type AuthResponse struct {
	Tag      Tag      `json:"tag"`
	Callback HttpsURL `json:"callback"`
	K1       string   `json:"k1"`
}

func (r *AuthResponse) OK() bool {
	return true
}

// ChannelResponse asks the wallet to open a connection to the node at URI
// and wait for an incoming channel.
type ChannelResponse struct {
	Tag Tag `json:"tag"`

	// URI is the node to connect to, of the form pubkey@host:port.
	URI NodeURI `json:"uri"`

	// Callback is the URL to hit once the wallet is ready for the
	// incoming channel.
	Callback HttpsURL `json:"callback"`

	// K1 is the secret to pass back to the callback.
	K1 string `json:"k1"`
}

func (r *ChannelResponse) OK() bool {
	return true
}

func (r *ChannelResponse) validate() error {
	if r.URI.Host == "" {
		return &ValidationError{
			Field:  "uri",
			Reason: "missing required field",
		}
	}
	if r.Callback == "" {
		return &ValidationError{
			Field:  "callback",
			Reason: "missing required field",
		}
	}
	if r.K1 == "" {
		return &ValidationError{
			Field:  "k1",
			Reason: "missing required field",
		}
	}

	return nil
}

// HostedChannelResponse asks the wallet to request a hosted channel from the
// node at URI.
type HostedChannelResponse struct {
	Tag   Tag     `json:"tag"`
	URI   NodeURI `json:"uri"`
	K1    string  `json:"k1"`
	Alias string  `json:"alias,omitempty"`
}

func (r *HostedChannelResponse) OK() bool {
	return true
}

func (r *HostedChannelResponse) validate() error {
	if r.URI.Host == "" {
		return &ValidationError{
			Field:  "uri",
			Reason: "missing required field",
		}
	}
	if r.K1 == "" {
		return &ValidationError{
			Field:  "k1",
			Reason: "missing required field",
		}
	}

	return nil
}

// PayResponse advertises the amount bounds within which the service will
// issue an invoice.
type PayResponse struct {
	Tag Tag `json:"tag"`

	// Callback is the URL which will accept the pay request parameters.
	Callback HttpsURL `json:"callback"`

	// MinSendable is the min amount the service is willing to receive,
	// can not be less than 1 or more than MaxSendable.
	MinSendable lnwire.MilliSatoshi `json:"minSendable"`

	// MaxSendable is the max amount the service is willing to receive.
	MaxSendable lnwire.MilliSatoshi `json:"maxSendable"`

	// Metadata must be kept as the raw string received from the service,
	// it is required to pass invoice verification at a later step.
	Metadata Metadata `json:"metadata"`
}

func (r *PayResponse) OK() bool {
	return true
}

// H is the hex encoded sha256 hash of the raw metadata string. The invoice
// returned by the callback must carry this value as its description hash.
func (r *PayResponse) H() string {
	return r.Metadata.Hash().String()
}

// MinSats is MinSendable expressed in whole satoshis, rounded up.
func (r *PayResponse) MinSats() btcutil.Amount {
	return msatCeil(r.MinSendable)
}

// MaxSats is MaxSendable expressed in whole satoshis, rounded down.
func (r *PayResponse) MaxSats() btcutil.Amount {
	return r.MaxSendable.ToSatoshis()
}

func (r *PayResponse) validate() error {
	if r.Callback == "" {
		return &ValidationError{
			Field:  "callback",
			Reason: "missing required field",
		}
	}
	if r.Metadata == "" {
		return &ValidationError{
			Field:  "metadata",
			Reason: "missing required field",
		}
	}
	if r.MinSendable < 1 {
		return &ValidationError{
			Field:  "minSendable",
			Reason: "must be at least 1 millisatoshi",
		}
	}
	if r.MaxSendable < r.MinSendable {
		return &ValidationError{
			Field:  "maxSendable",
			Reason: "maxSendable cannot be less than minSendable",
		}
	}

	return nil
}

// SuccessAction describes what a wallet should show the user once the pay
// invoice settles.
type SuccessAction struct {
	Tag         string `json:"tag,omitempty"`
	Message     string `json:"message,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Ciphertext  string `json:"ciphertext,omitempty"`
	IV          string `json:"iv,omitempty"`
}

// PayActionResponse carries the invoice issued by a payRequest callback.
type PayActionResponse struct {
	// PR is the bech32 serialized lightning invoice.
	PR Invoice `json:"pr"`

	SuccessAction *SuccessAction `json:"successAction,omitempty"`

	// Routes is kept raw; route hints are opaque to this layer.
	Routes []json.RawMessage `json:"routes"`
}

func (r *PayActionResponse) OK() bool {
	return true
}

func (r *PayActionResponse) validate() error {
	if r.PR == "" {
		return &ValidationError{
			Field:  "pr",
			Reason: "missing required field",
		}
	}

	// The wire form is an empty array, never null.
	if r.Routes == nil {
		r.Routes = []json.RawMessage{}
	}

	return nil
}

// WithdrawResponse advertises the amount bounds within which the service
// will pay an invoice supplied by the wallet.
type WithdrawResponse struct {
	Tag      Tag      `json:"tag"`
	Callback HttpsURL `json:"callback"`
	K1       string   `json:"k1"`

	// MinWithdrawable is the min amount the service is willing to pay.
	MinWithdrawable lnwire.MilliSatoshi `json:"minWithdrawable"`

	// MaxWithdrawable is the max amount the service is willing to pay.
	MaxWithdrawable lnwire.MilliSatoshi `json:"maxWithdrawable"`

	// DefaultDescription is a default invoice memo the wallet may show.
	DefaultDescription string `json:"defaultDescription"`
}

func (r *WithdrawResponse) OK() bool {
	return true
}

// MinSats is MinWithdrawable expressed in whole satoshis, rounded up.
func (r *WithdrawResponse) MinSats() btcutil.Amount {
	return msatCeil(r.MinWithdrawable)
}

// MaxSats is MaxWithdrawable expressed in whole satoshis, rounded down.
func (r *WithdrawResponse) MaxSats() btcutil.Amount {
	return r.MaxWithdrawable.ToSatoshis()
}

func (r *WithdrawResponse) validate() error {
	if r.Callback == "" {
		return &ValidationError{
			Field:  "callback",
			Reason: "missing required field",
		}
	}
	if r.K1 == "" {
		return &ValidationError{
			Field:  "k1",
			Reason: "missing required field",
		}
	}
	if r.MaxWithdrawable < r.MinWithdrawable {
		return &ValidationError{
			Field: "maxWithdrawable",
			Reason: "maxWithdrawable cannot be less than " +
				"minWithdrawable",
		}
	}

	return nil
}

// Classify resolves a JSON decoded payload to exactly one Response variant.
// The dispatch order is part of the protocol contract:
//
//  1. a payload whose status is ERROR (in any letter case) is an
//     ErrorResponse, even if other discriminators are present,
//  2. a tagged payload dispatches on its tag, with any stray status field
//     dropped first (some services include one, the protocol does not),
//  3. a payload carrying a successAction (or success_action) key is a
//     PayActionResponse,
//  4. anything else is the bare SuccessResponse.
//
// The payload map may be modified during classification. All failures are
// returned as a *ClassificationError; the cause chain remains inspectable
// with errors.Is and errors.As.
func Classify(payload map[string]interface{}) (Response, error) {
	resp, err := classify(payload)
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}

	return resp, nil
}

// ParseResponse JSON decodes raw and classifies the result.
func ParseResponse(raw []byte) (Response, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &ClassificationError{Err: err}
	}

	return Classify(payload)
}

func classify(payload map[string]interface{}) (Response, error) {
	status, hasStatus := payload["status"]
	if hasStatus {
		s, ok := status.(string)
		if !ok {
			return nil, &ValidationError{
				Field:  "status",
				Reason: "must be a string",
			}
		}

		if strings.EqualFold(s, statusError) {
			// Some services return the status in lowercase, the
			// protocol says uppercase.
			payload["status"] = statusError

			reason, ok := payload["reason"].(string)
			if !ok {
				return nil, &ValidationError{
					Field:  "reason",
					Reason: "missing required field",
				}
			}

			return NewErrorResponse(reason), nil
		}
	}

	if tagVal, hasTag := payload["tag"]; hasTag {
		// Some services include a status field on tagged responses,
		// the protocol does not.
		delete(payload, "status")

		tag, ok := tagVal.(string)
		if !ok {
			return nil, &ValidationError{
				Field:  "tag",
				Reason: "must be a string",
			}
		}

		var resp interface {
			Response
			validate() error
		}
		switch Tag(tag) {
		case TagChannel:
			resp = &ChannelResponse{}
		case TagHostedChannel:
			resp = &HostedChannelResponse{}
		case TagPay:
			resp = &PayResponse{}
		case TagWithdraw:
			resp = &WithdrawResponse{}
		default:
			return nil, fmt.Errorf("%w: '%s'", ErrUnknownTag, tag)
		}

		if err := unmarshalInto(payload, resp); err != nil {
			return nil, err
		}
		if err := resp.validate(); err != nil {
			return nil, err
		}

		return resp, nil
	}

	if _, ok := payload["success_action"]; ok {
		// Accept the snake_case spelling some services emit and
		// normalize it to the wire name.
		if _, ok := payload["successAction"]; !ok {
			payload["successAction"] = payload["success_action"]
		}
		delete(payload, "success_action")
	}

	if _, ok := payload["successAction"]; ok {
		resp := &PayActionResponse{}
		if err := unmarshalInto(payload, resp); err != nil {
			return nil, err
		}
		if err := resp.validate(); err != nil {
			return nil, err
		}

		return resp, nil
	}

	if hasStatus {
		s := payload["status"].(string)
		if s != statusOK {
			return nil, &ValidationError{
				Field:  "status",
				Reason: fmt.Sprintf("unexpected value '%s'", s),
			}
		}
	}

	return NewSuccessResponse(), nil
}

// unmarshalInto re-encodes a decoded JSON payload into a concrete variant so
// that each field passes through its type's validating UnmarshalJSON.
func unmarshalInto(payload map[string]interface{}, v interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, v)
}

// msatCeil converts a millisatoshi amount to whole satoshis, rounding up.
func msatCeil(msat lnwire.MilliSatoshi) btcutil.Amount {
	sats := msat.ToSatoshis()
	if msat%1000 != 0 {
		sats++
	}

	return sats
}
