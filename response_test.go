package lnurl

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/stretchr/testify/require"
)

const testPubKey = "03a0434d9e47f3c86235477c7b1ae6ae5d3442d49b1943c2b752a68" +
	"e2a47e247c7"

// testInvoice builds a structurally valid BOLT-11 style string.
func testInvoice(t *testing.T) string {
	t.Helper()

	data, err := bech32.ConvertBits([]byte("payload"), 8, 5, true)
	require.NoError(t, err)

	inv, err := bech32.Encode("lnbc20m", data)
	require.NoError(t, err)

	return inv
}

func TestClassifyError(t *testing.T) {
	resp, err := Classify(map[string]interface{}{
		"status": "ERROR",
		"reason": "something failed",
	})
	require.NoError(t, err)

	errResp, ok := resp.(*ErrorResponse)
	require.True(t, ok)
	require.False(t, errResp.OK())
	require.Equal(t, "something failed", errResp.ErrorMsg())

	// A missing reason fails classification.
	_, err = Classify(map[string]interface{}{"status": "ERROR"})
	require.Error(t, err)

	// As does a non-string status, whatever else is present.
	_, err = Classify(map[string]interface{}{
		"status": 5,
		"tag":    "payRequest",
	})
	require.Error(t, err)
}

// TestClassifyErrorNormalizesStatus asserts that a lowercase status is
// normalized to the uppercase form the protocol mandates, on every output
// path.
func TestClassifyErrorNormalizesStatus(t *testing.T) {
	resp, err := Classify(map[string]interface{}{
		"status": "error",
		"reason": "nope",
	})
	require.NoError(t, err)

	errResp, ok := resp.(*ErrorResponse)
	require.True(t, ok)
	require.Equal(t, "ERROR", errResp.Status)

	b, err := json.Marshal(errResp)
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"ERROR","reason":"nope"}`, string(b))
}

// TestClassifyPrecedence asserts that the error status wins over any tag
// present in the same payload.
func TestClassifyPrecedence(t *testing.T) {
	resp, err := Classify(map[string]interface{}{
		"status": "ERROR",
		"reason": "busted",
		"tag":    "payRequest",
	})
	require.NoError(t, err)

	_, ok := resp.(*ErrorResponse)
	require.True(t, ok)
}

func TestClassifySuccess(t *testing.T) {
	resp, err := Classify(map[string]interface{}{})
	require.NoError(t, err)

	succ, ok := resp.(*SuccessResponse)
	require.True(t, ok)
	require.True(t, succ.OK())

	b, err := json.Marshal(succ)
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"OK"}`, string(b))

	// An explicit OK status is fine too.
	_, err = Classify(map[string]interface{}{"status": "OK"})
	require.NoError(t, err)

	// Any other status value is not.
	_, err = Classify(map[string]interface{}{"status": "MAYBE"})
	require.Error(t, err)
}

func TestClassifyPay(t *testing.T) {
	resp, err := Classify(map[string]interface{}{
		"tag":         "payRequest",
		"callback":    "https://x.com/cb",
		"minSendable": float64(1000),
		"maxSendable": float64(2000),
		"metadata":    `[["text/plain","hi"]]`,
	})
	require.NoError(t, err)

	pay, ok := resp.(*PayResponse)
	require.True(t, ok)
	require.True(t, pay.OK())
	require.Equal(t, HttpsURL("https://x.com/cb"), pay.Callback)

	// The content hash must commit to the raw metadata string.
	digest := sha256.Sum256([]byte(`[["text/plain","hi"]]`))
	require.Equal(t, hex.EncodeToString(digest[:]), pay.H())

	require.Equal(t, btcutil.Amount(1), pay.MinSats())
	require.Equal(t, btcutil.Amount(2), pay.MaxSats())
}

// TestClassifyPayRange asserts the sendable bound invariant.
func TestClassifyPayRange(t *testing.T) {
	payload := func(min, max float64) map[string]interface{} {
		return map[string]interface{}{
			"tag":         "payRequest",
			"callback":    "https://x.com/cb",
			"minSendable": min,
			"maxSendable": max,
			"metadata":    `[["text/plain","hi"]]`,
		}
	}

	// max < min fails.
	_, err := Classify(payload(2000, 1000))
	require.Error(t, err)

	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	require.Equal(t, "maxSendable", valErr.Field)

	// Equal bounds succeed.
	_, err = Classify(payload(1500, 1500))
	require.NoError(t, err)
}

// TestSatConversions asserts the rounding directions: minimum bounds round
// up, maximum bounds round down.
func TestSatConversions(t *testing.T) {
	pay := &PayResponse{
		MinSendable: 1500,
		MaxSendable: 2999,
	}
	require.Equal(t, btcutil.Amount(2), pay.MinSats())
	require.Equal(t, btcutil.Amount(2), pay.MaxSats())

	withdraw := &WithdrawResponse{
		MinWithdrawable: 1000,
		MaxWithdrawable: 1999,
	}
	require.Equal(t, btcutil.Amount(1), withdraw.MinSats())
	require.Equal(t, btcutil.Amount(1), withdraw.MaxSats())
}

func TestClassifyWithdraw(t *testing.T) {
	resp, err := Classify(map[string]interface{}{
		// A stray status field on a tagged payload is dropped.
		"status":          "OK",
		"tag":             "withdrawRequest",
		"callback":        "https://x.com/withdraw",
		"k1":              "secret",
		"minWithdrawable": float64(1000),
		"maxWithdrawable": float64(5000),
	})
	require.NoError(t, err)

	wr, ok := resp.(*WithdrawResponse)
	require.True(t, ok)
	require.Equal(t, "secret", wr.K1)

	// defaultDescription defaults to the empty string but is still
	// present on the wire.
	b, err := json.Marshal(wr)
	require.NoError(t, err)
	require.Contains(t, string(b), `"defaultDescription":""`)
	require.NotContains(t, string(b), `"status"`)

	// The bound invariant holds here too.
	_, err = Classify(map[string]interface{}{
		"tag":             "withdrawRequest",
		"callback":        "https://x.com/withdraw",
		"k1":              "secret",
		"minWithdrawable": float64(5000),
		"maxWithdrawable": float64(1000),
	})
	require.Error(t, err)
}

func TestClassifyChannel(t *testing.T) {
	resp, err := Classify(map[string]interface{}{
		"tag":      "channelRequest",
		"uri":      testPubKey + "@127.0.0.1:9735",
		"callback": "https://x.com/channel",
		"k1":       "secret",
	})
	require.NoError(t, err)

	ch, ok := resp.(*ChannelResponse)
	require.True(t, ok)
	require.Equal(t, testPubKey, ch.URI.PubKey.String())
	require.Equal(t, 9735, ch.URI.Port)

	// A malformed node URI fails construction.
	_, err = Classify(map[string]interface{}{
		"tag":      "channelRequest",
		"uri":      "notanodeuri",
		"callback": "https://x.com/channel",
		"k1":       "secret",
	})
	require.Error(t, err)
}

func TestClassifyHostedChannel(t *testing.T) {
	resp, err := Classify(map[string]interface{}{
		"tag":   "hostedChannelRequest",
		"uri":   testPubKey + "@host.com:9735",
		"k1":    "secret",
		"alias": "hosted",
	})
	require.NoError(t, err)

	hc, ok := resp.(*HostedChannelResponse)
	require.True(t, ok)
	require.Equal(t, "hosted", hc.Alias)

	// The alias is optional.
	_, err = Classify(map[string]interface{}{
		"tag": "hostedChannelRequest",
		"uri": testPubKey + "@host.com:9735",
		"k1":  "secret",
	})
	require.NoError(t, err)
}

func TestClassifyUnknownTag(t *testing.T) {
	_, err := Classify(map[string]interface{}{"tag": "loginRequest"})
	require.ErrorIs(t, err, ErrUnknownTag)

	// Every classification failure is wrapped in the single boundary
	// type.
	var classErr *ClassificationError
	require.True(t, errors.As(err, &classErr))

	// The login tag is not part of the JSON dispatch table: auth
	// parameters travel in the decoded URL, not in a response body.
	_, err = Classify(map[string]interface{}{"tag": "login"})
	require.ErrorIs(t, err, ErrUnknownTag)
}

func TestClassifyPayAction(t *testing.T) {
	inv := testInvoice(t)

	for _, key := range []string{"successAction", "success_action"} {
		payload := map[string]interface{}{
			"pr": inv,
			key: map[string]interface{}{
				"tag":     "message",
				"message": "thanks!",
			},
		}

		resp, err := Classify(payload)
		require.NoError(t, err)

		action, ok := resp.(*PayActionResponse)
		require.True(t, ok)
		require.Equal(t, Invoice(inv), action.PR)
		require.NotNil(t, action.SuccessAction)
		require.Equal(t, "thanks!", action.SuccessAction.Message)

		// Routes must serialize as an empty array, not null.
		b, err := json.Marshal(action)
		require.NoError(t, err)
		require.Contains(t, string(b), `"routes":[]`)
	}

	// A pay action payload without an invoice fails.
	_, err := Classify(map[string]interface{}{
		"successAction": map[string]interface{}{"tag": "message"},
	})
	require.Error(t, err)

	// Without any success action key the payload falls through to the
	// bare success variant, even if an invoice is present.
	resp, err := Classify(map[string]interface{}{"pr": inv})
	require.NoError(t, err)

	_, ok := resp.(*SuccessResponse)
	require.True(t, ok)
}

// TestParseResponse runs the end to end example: raw JSON in, typed variant
// out.
func TestParseResponse(t *testing.T) {
	raw := `{
		"tag": "payRequest",
		"callback": "https://x.com/cb",
		"minSendable": 1000,
		"maxSendable": 2000,
		"metadata": "[[\"text/plain\",\"hi\"]]"
	}`

	resp, err := ParseResponse([]byte(raw))
	require.NoError(t, err)

	pay, ok := resp.(*PayResponse)
	require.True(t, ok)

	digest := sha256.Sum256([]byte(`[["text/plain","hi"]]`))
	require.Equal(t, hex.EncodeToString(digest[:]), pay.H())
	require.Equal(t, btcutil.Amount(1), pay.MinSats())
	require.Equal(t, btcutil.Amount(2), pay.MaxSats())

	// Non-JSON input fails with the classification boundary error.
	_, err = ParseResponse([]byte("not json"))
	require.Error(t, err)

	var classErr *ClassificationError
	require.True(t, errors.As(err, &classErr))
}

// TestMarshalAliases asserts that serialization always emits the protocol
// field names.
func TestMarshalAliases(t *testing.T) {
	pay := &PayResponse{
		Tag:         TagPay,
		Callback:    "https://x.com/cb",
		MinSendable: 1000,
		MaxSendable: 2000,
		Metadata:    `[["text/plain","hi"]]`,
	}

	b, err := json.Marshal(pay)
	require.NoError(t, err)
	require.Contains(t, string(b), `"minSendable":1000`)
	require.Contains(t, string(b), `"maxSendable":2000`)
	require.Contains(t, string(b), `"tag":"payRequest"`)

	auth := &AuthResponse{
		Tag:      TagAuth,
		Callback: "https://x.com/auth",
		K1:       "secret",
	}

	b, err = json.Marshal(auth)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"tag": "login",
		"callback": "https://x.com/auth",
		"k1": "secret"
	}`, string(b))
}
