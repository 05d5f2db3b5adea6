package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix seconds>,v1=<hex hmac>[,v1=...]".
const SignatureHeader = "Payment-Signature"

var (
	errSignatureMissing   = errors.New("signature header missing")
	errSignatureMalformed = errors.New("signature header malformed")
	errSignatureExpired   = errors.New("signature timestamp outside tolerance")
	errSignatureMismatch  = errors.New("no matching signature")
)

// Verifier checks HMAC-SHA256 signatures over "<t>.<payload>".
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Sign builds a header value for payload at t. Used by tests and the CLI.
func Sign(secret string, payload []byte, t time.Time) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac([]byte(secret), ts, payload))
}

func (v *Verifier) Verify(header string, payload []byte) error {
	if len(v.secret) == 0 {
		return errors.New("webhook secret not configured")
	}
	if header == "" {
		return errSignatureMissing
	}
	var ts string
	var sigs [][]byte
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = val
		case "v1":
			if sig, err := hex.DecodeString(val); err == nil {
				sigs = append(sigs, sig)
			}
		}
	}
	if ts == "" || len(sigs) == 0 {
		return errSignatureMalformed
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return errSignatureMalformed
	}
	if v.tolerance > 0 {
		age := v.now().Sub(time.Unix(unix, 0))
		if age > v.tolerance || age < -v.tolerance {
			return errSignatureExpired
		}
	}
	expected := mac(v.secret, ts, payload)
	for _, sig := range sigs {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return errSignatureMismatch
}

func mac(secret []byte, ts string, payload []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(ts))
	h.Write([]byte("."))
	h.Write(payload)
	return h.Sum(nil)
}
