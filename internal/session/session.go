// Package session re-implements the chat platform's mini-app initData
// HMAC scheme (§4.4 step 2), binding a verification-page submission to a
// user identity that cannot be forged by the client.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MaxAuthAge is the freshness window for auth_date (§4.4 step 2).
const MaxAuthAge = 600 * time.Second

var (
	ErrMissingHash     = errors.New("session: initData missing hash")
	ErrMissingAuthDate = errors.New("session: initData missing auth_date")
	ErrExpired         = errors.New("session: initData auth_date too old")
	ErrHashMismatch    = errors.New("session: initData hash mismatch")
	ErrMissingUser     = errors.New("session: initData missing user")
)

// Attestation is the verified identity extracted from an initData blob.
type Attestation struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}

// Verifier checks initData blobs against the bot's token.
type Verifier struct {
	botToken string
	now      func() time.Time
}

// New constructs a Verifier keyed by botToken.
func New(botToken string) *Verifier {
	return &Verifier{botToken: botToken, now: time.Now}
}

// Verify parses, HMAC-checks, and decodes raw (a URL-encoded initData
// string) per the exact algorithm of §4.4 step 2:
//
//  1. Parse URL-encoded parameters. Extract and remove hash; keep all others.
//  2. Require auth_date; reject if now−auth_date > 600s.
//  3. Build the data-check string: key=value pairs joined by "\n", sorted
//     by key ascending.
//  4. secret_key = HMAC_SHA256(key="WebAppData", data=bot_token);
//     calc = HMAC_SHA256(key=secret_key, data=data_check_string), hex.
//  5. Compare against hash in constant time.
func (v *Verifier) Verify(_ context.Context, raw string) (Attestation, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return Attestation{}, err
	}

	hash := values.Get("hash")
	if hash == "" {
		return Attestation{}, ErrMissingHash
	}
	values.Del("hash")

	authDateStr := values.Get("auth_date")
	if authDateStr == "" {
		return Attestation{}, ErrMissingAuthDate
	}
	authDate, err := strconv.ParseInt(authDateStr, 10, 64)
	if err != nil {
		return Attestation{}, ErrMissingAuthDate
	}
	if v.now().Sub(time.Unix(authDate, 0)) > MaxAuthAge {
		return Attestation{}, ErrExpired
	}

	dataCheckString := buildDataCheckString(values)

	secretKey := hmacSHA256([]byte("WebAppData"), []byte(v.botToken))
	calc := hex.EncodeToString(hmacSHA256(secretKey, []byte(dataCheckString)))

	if !hmac.Equal([]byte(calc), []byte(hash)) {
		return Attestation{}, ErrHashMismatch
	}

	userRaw := values.Get("user")
	if userRaw == "" {
		return Attestation{}, ErrMissingUser
	}
	var u struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.Unmarshal([]byte(userRaw), &u); err != nil {
		return Attestation{}, err
	}

	return Attestation{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}, nil
}

func buildDataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	return strings.Join(pairs, "\n")
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
