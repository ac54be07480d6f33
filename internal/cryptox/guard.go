package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/aliceout/nodea/internal/common"
)

const guardKeyLabel = "guard:"

// GuardKey derives the per-module subkey HMAC(key, "guard:" + moduleUserID).
// A leaked guard key only exposes the guards of that one module.
func GuardKey(key RawKey, moduleUserID string) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if moduleUserID == "" {
		return nil, fmt.Errorf("%w: module identifier is empty", common.ErrorValidation)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(guardKeyLabel + moduleUserID))
	return mac.Sum(nil), nil
}

// DeriveGuard computes the capability token of one record:
// "g_" + hex(HMAC(GuardKey(key, moduleUserID), recordID)).
// It is deterministic, so a lost cache entry can always be recomputed.
func DeriveGuard(key RawKey, moduleUserID, recordID string) (string, error) {
	if recordID == "" {
		return "", fmt.Errorf("%w: record id is empty", common.ErrorValidation)
	}
	guardKey, err := GuardKey(key, moduleUserID)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(guardKey)

	mac := hmac.New(sha256.New, guardKey)
	mac.Write([]byte(recordID))
	return common.GuardPrefix + hex.EncodeToString(mac.Sum(nil)), nil
}

// isCryptoFailure separates AEAD failures from invalid key material; only
// the former are worth the retry in OpenWithRetry.
func isCryptoFailure(err error) bool {
	return errors.Is(err, common.ErrorDecryption)
}
