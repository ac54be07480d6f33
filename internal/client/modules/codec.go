package modules

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/cryptox"
)

// State tells how a stored field was decoded.
type State int

const (
	// StateEmpty: nothing stored yet. The only state in which callers may
	// seed defaults.
	StateEmpty State = iota
	// StateLoaded: a sealed value opened and parsed.
	StateLoaded
	// StateLegacyPlain: an unsealed JSON object from older clients. It is
	// sealed on the next save.
	StateLegacyPlain
	// StateUnparsable: the value opened (or was not sealed) but is not the
	// expected JSON. The result is empty and must not be written back.
	StateUnparsable
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateLegacyPlain:
		return "legacy-plain"
	case StateUnparsable:
		return "unparsable"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// sealedField is the stored shape of an opaque user field.
type sealedField struct {
	IV   string `json:"iv"`
	Data string `json:"data"`
}

var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// decodeBase64 accepts standard and url-safe alphabets, padded or not.
func decodeBase64(s string) ([]byte, error) {
	var err error
	for _, enc := range encodings {
		var b []byte
		if b, err = enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, err
}

// openField decodes raw into v. Only crypto failures are returned as
// errors (common.ErrorKeyMissing after the retry in cryptox.OpenWithRetry);
// anything else that cannot be understood yields StateUnparsable.
func openField(raw string, key cryptox.RawKey, v any) (State, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 || string(data) == "null" {
		return StateEmpty, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return StateUnparsable, nil
	}

	_, hasIV := probe["iv"]
	_, hasData := probe["data"]
	if !hasIV || !hasData {
		if err := json.Unmarshal(data, v); err != nil {
			return StateUnparsable, nil
		}
		return StateLegacyPlain, nil
	}

	var sf sealedField
	if err := json.Unmarshal(data, &sf); err != nil {
		return StateUnparsable, nil
	}
	iv, err := decodeBase64(sf.IV)
	if err != nil {
		return StateUnparsable, nil
	}
	ct, err := decodeBase64(sf.Data)
	if err != nil {
		return StateUnparsable, nil
	}

	plaintext, err := cryptox.OpenWithRetry(cryptox.Sealed{IV: iv, Ciphertext: ct}, key)
	if err != nil {
		if errors.Is(err, common.ErrorKeyMissing) {
			return StateEmpty, err
		}
		return StateEmpty, fmt.Errorf("%w: %v", common.ErrorKeyMissing, err)
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return StateUnparsable, nil
	}
	return StateLoaded, nil
}

// sealField serializes v, seals it and returns the stored string.
func sealField(v any, key cryptox.RawKey) (string, error) {
	sealed, err := cryptox.SealJSON(v, key)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(sealedField{
		IV:   base64.StdEncoding.EncodeToString(sealed.IV),
		Data: base64.StdEncoding.EncodeToString(sealed.Ciphertext),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
